package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/LJTian/DailyDigest/internal/collector"
	"github.com/LJTian/DailyDigest/internal/errs"
)

type Config struct {
	AppPort string

	// PostgresDSN 为空时不归档
	PostgresDSN string
	RedisAddr   string

	CronSpec string
	Location *time.Location

	WorkDir  string
	LogFile  string
	LogLevel string

	FeedsFile   string
	FeedWorkers int
	Feeds       []collector.FeedSource

	OpenRouterAPIKey string
	DoubaoAPIKey     string

	WechatAPIKey  string
	WechatAppID   string
	WechatBaseURL string

	ImgBBAPIKey string
	CoverStyle  string
	CoverSize   string

	BasicAuthUser string
	BasicAuthPass string
}

// DefaultFeeds 未配置 FEEDS_FILE 时使用
var DefaultFeeds = []collector.FeedSource{
	{Name: "机器之心", URL: "https://www.jiqizhixin.com/rss", Limit: 10},
	{Name: "36氪", URL: "https://36kr.com/feed", Limit: 10},
	{Name: "虎嗅", URL: "https://www.huxiu.com/rss/0.xml", Limit: 8},
	{Name: "钛媒体", URL: "https://www.tmtpost.com/rss", Limit: 8},
	{Name: "TechCrunch", URL: "https://techcrunch.com/feed/", Limit: 8},
	{Name: "TechCrunch AI", URL: "https://techcrunch.com/category/artificial-intelligence/feed/", Limit: 8},
	{Name: "The Verge", URL: "https://www.theverge.com/rss/index.xml", Limit: 8},
	{Name: "Wired", URL: "https://www.wired.com/feed/rss", Limit: 5},
	{Name: "Ars Technica", URL: "https://feeds.arstechnica.com/arstechnica/index", Limit: 5},
	{Name: "Reuters Tech", URL: "https://www.reutersagency.com/feed/?taxonomy=best-topics&post_type=best", Limit: 5},
}

// Load 依次读取 .env.local / .env（已存在的环境变量优先），再读环境变量和订阅源文件
func Load() (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, err
	}

	cfg := &Config{
		AppPort:          getEnv("APP_PORT", "9000"),
		PostgresDSN:      getEnv("POSTGRES_DSN", ""),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		CronSpec:         getEnv("CRON_SPEC", "0 8 * * *"),
		WorkDir:          getEnv("WORK_DIR", "."),
		LogFile:          getEnv("LOG_FILE", "logs/daily-news.log"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		FeedsFile:        getEnv("FEEDS_FILE", ""),
		FeedWorkers:      getEnvInt("FEED_WORKERS", collector.DefaultWorkers),
		OpenRouterAPIKey: getEnv("OPENROUTER_API_KEY", ""),
		DoubaoAPIKey:     getEnv("DOUBAO_API_KEY", ""),
		WechatAPIKey:     getEnv("WECHAT_API_KEY", ""),
		WechatAppID:      getEnv("WECHAT_APP_ID", ""),
		WechatBaseURL:    getEnv("WECHAT_API_BASE", "https://wx.limyai.com/api/openapi"),
		ImgBBAPIKey:      getEnv("IMGBB_API_KEY", ""),
		CoverStyle:       getEnv("COVER_STYLE", "tech"),
		CoverSize:        getEnv("COVER_SIZE", "2048x2048"),
		BasicAuthUser:    getEnv("APP_BASIC_USER", ""),
		BasicAuthPass:    getEnv("APP_BASIC_PASS", ""),
	}

	loc, err := loadLocation(getEnv("TIMEZONE", "Asia/Shanghai"))
	if err != nil {
		return nil, err
	}
	cfg.Location = loc

	cfg.Feeds = DefaultFeeds
	if cfg.FeedsFile != "" {
		feeds, err := LoadFeeds(cfg.FeedsFile)
		if err != nil {
			return nil, err
		}
		cfg.Feeds = feeds
	}
	return cfg, nil
}

// Validate 在任何网络请求之前检查凭证；试运行不发布，只需要大模型的 key
func (c *Config) Validate(dryRun bool) error {
	var missing []string
	if c.OpenRouterAPIKey == "" && c.DoubaoAPIKey == "" {
		missing = append(missing, "OPENROUTER_API_KEY|DOUBAO_API_KEY")
	}
	if !dryRun && c.WechatAPIKey == "" {
		missing = append(missing, "WECHAT_API_KEY")
	}
	if len(missing) > 0 {
		return errs.ConfigMissing(missing...)
	}
	return nil
}

// Warnings 可选配置缺失时的提示
func (c *Config) Warnings() []string {
	var out []string
	if c.WechatAppID == "" {
		out = append(out, "WECHAT_APP_ID 未设置，将使用发布接口的默认公众号")
	}
	if c.DoubaoAPIKey == "" {
		out = append(out, "DOUBAO_API_KEY 未设置，无法生成封面图，也没有备用大模型")
	}
	if c.ImgBBAPIKey == "" {
		out = append(out, "IMGBB_API_KEY 未设置，出图接口返回 base64 时无法转存")
	}
	return out
}

type feedsFile struct {
	Feeds []collector.FeedSource `yaml:"feeds"`
}

// LoadFeeds 读取 YAML 订阅源列表：
//
//	feeds:
//	  - name: 36氪
//	    url: https://36kr.com/feed
//	    limit: 10
func LoadFeeds(path string) ([]collector.FeedSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feeds file: %w", err)
	}
	var f feedsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse feeds file %s: %w", path, err)
	}

	feeds := make([]collector.FeedSource, 0, len(f.Feeds))
	for i, src := range f.Feeds {
		src.Name = strings.TrimSpace(src.Name)
		src.URL = strings.TrimSpace(src.URL)
		if src.URL == "" {
			return nil, fmt.Errorf("feeds file %s: entry %d has no url", path, i+1)
		}
		if src.Name == "" {
			src.Name = src.URL
		}
		feeds = append(feeds, src)
	}
	if len(feeds) == 0 {
		return nil, fmt.Errorf("feeds file %s: no feeds", path)
	}
	return feeds, nil
}

func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}
	// godotenv.Load 不覆盖已有变量，先加载的优先
	for _, f := range []string{".env.local", ".env"} {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func loadLocation(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(name)
	if err == nil {
		return loc, nil
	}
	if name == "Asia/Shanghai" {
		// 精简镜像里可能没有 tzdata
		return time.FixedZone("CST", 8*3600), nil
	}
	return nil, fmt.Errorf("load timezone %s: %w", name, err)
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// Now returns current time, 方便后续做可测试封装
func Now() time.Time {
	return time.Now()
}
