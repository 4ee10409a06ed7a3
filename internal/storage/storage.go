package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/LJTian/DailyDigest/internal/collector"
	"github.com/LJTian/DailyDigest/internal/digest"
)

var ErrNotFound = errors.New("digest not found")

// Feed 配置过的订阅源，启动时登记，便于在接口里查看
type Feed struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"size:128;uniqueIndex" json:"name"`
	URL      string `gorm:"size:1024" json:"url"`
	MaxItems int    `gorm:"column:max_items" json:"limit"`
	Status   string `gorm:"size:32;index" json:"status"` // active / disabled

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DigestRecord 每个运行日一条，run_date 唯一
type DigestRecord struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	RunID      string `gorm:"size:36;index" json:"runId"`
	RunDate    string `gorm:"size:10;uniqueIndex" json:"runDate"` // YYYY-MM-DD
	TargetDate string `gorm:"size:10;index" json:"targetDate"`
	Title      string `gorm:"size:128" json:"title"`
	Summary    string `gorm:"size:256" json:"summary"`
	CoverURL   string `gorm:"size:1024" json:"coverUrl"`
	Lunar      string `gorm:"size:32" json:"lunar"`
	Weekday    string `gorm:"size:16" json:"weekday"`
	Quote      string `gorm:"size:512" json:"quote"`
	HTML       string `gorm:"type:text" json:"html,omitempty"`
	ItemCount  int    `json:"itemCount"`

	Items []DigestItem `gorm:"foreignKey:DigestID;constraint:OnDelete:CASCADE" json:"items,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (DigestRecord) TableName() string { return "digests" }

type DigestItem struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	DigestID    uint              `gorm:"index" json:"digestId"`
	Category    string            `gorm:"size:32;index" json:"category"`
	Rank        int               `json:"rank"`
	Title       string            `gorm:"size:512" json:"title"`
	Brief       string            `gorm:"size:1024" json:"brief"`
	Link        string            `gorm:"size:1024" json:"link"`
	Source      string            `gorm:"size:128" json:"source"`
	PublishedAt *time.Time        `json:"publishedAt,omitempty"`
	Extra       datatypes.JSONMap `gorm:"type:jsonb" json:"extra"`

	CreatedAt time.Time `json:"createdAt"`
}

func (DigestItem) TableName() string { return "digest_items" }

// Published 一次成功发布的全部信息，用于归档
type Published struct {
	RunID    string
	Digest   *digest.Digest
	HTML     string
	Summary  string
	CoverURL string
}

type Store struct {
	DB     *gorm.DB
	Cache  *Cache
	logger *zap.Logger
}

// NewStore redisAddr 为空时不启用缓存；Redis 不可达只告警
func NewStore(dsn, redisAddr string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&Feed{}, &DigestRecord{}, &DigestItem{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s := &Store{DB: db, logger: log}
	if redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis ping failed", zap.String("addr", redisAddr), zap.Error(err))
		}
		s.Cache = NewCache(rdb, DefaultCacheTTL)
	}
	return s, nil
}

// EnsureFeeds 登记配置中的订阅源，已存在的更新地址和条数
func (s *Store) EnsureFeeds(ctx context.Context, sources []collector.FeedSource) error {
	for _, src := range sources {
		f := Feed{Name: src.Name, URL: src.URL, MaxItems: src.Limit, Status: "active"}
		err := s.DB.WithContext(ctx).
			Where(Feed{Name: src.Name}).
			Assign(Feed{URL: src.URL, MaxItems: src.Limit, Status: "active"}).
			FirstOrCreate(&f).Error
		if err != nil {
			return fmt.Errorf("ensure feed %s: %w", src.Name, err)
		}
	}
	return nil
}

func (s *Store) ListFeeds(ctx context.Context) ([]Feed, error) {
	var feeds []Feed
	if err := s.DB.WithContext(ctx).Order("id ASC").Find(&feeds).Error; err != nil {
		return nil, err
	}
	return feeds, nil
}

// SaveDigest 以 run_date 为幂等键：同一天重复发布（--force）时覆盖旧记录
func (s *Store) SaveDigest(ctx context.Context, p Published) error {
	rec := NewRecord(p)

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var old DigestRecord
		err := tx.Where("run_date = ?", rec.RunDate).First(&old).Error
		switch {
		case err == nil:
			if err := tx.Where("digest_id = ?", old.ID).Delete(&DigestItem{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&old).Error; err != nil {
				return err
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		return tx.Create(rec).Error
	})
	if err != nil {
		return fmt.Errorf("save digest %s: %w", rec.RunDate, err)
	}

	// 列表缓存依赖短 TTL 自然过期，这里只删单日详情
	s.Cache.Delete(ctx, digestKey(rec.RunDate))
	return nil
}

// NewRecord 把日报转换成归档记录
func NewRecord(p Published) *DigestRecord {
	d := p.Digest
	rec := &DigestRecord{
		RunID:      p.RunID,
		RunDate:    d.RunDate.Format("2006-01-02"),
		TargetDate: d.TargetDate.Format("2006-01-02"),
		Title:      toValidUTF8(d.Title),
		Summary:    truncateRunesDB(toValidUTF8(p.Summary), 256),
		CoverURL:   p.CoverURL,
		Lunar:      d.Labels.Lunar,
		Weekday:    d.Labels.Weekday,
		Quote:      truncateRunesDB(toValidUTF8(d.ClosingQuote), 512),
		HTML:       toValidUTF8(p.HTML),
		ItemCount:  d.Total(),
	}
	for _, sec := range d.Sections {
		for i, e := range sec.Entries {
			rec.Items = append(rec.Items, DigestItem{
				Category:    string(sec.Category),
				Rank:        i + 1,
				Title:       truncateRunesDB(toValidUTF8(e.Item.Title), 512),
				Brief:       truncateRunesDB(toValidUTF8(e.Brief), 1024),
				Link:        e.Item.Link,
				Source:      e.Item.SourceFeed,
				PublishedAt: e.Item.PublishedAt,
				Extra: datatypes.JSONMap{
					"summary":       toValidUTF8(e.Item.Summary),
					"published_raw": e.Item.PublishedRaw,
				},
			})
		}
	}
	return rec
}

// ListDigests 最近的日报，不含正文和条目
func (s *Store) ListDigests(ctx context.Context, limit int) ([]DigestRecord, error) {
	if limit <= 0 || limit > 365 {
		limit = 30
	}
	key := fmt.Sprintf("digest:list:%d", limit)

	var list []DigestRecord
	if s.Cache.GetJSON(ctx, key, &list) {
		return list, nil
	}

	err := s.DB.WithContext(ctx).
		Omit("html").
		Order("run_date DESC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	if len(list) > 0 {
		s.Cache.SetJSON(ctx, key, list)
	}
	return list, nil
}

// GetDigest date 格式 2006-01-02，按运行日查询
func (s *Store) GetDigest(ctx context.Context, date string) (*DigestRecord, error) {
	key := digestKey(date)

	var rec DigestRecord
	if s.Cache.GetJSON(ctx, key, &rec) {
		return &rec, nil
	}

	err := s.DB.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Where("run_date = ?", date).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.Cache.SetJSON(ctx, key, rec)
	return &rec, nil
}

func digestKey(date string) string { return "digest:get:" + date }

// toValidUTF8 部分源可能含 GBK/混编字节，入库前统一替换，避免 PostgreSQL invalid byte sequence
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "�")
}

// truncateRunesDB 按 rune 截断，保证不超过字段长度
func truncateRunesDB(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = strings.TrimSpace(s)
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}
