package imagegen

import (
	"context"
	"errors"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/LJTian/DailyDigest/internal/errs"
)

const (
	ImgBBEndpoint = "https://api.imgbb.com/1/upload"
	imgbbTimeout  = 60 * time.Second
)

// ImgBB 图床上传，只用于出图接口返回 base64 的情况
type ImgBB struct {
	client   *resty.Client
	Endpoint string
	APIKey   string
}

func NewImgBB(apiKey string) *ImgBB {
	return &ImgBB{
		client:   resty.New().SetTimeout(imgbbTimeout),
		Endpoint: ImgBBEndpoint,
		APIKey:   apiKey,
	}
}

type imgbbResponse struct {
	Success bool `json:"success"`
	Data    struct {
		URL        string `json:"url"`
		DisplayURL string `json:"display_url"`
	} `json:"data"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (u *ImgBB) Upload(ctx context.Context, imageBase64 string) (string, error) {
	if u.APIKey == "" {
		return "", errs.ConfigMissing("IMGBB_API_KEY")
	}

	var out imgbbResponse
	resp, err := u.client.R().
		SetContext(ctx).
		SetQueryParam("key", u.APIKey).
		SetFormData(map[string]string{"image": imageBase64}).
		SetResult(&out).
		SetError(&out).
		Post(u.Endpoint)
	if err != nil {
		return "", errs.Network("imgbb upload", err)
	}
	if !out.Success || out.Data.URL == "" {
		msg := out.Error.Message
		if msg == "" {
			msg = resp.Status()
		}
		return "", errs.Network("imgbb upload", errors.New(msg))
	}
	return out.Data.URL, nil
}
