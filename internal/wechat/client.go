package wechat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Session 微信 jscode2session 接口的返回结果
type Session struct {
	OpenID     string `json:"openid"`
	SessionKey string `json:"session_key"`
	UnionID    string `json:"unionid,omitempty"`
}

// SessionExchanger exchanges a mini-program login code for a session.
type SessionExchanger interface {
	ExchangeCode(ctx context.Context, code string) (*Session, error)
}

type sessionResponse struct {
	OpenID     string `json:"openid"`
	SessionKey string `json:"session_key"`
	UnionID    string `json:"unionid"`
	ErrCode    int    `json:"errcode"`
	ErrMsg     string `json:"errmsg"`
}

// Client calls the WeChat mini-program auth API.
type Client struct {
	appID      string
	secret     string
	baseURL    string
	httpClient *http.Client
}

// NewClient 创建微信客户端。appid/secret 未配置时客户端仍可创建，
// 调用 ExchangeCode 时才会报错。
func NewClient(appID, secret, baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	trimmedBase := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmedBase == "" {
		trimmedBase = "https://api.weixin.qq.com"
	}
	return &Client{
		appID:   strings.TrimSpace(appID),
		secret:  strings.TrimSpace(secret),
		baseURL: trimmedBase,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ExchangeCode 通过登录 code 换取 openid 和 session_key
func (c *Client) ExchangeCode(ctx context.Context, code string) (*Session, error) {
	if c == nil {
		return nil, errors.New("wechat client is nil")
	}
	if c.appID == "" || c.secret == "" {
		return nil, errors.New("wechat appid or secret is not configured")
	}
	trimmedCode := strings.TrimSpace(code)
	if trimmedCode == "" {
		return nil, errors.New("login code is empty")
	}

	params := url.Values{}
	params.Set("appid", c.appID)
	params.Set("secret", c.secret)
	params.Set("js_code", trimmedCode)
	params.Set("grant_type", "authorization_code")
	target := c.baseURL + "/sns/jscode2session?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wechat api request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read wechat api response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wechat api returned status %d", resp.StatusCode)
	}

	var parsed sessionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode wechat api response: %w", err)
	}
	// 微信在 HTTP 200 里返回业务错误码
	if parsed.ErrCode != 0 {
		return nil, fmt.Errorf("wechat api error %d: %s", parsed.ErrCode, parsed.ErrMsg)
	}
	if strings.TrimSpace(parsed.OpenID) == "" {
		return nil, errors.New("wechat api response contains no openid")
	}

	logrus.WithField("openid_prefix", prefix(parsed.OpenID, 6)).Debug("wechat code exchanged")

	return &Session{
		OpenID:     parsed.OpenID,
		SessionKey: parsed.SessionKey,
		UnionID:    parsed.UnionID,
	}, nil
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
