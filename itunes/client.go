// Package itunes 是 iTunes Search / Lookup API 的客户端，用于种子解析与结果富化。
//
// 客户端自带重试（429 与 5xx，遵循 Retry-After）、客户端限流与熔断。
package itunes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/rushteam/tracksim/core"
)

const DefaultBaseURL = "https://itunes.apple.com"

// Config 是客户端配置。
type Config struct {
	BaseURL     string        `koanf:"base_url"`
	Country     string        `koanf:"country"`
	Timeout     time.Duration `koanf:"timeout"`
	MaxRetries  int           `koanf:"max_retries"`
	BaseBackoff time.Duration `koanf:"base_backoff"`
	// RPS 为每秒请求数上限，0 表示不限流
	RPS   float64 `koanf:"rps"`
	Burst int     `koanf:"burst"`

	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() Config {
	return Config{
		BaseURL:         DefaultBaseURL,
		Timeout:         3 * time.Second,
		MaxRetries:      3,
		BaseBackoff:     500 * time.Millisecond,
		RPS:             5,
		Burst:           5,
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

// Track 是 API 返回的曲目记录（只保留用到的字段）。
type Track struct {
	WrapperType       string `json:"wrapperType"`
	Kind              string `json:"kind"`
	TrackID           int64  `json:"trackId"`
	TrackName         string `json:"trackName"`
	ArtistName        string `json:"artistName"`
	CollectionName    string `json:"collectionName"`
	PrimaryGenreName  string `json:"primaryGenreName"`
	PrimaryGenreID    int    `json:"primaryGenreId"`
	TrackTimeMillis   int64  `json:"trackTimeMillis"`
	TrackExplicitness string `json:"trackExplicitness"`
	IsStreamable      bool   `json:"isStreamable"`
	DiscNumber        int    `json:"discNumber"`
	DiscCount         int    `json:"discCount"`
	ReleaseDate       string `json:"releaseDate"`
	PreviewURL        string `json:"previewUrl"`
	ArtworkURL100     string `json:"artworkUrl100"`
	TrackViewURL      string `json:"trackViewUrl"`
	CollectionViewURL string `json:"collectionViewUrl"`
}

// ToCore 转为曲库元信息。
func (t *Track) ToCore() core.Track {
	return core.Track{
		TrackID:     t.TrackID,
		Title:       t.TrackName,
		Artist:      t.ArtistName,
		Genre:       t.PrimaryGenreName,
		GenreID:     t.PrimaryGenreID,
		ReleaseDate: t.ReleaseDate,
		PreviewURL:  t.PreviewURL,
		ArtworkURL:  t.ArtworkURL100,
	}
}

// MusicURL 返回曲目页链接，缺失时退回专辑页。
func (t *Track) MusicURL() string {
	if t.TrackViewURL != "" {
		return t.TrackViewURL
	}
	return t.CollectionViewURL
}

type response struct {
	ResultCount int     `json:"resultCount"`
	Results     []Track `json:"results"`
}

// Option 配置 Client。
type Option func(*Client)

// WithHTTPClient 替换底层 http.Client。
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.httpClient = hc } }

// WithLogger 指定日志。
func WithLogger(l zerolog.Logger) Option { return func(c *Client) { c.log = l } }

// WithStateHook 在熔断器状态变化时回调。
func WithStateHook(fn func(name string, from, to gobreaker.State)) Option {
	return func(c *Client) { c.onState = fn }
}

// Client 是并发安全的 iTunes 客户端。
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]Track]
	log        zerolog.Logger
	onState    func(name string, from, to gobreaker.State)
}

// New 创建客户端。
func New(cfg Config, opts ...Option) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = def.BaseBackoff
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = def.BreakerFailures
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = def.BreakerTimeout
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}

	c.breaker = gobreaker.NewCircuitBreaker[[]Track](gobreaker.Settings{
		Name:        "itunes",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		// 业务性的失败（无结果、参数错误）不计入熔断
		IsSuccessful: func(err error) bool {
			return err == nil || core.IsNotFound(err) || core.IsInvalidInput(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
			if c.onState != nil {
				c.onState(name, from, to)
			}
		},
	})
	return c
}

// Lookup 按 trackId 批量查询，返回的记录顺序与 API 一致。
func (c *Client) Lookup(ctx context.Context, ids ...int64) ([]Track, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	q := url.Values{}
	q.Set("id", strings.Join(parts, ","))
	q.Set("entity", "song")
	return c.get(ctx, "/lookup", q)
}

// LookupOne 查询单个曲目，无结果时返回 NOT_FOUND。
func (c *Client) LookupOne(ctx context.Context, id int64) (*Track, error) {
	res, err := c.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := range res {
		if res[i].TrackID == id {
			return &res[i], nil
		}
	}
	return nil, core.NewDomainError(core.ModuleExtract, core.ErrorCodeNotFound, fmt.Sprintf("track %d not found", id))
}

// Search 按关键词搜索歌曲。
func (c *Client) Search(ctx context.Context, term string, limit int) ([]Track, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, core.NewDomainError(core.ModuleExtract, core.ErrorCodeInvalidInput, "empty search term")
	}
	if limit <= 0 {
		limit = 1
	}
	q := url.Values{}
	q.Set("term", term)
	q.Set("media", "music")
	q.Set("entity", "song")
	q.Set("limit", strconv.Itoa(limit))
	return c.get(ctx, "/search", q)
}

// SearchOne 返回最匹配的一首，无结果时返回 NOT_FOUND。
func (c *Client) SearchOne(ctx context.Context, term string) (*Track, error) {
	res, err := c.Search(ctx, term, 1)
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, core.NewDomainError(core.ModuleExtract, core.ErrorCodeNotFound, fmt.Sprintf("no track for %q", term))
	}
	return &res[0], nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values) ([]Track, error) {
	if c.cfg.Country != "" {
		q.Set("country", c.cfg.Country)
	}
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + path + "?" + q.Encode()

	// 重试在熔断器内部完成，整轮重试失败只计一次熔断失败
	res, err := c.breaker.Execute(func() ([]Track, error) {
		for n := 0; ; n++ {
			tracks, err := c.roundTrip(ctx, endpoint, path, n)
			var rt *retryable
			if !errors.As(err, &rt) {
				return tracks, err
			}
			if n+1 >= c.cfg.MaxRetries {
				return nil, core.WrapDomainError(core.ModuleExtract, core.ErrorCodeUnavailable, rt.err, "itunes %s: gave up after %d attempts", path, n+1)
			}
			c.log.Warn().Err(rt.err).Int("attempt", n+1).Dur("wait", rt.wait).Str("path", path).Msg("itunes request failed, retrying")
			t := time.NewTimer(rt.wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, core.WrapDomainError(core.ModuleExtract, core.ErrorCodeUnavailable, err, "itunes circuit open")
	}
	return res, err
}

// roundTrip 发出第 n 次请求。可重放的失败以 *retryable 返回。
func (c *Client) roundTrip(ctx context.Context, endpoint, path string, n int) ([]Track, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleExtract, core.ErrorCodeInvalidInput, err, "build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &retryable{err: err, wait: c.backoff(n, nil)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case transientStatus(resp.StatusCode):
		return nil, &retryable{err: fmt.Errorf("status %d", resp.StatusCode), wait: c.backoff(n, resp.Header)}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, core.NewDomainError(core.ModuleExtract, core.ErrorCodeInvalidInput, fmt.Sprintf("itunes %s: status %d", path, resp.StatusCode))
	default:
		return nil, core.NewDomainError(core.ModuleExtract, core.ErrorCodeUnavailable, fmt.Sprintf("itunes %s: status %d", path, resp.StatusCode))
	}
	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, core.WrapDomainError(core.ModuleExtract, core.ErrorCodeUnavailable, err, "decode itunes %s", path)
	}
	return body.Results, nil
}
