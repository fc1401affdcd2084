package itunes

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// retryable 标记一次可以重放的失败：连接错误、限流或服务端错误。
type retryable struct {
	err  error
	wait time.Duration
}

func (r *retryable) Error() string { return r.err.Error() }
func (r *retryable) Unwrap() error { return r.err }

func transientStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// backoff 是第 n 次失败（从 0 计）后的等待时长，服务端的 Retry-After 优先。
func (c *Client) backoff(n int, h http.Header) time.Duration {
	if d, ok := retryAfter(h, time.Now()); ok {
		return d
	}
	return c.cfg.BaseBackoff << n
}

// retryAfter 解析 Retry-After 的两种写法：秒数或 HTTP 日期。
func retryAfter(h http.Header, now time.Time) (time.Duration, bool) {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(secs) * time.Second, secs > 0
	}
	at, err := http.ParseTime(v)
	if err != nil || !at.After(now) {
		return 0, false
	}
	return at.Sub(now), true
}
