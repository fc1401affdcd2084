package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/rushteam/tracksim/core"
)

// RemoteExtractor 通过 HTTP 调用外部特征提取服务。
//
// 请求格式（JSON）：
//
//	{"preview_url": "https://..."}
//
// 响应格式（JSON）：
//
//	{"features": [0.52, 0.31, ...]}
type RemoteExtractor struct {
	Endpoint string // 例如 "http://localhost:8090/extract"
	Timeout  time.Duration
	Client   *http.Client
}

func NewRemoteExtractor(endpoint string, timeout time.Duration) *RemoteExtractor {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &RemoteExtractor{
		Endpoint: endpoint,
		Timeout:  timeout,
		Client:   &http.Client{Timeout: timeout},
	}
}

func (e *RemoteExtractor) Extract(ctx context.Context, previewURL string) (core.FeatureVector, error) {
	if previewURL == "" {
		return nil, core.NewDomainError(core.ModuleExtract, core.ErrorCodeInvalidInput, "missing preview url")
	}
	if e.Client == nil {
		e.Client = &http.Client{Timeout: e.Timeout}
	}

	body, err := json.Marshal(map[string]string{"preview_url": previewURL})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleExtract, core.ErrorCodeUnavailable, err, "extractor call")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, core.NewDomainError(core.ModuleExtract, core.ErrorCodeUnavailable,
			fmt.Sprintf("extractor error: status=%d, body=%s", resp.StatusCode, string(msg)))
	}

	var result struct {
		Features []float64 `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, core.WrapDomainError(core.ModuleExtract, core.ErrorCodeUnavailable, err, "decode response")
	}
	if len(result.Features) != core.AudioDim {
		return nil, core.NewDomainError(core.ModuleExtract, core.ErrorCodeUnavailable,
			fmt.Sprintf("extractor returned %d features, want %d", len(result.Features), core.AudioDim))
	}
	return result.Features, nil
}
