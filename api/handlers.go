package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/rushteam/tracksim/core"
	"github.com/rushteam/tracksim/history"
	"github.com/rushteam/tracksim/pkg/validate"
	"github.com/rushteam/tracksim/service"
)

// maxBodyBytes 是请求体上限。
const maxBodyBytes = 1 << 20

// Recommender 由 service.Recommender 实现。
type Recommender interface {
	RecommendSeeds(ctx context.Context, seeds []service.Seed, topK int) (*service.Result, error)
}

// SeedResolver 由 service.SeedResolver 实现。
type SeedResolver interface {
	ResolveIDs(ctx context.Context, ids []int64) ([]service.Seed, error)
	ResolveTerms(ctx context.Context, queries []string) ([]service.Seed, error)
}

// WeightStore 由 catalog.Index 实现。
type WeightStore interface {
	DistanceWeights() core.DistanceWeights
	SetDistanceWeights(u core.WeightsUpdate) (core.DistanceWeights, error)
}

// HistoryReader 由 history.SQLiteStore 实现。
type HistoryReader interface {
	Get(ctx context.Context, requestID string) (*history.Entry, error)
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
}

// Handler 持有各接口的依赖。History 可为 nil。
type Handler struct {
	Recommender Recommender
	Resolver    SeedResolver
	Weights     WeightStore
	History     HistoryReader
	Logger      zerolog.Logger
}

// RecommendRequest 是 POST /api/v1/recommend 的请求体，track_ids 与 queries 二选一。
type RecommendRequest struct {
	TrackIDs []int64  `json:"track_ids" validate:"omitempty,max=10,dive,gt=0"`
	Queries  []string `json:"queries" validate:"omitempty,max=10"`
	TopK     int      `json:"top_k" validate:"omitempty,min=1,max=50"`
}

// RecommendResponse 是推荐接口的响应体。
type RecommendResponse struct {
	RequestID    string                   `json:"request_id"`
	InputIDs     []int64                  `json:"input_ids"`
	MoodKeywords []string                 `json:"mood_keywords"`
	Recommended  []service.Recommendation `json:"recommended"`
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (h *Handler) Ping(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "pong"})
}

func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	if !h.decode(w, r, &req) {
		return
	}
	if (len(req.TrackIDs) == 0) == (len(req.Queries) == 0) {
		writeError(w, http.StatusBadRequest, core.ErrorCodeInvalidInput, "exactly one of track_ids or queries is required")
		return
	}

	var (
		seeds []service.Seed
		err   error
	)
	if len(req.TrackIDs) > 0 {
		seeds, err = h.Resolver.ResolveIDs(r.Context(), req.TrackIDs)
	} else {
		seeds, err = h.Resolver.ResolveTerms(r.Context(), req.Queries)
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	res, err := h.Recommender.RecommendSeeds(r.Context(), seeds, req.TopK)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	inputIDs := make([]int64, len(seeds))
	for i, s := range seeds {
		inputIDs[i] = s.ID
	}
	writeJSON(w, http.StatusOK, RecommendResponse{
		RequestID:    res.RequestID,
		InputIDs:     inputIDs,
		MoodKeywords: res.MoodTags,
		Recommended:  res.Tracks,
	})
}

func (h *Handler) GetWeights(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Weights.DistanceWeights())
}

func (h *Handler) PatchWeights(w http.ResponseWriter, r *http.Request) {
	var u core.WeightsUpdate
	if !h.decode(w, r, &u) {
		return
	}
	if u.IsEmpty() {
		writeError(w, http.StatusBadRequest, core.ErrorCodeInvalidInput, "no weight fields given")
		return
	}
	updated, err := h.Weights.SetDistanceWeights(u)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	if h.History == nil {
		writeError(w, http.StatusNotFound, core.ErrorCodeNotSupported, "history is disabled")
		return
	}
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 200 {
			writeError(w, http.StatusBadRequest, core.ErrorCodeInvalidInput, "limit must be between 1 and 200")
			return
		}
		limit = n
	}
	entries, err := h.History.Recent(r.Context(), limit)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if h.History == nil {
		writeError(w, http.StatusNotFound, core.ErrorCodeNotSupported, "history is disabled")
		return
	}
	e, err := h.History.Get(r.Context(), chi.URLParam(r, "*"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// decode 解析并校验请求体，失败时已写出 400。
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, core.ErrorCodeInvalidInput, "invalid json: "+err.Error())
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, core.ErrorCodeInvalidInput, err.Error())
		return false
	}
	return true
}

// statusOf 把领域错误映射为 HTTP 状态码。
func statusOf(err error) (int, string) {
	de := core.GetDomainError(err)
	if de == nil {
		return http.StatusInternalServerError, core.ErrorCodeInternalError
	}
	switch de.Code {
	case core.ErrorCodeInvalidInput:
		return http.StatusBadRequest, de.Code
	case core.ErrorCodeNotFound:
		return http.StatusNotFound, de.Code
	case core.ErrorCodeUnavailable:
		return http.StatusServiceUnavailable, de.Code
	default:
		return http.StatusInternalServerError, de.Code
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	status, code := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.Logger.Error().Err(err).Msg("request failed")
		if !errors.Is(err, context.Canceled) {
			msg = "internal error"
		}
	}
	writeError(w, status, code, msg)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = msg
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
