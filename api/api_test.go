package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"

	"github.com/rushteam/tracksim/catalog"
	"github.com/rushteam/tracksim/core"
	"github.com/rushteam/tracksim/history"
	"github.com/rushteam/tracksim/service"
)

func newTestServer(t *testing.T, adminToken string) (*httptest.Server, *catalog.Index) {
	t.Helper()
	snap := &catalog.Snapshot{
		Vectors: [][]float64{
			{0.9, 0.5, 0.5, 0.5, 0.9, 0.5},
			{0.85, 0.5, 0.5, 0.5, 0.85, 0.5},
			{0.2, 0.5, 0.5, 0.5, 0.2, 0.5},
		},
		Tracks: []core.Track{
			{TrackID: 1, Title: "One", Artist: "A", Genre: "Pop", ReleaseDate: "2020"},
			{TrackID: 2, Title: "Two", Artist: "B", Genre: "Pop", ReleaseDate: "2019"},
			{TrackID: 3, Title: "Three", Artist: "C", Genre: "Pop", ReleaseDate: "2018"},
		},
	}
	ix := catalog.New(&catalog.StaticStore{Snapshot: snap}, catalog.WithBackend(catalog.NewFlatBackend()))
	if err := ix.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	hs, err := history.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = hs.Close() })

	h := &Handler{
		Recommender: service.NewRecommender(ix, service.Options{ExcludeSeeds: true, History: hs}),
		Resolver:    &service.SeedResolver{Catalog: ix},
		Weights:     ix,
		History:     hs,
	}
	srv := httptest.NewServer(NewRouter(h, RouterOptions{AdminToken: adminToken}))
	t.Cleanup(srv.Close)
	return srv, ix
}

func do(t *testing.T, method, url, body string, header map[string]string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewBufferString(body))
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	return resp, buf.Bytes()
}

func TestPing(t *testing.T) {
	srv, _ := newTestServer(t, "")
	resp, body := do(t, http.MethodGet, srv.URL+"/api/v1/ping", "", nil)
	if resp.StatusCode != http.StatusOK || string(bytes.TrimSpace(body)) != `{"message":"pong"}` {
		t.Fatalf("ping = %d %s", resp.StatusCode, body)
	}
}

func TestRecommendEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, "")
	resp, body := do(t, http.MethodPost, srv.URL+"/api/v1/recommend", `{"track_ids":[1],"top_k":5}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}
	var got RecommendResponse
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatal(err)
	}
	if len(got.InputIDs) != 1 || got.InputIDs[0] != 1 {
		t.Fatalf("input_ids = %v", got.InputIDs)
	}
	if len(got.Recommended) != 2 || got.Recommended[0].TrackID != 2 {
		t.Fatalf("recommended = %+v", got.Recommended)
	}
	if got.RequestID == "" || got.MoodKeywords == nil {
		t.Fatalf("response = %+v", got)
	}

	resp, body = do(t, http.MethodGet, srv.URL+"/api/v1/history/"+got.RequestID, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history status = %d, body = %s", resp.StatusCode, body)
	}
}

func TestRecommendEchoesRequestID(t *testing.T) {
	srv, _ := newTestServer(t, "")
	resp, body := do(t, http.MethodPost, srv.URL+"/api/v1/recommend", `{"track_ids":[1],"top_k":2}`,
		map[string]string{"X-Request-Id": "gw/7f3a-000001"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}
	var got RecommendResponse
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatal(err)
	}
	if got.RequestID != "gw/7f3a-000001" {
		t.Fatalf("request_id = %q, want the X-Request-Id header", got.RequestID)
	}
	resp, body = do(t, http.MethodGet, srv.URL+"/api/v1/history/gw/7f3a-000001", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history status = %d, body = %s", resp.StatusCode, body)
	}
}

func TestRecommendBadRequests(t *testing.T) {
	srv, _ := newTestServer(t, "")
	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"track_ids":`, http.StatusBadRequest},
		{"neither field", `{"top_k":3}`, http.StatusBadRequest},
		{"both fields", `{"track_ids":[1],"queries":["a, b"]}`, http.StatusBadRequest},
		{"top_k too large", `{"track_ids":[1],"top_k":51}`, http.StatusBadRequest},
		{"unknown field", `{"track_ids":[1],"foo":1}`, http.StatusBadRequest},
		{"unresolvable seeds", `{"track_ids":[999]}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, http.MethodPost, srv.URL+"/api/v1/recommend", tt.body, nil)
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d, body = %s", resp.StatusCode, tt.want, body)
			}
			var eb errorBody
			if err := json.Unmarshal(body, &eb); err != nil || eb.Error.Code == "" {
				t.Fatalf("error body = %s", body)
			}
		})
	}
}

func TestWeightsEndpoints(t *testing.T) {
	srv, ix := newTestServer(t, "secret")

	resp, _ := do(t, http.MethodPatch, srv.URL+"/api/v1/weights", `{"tempo":1}`, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing token: status = %d", resp.StatusCode)
	}
	for _, bad := range []string{"Bearer secre", "Bearer secrets", "secret", "Bearer SECRET"} {
		resp, _ = do(t, http.MethodPatch, srv.URL+"/api/v1/weights", `{"tempo":1}`, map[string]string{"Authorization": bad})
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("token %q: status = %d", bad, resp.StatusCode)
		}
	}
	if w := ix.DistanceWeights(); w.Tempo == 1 {
		t.Fatal("rejected requests must not change weights")
	}

	auth := map[string]string{"Authorization": "Bearer secret"}
	resp, body := do(t, http.MethodPatch, srv.URL+"/api/v1/weights", `{"tempo":1}`, auth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch status = %d, body = %s", resp.StatusCode, body)
	}
	if w := ix.DistanceWeights(); w.Tempo != 1 || w.Energy != 0.3 {
		t.Fatalf("weights = %+v", w)
	}

	resp, _ = do(t, http.MethodPatch, srv.URL+"/api/v1/weights", `{"energy":-1}`, auth)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("negative weight: status = %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodPatch, srv.URL+"/api/v1/weights", `{}`, auth)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty update: status = %d", resp.StatusCode)
	}

	resp, body = do(t, http.MethodGet, srv.URL+"/api/v1/weights", "", nil)
	var w core.DistanceWeights
	if err := json.Unmarshal(body, &w); err != nil || resp.StatusCode != http.StatusOK || w.Tempo != 1 {
		t.Fatalf("get weights = %d %s", resp.StatusCode, body)
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidInput, "x"), http.StatusBadRequest},
		{core.NewDomainError(core.ModuleExtract, core.ErrorCodeUnavailable, "x"), http.StatusServiceUnavailable},
		{core.NewDomainError(core.ModuleService, core.ErrorCodeNotFound, "x"), http.StatusNotFound},
		{core.NewDomainError(core.ModuleCatalog, core.ErrorCodeConfig, "x"), http.StatusInternalServerError},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got, _ := statusOf(tt.err); got != tt.want {
			t.Errorf("statusOf(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, "")
	resp, body := do(t, http.MethodGet, srv.URL+"/metrics", "", nil)
	if resp.StatusCode != http.StatusOK || !bytes.Contains(body, []byte("go_goroutines")) {
		t.Fatalf("metrics = %d", resp.StatusCode)
	}
}
