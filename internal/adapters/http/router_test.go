package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ybolotov/deep-research/internal/core/domain"
)

type researchServiceFake struct {
	result *domain.ResearchResult
	err    error
	calls  int
	query  string
}

func (f *researchServiceFake) Run(_ context.Context, sessionID, query string) (*domain.ResearchResult, error) {
	f.calls++
	f.query = query
	if f.err != nil {
		return nil, f.err
	}
	result := *f.result
	result.SessionID = sessionID
	return &result, nil
}

type transcriptReaderFake struct {
	entries []domain.TranscriptEntry
	err     error
}

func (f *transcriptReaderFake) ListBySession(_ context.Context, sessionID string) ([]domain.TranscriptEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.entries, nil
}

type queueFake struct {
	sessionID string
	query     string
	err       error
}

func (f *queueFake) PublishResearchRequested(_ context.Context, sessionID, query string) error {
	f.sessionID = sessionID
	f.query = query
	return f.err
}

func (f *queueFake) SubscribeResearchRequested(context.Context, func(context.Context, string, string) error) error {
	return nil
}

func postJSONRequest(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestRunResearchEndpoint(t *testing.T) {
	svc := &researchServiceFake{result: &domain.ResearchResult{Report: "findings", Chunks: 4}}
	handler := NewRouter(svc, &transcriptReaderFake{}, nil, nil, TrafficControl{}).Handler()

	res := postJSONRequest(t, handler, "/v1/research", `{"query":"perovskite stability"}`)
	if res.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", res.Code, res.Body.String())
	}

	var result domain.ResearchResult
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Report != "findings" {
		t.Errorf("report = %q", result.Report)
	}
	if result.SessionID == "" {
		t.Error("session id not assigned")
	}
	if svc.query != "perovskite stability" {
		t.Errorf("service saw query %q", svc.query)
	}
}

func TestRunResearchValidation(t *testing.T) {
	svc := &researchServiceFake{result: &domain.ResearchResult{}}
	handler := NewRouter(svc, &transcriptReaderFake{}, nil, nil, TrafficControl{}).Handler()

	cases := []struct {
		name string
		body string
		want int
	}{
		{"empty query", `{"query":"  "}`, http.StatusBadRequest},
		{"invalid json", `{"query":`, http.StatusBadRequest},
		{"oversized query", `{"query":"` + strings.Repeat("a", maxQueryChars+1) + `"}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := postJSONRequest(t, handler, "/v1/research", tc.body)
			if res.Code != tc.want {
				t.Errorf("status = %d, want %d", res.Code, tc.want)
			}
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/research", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", res.Code)
	}
	if svc.calls != 0 {
		t.Errorf("service ran %d times on rejected requests", svc.calls)
	}
}

func TestRunResearchTemporaryFailureMapsTo503(t *testing.T) {
	svc := &researchServiceFake{err: domain.WrapError(domain.ErrTemporary, "run", errors.New("ollama down"))}
	handler := NewRouter(svc, &transcriptReaderFake{}, nil, nil, TrafficControl{}).Handler()

	res := postJSONRequest(t, handler, "/v1/research", `{"query":"q"}`)
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", res.Code)
	}
}

func TestEnqueueResearch(t *testing.T) {
	queue := &queueFake{}
	handler := NewRouter(&researchServiceFake{result: &domain.ResearchResult{}}, &transcriptReaderFake{}, queue, nil, TrafficControl{}).Handler()

	res := postJSONRequest(t, handler, "/v1/research/jobs", `{"query":"battery anodes"}`)
	if res.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", res.Code, res.Body.String())
	}

	var resp map[string]string
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "queued" || resp["session_id"] == "" {
		t.Errorf("response = %v", resp)
	}
	if queue.query != "battery anodes" || queue.sessionID != resp["session_id"] {
		t.Errorf("published session=%q query=%q", queue.sessionID, queue.query)
	}
}

func TestEnqueueResearchWithoutQueue(t *testing.T) {
	handler := NewRouter(&researchServiceFake{result: &domain.ResearchResult{}}, &transcriptReaderFake{}, nil, nil, TrafficControl{}).Handler()

	res := postJSONRequest(t, handler, "/v1/research/jobs", `{"query":"q"}`)
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", res.Code)
	}
}

func TestGetTranscript(t *testing.T) {
	reader := &transcriptReaderFake{entries: []domain.TranscriptEntry{
		{SessionID: "sess-1", Role: "user", Message: "q"},
		{SessionID: "sess-1", Role: "agent", Message: "plan built", Capability: "plan"},
	}}
	handler := NewRouter(&researchServiceFake{result: &domain.ResearchResult{}}, reader, nil, nil, TrafficControl{}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/sess-1/transcript", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", res.Code, res.Body.String())
	}

	var resp struct {
		SessionID string                   `json:"session_id"`
		Entries   []domain.TranscriptEntry `json:"entries"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SessionID != "sess-1" || len(resp.Entries) != 2 {
		t.Errorf("response = %+v", resp)
	}

	for _, path := range []string{"/v1/sessions/sess-1/other", "/v1/sessions/sess-1"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, res.Code)
		}
	}
}

func TestRateLimitMiddlewareReturns429(t *testing.T) {
	handler := NewRouter(
		&researchServiceFake{result: &domain.ResearchResult{}},
		&transcriptReaderFake{},
		nil, nil,
		TrafficControl{RateLimitRPS: 1, RateLimitBurst: 1},
	).Handler()

	req1 := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res1 := httptest.NewRecorder()
	handler.ServeHTTP(res1, req1)
	if res1.Code != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", res1.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, req2)
	if res2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", res2.Code)
	}
	if res2.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header for 429 response")
	}
}

func TestBackpressureMiddlewareReturns503WhenSaturated(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan int, 1)

	base := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		<-release
		w.WriteHeader(http.StatusNoContent)
	})
	handler := backpressureMiddleware(base, 1, 20*time.Millisecond)

	go func() {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		done <- res.Code
	}()

	<-started

	req2 := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, req2)
	if res2.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for saturated backpressure gate, got %d", res2.Code)
	}

	close(release)

	select {
	case code := <-done:
		if code != http.StatusNoContent {
			t.Fatalf("first request expected 204, got %d", code)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for first request completion")
	}
}
