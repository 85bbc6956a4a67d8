package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestScoreReturnsScoresInOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rerank" {
			http.NotFound(w, r)
			return
		}
		var payload struct {
			Query string   `json:"query"`
			Texts []string `json:"texts"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if payload.Query != "q" || len(payload.Texts) != 2 {
			t.Errorf("unexpected payload: %+v", payload)
		}
		_, _ = w.Write([]byte(`{"scores":[0.9,-3.2]}`))
	}))
	defer server.Close()

	client := New(server.URL, "cross-encoder")
	scores, err := client.Score(context.Background(), "q", []string{"a", "b"})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if len(scores) != 2 || scores[0] != 0.9 || scores[1] != -3.2 {
		t.Fatalf("scores = %v", scores)
	}
}

func TestScoreRejectsCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"scores":[0.1]}`))
	}))
	defer server.Close()

	client := New(server.URL, "")
	if _, err := client.Score(context.Background(), "q", []string{"a", "b"}); err == nil {
		t.Fatal("expected error on score count mismatch")
	}
}

func TestScoreEmptyInput(t *testing.T) {
	client := New("http://unused", "")
	scores, err := client.Score(context.Background(), "q", nil)
	if err != nil || scores != nil {
		t.Fatalf("Score() = %v, %v; want nil, nil", scores, err)
	}
}
