package acquire

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestExtractReadableTextPrefersAbstractDiv(t *testing.T) {
	page := `<html><body>
		<nav>Home About Contact</nav>
		<div id="abstract">We study perovskite stability under humid conditions.</div>
		<p>` + strings.Repeat("filler ", 20) + `</p>
		<footer>Copyright</footer>
	</body></html>`

	text, err := ExtractReadableText([]byte(page))
	if err != nil {
		t.Fatalf("ExtractReadableText: %v", err)
	}
	if !strings.Contains(text, "perovskite stability") {
		t.Fatalf("abstract text missing, got %q", text)
	}
	if strings.Contains(text, "filler") || strings.Contains(text, "Copyright") {
		t.Fatalf("text outside abstract leaked in: %q", text)
	}
}

func TestExtractReadableTextFallsBackToParagraphs(t *testing.T) {
	long := strings.Repeat("band gap tuning ", 8)
	page := `<html><body>
		<script>var x = 1;</script>
		<p>short</p>
		<p>` + long + `</p>
	</body></html>`

	text, err := ExtractReadableText([]byte(page))
	if err != nil {
		t.Fatalf("ExtractReadableText: %v", err)
	}
	if !strings.Contains(text, "band gap tuning") {
		t.Fatalf("long paragraph missing, got %q", text)
	}
	if strings.Contains(text, "short") || strings.Contains(text, "var x") {
		t.Fatalf("short paragraph or script leaked in: %q", text)
	}
}

func TestExtractReadableTextSkipsChromeInsideArticle(t *testing.T) {
	page := `<html><body><article>
		<header>Journal banner</header>
		Main findings on cathode degradation.
	</article></body></html>`

	text, err := ExtractReadableText([]byte(page))
	if err != nil {
		t.Fatalf("ExtractReadableText: %v", err)
	}
	if !strings.Contains(text, "cathode degradation") {
		t.Fatalf("article body missing, got %q", text)
	}
	if strings.Contains(text, "Journal banner") {
		t.Fatalf("header chrome leaked in: %q", text)
	}
}

func TestAcquireHTMLEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body><main>Solid electrolyte interphase growth slows after cycling.</main></body></html>`))
	}))
	defer srv.Close()

	a := New(0)
	text, err := a.Acquire(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !strings.Contains(text, "Solid electrolyte interphase") {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestAcquireEmptyBodyFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><script>void 0;</script></body></html>`))
	}))
	defer srv.Close()

	a := New(0)
	if _, err := a.Acquire(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for page with no readable text")
	}
}

func TestAcquireHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	a := New(0)
	if _, err := a.Acquire(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 403 response")
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name        string
		contentType string
		locator     string
		body        []byte
		want        payloadKind
	}{
		{"pdf content type", "application/pdf", "https://x/paper", []byte("%PDF-1.4"), kindPDF},
		{"pdf url suffix", "application/octet-stream", "https://x/paper.pdf", nil, kindPDF},
		{"pdf magic bytes", "", "https://x/dl?id=1", []byte("%PDF-1.7 ..."), kindPDF},
		{"xlsx url suffix", "", "https://x/data.xlsx", nil, kindSpreadsheet},
		{"html content type", "text/html; charset=utf-8", "https://x/abs/1", nil, kindMarkup},
		{"html sniff", "", "https://x/abs/1", []byte("<!DOCTYPE html><html>"), kindMarkup},
		{"binary junk", "application/octet-stream", "https://x/blob", []byte{0x00, 0x01}, kindUnusable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := classify(tc.contentType, tc.locator, tc.body); got != tc.want {
				t.Fatalf("classify = %v, want %v", got, tc.want)
			}
		})
	}
}
