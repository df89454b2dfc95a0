package fetcher

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// artworkHandler serves a cover at the path the artwork resolver produces
func artworkHandler(status int, contentType string, body []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}
}

func TestHTTPFetcher_Fetch(t *testing.T) {
	cover := []byte("\xff\xd8\xff\xe0jpeg-cover")

	tests := []struct {
		name    string
		handler http.HandlerFunc
		target  func(base string) string
		cancel  bool
		wantErr string
		wantLen int
	}{
		{
			name:    "Cover Downloaded",
			handler: artworkHandler(http.StatusOK, "image/jpeg", cover),
			wantLen: len(cover),
		},
		{
			name:    "Artwork Missing",
			handler: artworkHandler(http.StatusNotFound, "image/jpeg", nil),
			wantErr: "unexpected status code: 404",
		},
		{
			name:    "Error Page Instead Of Image",
			handler: artworkHandler(http.StatusOK, "text/html; charset=utf-8", []byte("<html>")),
			wantErr: "url is not an image",
		},
		{
			name:    "Oversized Body Is Capped",
			handler: artworkHandler(http.StatusOK, "image/png", bytes.Repeat([]byte{0x89}, _maxImageSize+1024)),
			wantLen: _maxImageSize,
		},
		{
			name:    "Non HTTP Scheme Rejected",
			target:  func(string) string { return "file:///etc/passwd" },
			wantErr: "unsupported protocol",
		},
		{
			name:    "Malformed URL",
			target:  func(string) string { return "http://[::1" },
			wantErr: "invalid url",
		},
		{
			name:    "Cancelled Before Request",
			handler: artworkHandler(http.StatusOK, "image/jpeg", cover),
			cancel:  true,
			wantErr: "context canceled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := tt.handler
			if handler == nil {
				handler = artworkHandler(http.StatusOK, "image/jpeg", cover)
			}
			srv := httptest.NewServer(handler)
			defer srv.Close()

			target := srv.URL + "/image/thumb/Music/512x512bb.jpg"
			if tt.target != nil {
				target = tt.target(srv.URL)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if tt.cancel {
				cancel()
			}

			data, err := NewHTTPFetcher(zap.NewNop()).Fetch(ctx, target)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("expected error %q to contain %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(data) != tt.wantLen {
				t.Errorf("expected %d bytes, got %d", tt.wantLen, len(data))
			}
		})
	}
}

func TestHTTPFetcher_SendsUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		artworkHandler(http.StatusOK, "image/jpeg", []byte("x"))(w, r)
	}))
	defer srv.Close()

	if _, err := NewHTTPFetcher(zap.NewNop()).Fetch(context.Background(), srv.URL); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got != "nowplayingd/1.0" {
		t.Errorf("expected nowplayingd user agent, got %q", got)
	}
}

func TestHTTPFetcher_WarnsOnTruncation(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	srv := httptest.NewServer(artworkHandler(http.StatusOK, "image/jpeg", bytes.Repeat([]byte{1}, _maxImageSize+1)))
	defer srv.Close()

	if _, err := NewHTTPFetcher(zap.New(core)).Fetch(context.Background(), srv.URL); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if n := logs.FilterMessage("Image reached the size cap and was truncated").Len(); n != 1 {
		t.Errorf("expected one truncation warning, got %d", n)
	}
}
