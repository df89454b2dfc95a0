package artwork

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestITunesClient_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		expected := map[string]string{
			"term":      "Bohemian Rhapsody",
			"country":   "gb",
			"limit":     "25",
			"media":     "music",
			"entity":    "musicTrack",
			"attribute": "songTerm",
		}
		for k, v := range expected {
			if got := q.Get(k); got != v {
				t.Errorf("query %s: expected %q, got %q", k, v, got)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"resultCount":2,"results":[
			{"trackName":"Bohemian Rhapsody","artistName":"Queen","artworkUrl100":"https://is1.example/a/100x100bb.jpg"},
			{"trackName":"Bohemian Rhapsody (Live)","artistName":"Queen","artworkUrl100":"https://is1.example/b/100x100bb.jpg"}
		]}`))
	}))
	defer server.Close()

	client := NewITunesClient(zap.NewNop(), "gb")
	client.baseURL = server.URL

	candidates, err := client.Search(context.Background(), "Bohemian Rhapsody")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	if candidates[0].ArtistName != "Queen" || candidates[0].ArtworkURL != "https://is1.example/a/100x100bb.jpg" {
		t.Errorf("unexpected first candidate: %+v", candidates[0])
	}
}

func TestITunesClient_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "Server Error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
		},
		{
			name: "Malformed JSON",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"results": [`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := NewITunesClient(zap.NewNop(), "")
			client.baseURL = server.URL

			if _, err := client.Search(context.Background(), "x"); err == nil {
				t.Error("expected error")
			}
		})
	}
}
