package artwork

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/genricoloni/nowplayingd/internal/domain"
	"go.uber.org/zap"
)

const (
	// DefaultSearchURL is the iTunes Search API endpoint
	DefaultSearchURL = "https://itunes.apple.com/search"

	searchLimit    = 25
	requestTimeout = 5 * time.Second
	maxBodySize    = 2 * 1024 * 1024
	userAgent      = "nowplayingd/1.0"
)

// ITunesClient queries the iTunes Search API for song artwork
type ITunesClient struct {
	logger  *zap.Logger
	http    *http.Client
	baseURL string
	country string
}

var _ domain.ArtworkSearcher = (*ITunesClient)(nil)

// NewITunesClient creates a client searching the given storefront country
func NewITunesClient(logger *zap.Logger, country string) *ITunesClient {
	if country == "" {
		country = "us"
	}
	return &ITunesClient{
		logger:  logger,
		http:    &http.Client{Timeout: requestTimeout},
		baseURL: DefaultSearchURL,
		country: country,
	}
}

type searchResponse struct {
	ResultCount int `json:"resultCount"`
	Results     []struct {
		TrackName     string `json:"trackName"`
		ArtistName    string `json:"artistName"`
		ArtworkURL100 string `json:"artworkUrl100"`
	} `json:"results"`
}

// Search looks up songs whose title matches term
func (c *ITunesClient) Search(ctx context.Context, term string) ([]domain.ArtworkCandidate, error) {
	values := url.Values{}
	values.Set("term", term)
	values.Set("country", c.country)
	values.Set("limit", fmt.Sprint(searchLimit))
	values.Set("media", "music")
	values.Set("entity", "musicTrack")
	values.Set("attribute", "songTerm")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+values.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("artwork search failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("artwork search returned status %d", resp.StatusCode)
	}

	var payload searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode artwork search response: %w", err)
	}

	candidates := make([]domain.ArtworkCandidate, 0, len(payload.Results))
	for _, r := range payload.Results {
		candidates = append(candidates, domain.ArtworkCandidate{
			TrackName:  r.TrackName,
			ArtistName: r.ArtistName,
			ArtworkURL: r.ArtworkURL100,
		})
	}

	c.logger.Debug("Artwork search completed",
		zap.String("term", term),
		zap.Int("results", len(candidates)))
	return candidates, nil
}
