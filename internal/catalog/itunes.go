package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	itunesBaseURL = "https://itunes.apple.com/search"

	// searchLimit is how many hits we fetch from a catalog before ranking.
	searchLimit = 10
)

// ITunesClient searches the iTunes Search API. It is the primary catalog.
type ITunesClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewITunesClient creates an iTunes Search client.
func NewITunesClient() *ITunesClient {
	return &ITunesClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    itunesBaseURL,
	}
}

// itunesResponse is the JSON response for the search endpoint.
type itunesResponse struct {
	ResultCount int            `json:"resultCount"`
	Results     []itunesResult `json:"results"`
}

type itunesResult struct {
	ArtistName        string `json:"artistName"`
	TrackName         string `json:"trackName"`
	PreviewURL        string `json:"previewUrl"`
	TrackViewURL      string `json:"trackViewUrl"`
	CollectionViewURL string `json:"collectionViewUrl"`
	ArtworkURL100     string `json:"artworkUrl100"`
	ArtworkURL60      string `json:"artworkUrl60"`
	ReleaseDate       string `json:"releaseDate"`
}

// Search fetches up to searchLimit song hits, requires a preview URL on
// each, and returns the best admissible candidate or (nil, nil).
func (c *ITunesClient) Search(ctx context.Context, artist, title string, wantYear int) (*Candidate, error) {
	params := url.Values{
		"term":   {artist + " " + title},
		"media":  {"music"},
		"entity": {"song"},
		"limit":  {fmt.Sprint(searchLimit)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from itunes search", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	var parsed itunesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parsing itunes response: %w", err)
	}

	var candidates []Candidate
	for _, r := range parsed.Results {
		if r.PreviewURL == "" {
			continue
		}
		external := r.TrackViewURL
		if external == "" {
			external = r.CollectionViewURL
		}
		artwork := r.ArtworkURL100
		if artwork == "" {
			artwork = r.ArtworkURL60
		}
		candidates = append(candidates, Candidate{
			Artist:      r.ArtistName,
			Title:       r.TrackName,
			Year:        yearFromDate(r.ReleaseDate),
			PreviewURL:  r.PreviewURL,
			ExternalURL: external,
			ArtworkURL:  artwork,
			Source:      SourceITunes,
		})
	}

	return bestMatch(candidates, artist, title, wantYear), nil
}
