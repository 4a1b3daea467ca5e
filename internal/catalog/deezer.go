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

const deezerBaseURL = "https://api.deezer.com/search"

// DeezerClient searches the Deezer API. It is the fallback catalog.
type DeezerClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewDeezerClient creates a Deezer search client.
func NewDeezerClient() *DeezerClient {
	return &DeezerClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    deezerBaseURL,
	}
}

// deezerResponse is the JSON response for the search endpoint.
type deezerResponse struct {
	Data []deezerTrack `json:"data"`
}

type deezerTrack struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	TitleShort  string `json:"title_short"`
	Preview     string `json:"preview"`
	Link        string `json:"link"`
	ReleaseDate string `json:"release_date"`
	Artist      struct {
		Name string `json:"name"`
	} `json:"artist"`
	Album struct {
		CoverMedium string `json:"cover_medium"`
		Cover       string `json:"cover"`
	} `json:"album"`
}

// Search fetches up to searchLimit hits, requires the 30-second preview on
// each, and returns the best admissible candidate or (nil, nil).
func (c *DeezerClient) Search(ctx context.Context, artist, title string, wantYear int) (*Candidate, error) {
	params := url.Values{
		"q":     {artist + " " + title},
		"limit": {fmt.Sprint(searchLimit)},
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
		return nil, fmt.Errorf("unexpected status %d from deezer search", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	var parsed deezerResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parsing deezer response: %w", err)
	}

	var candidates []Candidate
	for _, d := range parsed.Data {
		if d.Preview == "" {
			continue
		}
		trackTitle := d.Title
		if trackTitle == "" {
			trackTitle = d.TitleShort
		}
		external := d.Link
		if external == "" && d.ID != 0 {
			external = fmt.Sprintf("https://www.deezer.com/track/%d", d.ID)
		}
		artwork := d.Album.CoverMedium
		if artwork == "" {
			artwork = d.Album.Cover
		}
		candidates = append(candidates, Candidate{
			Artist:      d.Artist.Name,
			Title:       trackTitle,
			Year:        yearFromDate(d.ReleaseDate),
			PreviewURL:  d.Preview,
			ExternalURL: external,
			ArtworkURL:  artwork,
			Source:      SourceDeezer,
		})
	}

	return bestMatch(candidates, artist, title, wantYear), nil
}
