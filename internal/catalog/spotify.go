package catalog

import (
	"context"
	"fmt"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

// SpotifyLinks resolves a Spotify track URL for a song. The duel card
// carries an external Spotify link instead of a playable preview, so this
// sits outside the preview adapter chain.
type SpotifyLinks struct {
	api *spotify.Client
}

// NewSpotifyLinks creates a Spotify client using the client-credentials
// flow; the underlying token is refreshed automatically.
func NewSpotifyLinks(ctx context.Context, clientID, clientSecret string) *SpotifyLinks {
	config := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	return &SpotifyLinks{api: spotify.New(config.Client(ctx))}
}

// TrackURL searches for the top track hit and returns its Spotify URL.
// Returns ("", nil) when nothing is found.
func (s *SpotifyLinks) TrackURL(ctx context.Context, artist, title string) (string, error) {
	results, err := s.api.Search(ctx, artist+" "+title, spotify.SearchTypeTrack, spotify.Limit(1))
	if err != nil {
		return "", fmt.Errorf("searching spotify: %w", err)
	}
	if results.Tracks == nil || len(results.Tracks.Tracks) == 0 {
		return "", nil
	}
	return results.Tracks.Tracks[0].ExternalURLs["spotify"], nil
}
