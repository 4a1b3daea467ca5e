package picker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
)

func TestParsePick(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    *Pick
		wantErr bool
	}{
		{
			name: "bare object",
			raw:  `{"artist":"ABBA","title":"Waterloo","year":1974}`,
			want: &Pick{Artist: "ABBA", Title: "Waterloo", Year: 1974},
		},
		{
			name: "object wrapped in prose",
			raw:  "Here you go:\n```json\n{\"artist\":\"ABBA\",\"title\":\"Waterloo\",\"year\":1974}\n```",
			want: &Pick{Artist: "ABBA", Title: "Waterloo", Year: 1974},
		},
		{name: "no object", raw: "sorry, cannot help", wantErr: true},
		{name: "invalid json", raw: "{artist: ABBA}", wantErr: true},
		{name: "missing year", raw: `{"artist":"ABBA","title":"Waterloo"}`, wantErr: true},
		{name: "missing artist", raw: `{"title":"Waterloo","year":1974}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePick(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrNoPick) {
					t.Errorf("parsePick() error = %v, want ErrNoPick", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parsePick() error = %v", err)
			}
			if *got != *tt.want {
				t.Errorf("parsePick() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestBuildPromptIncludesSeenList(t *testing.T) {
	seen := []string{"abba - waterloo", "queen - under pressure"}
	prompt := buildPrompt(seen)
	for _, id := range seen {
		if !strings.Contains(prompt, id) {
			t.Errorf("prompt missing seen identity %q", id)
		}
	}
}

func TestPick(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [
				{"message": {"role": "assistant", "content": "{\"artist\":\"Toto\",\"title\":\"Africa\",\"year\":1982}"}}
			]
		}`))
	}))
	defer server.Close()

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = server.URL + "/v1"
	client := NewWithConfig(cfg)

	got, err := client.Pick(context.Background(), []string{"abba - waterloo"})
	if err != nil {
		t.Fatalf("Pick() error = %v", err)
	}
	want := Pick{Artist: "Toto", Title: "Africa", Year: 1982}
	if *got != want {
		t.Errorf("Pick() = %+v, want %+v", got, want)
	}
}
