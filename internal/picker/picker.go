// Package picker asks a generative text source for one song to play next.
package picker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// DefaultModel is the chat model used for song selection.
const DefaultModel = "o4-mini"

// ErrNoPick is returned when the model reply contains no usable song.
var ErrNoPick = errors.New("no usable song in model reply")

// Pick is one (artist, title, year) triple chosen by the model.
type Pick struct {
	Artist string `json:"artist"`
	Title  string `json:"title"`
	Year   int    `json:"year"`
}

// Client selects songs via the OpenAI chat completions API.
type Client struct {
	api   *openai.Client
	model string
}

// Option configures a Client.
type Option func(*Client)

// WithModel overrides the chat model.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// New creates a picker client.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		api:   openai.NewClient(apiKey),
		model: DefaultModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewWithConfig creates a picker client from an explicit OpenAI client
// configuration. Used by tests to point at a stub server.
func NewWithConfig(cfg openai.ClientConfig, opts ...Option) *Client {
	c := &Client{
		api:   openai.NewClientWithConfig(cfg),
		model: DefaultModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Pick asks the model for one song outside the seen list. A malformed or
// already-seen reply is the caller's retry to make; Pick itself performs a
// single request.
func (c *Client) Pick(ctx context.Context, seen []string) (*Pick, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: buildPrompt(seen)}},
		Temperature: 1.0,
	})
	if err != nil {
		return nil, fmt.Errorf("requesting completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoPick
	}
	return parsePick(resp.Choices[0].Message.Content)
}

// buildPrompt embeds the full seen list so the model avoids repeats on its
// own; the local dedup check stays as a safety net.
func buildPrompt(seen []string) string {
	var b strings.Builder
	b.WriteString("Pick exactly ONE song that is popular or culturally significant, released between 1970 and 2025.\n")
	b.WriteString("Extremely important: avoid ALL of the following (artist - title): \"")
	b.WriteString(strings.Join(seen, ", "))
	b.WriteString("\".\n")
	b.WriteString("Maximize variation: prefer a different genre, decade, or origin than earlier picks.\n")
	fmt.Fprintf(&b, "Use this random number to reinforce variation: %f.\n", rand.Float64())
	b.WriteString("Reply ONLY with a JSON object in exactly this form:\n")
	b.WriteString(`{"artist":"...","title":"...","year":1999}`)
	return b.String()
}

var jsonObjectRe = regexp.MustCompile(`\{[\s\S]*\}`)

// parsePick extracts the first JSON object from the model reply. The model
// sometimes wraps the object in prose or code fences.
func parsePick(raw string) (*Pick, error) {
	m := jsonObjectRe.FindString(raw)
	if m == "" {
		return nil, ErrNoPick
	}
	var p Pick
	if err := json.Unmarshal([]byte(m), &p); err != nil {
		return nil, ErrNoPick
	}
	if p.Artist == "" || p.Title == "" || p.Year == 0 {
		return nil, ErrNoPick
	}
	return &p, nil
}
