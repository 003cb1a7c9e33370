// Package extraction calls Gemini to pull structured booking intent out of
// free-text WhatsApp messages.
package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	defaultModel   = "gemini-2.0-flash"
	defaultTimeout = 15 * time.Second

	// Unknown is the sentinel the model is instructed to emit for any field
	// it cannot extract.
	Unknown = "N/A"
)

// Intent is the structured guess extracted from one inbound message. Field
// names match the JSON schema sent to the model; matching on decode is
// case-insensitive.
type Intent struct {
	UserName string `json:"UserName"`
	TourType string `json:"TourType"`
	TourDate string `json:"TourDate"`
	TourTime string `json:"TourTime"`
}

// Known reports whether a field value carries real information.
func Known(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && !strings.EqualFold(v, Unknown)
}

// Config controls how the extraction client behaves.
type Config struct {
	// BaseURL overrides the Gemini API endpoint. Empty uses the default.
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	Logger  *slog.Logger
}

// Client wraps a Gemini generative model pinned to a JSON intent schema. A
// client without an API key is valid: extraction is a soft dependency and
// degrades to the sentinel result.
type Client struct {
	genai   *genai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a configured Client. Without an API key the client is created
// disabled rather than failing, so the rest of the pipeline keeps working.
func New(ctx context.Context, cfg Config) (*Client, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{model: model, timeout: timeout, logger: logger}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		logger.Warn("extraction: no API key configured, intent extraction disabled")
		return c, nil
	}

	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithEndpoint(base))
	}
	gc, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("extraction: failed to create gemini client: %w", err)
	}
	c.genai = gc
	return c, nil
}

// Close releases resources held by the underlying Gemini client.
func (c *Client) Close() error {
	if c.genai != nil {
		return c.genai.Close()
	}
	return nil
}

// Extract asks the model for the four intent fields. Without an API key it
// returns the all-sentinel Intent and no error. Transport failures and
// malformed responses return a nil Intent with an error; the caller treats
// that as "no intent available", never as fatal.
func (c *Client) Extract(ctx context.Context, messageText string) (*Intent, error) {
	if c.genai == nil {
		return &Intent{UserName: Unknown, TourType: Unknown, TourDate: Unknown, TourTime: Unknown}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	model := c.genai.GenerativeModel(c.model)
	model.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   intentSchema,
	}

	resp, err := model.GenerateContent(ctx, genai.Text(buildPrompt(messageText)))
	if err != nil {
		return nil, fmt.Errorf("extraction: generate content: %w", err)
	}
	return decodeIntent(resp)
}

// intentSchema pins the response to a four-field JSON object so the model
// cannot drift into prose.
var intentSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"UserName": {Type: genai.TypeString, Description: "The user's name if mentioned, otherwise 'N/A'"},
		"TourType": {Type: genai.TypeString, Description: "Type of tour requested (Walking, Food, Historical, etc.) or 'N/A'"},
		"TourDate": {Type: genai.TypeString, Description: "When they want the tour (today, tomorrow, specific date) or 'N/A'"},
		"TourTime": {Type: genai.TypeString, Description: "Preferred time (morning, afternoon, 9 AM, etc.) or 'N/A'"},
	},
	Required: []string{"UserName", "TourType", "TourDate", "TourTime"},
}

func buildPrompt(messageText string) string {
	return fmt.Sprintf(`Extract the user's name, tour type, tour date, and tour time from this WhatsApp message.
If any information is not present or unclear, use 'N/A' for that field.

Tour types might include: Walking Tour, Food Tour, Historical Tour, Art Tour, Photography Tour, etc.
Tour dates might be: today, tomorrow, specific dates like 'July 1st', 'next Monday', etc.
Tour times might be: morning, afternoon, evening, or specific times like '9 AM', '2 PM', etc.

Message: '%s'

Please extract:
- UserName: The person's name if mentioned
- TourType: What kind of tour they're interested in
- TourDate: When they want the tour
- TourTime: What time they prefer`, messageText)
}

// decodeIntent digs the generated JSON text out of the first candidate
// (candidates[0].content.parts[0]) and deserializes it.
func decodeIntent(resp *genai.GenerateContentResponse) (*Intent, error) {
	if len(resp.Candidates) == 0 {
		return nil, errors.New("extraction: response missing candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, errors.New("extraction: response missing content parts")
	}
	text, ok := candidate.Content.Parts[0].(genai.Text)
	if !ok || strings.TrimSpace(string(text)) == "" {
		return nil, errors.New("extraction: empty generated text")
	}

	var intent Intent
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(text))), &intent); err != nil {
		return nil, fmt.Errorf("extraction: decode intent: %w", err)
	}
	intent.fillDefaults()
	return &intent, nil
}

func (i *Intent) fillDefaults() {
	if strings.TrimSpace(i.UserName) == "" {
		i.UserName = Unknown
	}
	if strings.TrimSpace(i.TourType) == "" {
		i.TourType = Unknown
	}
	if strings.TrimSpace(i.TourDate) == "" {
		i.TourDate = Unknown
	}
	if strings.TrimSpace(i.TourTime) == "" {
		i.TourTime = Unknown
	}
}
