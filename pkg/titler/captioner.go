package titler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// captionTimeout bounds the whole Gemini round trip, model call included.
const captionTimeout = 30 * time.Second

// Captioner produces a short title for a rendered path image.
type Captioner interface {
	Caption(ctx context.Context, prompt string, imagePNG []byte) (string, error)
}

// GeminiCaptioner captions path images with Gemini 2.0 Flash.
type GeminiCaptioner struct {
	apiKey string
}

// NewGeminiCaptioner constructs a captioner. The API key is required; the
// composer treats a missing key as captioning failure, not a silent skip.
func NewGeminiCaptioner(apiKey string) *GeminiCaptioner {
	return &GeminiCaptioner{apiKey: apiKey}
}

// Caption submits the prompt plus the image and returns a cleaned one-line
// caption.
func (g *GeminiCaptioner) Caption(ctx context.Context, prompt string, imagePNG []byte) (string, error) {
	if g.apiKey == "" {
		return "", fmt.Errorf("gemini api key not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, captionTimeout)
	defer cancel()

	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return "", fmt.Errorf("failed to create Gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel("gemini-2.0-flash")
	model.SetTemperature(0.7)
	model.SetTopP(0.9)
	model.SetMaxOutputTokens(60)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt), genai.ImageData("png", imagePNG))
	if err != nil {
		return "", fmt.Errorf("failed to generate caption: %w", err)
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no caption generated")
	}

	raw := ""
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			raw += string(text)
		}
	}

	caption := cleanCaption(raw)
	if caption == "" {
		return "", fmt.Errorf("empty caption in response")
	}
	return caption, nil
}

// cleanCaption strips markdown noise and caps the length for Strava's
// title field.
func cleanCaption(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.Trim(s, "*_`\"")
	s = strings.TrimSpace(s)
	// Truncate on rune boundaries; a byte slice could split a multi-byte
	// character and produce an invalid title.
	if runes := []rune(s); len(runes) > 100 {
		s = string(runes[:97]) + "..."
	}
	return s
}
