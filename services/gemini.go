package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

const DefaultModelName = "gemini-2.5-flash"

// ChatTurn is one message of a multi-turn conversation. Role is genai.RoleUser or genai.RoleModel.
type ChatTurn struct {
	Role genai.Role
	Text string
}

// TextGenerator is the LLM surface the AI features depend on
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) (string, error)
	Chat(ctx context.Context, history []ChatTurn) (string, error)
}

// GeminiService wraps the genai client with a shared rate limit and bounded retries
type GeminiService struct {
	genaiClient *genai.Client
	model       string
	limiter     *rate.Limiter
	maxRetries  int
}

func NewGeminiService(ctx context.Context, cfg AIConfig) (*GeminiService, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModelName
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 1
	}

	return &GeminiService{
		genaiClient: genaiClient,
		model:       model,
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
		maxRetries:  retries,
	}, nil
}

// generate waits for the limiter, then calls the model with exponential backoff between attempts
func (g *GeminiService) generate(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error) {
	if g == nil || g.genaiClient == nil {
		return "", fmt.Errorf("genai client not initialized")
	}

	var lastErr error
	for attempt := 0; attempt < g.maxRetries; attempt++ {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", err
		}

		result, err := g.genaiClient.Models.GenerateContent(ctx, g.model, contents, config)
		if err == nil {
			text := result.Text()
			if strings.TrimSpace(text) != "" {
				return text, nil
			}
			err = fmt.Errorf("empty response from model")
		}
		lastErr = err

		if attempt == g.maxRetries-1 {
			break
		}
		wait := time.Second * (1 << attempt)
		slog.Warn("Gemini call failed, retrying", "attempt", attempt+1, "wait", wait, "error", err)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}

	return "", fmt.Errorf("gemini call failed after %d attempts: %w", g.maxRetries, lastErr)
}

// GenerateText sends a single prompt
func (g *GeminiService) GenerateText(ctx context.Context, prompt string) (string, error) {
	return g.generate(ctx, genai.Text(prompt), nil)
}

// GenerateJSON asks for application/json output, constrained by schema when given
func (g *GeminiService) GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}
	return g.generate(ctx, genai.Text(prompt), config)
}

// Chat replays the whole history and returns the model's next turn
func (g *GeminiService) Chat(ctx context.Context, history []ChatTurn) (string, error) {
	contents := make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		role := turn.Role
		if role != genai.RoleModel {
			role = genai.RoleUser
		}
		contents = append(contents, genai.NewContentFromText(turn.Text, role))
	}
	return g.generate(ctx, contents, nil)
}

// truncateRunes cuts s to at most n characters. Invalid UTF-8 is dropped first.
func truncateRunes(s string, n int) string {
	s = strings.ToValidUTF8(s, "")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// CleanJson strips markdown code fences around a model reply
func CleanJson(input string) string {
	clean := strings.TrimSpace(input)

	if strings.HasPrefix(clean, "```json") {
		clean = strings.TrimPrefix(clean, "```json")
	} else if strings.HasPrefix(clean, "```") {
		clean = strings.TrimPrefix(clean, "```")
	}
	clean = strings.TrimLeft(clean, "\r\n")
	clean = strings.TrimSuffix(clean, "```")

	return strings.TrimSpace(clean)
}

// ExtractJSON returns the span from the first opening to the last closing delimiter,
// e.g. '{' and '}' for an object. ok is false when either is missing.
func ExtractJSON(text string, opening, closing byte) (string, bool) {
	text = CleanJson(text)
	start := strings.IndexByte(text, opening)
	end := strings.LastIndexByte(text, closing)
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return text[start : end+1], true
}
