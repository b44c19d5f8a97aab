package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"tenantbot/internal/config"
	"tenantbot/internal/interfaces"
)

const correctorInstruction = `You fix spelling and typing mistakes in chat messages.
Keep the language, tone, slang, emoji and punctuation style of the original.
Do not rephrase, translate, censor or add anything.
Reply with JSON only: {"corrected_text": "<fixed message>", "correction_count": <number of words you changed>}.
If nothing needs fixing, return the original text and 0.`

// GeminiCorrector fixes typos in outgoing text through the Gemini API.
type GeminiCorrector struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	log     *zap.Logger
}

var _ interfaces.TextCorrector = (*GeminiCorrector)(nil)

// NewGeminiCorrector returns nil, nil when no API key is configured;
// autocorrect is then skipped for every tenant.
func NewGeminiCorrector(ctx context.Context, cfg config.CorrectorConfig, log *zap.Logger) (*GeminiCorrector, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}
	return newGeminiCorrector(ctx, cfg, &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI}, log)
}

func newGeminiCorrector(ctx context.Context, cfg config.CorrectorConfig, cc *genai.ClientConfig, log *zap.Logger) (*GeminiCorrector, error) {
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &GeminiCorrector{
		client:  client,
		model:   model,
		timeout: cfg.Timeout,
		log:     log.Named("corrector"),
	}, nil
}

func (g *GeminiCorrector) Correct(ctx context.Context, text string) (string, int, error) {
	if strings.TrimSpace(text) == "" {
		return text, 0, nil
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(correctorInstruction, genai.RoleUser),
			Temperature:       genai.Ptr[float32](0.1),
			ResponseMIMEType:  "application/json",
		})
	if err != nil {
		return "", 0, fmt.Errorf("gemini correction: %w", err)
	}

	corrected, count, err := parseCorrection(resp.Text())
	if err != nil {
		return "", 0, err
	}
	g.log.Debug("Correction received", zap.Int("corrections", count))
	return corrected, count, nil
}

type correctionReply struct {
	CorrectedText   string `json:"corrected_text"`
	CorrectionCount int    `json:"correction_count"`
}

// parseCorrection accepts the JSON reply, tolerating a markdown code fence.
func parseCorrection(raw string) (string, int, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var reply correctionReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return "", 0, fmt.Errorf("malformed correction reply: %w", err)
	}
	if reply.CorrectionCount < 0 {
		reply.CorrectionCount = 0
	}
	if strings.TrimSpace(reply.CorrectedText) == "" {
		return "", 0, nil
	}
	return reply.CorrectedText, reply.CorrectionCount, nil
}
