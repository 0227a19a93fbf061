// Package hookwriter generates personalized opening lines for outreach
// emails using the Anthropic API.
package hookwriter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrAuth indicates the API rejected our credentials. Callers should
// treat this as fatal rather than retrying.
var ErrAuth = errors.New("hookwriter: authentication failed")

// Writer defines the hook generation operations used by the pipeline.
type Writer interface {
	GenerateHook(ctx context.Context, in HookInput) (string, error)
}

// HookInput is the lead context the hook is written from.
type HookInput struct {
	BusinessName string
	Trade        string
	City         string
	Website      string
}

const systemPrompt = `You write the opening line of a cold email to a UK tradesperson.
The line must mention something specific about their business, stay under 25 words,
sound like one small-business owner writing to another, and never use the words
"I noticed" or "I came across". Return only the line, no quotes, no preamble.`

// Option configures the writer.
type Option func(*sdkWriter)

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(w *sdkWriter) { w.model = model }
}

// WithMaxTokens overrides the default completion budget.
func WithMaxTokens(n int64) Option {
	return func(w *sdkWriter) { w.maxTokens = n }
}

// WithBaseURL sets a custom API base URL (for testing).
func WithBaseURL(url string) Option {
	return func(w *sdkWriter) { w.baseURL = url }
}

type sdkWriter struct {
	client    sdk.Client
	model     string
	maxTokens int64
	baseURL   string
}

// New creates a hook writer backed by the official SDK.
func New(apiKey string, opts ...Option) Writer {
	w := &sdkWriter{
		model:     string(sdk.ModelClaudeHaiku4_5),
		maxTokens: 256,
	}
	for _, opt := range opts {
		opt(w)
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if w.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(w.baseURL))
	}
	w.client = sdk.NewClient(clientOpts...)
	return w
}

func (w *sdkWriter) GenerateHook(ctx context.Context, in HookInput) (string, error) {
	prompt := fmt.Sprintf("Business: %s\nTrade: %s\nCity: %s", in.BusinessName, in.Trade, in.City)
	if in.Website != "" {
		prompt += "\nWebsite: " + in.Website
	}

	msg, err := w.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(w.model),
		MaxTokens: w.maxTokens,
		System: []sdk.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var apierr *sdk.Error
		if errors.As(err, &apierr) && (apierr.StatusCode == 401 || apierr.StatusCode == 403) {
			return "", eris.Wrap(ErrAuth, fmt.Sprintf("status %d", apierr.StatusCode))
		}
		return "", eris.Wrap(err, "hookwriter: create message")
	}

	hook := extractText(msg)
	if hook == "" {
		return "", eris.New("hookwriter: empty completion")
	}

	zap.L().Debug("hookwriter: generated hook",
		zap.String("business", in.BusinessName),
		zap.Int64("input_tokens", msg.Usage.InputTokens),
		zap.Int64("output_tokens", msg.Usage.OutputTokens),
	)
	return hook, nil
}

func extractText(msg *sdk.Message) string {
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(b.String()), `"`))
}
