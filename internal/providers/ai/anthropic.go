package ai

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	assistdomain "github.com/smallbiznis/beacon/internal/assist/domain"
)

// Config configures the anthropic-backed generator.
type Config struct {
	APIKey string
	Model  string
}

// Anthropic calls the Anthropic Messages API. The SDK client is built on
// first use so a missing key surfaces as a generation failure instead of a
// startup crash; local environments often run without credentials.
type Anthropic struct {
	cfg Config

	mu     sync.Mutex
	client *anthropic.Client
}

func NewAnthropic(cfg Config) *Anthropic {
	return &Anthropic{cfg: cfg}
}

var errMissingAPIKey = errors.New("anthropic api key is not configured")

func (p *Anthropic) ensureClient() (*anthropic.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return nil, errMissingAPIKey
	}
	client := anthropic.NewClient(option.WithAPIKey(p.cfg.APIKey))
	p.client = &client
	return p.client, nil
}

// Generate sends one role-tagged request and returns the concatenated text.
func (p *Anthropic) Generate(ctx context.Context, cfg assistdomain.GenerationConfig) (string, error) {
	client, err := p.ensureClient()
	if err != nil {
		return "", err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.cfg.Model),
		MaxTokens: cfg.MaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(cfg.Prompt)),
		},
	}
	if cfg.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: cfg.System}}
	}
	if cfg.Temperature > 0 {
		params.Temperature = anthropic.Float(cfg.Temperature)
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", errors.New("empty response from model")
	}
	return text.String(), nil
}

var _ assistdomain.Generator = (*Anthropic)(nil)
