package command

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	openRouterBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel      = "openai/gpt-4.1-mini"
)

type ParserConfig struct {
	OpenRouterAPIKey string
	// Model name as understood by OpenRouter.
	Model  string
	Logger *logrus.Logger
}

// Parser turns free-text trade instructions into a Command using an LLM.
type Parser struct {
	llm    llms.Model
	logger *logrus.Logger
}

func NewParser(cfg ParserConfig) (*Parser, error) {
	if cfg.OpenRouterAPIKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	llm, err := openai.New(
		openai.WithToken(cfg.OpenRouterAPIKey),
		openai.WithBaseURL(openRouterBaseURL),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenRouter LLM: %w", err)
	}

	return NewParserWithModel(llm, cfg.Logger), nil
}

func NewParserWithModel(llm llms.Model, logger *logrus.Logger) *Parser {
	if logger == nil {
		logger = logrus.New()
	}
	return &Parser{llm: llm, logger: logger}
}

// Parse extracts a Command from text. symbols lists the tradable token
// symbols the model may choose from.
func (p *Parser) Parse(ctx context.Context, text string, symbols []string) (Command, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Command{}, fmt.Errorf("empty instruction")
	}

	prompt := fmt.Sprintf(`
You convert trade instructions into JSON.

Tradable tokens (priced against XRP): %s

Return exactly one JSON object and nothing else:
{"direction": "buy" | "sell", "amount": "<decimal string>", "token_symbol": "<symbol>", "slippage_bps": <integer, omit if not stated>}

Rules:
- "buy" spends XRP to receive the token; the amount is the XRP spent.
- "sell" spends the token to receive XRP; the amount is the token spent.
- Convert percentages to basis points: 1%% = 100.
- If the instruction is not a trade, return {"error": "<short reason>"}.

Instruction:
%s
`, strings.Join(symbols, ", "), text)

	resp, err := llms.GenerateFromSinglePrompt(ctx, p.llm, prompt, llms.WithMaxTokens(256), llms.WithTemperature(0))
	if err != nil {
		return Command{}, fmt.Errorf("LLM command parsing failed: %w", err)
	}

	raw := sanitizeJSON(resp)
	p.logger.WithField("raw", raw).Debug("parsed instruction")

	var out struct {
		Command
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return Command{}, fmt.Errorf("LLM returned invalid command JSON: %w", err)
	}
	if out.Error != "" {
		return Command{}, fmt.Errorf("not a trade instruction: %s", out.Error)
	}
	return out.Command, nil
}

// sanitizeJSON strips code fences and surrounding prose from the LLM output.
func sanitizeJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(strings.TrimSpace(s), "json")
		if idx := strings.Index(s, "```"); idx >= 0 {
			s = s[:idx]
		}
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		s = s[start : end+1]
	}
	return strings.TrimSpace(s)
}
