// Package llm wraps the generation provider behind a small, typed surface.
//
// Every call runs an eino chain (system prompt + rolling history + query)
// against a model.ChatModel under its own deadline. Outputs are decoded with
// a JSON contract first and fall back to the legacy text formats, so a model
// that ignores the contract still produces usable replies.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/emogotchi/emogotchi-backend/internal/config"
	"github.com/emogotchi/emogotchi-backend/internal/domain"
)

// ErrTimeout is returned when the provider does not answer within the
// per-call budget.
var ErrTimeout = errors.New("llm: deadline exceeded")

// historyLimit bounds how many prior turns are sent with a reply.
const historyLimit = 10

// Options tunes a Client.
type Options struct {
	Timeout      time.Duration // reply + analysis calls
	DiaryTimeout time.Duration // diary summaries
	MaxTokens    int           // reply turns
	AnalysisMax  int           // analysis turns
	DiaryMax     int           // diary summaries
}

// Client runs prompts against a chat model.
type Client struct {
	chain compose.Runnable[map[string]any, *schema.Message]
	opts  Options
}

// NewChatModel builds the provider selected by cfg.Provider. "mock" returns
// an offline model that answers every prompt with a well-formed payload.
func NewChatModel(ctx context.Context, cfg config.LLMConfig) (model.ChatModel, error) {
	switch cfg.Provider {
	case "mock":
		return &MockModel{}, nil
	case "ark", "":
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
	if cfg.APIKey == "" || cfg.Model == "" {
		return nil, errors.New("ARK_API_KEY and ARK_MODEL are required for the ark provider")
	}

	temperature := float32(cfg.Temperature)
	maxTokens := cfg.MaxTokens
	return ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:     cfg.BaseURL,
		Region:      cfg.Region,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	})
}

// OptionsFrom maps the LLM config onto per-kind budgets.
func OptionsFrom(cfg config.LLMConfig) Options {
	return Options{
		Timeout:      cfg.Timeout,
		DiaryTimeout: cfg.DiaryTimeout,
		MaxTokens:    cfg.MaxTokens,
		AnalysisMax:  cfg.AnalysisMax,
		DiaryMax:     cfg.DiaryMax,
	}
}

// NewClient compiles the prompt chain around cm.
func NewClient(ctx context.Context, cm model.ChatModel, opts Options) (*Client, error) {
	if cm == nil {
		return nil, errors.New("llm: nil chat model")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.DiaryTimeout <= 0 {
		opts.DiaryTimeout = 20 * time.Second
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 150
	}
	if opts.AnalysisMax <= 0 {
		opts.AnalysisMax = 200
	}
	if opts.DiaryMax <= 0 {
		opts.DiaryMax = 500
	}

	tpl := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(tpl)
	chain.AppendChatModel(cm)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}
	return &Client{chain: runnable, opts: opts}, nil
}

// Reply produces a therapeutic answer to message. history holds the turns
// that preceded message; only the most recent ones are sent.
func (c *Client) Reply(ctx context.Context, message string, history []domain.Turn, animal domain.Character, mood domain.Emotion) (Reply, error) {
	ctx, span := otel.Tracer("llm").Start(ctx, "Reply",
		trace.WithAttributes(
			attribute.String("animal", string(animal)),
			attribute.String("mood", string(mood)),
		),
	)
	defer span.End()

	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	raw, err := c.invoke(ctx, "reply", c.opts.Timeout, c.opts.MaxTokens, map[string]any{
		"system":  replySystem(message, animal, mood),
		"history": toSchema(history),
		"query":   message,
	})
	if err != nil {
		span.RecordError(err)
		return Reply{}, err
	}
	out := ParseReply(raw)
	format := "legacy"
	if out.Structured {
		format = "structured"
	}
	llmContract.WithLabelValues("reply", format).Inc()
	span.SetAttributes(attribute.Int("points", out.Points), attribute.Bool("structured", out.Structured))
	return out, nil
}

// Analyze classifies the user's emotion and matching animal from the
// conversation so far.
func (c *Client) Analyze(ctx context.Context, history []domain.Turn) (Analysis, error) {
	ctx, span := otel.Tracer("llm").Start(ctx, "Analyze",
		trace.WithAttributes(attribute.Int("history.len", len(history))),
	)
	defer span.End()

	raw, err := c.invoke(ctx, "analysis", c.opts.Timeout, c.opts.AnalysisMax, map[string]any{
		"system":  analysisPrompt,
		"history": toSchema(history),
		"query":   analysisQuery,
	})
	if err != nil {
		span.RecordError(err)
		return Analysis{}, err
	}
	out := ParseAnalysis(raw)
	span.SetAttributes(attribute.String("emotion", string(out.Emotion)), attribute.String("animal", string(out.Animal)))
	return out, nil
}

// Summarize writes a diary entry for a day's chat log.
func (c *Client) Summarize(ctx context.Context, chatLog string) (Diary, error) {
	ctx, span := otel.Tracer("llm").Start(ctx, "Summarize")
	defer span.End()

	raw, err := c.invoke(ctx, "diary", c.opts.DiaryTimeout, c.opts.DiaryMax, map[string]any{
		"system":  diaryPrompt,
		"history": []*schema.Message(nil),
		"query":   fmt.Sprintf(diaryQuery, chatLog),
	})
	if err != nil {
		span.RecordError(err)
		return Diary{}, err
	}
	return ParseDiary(raw), nil
}

func (c *Client) invoke(ctx context.Context, op string, budget time.Duration, maxTokens int, input map[string]any) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	start := time.Now()
	msg, err := c.chain.Invoke(cctx, input, compose.WithChatModelOption(model.WithMaxTokens(maxTokens)))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(cctx.Err(), context.DeadlineExceeded) {
			observe(op, "timeout", start)
			return "", ErrTimeout
		}
		observe(op, "error", start)
		return "", fmt.Errorf("llm %s: %w", op, err)
	}
	if msg == nil {
		observe(op, "error", start)
		return "", fmt.Errorf("llm %s: empty response", op)
	}
	observe(op, "ok", start)
	return msg.Content, nil
}

func toSchema(turns []domain.Turn) []*schema.Message {
	if len(turns) == 0 {
		return nil
	}
	out := make([]*schema.Message, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case domain.RoleUser:
			out = append(out, schema.UserMessage(t.Content))
		case domain.RoleAssistant:
			out = append(out, schema.AssistantMessage(t.Content, nil))
		}
	}
	return out
}
