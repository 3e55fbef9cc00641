package extraction

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/theimaginaryfoundation/session-extract/extraction/fileutils"
	"github.com/theimaginaryfoundation/session-extract/extraction/provider"
)

// Invoker performs one logical remote call, retries included.
type Invoker interface {
	Invoke(ctx context.Context, req provider.Request) (string, error)
}

// Prompt is the text actually sent for one message.
type Prompt struct {
	System string
	User   string
}

// PromptBuilder turns a raw message into the prompt sent to the model.
type PromptBuilder interface {
	Build(message string) Prompt
}

// PromptFunc adapts a function to PromptBuilder.
type PromptFunc func(message string) Prompt

func (f PromptFunc) Build(message string) Prompt { return f(message) }

// ProcessorOptions are the generation parameters attached to every request.
type ProcessorOptions struct {
	Temperature *float64
	MaxTokens   int
	Schema      map[string]interface{}
	SchemaName  string
}

// Processor sends every message of every session through an Invoker, one at a time.
type Processor struct {
	invoker Invoker
	prompts PromptBuilder
	opts    ProcessorOptions
	logger  zerolog.Logger
}

func NewProcessor(invoker Invoker, prompts PromptBuilder, opts ProcessorOptions, logger zerolog.Logger) *Processor {
	return &Processor{
		invoker: invoker,
		prompts: prompts,
		opts:    opts,
		logger:  logger,
	}
}

// Process returns exactly one result per session, in input order. A failing session ends early
// with an error-tagged result; it never stops the remaining sessions.
func (p *Processor) Process(ctx context.Context, sessions []SessionRecord) []ResultRecord {
	results := make([]ResultRecord, 0, len(sessions))
	for i, s := range sessions {
		p.logger.Info().
			Int("session", i+1).
			Int("total", len(sessions)).
			Str("category", s.QuestionCategory).
			Str("question", fileutils.Preview(s.Question, 80)).
			Str("session_date", s.SessionDate).
			Int("messages", len(s.Messages)).
			Msg("processing session")

		res := p.ProcessSession(ctx, i, s)
		if res.Error != "" {
			p.logger.Error().
				Int("session_index", i).
				Int("completed", len(res.LLMResponse)).
				Str("error", res.Error).
				Msg("session failed")
		} else {
			p.logger.Info().
				Int("session_index", i).
				Int("completed", len(res.LLMResponse)).
				Msg("session completed")
		}
		results = append(results, res)
	}
	return results
}

// ProcessSession runs a single session. The first fatal call error stops the session; the result
// keeps the pairs that completed before it.
func (p *Processor) ProcessSession(ctx context.Context, index int, s SessionRecord) ResultRecord {
	messages := sendableMessages(s.Messages)
	res := ResultRecord{
		SessionIndex:     index,
		QuestionCategory: s.QuestionCategory,
		Question:         s.Question,
		QuestionDate:     s.QuestionDate,
		Answer:           s.Answer,
		SessionDate:      s.SessionDate,
		InputText:        make([]string, 0, len(messages)),
		LLMResponse:      make([]string, 0, len(messages)),
	}

	for j, msg := range messages {
		p.logger.Debug().
			Int("session_index", index).
			Int("message", j+1).
			Int("messages", len(messages)).
			Int("chars", len(msg)).
			Msg("processing message")

		prompt := p.prompts.Build(msg)
		out, err := p.invoker.Invoke(ctx, provider.Request{
			System:      prompt.System,
			User:        prompt.User,
			Temperature: p.opts.Temperature,
			MaxTokens:   p.opts.MaxTokens,
			Schema:      p.opts.Schema,
			SchemaName:  p.opts.SchemaName,
		})
		if err != nil {
			res.Error = err.Error()
			return res
		}

		res.InputText = append(res.InputText, msg)
		res.LLMResponse = append(res.LLMResponse, out)

		p.logger.Debug().
			Int("session_index", index).
			Int("message", j+1).
			Int("response_chars", len(out)).
			Msg("response received")
	}
	return res
}

func sendableMessages(messages []string) []string {
	out := make([]string, 0, len(messages))
	for _, m := range messages {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	return out
}
