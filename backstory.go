package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const backstorySystemPrompt = `You write secret character backstories for a murder mystery party. Each backstory is read privately by the player who plays the character. Write 3-5 sentences in the second person ("You are..."). Give the character a motive, a secret and one relationship to another guest. Never reveal who the murderer is.`

// BackstoryWriter drafts a backstory for a character an organizer is creating.
type BackstoryWriter interface {
	Draft(ctx context.Context, name, hint string) (string, error)
}

type llmBackstoryWriter struct {
	llm          llms.Model
	systemPrompt string
	callOpts     []llms.CallOption
}

func (w *llmBackstoryWriter) Draft(ctx context.Context, name, hint string) (string, error) {
	prompt := "Character: " + name
	if hint = strings.TrimSpace(hint); hint != "" {
		prompt += "\nOrganizer notes: " + hint
	}
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, w.systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt+"\n\nWrite the backstory."),
	}

	resp, err := w.llm.GenerateContent(ctx, messages, w.callOpts...)
	if err != nil {
		return "", fmt.Errorf("draft backstory for %q: %w", name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("draft backstory for %q: empty response", name)
	}

	text := strings.TrimSpace(resp.Choices[0].Content)
	if text == "" {
		return "", fmt.Errorf("draft backstory for %q: empty response", name)
	}
	DebugLog("backstory: drafted %q: %s", name, truncate(text, 80))
	return text, nil
}

// buildCallOpts builds LLM call options from the config.
func buildCallOpts(cfg AppConfig) []llms.CallOption {
	var opts []llms.CallOption

	if cfg.BackstoryTemperature != "" {
		if f, err := strconv.ParseFloat(cfg.BackstoryTemperature, 64); err == nil {
			opts = append(opts, llms.WithTemperature(f))
			DebugLog("Backstory: temperature=%.2f", f)
		} else {
			log.Printf("Backstory: invalid temperature %q: %v", cfg.BackstoryTemperature, err)
		}
	}

	if cfg.BackstoryThinking != "" {
		mode := llms.ThinkingMode(cfg.BackstoryThinking)
		switch mode {
		case llms.ThinkingModeNone, llms.ThinkingModeLow, llms.ThinkingModeMedium, llms.ThinkingModeHigh, llms.ThinkingModeAuto:
			opts = append(opts, llms.WithThinkingMode(mode))
			DebugLog("Backstory: thinking=%s", mode)
		default:
			log.Printf("Backstory: invalid thinking %q (valid: none, low, medium, high, auto)", cfg.BackstoryThinking)
		}
	}

	return opts
}

// newBackstoryWriter builds a writer from config. It returns nil, nil when
// no provider is configured.
func newBackstoryWriter(ctx context.Context, cfg AppConfig) (BackstoryWriter, error) {
	provider := cfg.BackstoryProvider
	model := cfg.BackstoryModel

	var (
		llm llms.Model
		err error
	)
	switch provider {
	case "":
		DebugLog("Backstory: disabled (set backstory_provider to enable)")
		return nil, nil
	case "ollama":
		llm, err = ollama.New(ollama.WithModel(model), ollama.WithServerURL(cfg.BackstoryOllamaURL))
	case "openai":
		llm, err = openai.New(openai.WithModel(model))
	case "claude":
		llm, err = anthropic.New(anthropic.WithModel(model))
	case "gemini":
		llm, err = googleai.New(ctx, googleai.WithDefaultModel(model))
	case "groq":
		llm, err = openai.New(
			openai.WithModel(model),
			openai.WithBaseURL("https://api.groq.com/openai/v1"),
			openai.WithToken(cfg.GroqAPIKey),
		)
	case "openai-compatible":
		if cfg.BackstoryURL == "" {
			return nil, errors.New("backstory_url is required for openai-compatible provider")
		}
		opts := []openai.Option{
			openai.WithModel(model),
			openai.WithBaseURL(cfg.BackstoryURL),
		}
		if cfg.BackstoryAPIKey != "" {
			opts = append(opts, openai.WithToken(cfg.BackstoryAPIKey))
		}
		llm, err = openai.New(opts...)
	default:
		return nil, fmt.Errorf("unknown backstory provider %q", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s backstory provider (model %s): %w", provider, model, err)
	}

	DebugLog("Backstory: %s model=%s", provider, model)
	return &llmBackstoryWriter{llm: llm, systemPrompt: backstorySystemPrompt, callOpts: buildCallOpts(cfg)}, nil
}
