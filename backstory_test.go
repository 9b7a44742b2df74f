package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// fakeModel records the last request and replies with a fixed answer.
type fakeModel struct {
	reply    string
	err      error
	messages []llms.MessageContent
	opts     llms.CallOptions
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	for _, opt := range options {
		opt(&m.opts)
	}
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply}}}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func messageText(t *testing.T, msg llms.MessageContent) string {
	t.Helper()
	require.Len(t, msg.Parts, 1)
	part, ok := msg.Parts[0].(llms.TextContent)
	require.True(t, ok)
	return part.Text
}

func TestBackstoryDraft(t *testing.T) {
	model := &fakeModel{reply: "  You are the family doctor.\n"}
	w := &llmBackstoryWriter{
		llm:          model,
		systemPrompt: backstorySystemPrompt,
		callOpts:     buildCallOpts(AppConfig{BackstoryTemperature: "0.4"}),
	}

	text, err := w.Draft(context.Background(), "Doctor", " owes the host money ")
	require.NoError(t, err)
	assert.Equal(t, "You are the family doctor.", text)

	require.Len(t, model.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, backstorySystemPrompt, messageText(t, model.messages[0]))
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[1].Role)
	prompt := messageText(t, model.messages[1])
	assert.Contains(t, prompt, "Character: Doctor")
	assert.Contains(t, prompt, "Organizer notes: owes the host money\n")
	assert.InDelta(t, 0.4, model.opts.Temperature, 1e-9)
}

func TestBackstoryDraftWithoutHint(t *testing.T) {
	model := &fakeModel{reply: "You are the butler."}
	w := &llmBackstoryWriter{llm: model, systemPrompt: backstorySystemPrompt}

	_, err := w.Draft(context.Background(), "Butler", "   ")
	require.NoError(t, err)
	assert.NotContains(t, messageText(t, model.messages[1]), "Organizer notes")
}

func TestBackstoryDraftErrors(t *testing.T) {
	boom := errors.New("model offline")
	tests := []struct {
		name  string
		model *fakeModel
	}{
		{"provider error", &fakeModel{err: boom}},
		{"blank reply", &fakeModel{reply: " \n "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &llmBackstoryWriter{llm: tt.model, systemPrompt: backstorySystemPrompt}
			_, err := w.Draft(context.Background(), "Maid", "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), `"Maid"`)
			if tt.model.err != nil {
				assert.ErrorIs(t, err, boom)
			}
		})
	}
}

func TestBuildCallOpts(t *testing.T) {
	assert.Empty(t, buildCallOpts(AppConfig{}))
	assert.Empty(t, buildCallOpts(AppConfig{BackstoryTemperature: "warm", BackstoryThinking: "deep"}), "invalid values are skipped")
	assert.Len(t, buildCallOpts(AppConfig{BackstoryTemperature: "0.7", BackstoryThinking: "low"}), 2)
}

func TestNewBackstoryWriter(t *testing.T) {
	ctx := context.Background()

	w, err := newBackstoryWriter(ctx, AppConfig{})
	require.NoError(t, err)
	assert.Nil(t, w, "no provider means drafting is off")

	_, err = newBackstoryWriter(ctx, AppConfig{BackstoryProvider: "carrier-pigeon"})
	assert.ErrorContains(t, err, "unknown backstory provider")

	_, err = newBackstoryWriter(ctx, AppConfig{BackstoryProvider: "openai-compatible", BackstoryModel: "m"})
	assert.ErrorContains(t, err, "backstory_url")

	w, err = newBackstoryWriter(ctx, AppConfig{
		BackstoryProvider:  "ollama",
		BackstoryModel:     "llama3",
		BackstoryOllamaURL: "http://127.0.0.1:1",
	})
	require.NoError(t, err)
	assert.IsType(t, &llmBackstoryWriter{}, w)

	w, err = newBackstoryWriter(ctx, AppConfig{
		BackstoryProvider: "openai-compatible",
		BackstoryModel:    "m",
		BackstoryURL:      "http://127.0.0.1:1/v1",
		BackstoryAPIKey:   "key",
	})
	require.NoError(t, err)
	assert.IsType(t, &llmBackstoryWriter{}, w)
}
