package format

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"bookwhisperer/config"
	"bookwhisperer/internal/core/chunking"
	"bookwhisperer/pkg/logger"
)

// systemPrompt instructs the model to clean text for narration without
// touching the story content.
const systemPrompt = `You are a professional text formatter preparing content for audiobook narration.

Your task is to:
1. Clean and normalize the text (fix typos, normalize punctuation)
2. Ensure proper sentence structure and grammar
3. Identify dialogue and format it clearly
4. Add appropriate punctuation for natural pauses
5. Remove any formatting artifacts (HTML tags, special characters that won't be read)
6. Keep the meaning and content exactly the same - only improve formatting

IMPORTANT:
- Do NOT add content that wasn't in the original
- Do NOT remove story content
- Do NOT add narrator notes or stage directions
- Output ONLY the formatted text, no explanations`

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}
type chatChoice struct {
	Index   int `json:"index"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}
type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// Formatter rewrites manuscript text for narration through an OpenAI
// compatible chat endpoint (Ollama in the default deployment).
type Formatter struct {
	client      openai.Client
	model       string
	maxTokens   int
	temperature float64
}

func New() *Formatter {
	return newWithBaseURL(config.Cfg.LLM.BaseURL, config.Cfg.LLM.Key)
}

func newWithBaseURL(baseURL, key string) *Formatter {
	temperature := config.Cfg.LLM.Temperature
	if temperature <= 0 {
		temperature = 0.3
	}
	return &Formatter{
		client: openai.NewClient(
			option.WithBaseURL(baseURL),
			option.WithAPIKey(key),
		),
		model:       config.Cfg.LLM.Model,
		maxTokens:   config.Cfg.LLM.MaxTokens,
		temperature: temperature,
	}
}

// FormatText formats a single chunk. Blank input comes back unchanged
// without a model round trip.
func (f *Formatter) FormatText(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	req := chatRequest{
		Model:       f.model,
		Temperature: f.temperature,
		MaxTokens:   f.maxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Text to format:\n" + text + "\n\nFormatted text:"},
		},
	}
	var out chatResponse
	if err := f.client.Post(ctx, "/chat/completions", req, &out); err != nil {
		logger.Error(err, "%v: chat completion failed", config.ModuleFormat)
		return "", err
	}
	if len(out.Choices) == 0 {
		err := fmt.Errorf("no choices returned")
		logger.Error(err, "%v: empty completion", config.ModuleFormat)
		return "", err
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

// FormatChapter splits the raw chapter text for the model's context window,
// formats every chunk in order and merges the results back into one text.
// onProgress, when non-nil, is called after each chunk completes.
func (f *Formatter) FormatChapter(ctx context.Context, raw string, onProgress chunking.ProgressFunc) (chunking.Result, error) {
	chunks, err := chunking.Split(raw, chunking.ForLLM())
	if err != nil {
		return chunking.Result{}, err
	}
	if len(chunks) == 0 {
		return chunking.Result{}, nil
	}

	logger.Info("%v: formatting %d chunks with model %s", config.ModuleFormat, len(chunks), f.model)

	processed, err := chunking.ProcessAll(ctx, chunks, f.FormatText, onProgress)
	if err != nil {
		return chunking.Result{}, err
	}

	result := chunking.Reassemble(processed)
	if result.Degraded {
		logger.Warn("%v: one or more chunk seams merged lossily", config.ModuleFormat)
	}
	return result, nil
}

// Health verifies the endpoint answers and the configured model is served.
func (f *Formatter) Health(ctx context.Context) error {
	var out modelsResponse
	if err := f.client.Get(ctx, "/models", nil, &out); err != nil {
		return fmt.Errorf("llm endpoint unreachable: %w", err)
	}
	for _, m := range out.Data {
		if m.ID == f.model {
			return nil
		}
	}
	return fmt.Errorf("model %q not served by llm endpoint", f.model)
}
