// Package openai implements the transcription adapter backed by the
// OpenAI Whisper and Chat Completions APIs.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	gopenai "github.com/sashabaranov/go-openai"

	"vrc-chatbox-translator/internal/observability/logging"
	"vrc-chatbox-translator/internal/service/stt"
)

// translationPrompt instructs the chat model to answer with nothing but
// the translated text.
const translationPrompt = "You are a language translation app for VRChat. Answer only in the target language. Do not quote the translation. target_language=%s Text:\n\n%s"

// Config holds OpenAI client settings.
type Config struct {
	APIKey string
	// BaseURL overrides the public API endpoint, for proxies and tests.
	BaseURL string
}

// Adapter implements stt.Adapter against the OpenAI APIs.
type Adapter struct {
	client *gopenai.Client
	log    zerolog.Logger
}

// New creates an adapter with the given credentials.
func New(cfg Config) *Adapter {
	clientCfg := gopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Adapter{
		client: gopenai.NewClientWithConfig(clientCfg),
		log:    logging.WithComponent("openai"),
	}
}

// Transcribe sends the segment audio to Whisper, then translates the
// transcript when the request names a target language.
func (a *Adapter) Transcribe(ctx context.Context, req stt.Request) (stt.Result, error) {
	if len(req.WAV) == 0 {
		return stt.Result{}, fmt.Errorf("transcription: empty audio payload")
	}

	resp, err := a.client.CreateTranscription(ctx, gopenai.AudioRequest{
		Model:    gopenai.Whisper1,
		FilePath: "audio.wav",
		Reader:   bytes.NewReader(req.WAV),
	})
	if err != nil {
		return stt.Result{}, classify(fmt.Errorf("transcription: %w", err))
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return stt.Result{}, stt.ErrEmptyTranscript
	}
	a.log.Debug().Str("segment_id", req.SegmentID).Str("text", text).Msg("Transcript received")

	result := stt.Result{Text: text}
	if req.TargetLanguage == "" {
		return result, nil
	}

	chatResp, err := a.client.CreateChatCompletion(ctx, gopenai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []gopenai.ChatCompletionMessage{{
			Role:    gopenai.ChatMessageRoleUser,
			Content: fmt.Sprintf(translationPrompt, req.TargetLanguage, text),
		}},
	})
	if err != nil {
		return stt.Result{}, classify(fmt.Errorf("translation: %w", err))
	}
	if len(chatResp.Choices) == 0 {
		return stt.Result{}, fmt.Errorf("translation: response has no choices")
	}

	result.Translated = strings.TrimSpace(chatResp.Choices[0].Message.Content)
	result.PromptTokens = chatResp.Usage.PromptTokens
	result.CompletionTokens = chatResp.Usage.CompletionTokens
	return result, nil
}

// Close implements stt.Adapter. The underlying HTTP client needs no teardown.
func (a *Adapter) Close() error {
	return nil
}

// classify maps provider quota rejections onto stt.ErrQuota so callers
// can count them separately from other remote failures.
func classify(err error) error {
	var apiErr *gopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", stt.ErrQuota, err)
	}
	return err
}
