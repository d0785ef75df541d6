package transcribe

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mgpai22/headcut/internal/audio"
	"github.com/mgpai22/headcut/internal/subtitle"
)

// transcription result. Text feeds the transcript aligner, Cues carry the
// provider's own timing when it returns any.
type Result struct {
	Text     string
	Language string
	Cues     []subtitle.Cue
}

// interface for audio transcription
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (*Result, error)
}

// transcription service provider
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

// transcription options
type Options struct {
	Language string // source language hint
	Model    string
	Prompt   string
}

// creates transcriber based on provider
func Factory(
	ctx context.Context,
	provider Provider,
	apiKey string,
	opts Options,
) (Transcriber, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required for %s transcription", provider)
	}
	switch provider {
	case ProviderGemini:
		return NewGeminiTranscriber(ctx, apiKey, opts)
	case ProviderOpenAI:
		return NewOpenAITranscriber(ctx, apiKey, opts)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// compresses the audio of a media file into workDir and transcribes it
func Media(ctx context.Context, t Transcriber, mediaPath, workDir string) (*Result, error) {
	compressed := filepath.Join(workDir, "speech.mp3")
	if err := audio.Compress(ctx, mediaPath, compressed, audio.DefaultCompressionOptions()); err != nil {
		return nil, fmt.Errorf("failed to prepare audio for transcription: %w", err)
	}

	result, err := t.Transcribe(ctx, compressed)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(result.Text) == "" {
		result.Text = joinCueText(result.Cues)
	}
	return result, nil
}

func joinCueText(cues []subtitle.Cue) string {
	texts := make([]string, 0, len(cues))
	for _, c := range cues {
		if t := strings.TrimSpace(c.Text); t != "" {
			texts = append(texts, t)
		}
	}
	return strings.Join(texts, " ")
}
