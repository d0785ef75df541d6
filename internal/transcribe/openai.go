package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/mgpai22/headcut/internal/subtitle"
)

// implements Transcriber using the OpenAI audio API
type OpenAITranscriber struct {
	client  openai.Client
	model   string
	options Options
}

// segment from Whisper verbose_json response
type whisperSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type whisperVerboseResponse struct {
	Text     string           `json:"text"`
	Segments []whisperSegment `json:"segments"`
	Language string           `json:"language"`
	Duration float64          `json:"duration"`
}

func NewOpenAITranscriber(
	ctx context.Context,
	apiKey string,
	opts Options,
) (*OpenAITranscriber, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	model := opts.Model
	if model == "" {
		model = "whisper-1"
	}

	return &OpenAITranscriber{
		client:  openai.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		options: opts,
	}, nil
}

func (t *OpenAITranscriber) Transcribe(
	ctx context.Context,
	audioPath string,
) (*Result, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close()

	params := openai.AudioTranscriptionNewParams{
		File:                   file,
		Model:                  openai.AudioModel(t.model),
		ResponseFormat:         openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []string{"segment"},
	}
	if t.options.Language != "" {
		params.Language = openai.String(t.options.Language)
	}
	if t.options.Prompt != "" {
		params.Prompt = openai.String(t.options.Prompt)
	}

	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	result, err := parseVerboseJSON(resp.RawJSON())
	if err != nil {
		return &Result{
			Text:     strings.TrimSpace(resp.Text),
			Language: t.options.Language,
		}, nil
	}
	if result.Language == "" {
		result.Language = t.options.Language
	}
	return result, nil
}

func parseVerboseJSON(raw string) (*Result, error) {
	if raw == "" {
		return nil, fmt.Errorf("empty response")
	}

	var resp whisperVerboseResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse verbose_json response: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" && len(resp.Segments) == 0 {
		return nil, fmt.Errorf("no segments or text in response")
	}

	result := &Result{Text: text, Language: resp.Language}
	for _, seg := range resp.Segments {
		segText := strings.TrimSpace(seg.Text)
		if segText == "" || seg.End <= seg.Start {
			continue
		}
		result.Cues = append(result.Cues, subtitle.Cue{
			Text:   segText,
			Start:  subtitle.Round3(seg.Start),
			Length: subtitle.Round3(seg.End - seg.Start),
		})
	}
	return result, nil
}
