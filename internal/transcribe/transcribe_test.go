package transcribe

import (
	"context"
	"os"
	"strings"
	"testing"

	"google.golang.org/genai"
)

func TestParseVerboseJSON(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantText string
		wantCues int
		wantErr  bool
	}{
		{
			name: "segments",
			raw: `{
				"text": "Hello world. How are you today?",
				"segments": [
					{"start": 0.0, "end": 1.5, "text": "Hello world."},
					{"start": 1.5, "end": 3.0, "text": " How are you today?"}
				],
				"language": "en",
				"duration": 3.0
			}`,
			wantText: "Hello world. How are you today?",
			wantCues: 2,
		},
		{
			name:     "text only",
			raw:      `{"text": "  Only text.  ", "segments": null}`,
			wantText: "Only text.",
		},
		{
			name: "empty and inverted segments dropped",
			raw: `{"text": "Hi", "segments": [
				{"start": 0, "end": 0.5, "text": "  "},
				{"start": 2, "end": 1, "text": "bad"},
				{"start": 0.5, "end": 1.25, "text": "Hi"}
			]}`,
			wantText: "Hi",
			wantCues: 1,
		},
		{name: "empty", raw: "", wantErr: true},
		{name: "invalid", raw: "{not json", wantErr: true},
		{name: "nothing", raw: `{"text": "", "segments": []}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseVerboseJSON(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseVerboseJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", got.Text, tt.wantText)
			}
			if len(got.Cues) != tt.wantCues {
				t.Errorf("got %d cues, want %d", len(got.Cues), tt.wantCues)
			}
		})
	}
}

func TestParseVerboseJSONTiming(t *testing.T) {
	got, err := parseVerboseJSON(`{"text": "x", "segments": [{"start": 0.5, "end": 1.25, "text": "x"}]}`)
	if err != nil {
		t.Fatalf("parseVerboseJSON: %v", err)
	}
	if c := got.Cues[0]; c.Start != 0.5 || c.Length != 0.75 {
		t.Errorf("cue timing = %v/%v, want 0.5/0.75", c.Start, c.Length)
	}
}

func TestCleanResponse(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hello there.", "Hello there."},
		{"```\nHello there.\n```", "Hello there."},
		{"```text\nOne. Two.\n```  ", "One. Two."},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := cleanResponse(tt.in); got != tt.want {
			t.Errorf("cleanResponse(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "Hello there. "},
				{Text: "This is a test."},
			}},
		}},
	}
	got, err := responseText(resp)
	if err != nil {
		t.Fatalf("responseText: %v", err)
	}
	if got != "Hello there. This is a test." {
		t.Errorf("responseText = %q", got)
	}

	if _, err := responseText(&genai.GenerateContentResponse{}); err == nil {
		t.Error("expected error for empty response")
	}
}

func TestBuildPrompt(t *testing.T) {
	p := buildPrompt(Options{Language: "Spanish", Prompt: "Keep filler words."})
	for _, want := range []string{"Spanish", "Keep filler words.", "without timestamps"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q: %s", want, p)
		}
	}
}

func TestFactory(t *testing.T) {
	ctx := context.Background()
	if _, err := Factory(ctx, ProviderOpenAI, "", Options{}); err == nil {
		t.Error("expected error without API key")
	}
	if _, err := Factory(ctx, Provider("whisper-local"), "key", Options{}); err == nil {
		t.Error("expected error for unknown provider")
	}
	tr, err := Factory(ctx, ProviderOpenAI, "key", Options{})
	if err != nil {
		t.Fatalf("Factory(openai): %v", err)
	}
	if got := tr.(*OpenAITranscriber).model; got != "whisper-1" {
		t.Errorf("default model = %q, want whisper-1", got)
	}
}

func TestOpenAITranscriberIntegration(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	audioPath := os.Getenv("HEADCUT_TEST_AUDIO")
	if apiKey == "" || audioPath == "" {
		t.Skip("OPENAI_API_KEY or HEADCUT_TEST_AUDIO not set; skipping integration test")
	}

	tr, err := NewOpenAITranscriber(context.Background(), apiKey, Options{})
	if err != nil {
		t.Fatalf("NewOpenAITranscriber: %v", err)
	}
	result, err := tr.Transcribe(context.Background(), audioPath)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if strings.TrimSpace(result.Text) == "" {
		t.Error("expected transcript text")
	}
}
