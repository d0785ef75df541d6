package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mgpai22/headcut/internal/subtitle"
)

// single caption text to translate
type Item struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// interface for text translation
type Translator interface {
	Translate(ctx context.Context, items []Item) ([]Item, error)
}

// translation service provider
type Provider string

const (
	ProviderGemini    Provider = "gemini"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

const DefaultBatchSize = 50

type Options struct {
	InputLanguage  string
	TargetLanguage string
	Model          string
	Prompt         string
	BatchSize      int // items per API request
	Concurrency    int // batches in flight
}

// creates Translator based on provider
func Factory(
	ctx context.Context,
	provider Provider,
	apiKey string,
	opts Options,
) (Translator, error) {
	if opts.TargetLanguage == "" {
		return nil, fmt.Errorf("target language is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	var (
		c   completer
		err error
	)
	switch provider {
	case ProviderGemini:
		c, err = newGeminiCompleter(ctx, apiKey, opts.Model)
	case ProviderOpenAI:
		c = newOpenAICompleter(apiKey, opts.Model)
	case ProviderAnthropic:
		c = newAnthropicCompleter(apiKey, opts.Model)
	default:
		return nil, fmt.Errorf("unsupported translation provider: %s", provider)
	}
	if err != nil {
		return nil, err
	}
	return &batchTranslator{llm: c, options: opts}, nil
}

// single prompt round trip to an LLM provider
type completer interface {
	complete(ctx context.Context, prompt string) (string, error)
}

// splits items into batches, one request per batch
type batchTranslator struct {
	llm     completer
	options Options
}

func (t *batchTranslator) Translate(ctx context.Context, items []Item) ([]Item, error) {
	if len(items) == 0 {
		return []Item{}, nil
	}

	size := t.options.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	var batches [][]Item
	for i := 0; i < len(items); i += size {
		batches = append(batches, items[i:min(i+size, len(items))])
	}

	concurrency := t.options.Concurrency
	if concurrency <= 0 {
		concurrency = 3
	}

	results := make([][]Item, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, batch := range batches {
		g.Go(func() error {
			out, err := t.translateBatch(gctx, batch)
			if err != nil {
				return fmt.Errorf("batch %d failed: %w", i, err)
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Item
	for _, r := range results {
		all = append(all, r...)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Index < all[j].Index
	})
	return all, nil
}

func (t *batchTranslator) translateBatch(ctx context.Context, items []Item) ([]Item, error) {
	text, err := t.llm.complete(ctx, BuildPrompt(t.options, items))
	if err != nil {
		return nil, fmt.Errorf("translation failed: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no text in response")
	}

	results, err := extractResults(cleanJSONResponse(text))
	if err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w (response: %s)", err, truncate(text, 200))
	}
	if len(results) != len(items) {
		return nil, fmt.Errorf("expected %d results, got %d", len(items), len(results))
	}
	return results, nil
}

// translates cue texts, keeping timing and placement
func Cues(ctx context.Context, tr Translator, cues []subtitle.Cue) ([]subtitle.Cue, error) {
	items := make([]Item, len(cues))
	for i, c := range cues {
		items[i] = Item{Index: i, Text: c.Text}
	}

	translated, err := tr.Translate(ctx, items)
	if err != nil {
		return nil, err
	}

	out := make([]subtitle.Cue, len(cues))
	copy(out, cues)
	for _, item := range translated {
		if item.Index < 0 || item.Index >= len(out) {
			return nil, fmt.Errorf("translation returned unknown index %d", item.Index)
		}
		if text := strings.TrimSpace(item.Text); text != "" {
			out[item.Index].Text = text
		}
	}
	return out, nil
}

// BuildPrompt creates the translation prompt for LLM providers
func BuildPrompt(opts Options, items []Item) string {
	var sb strings.Builder

	if opts.InputLanguage != "" {
		fmt.Fprintf(&sb, "Translate the following %s video captions to %s.\n\n", opts.InputLanguage, opts.TargetLanguage)
	} else {
		fmt.Fprintf(&sb, "Translate the following video captions to %s.\n\n", opts.TargetLanguage)
	}

	sb.WriteString("IMPORTANT INSTRUCTIONS:\n")
	sb.WriteString("1. Translate ONLY the text content, preserving the meaning.\n")
	sb.WriteString("2. Keep each caption short enough to read on a phone screen.\n")
	sb.WriteString("3. Preserve line breaks in the same positions.\n")
	sb.WriteString("4. Return ONLY a JSON array of objects with 'index' and 'text' fields.\n")
	sb.WriteString("5. The 'index' values must match the input indices exactly.\n")
	sb.WriteString("6. Do not add any explanation or markdown formatting.\n\n")

	if opts.Prompt != "" {
		fmt.Fprintf(&sb, "Additional instructions: %s\n\n", opts.Prompt)
	}

	sb.WriteString("Input JSON:\n")
	inputJSON, _ := json.MarshalIndent(items, "", "  ")
	sb.Write(inputJSON)
	sb.WriteString("\n\nOutput the translated JSON array only:")

	return sb.String()
}
