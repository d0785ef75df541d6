package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/mgpai22/headcut/internal/translate"
)

var (
	geminiModels = []string{
		"gemini-3-pro-preview",
		"gemini-3-flash-preview",
		"gemini-2.5-pro",
		"gemini-2.5-flash",
		"gemini-2.5-flash-lite",
	}
	openAIModels = []string{
		"o1", "o3-mini", "o1-pro", "o3",
		"gpt-5", "gpt-5-nano", "gpt-5-mini", "gpt-5-pro",
		"gpt-5.1", "gpt-5.2", "gpt-5.2-pro",
	}
	anthropicModels = []string{
		"claude-haiku-4-5",
		"claude-sonnet-4-5",
		"claude-opus-4-1",
	}
)

func isValidGeminiModel(model string) bool {
	return slices.Contains(geminiModels, strings.TrimSpace(model))
}

func isValidOpenAIModel(model string) bool {
	return slices.Contains(openAIModels, strings.TrimSpace(model))
}

func isValidAnthropicModel(model string) bool {
	return slices.Contains(anthropicModels, strings.TrimSpace(model))
}

func validateModel(provider translate.Provider, model string) error {
	var (
		ok    bool
		name  string
		valid []string
	)
	switch provider {
	case translate.ProviderGemini:
		ok, name, valid = isValidGeminiModel(model), "Gemini", geminiModels
	case translate.ProviderOpenAI:
		ok, name, valid = isValidOpenAIModel(model), "OpenAI", openAIModels
	case translate.ProviderAnthropic:
		ok, name, valid = isValidAnthropicModel(model), "Anthropic", anthropicModels
	default:
		return nil
	}
	if ok {
		return nil
	}
	return fmt.Errorf(
		"unsupported %s model %q: valid models are %s (use --model-override to bypass)",
		name,
		model,
		strings.Join(valid, ", "),
	)
}
