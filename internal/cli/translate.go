package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mgpai22/headcut/internal/subtitle"
	"github.com/mgpai22/headcut/internal/translate"
)

var translateCmd = &cobra.Command{
	Use:   "translate [subtitles_file]",
	Short: "Translate a subtitles file to another language using AI",
	Long: `Translate the cue texts of a subtitles file, keeping every timing.

Accepts the pipeline's JSON cue files as well as SRT and VTT. The output
format follows the extension of the output path.

The --overlay flag creates bilingual cues with the translated text first,
followed by the original text on the next line.

Examples:
  headcut translate subtitles.json --target-language spanish
  headcut translate subtitles.srt -t ja --overlay
  headcut translate subtitles.vtt -t german --provider anthropic -o de.vtt`,
	Args: cobra.ExactArgs(1),
	RunE: runTranslate,
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().
		StringP("target-language", "t", "", "Target language for translation (required)")
	translateCmd.Flags().
		StringP("language", "l", "", "Language of the input cues (detected when empty)")
	translateCmd.Flags().
		Bool("overlay", false, "Overlay translated text with original (bilingual subtitles)")
	translateCmd.Flags().
		StringP("api-key", "k", "", "API key (or set GEMINI_API_KEY/OPENAI_API_KEY/ANTHROPIC_API_KEY)")
	translateCmd.Flags().
		String("model", "", "Model to use for translation (provider-specific, uses sensible defaults)")
	translateCmd.Flags().
		Bool("model-override", false, "Allow any custom model, bypassing provider model validation")
	translateCmd.Flags().
		String("provider", "gemini", "Translation provider (gemini, openai, anthropic)")
	translateCmd.Flags().
		Int("concurrency", 3, "Number of parallel translation workers")
	translateCmd.Flags().
		Int("batch-size", translate.DefaultBatchSize, "Number of cues per API request")

	_ = translateCmd.MarkFlagRequired("target-language")
}

func runTranslate(cmd *cobra.Command, args []string) error {
	subtitlePath := args[0]
	ctx := context.Background()

	targetLang, _ := cmd.Flags().GetString("target-language")
	inputLang, _ := cmd.Flags().GetString("language")
	overlay, _ := cmd.Flags().GetBool("overlay")
	apiKey, _ := cmd.Flags().GetString("api-key")
	model, _ := cmd.Flags().GetString("model")
	modelOverride, _ := cmd.Flags().GetBool("model-override")
	providerStr, _ := cmd.Flags().GetString("provider")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	outputPath, _ := cmd.Flags().GetString("output")

	if _, err := os.Stat(subtitlePath); os.IsNotExist(err) {
		return fmt.Errorf("subtitles file not found: %s", subtitlePath)
	}

	ext := strings.ToLower(filepath.Ext(subtitlePath))
	if _, ok := subtitle.FormatFromExtension(subtitlePath); !ok && ext != ".json" {
		return fmt.Errorf("unsupported subtitles format %q: use .json, .srt, or .vtt", ext)
	}

	if targetLang == "" {
		return fmt.Errorf("target language is required")
	}
	if inputLang != "" &&
		strings.EqualFold(strings.TrimSpace(inputLang), strings.TrimSpace(targetLang)) {
		return fmt.Errorf(
			"input language %q and target language %q cannot be the same",
			inputLang,
			targetLang,
		)
	}

	provider := translate.Provider(providerStr)
	if apiKey == "" {
		apiKey = apiKeyFor(providerStr)
	}
	if apiKey == "" {
		return fmt.Errorf(
			"API key is required: use --api-key flag or set %s environment variable",
			apiKeyEnv(providerStr),
		)
	}

	if model != "" && !modelOverride {
		if err := validateModel(provider, model); err != nil {
			return err
		}
	}

	if concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", concurrency)
	}
	if batchSize <= 0 {
		return fmt.Errorf("batch-size must be positive, got %d", batchSize)
	}

	if outputPath == "" {
		outputPath = translatedPath(subtitlePath, targetLang, overlay)
	}

	logger.Infow("Starting subtitle translation",
		"input", subtitlePath,
		"output", outputPath,
		"target_language", targetLang,
		"input_language", inputLang,
		"overlay", overlay,
		"model", model,
	)

	cues, err := subtitle.LoadFile(subtitlePath)
	if err != nil {
		return fmt.Errorf("failed to parse subtitles file: %w", err)
	}
	if len(cues) == 0 {
		return fmt.Errorf("subtitles file contains no cues")
	}
	logger.Infow("Parsed subtitles file", "cues", len(cues))

	translator, err := translate.Factory(ctx, provider, apiKey, translate.Options{
		InputLanguage:  inputLang,
		TargetLanguage: targetLang,
		Model:          model,
		BatchSize:      batchSize,
		Concurrency:    concurrency,
	})
	if err != nil {
		return fmt.Errorf("failed to create translator: %w", err)
	}

	logger.Infow("Translating subtitles", "cues", len(cues), "concurrency", concurrency)
	translated, err := translate.Cues(ctx, translator, cues)
	if err != nil {
		return fmt.Errorf("translation failed: %w", err)
	}
	if overlay {
		translated = bilingual(translated, cues)
	}

	logger.Infow("Writing output file")
	if err := subtitle.Write(outputPath, translated); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	absOutput, _ := filepath.Abs(outputPath)
	fmt.Printf("Subtitles translated successfully: %s\n", absOutput)
	fmt.Printf("  Cues: %d\n", len(translated))
	fmt.Printf("  Target language: %s\n", targetLang)
	if overlay {
		fmt.Printf("  Mode: bilingual overlay\n")
	}
	return nil
}

func translatedPath(src, targetLang string, overlay bool) string {
	ext := filepath.Ext(src)
	base := strings.TrimSuffix(src, ext)
	if overlay {
		return fmt.Sprintf("%s.%s.overlay%s", base, targetLang, ext)
	}
	return fmt.Sprintf("%s.%s%s", base, targetLang, ext)
}

// translated + newline + original
func bilingual(translated, original []subtitle.Cue) []subtitle.Cue {
	out := make([]subtitle.Cue, len(translated))
	copy(out, translated)
	for i := range out {
		if i < len(original) && original[i].Text != out[i].Text {
			out[i].Text = out[i].Text + "\n" + original[i].Text
		}
	}
	return out
}
