package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mgpai22/headcut/internal/pipeline"
	"github.com/mgpai22/headcut/internal/render"
	"github.com/mgpai22/headcut/internal/session"
	"github.com/mgpai22/headcut/internal/subtitle"
	"github.com/mgpai22/headcut/internal/timeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Assemble and render talking head videos",
	Long: `Run the full talking head pipeline.

The background and head clip are probed, an alpha-matted overlay of the
speaker is built for every shape the templates need, subtitles are timed
against the speech in the head clip, and every template is filled in and
rendered. The composed specs are kept under the output directory.

Subtitle modes:
  auto    align --transcript (or a transcription of the head clip) to speech
  manual  use the cues of --subtitles-file
  none    no subtitles

Examples:
  headcut run --background bg.mp4 --head https://cdn.example.com/head.mp4
  headcut run --background bg.jpg --head head.mp4 --templates circle,basic \
    --transcript-file script.txt --subtitle-theme bold_yellow
  headcut run --background bg.mp4 --head head.mp4 --subtitles manual \
    --subtitles-file cues.json --intro-url intro.mp4 --intro-length 3`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	registerRunFlags(runCmd)
}

func registerRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("background", "", "Background video or image URL/path (required)")
	f.String("head", "", "Talking head clip URL/path (required)")
	f.String("templates", "", "Comma separated templates (defaults to the configured list)")
	f.String("subtitles", "auto", "Subtitle mode (auto, manual, none)")
	f.String("subtitles-file", "", "Subtitles file with cues (json, srt, vtt)")
	f.String("transcript", "", "Transcript text to align to the speech")
	f.String("transcript-file", "", "File holding the transcript to align")
	f.String("subtitle-theme", "", "Subtitle theme (defaults to the configured theme)")
	f.Bool("export-subtitles", false, "Write subtitles.srt and subtitles.vtt next to the specs")

	f.String("intro-url", "", "Intro clip prepended to the templates")
	f.Float64("intro-length", 3, "Intro length in seconds")
	f.String("intro-templates", "", "Templates that get the intro (all when empty)")
	f.String("outro-url", "", "Outro clip appended to the templates")
	f.Float64("outro-length", 3, "Outro length in seconds")
	f.String("outro-templates", "", "Templates that get the outro (all when empty)")

	f.Float64("circle-radius", 0, "Circle gate radius as a fraction of the smaller frame side")
	f.Float64("circle-center-x", 0, "Circle gate center x in [0,1]")
	f.Float64("circle-center-y", 0, "Circle gate center y in [0,1]")
	f.Bool("auto-center", false, "Derive the circle gate from the speaker mask")
	f.String("engine", "", "Overlay segmentation engine (http, chroma)")
	f.String("container", "", "Overlay container (mov, webm)")

	f.Float64("fit-tolerance", 0, "Aspect ratio tolerance for a cover fit of the background")
	f.String("background-color", "", "Timeline background color")
	f.String("background-video-length", "", "Background length mode (auto, fixed)")

	f.String("output-dir", "", "Directory for specs and exports (generated when empty)")
	f.Bool("no-render", false, "Write specs without submitting them")
	f.Bool("no-session", false, "Do not persist a render session")
	f.Int64("user-id", 0, "User the render session belongs to")
	f.String("scenario", pipeline.DefaultScenario, "Scenario recorded on the session")

	f.String("transcribe", "", "Transcription provider used when no transcript is given (gemini, openai)")
	f.String("transcript-language", "", "Language hint for transcription")
	f.String("translate-to", "", "Translate subtitles to this language")
	f.String("translate-provider", "gemini", "Translation provider (gemini, openai, anthropic)")
	f.String("translate-model", "", "Translation model (provider default when empty)")

	_ = cmd.MarkFlagRequired("background")
	_ = cmd.MarkFlagRequired("head")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runCfg, err := runConfigFromFlags(cmd)
	if err != nil {
		return err
	}

	engine, _ := cmd.Flags().GetString("engine")
	container, _ := cmd.Flags().GetString("container")
	noSession, _ := cmd.Flags().GetBool("no-session")
	transcribeProvider, _ := cmd.Flags().GetString("transcribe")
	transcriptLang, _ := cmd.Flags().GetString("transcript-language")
	translateTo, _ := cmd.Flags().GetString("translate-to")
	translateProvider, _ := cmd.Flags().GetString("translate-provider")
	translateModel, _ := cmd.Flags().GetString("translate-model")

	if engine == "" {
		engine = cfg.Overlay.Engine
	}
	if container == "" {
		container = cfg.Overlay.Container
	}

	transcriber, err := newTranscriber(ctx, transcribeProvider, transcriptLang)
	if err != nil {
		return err
	}
	translator, err := newTranslator(ctx, translateProvider, translateTo, translateModel)
	if err != nil {
		return err
	}

	p, cleanup, err := newPipeline(pipelineOptions{
		engine:      engine,
		container:   container,
		transcriber: transcriber,
		translator:  translator,
		persist:     !noSession && !runCfg.NoRender,
	})
	if err != nil {
		return err
	}
	defer cleanup()

	results, err := p.Run(ctx, runCfg)
	if err != nil {
		return err
	}
	if runCfg.NoRender {
		fmt.Println("Specs written, rendering skipped")
		return nil
	}
	return printResults(results)
}

func runConfigFromFlags(cmd *cobra.Command) (pipeline.Config, error) {
	f := cmd.Flags()
	background, _ := f.GetString("background")
	head, _ := f.GetString("head")
	templatesRaw, _ := f.GetString("templates")
	modeStr, _ := f.GetString("subtitles")
	subtitlesFile, _ := f.GetString("subtitles-file")
	transcript, _ := f.GetString("transcript")
	transcriptFile, _ := f.GetString("transcript-file")
	theme, _ := f.GetString("subtitle-theme")
	exportSubs, _ := f.GetBool("export-subtitles")
	fitTolerance, _ := f.GetFloat64("fit-tolerance")
	bgColor, _ := f.GetString("background-color")
	bgModeStr, _ := f.GetString("background-video-length")
	outputDir, _ := f.GetString("output-dir")
	noRender, _ := f.GetBool("no-render")
	userID, _ := f.GetInt64("user-id")
	scenario, _ := f.GetString("scenario")

	if outputDir == "" {
		outputDir, _ = cmd.Flags().GetString("output")
	}

	mode, err := timeline.ParseSubtitleMode(modeStr)
	if err != nil {
		return pipeline.Config{}, err
	}
	if theme == "" {
		theme = cfg.Pipeline.SubtitleTheme
	}
	if err := render.ValidateTheme(theme); err != nil {
		return pipeline.Config{}, err
	}
	if bgModeStr == "" {
		bgModeStr = cfg.Pipeline.BackgroundMode
	}
	bgMode, err := timeline.ParseBackgroundMode(bgModeStr)
	if err != nil {
		return pipeline.Config{}, err
	}
	if fitTolerance <= 0 {
		fitTolerance = cfg.Pipeline.FitTolerance
	}
	if bgColor == "" {
		bgColor = cfg.Pipeline.BackgroundColor
	}

	text, err := subtitle.ReadTranscript(transcript, transcriptFile)
	if err != nil {
		return pipeline.Config{}, err
	}

	return pipeline.Config{
		UserID:          userID,
		Scenario:        scenario,
		BackgroundURL:   background,
		HeadURL:         head,
		Templates:       timeline.ParseTemplateList(templatesRaw, cfg.Pipeline.Templates),
		SubtitleMode:    mode,
		SubtitlesFile:   subtitlesFile,
		Transcript:      text,
		SubtitleTheme:   theme,
		ExportSubtitles: exportSubs,
		Intro:           bookendFromFlags(cmd, "intro"),
		Outro:           bookendFromFlags(cmd, "outro"),
		Circle:          circleFromFlags(cmd, configCircle()),
		FitTolerance:    fitTolerance,
		BackgroundColor: bgColor,
		BackgroundMode:  bgMode,
		OutputDir:       outputDir,
		NoRender:        noRender,
	}, nil
}

func bookendFromFlags(cmd *cobra.Command, prefix string) *timeline.Bookend {
	url, _ := cmd.Flags().GetString(prefix + "-url")
	if url == "" {
		return nil
	}
	length, _ := cmd.Flags().GetFloat64(prefix + "-length")
	templates, _ := cmd.Flags().GetString(prefix + "-templates")
	return &timeline.Bookend{
		URL:       url,
		Length:    length,
		Templates: timeline.ParseTemplateList(templates, nil),
	}
}

// base with any circle flag the user set applied over it
func circleFromFlags(cmd *cobra.Command, base session.CircleSettings) session.CircleSettings {
	f := cmd.Flags()
	if f.Changed("circle-radius") {
		base.Radius, _ = f.GetFloat64("circle-radius")
		base.AutoCenter = false
	}
	if f.Changed("circle-center-x") {
		base.CenterX, _ = f.GetFloat64("circle-center-x")
		base.AutoCenter = false
	}
	if f.Changed("circle-center-y") {
		base.CenterY, _ = f.GetFloat64("circle-center-y")
		base.AutoCenter = false
	}
	if f.Changed("auto-center") {
		base.AutoCenter, _ = f.GetBool("auto-center")
	}
	return base
}

func printResults(results map[string]render.Result) error {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		r := results[name]
		fmt.Printf("%s: %s\n", name, r.URL)
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	logger.Debugw("Render results", "results", string(data))
	return nil
}
