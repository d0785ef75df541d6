package cli

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mgpai22/headcut/internal/audio"
	"github.com/mgpai22/headcut/internal/media"
	"github.com/mgpai22/headcut/internal/notify"
	"github.com/mgpai22/headcut/internal/overlay"
	"github.com/mgpai22/headcut/internal/pipeline"
	"github.com/mgpai22/headcut/internal/render"
	"github.com/mgpai22/headcut/internal/session"
	"github.com/mgpai22/headcut/internal/storage"
	"github.com/mgpai22/headcut/internal/timeline"
	"github.com/mgpai22/headcut/internal/transcribe"
	"github.com/mgpai22/headcut/internal/translate"
)

func requireShotstackKey() error {
	if cfg.Shotstack.APIKey == "" {
		return fmt.Errorf("Shotstack API key is required: set SHOTSTACK_API_KEY or shotstack.api_key in the config file")
	}
	return nil
}

func newRenderClient() *render.Client {
	c := render.NewClient(cfg.Shotstack.APIKey, cfg.Shotstack.Stage)
	if cfg.Shotstack.Host != "" {
		c.Host = cfg.Shotstack.Host
	}
	if cfg.Shotstack.PollSeconds > 0 {
		c.PollInterval = time.Duration(cfg.Shotstack.PollSeconds) * time.Second
	}
	if cfg.Shotstack.PollTimeout > 0 {
		c.Timeout = time.Duration(cfg.Shotstack.PollTimeout) * time.Second
	}
	c.Logger = logger.Stage("render")
	return c
}

func newOrchestrator() *render.Orchestrator {
	return render.NewOrchestrator(newRenderClient(), media.NewFFprobe(), logger.Stage("render"))
}

func newIngestClient() *overlay.IngestClient {
	c := overlay.NewIngestClient(cfg.Shotstack.APIKey, cfg.Shotstack.Stage)
	if cfg.Shotstack.IngestHost != "" {
		c.Host = cfg.Shotstack.IngestHost
	}
	if cfg.Shotstack.AssetTimeout > 0 {
		c.Timeout = time.Duration(cfg.Shotstack.AssetTimeout) * time.Second
	}
	c.Logger = logger.Stage("ingest")
	return c
}

func newSegmenter(engine string) (overlay.Segmenter, error) {
	switch strings.ToLower(engine) {
	case "", "http":
		if cfg.Overlay.SegmenterURL == "" {
			return nil, fmt.Errorf("segmentation service URL is required: set OVERLAY_SEGMENTER_URL or overlay.segmenter_url")
		}
		return overlay.NewHTTPSegmenter(cfg.Overlay.SegmenterURL), nil
	case "chroma":
		return overlay.NewChromaKeySegmenter(), nil
	default:
		return nil, fmt.Errorf("unsupported overlay engine %q: use http or chroma", engine)
	}
}

func newOverlayBuilder(engine, container string) (*overlay.Builder, error) {
	seg, err := newSegmenter(engine)
	if err != nil {
		return nil, err
	}
	opts := overlay.DefaultOptions()
	opts.Container = overlay.Container(container)
	if opts.Container != overlay.ContainerMOV && opts.Container != overlay.ContainerWebM {
		return nil, fmt.Errorf("unsupported overlay container %q: use mov or webm", container)
	}
	opts.Refine.Threshold = cfg.Overlay.Threshold
	opts.Refine.Feather = cfg.Overlay.Feather
	if cfg.Overlay.Concurrency > 0 {
		opts.Concurrency = cfg.Overlay.Concurrency
	}
	return &overlay.Builder{
		Segmenter: seg,
		Uploader:  newIngestClient(),
		Prober:    media.NewFFprobe(),
		HTTP:      &http.Client{Timeout: 10 * time.Minute},
		Options:   opts,
		Logger:    logger.Stage(string(pipeline.StageOverlays)),
	}, nil
}

func configCircle() session.CircleSettings {
	return session.CircleSettings{
		Radius:     cfg.Overlay.CircleRadius,
		CenterX:    cfg.Overlay.CircleCenterX,
		CenterY:    cfg.Overlay.CircleCenterY,
		AutoCenter: cfg.Overlay.AutoCenter,
	}
}

func openSessions() (session.Store, error) {
	switch strings.ToLower(cfg.SessionBackend) {
	case "", "sqlite":
		return session.OpenSQLite(cfg.SessionDB)
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		return session.NewRedisStore(rdb), nil
	default:
		return nil, fmt.Errorf("unsupported session backend %q: use sqlite or redis", cfg.SessionBackend)
	}
}

// nil when R2 credentials are not configured
func openObjects() (storage.Store, error) {
	if !cfg.R2.Enabled() {
		return nil, nil
	}
	s3, err := storage.NewS3Store(storage.Options{
		Endpoint:        cfg.R2.ResolvedEndpoint(),
		AccessKeyID:     cfg.R2.AccessKeyID,
		SecretAccessKey: cfg.R2.SecretAccessKey,
		Bucket:          cfg.R2.Bucket,
	})
	if err != nil {
		return nil, err
	}
	return s3, nil
}

func apiKeyFor(provider string) string {
	switch provider {
	case "gemini":
		return cfg.GeminiAPIKey
	case "openai":
		return cfg.OpenAIAPIKey
	case "anthropic":
		return cfg.AnthropicAPIKey
	}
	return ""
}

func apiKeyEnv(provider string) string {
	switch provider {
	case "gemini":
		return "GEMINI_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	}
	return "API_KEY"
}

// nil when provider is empty
func newTranscriber(ctx context.Context, provider, language string) (transcribe.Transcriber, error) {
	if provider == "" {
		return nil, nil
	}
	key := apiKeyFor(provider)
	if key == "" {
		return nil, fmt.Errorf("API key is required for %s transcription: set %s", provider, apiKeyEnv(provider))
	}
	return transcribe.Factory(ctx, transcribe.Provider(provider), key, transcribe.Options{Language: language})
}

// nil when target is empty
func newTranslator(ctx context.Context, provider, target, model string) (translate.Translator, error) {
	if target == "" {
		return nil, nil
	}
	key := apiKeyFor(provider)
	if key == "" {
		return nil, fmt.Errorf("API key is required for %s translation: set %s", provider, apiKeyEnv(provider))
	}
	return translate.Factory(ctx, translate.Provider(provider), key, translate.Options{
		TargetLanguage: target,
		Model:          model,
		BatchSize:      translate.DefaultBatchSize,
	})
}

func newNotifier() (notify.Notifier, error) {
	if cfg.TelegramBotToken == "" {
		return notify.Log{Logger: logger.Stage("notify")}, nil
	}
	tg, err := notify.NewTelegram(cfg.TelegramBotToken)
	if err != nil {
		return nil, err
	}
	return tg, nil
}

type pipelineOptions struct {
	engine      string
	container   string
	transcriber transcribe.Transcriber
	translator  translate.Translator
	persist     bool
}

// pipeline wired from the loaded config. the returned func releases the stores.
func newPipeline(opts pipelineOptions) (*pipeline.Pipeline, func(), error) {
	if err := requireShotstackKey(); err != nil {
		return nil, nil, err
	}
	builder, err := newOverlayBuilder(opts.engine, opts.container)
	if err != nil {
		return nil, nil, err
	}
	blocks, err := timeline.LoadBlocks(cfg.Pipeline.BlocksConfig)
	if err != nil {
		return nil, nil, err
	}

	p := &pipeline.Pipeline{
		Prober:      media.NewFFprobe(),
		Overlays:    builder,
		Speech:      pipeline.SilenceDetector{Options: audio.DefaultSilenceOptions()},
		Renderer:    newOrchestrator(),
		Transcriber: opts.transcriber,
		Translator:  opts.translator,
		Blocks:      blocks,
		HTTP:        &http.Client{Timeout: 10 * time.Minute},
		OutputRoot:  cfg.Pipeline.OutputRoot,
		Logger:      logger,
	}

	closers := []func(){}
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}

	if opts.persist {
		store, err := openSessions()
		if err != nil {
			return nil, nil, err
		}
		p.Sessions = store
		closers = append(closers, func() { _ = store.Close() })
	}

	objects, err := openObjects()
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if objects != nil {
		p.Objects = objects
	}
	return p, cleanup, nil
}
