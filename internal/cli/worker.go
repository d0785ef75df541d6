package cli

import (
	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/mgpai22/headcut/internal/queue"
	"github.com/mgpai22/headcut/internal/storage"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process queued rerender jobs",
	Long: `Run a worker that takes rerender jobs from the Redis queue.

Each job replays a stored session with its overrides. When a Telegram bot
token is configured the requesting chat is told about the result,
otherwise the outcome is only logged.

Examples:
  headcut worker
  headcut worker --concurrency 2 --engine chroma`,
	Args: cobra.NoArgs,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)

	workerCmd.Flags().Int("concurrency", 1, "Number of jobs processed in parallel")
	workerCmd.Flags().String("engine", "", "Overlay segmentation engine (http, chroma)")
	workerCmd.Flags().String("container", "", "Overlay container (mov, webm)")
}

func runWorker(cmd *cobra.Command, args []string) error {
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	engine, _ := cmd.Flags().GetString("engine")
	container, _ := cmd.Flags().GetString("container")
	if engine == "" {
		engine = cfg.Overlay.Engine
	}
	if container == "" {
		container = cfg.Overlay.Container
	}

	p, cleanup, err := newPipeline(pipelineOptions{
		engine:    engine,
		container: container,
		persist:   true,
	})
	if err != nil {
		return err
	}
	defer cleanup()

	notifier, err := newNotifier()
	if err != nil {
		return err
	}

	h := &queue.Handler{
		Sessions: p.Sessions,
		Pipeline: p,
		Notifier: notifier,
		Logger:   logger.Stage("worker"),
	}
	if presigner, ok := p.Objects.(storage.Presigner); ok {
		h.Links = storage.NewPresignCache(presigner, presignTTL())
	}
	mux := asynq.NewServeMux()
	h.Register(mux)

	logger.Infow("Starting worker", "redis", cfg.RedisAddr, "concurrency", concurrency)
	return queue.NewServer(cfg.RedisAddr, concurrency).Run(mux)
}
