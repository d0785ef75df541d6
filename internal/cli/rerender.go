package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mgpai22/headcut/internal/queue"
	"github.com/mgpai22/headcut/internal/session"
	"github.com/mgpai22/headcut/internal/timeline"
)

var rerenderCmd = &cobra.Command{
	Use:   "rerender",
	Short: "Render a stored session again with changed settings",
	Long: `Replay a stored render session with overrides applied.

Stored cues, media metadata and overlays are reused. Only overlays that
are missing for the new templates, or a circle overlay whose gate
changed, are rebuilt.

The session is picked by --session, or the newest session of --user-id
(optionally within --scenario). With --async the job is queued for a
worker instead of running in this process.

Examples:
  headcut rerender --session 0f6c... --subtitle-theme bold_yellow
  headcut rerender --user-id 42 --templates circle --circle-radius 0.4
  headcut rerender --user-id 42 --no-intro --async --chat-id 42`,
	Args: cobra.NoArgs,
	RunE: runRerender,
}

func init() {
	rootCmd.AddCommand(rerenderCmd)
	registerRerenderFlags(rerenderCmd)
}

func registerRerenderFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("session", "", "Session ID to rerender")
	f.Int64("user-id", 0, "Rerender the newest session of this user")
	f.String("scenario", "", "Limit --user-id lookup to one scenario")

	f.String("templates", "", "Comma separated templates")
	f.String("subtitles", "", "Subtitle mode (auto, manual, none)")
	f.String("subtitle-theme", "", "Subtitle theme")

	f.String("intro-url", "", "Intro clip URL")
	f.Float64("intro-length", 0, "Intro length in seconds")
	f.String("intro-templates", "", "Templates that get the intro")
	f.Bool("no-intro", false, "Disable the stored intro")
	f.String("outro-url", "", "Outro clip URL")
	f.Float64("outro-length", 0, "Outro length in seconds")
	f.String("outro-templates", "", "Templates that get the outro")
	f.Bool("no-outro", false, "Disable the stored outro")

	f.Float64("circle-radius", 0, "Circle gate radius")
	f.Float64("circle-center-x", 0, "Circle gate center x in [0,1]")
	f.Float64("circle-center-y", 0, "Circle gate center y in [0,1]")
	f.Bool("auto-center", false, "Derive the circle gate from the speaker mask")
	f.String("engine", "", "Overlay segmentation engine (http, chroma)")
	f.String("container", "", "Overlay container (mov, webm)")

	f.Bool("async", false, "Queue the rerender for a worker")
	f.Int64("chat-id", 0, "Telegram chat notified by the worker")
}

func runRerender(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessionID, _ := cmd.Flags().GetString("session")
	userID, _ := cmd.Flags().GetInt64("user-id")
	scenario, _ := cmd.Flags().GetString("scenario")
	async, _ := cmd.Flags().GetBool("async")
	chatID, _ := cmd.Flags().GetInt64("chat-id")
	engine, _ := cmd.Flags().GetString("engine")
	container, _ := cmd.Flags().GetString("container")

	if sessionID == "" && userID == 0 {
		return errors.New("either --session or --user-id is required")
	}

	overrides, err := overridesFromFlags(cmd)
	if err != nil {
		return err
	}

	store, err := openSessions()
	if err != nil {
		return err
	}
	defer store.Close()

	stored, err := findSession(ctx, store, sessionID, userID, scenario)
	if err != nil {
		return err
	}

	if async {
		client := queue.NewClient(cfg.RedisAddr)
		defer client.Close()
		jobID, err := client.EnqueueRerender(ctx, queue.RerenderPayload{
			JobID:     queue.NewJobID(time.Now()),
			SessionID: stored.ID,
			ChatID:    chatID,
			Overrides: overrides,
		})
		if err != nil {
			return err
		}
		logger.Infow("Rerender queued", "job_id", jobID, "session_id", stored.ID)
		fmt.Printf("Rerender queued: %s\n", jobID)
		return nil
	}

	if engine == "" {
		engine = cfg.Overlay.Engine
	}
	if container == "" {
		container = cfg.Overlay.Container
	}
	p, cleanup, err := newPipeline(pipelineOptions{engine: engine, container: container})
	if err != nil {
		return err
	}
	defer cleanup()
	p.Sessions = store

	res, err := p.Rerender(ctx, stored, overrides)
	if err != nil {
		return err
	}
	fmt.Printf("Rerender complete: %s\n", res.URL)
	if res.Key != "" {
		fmt.Printf("  Stored as: %s\n", res.Key)
	}
	if len(res.Rebuilt) > 0 {
		fmt.Printf("  Rebuilt overlays: %v\n", res.Rebuilt)
	}
	return nil
}

func findSession(ctx context.Context, store session.Store, id string, userID int64, scenario string) (*session.Session, error) {
	if id != "" {
		s, err := store.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", id, err)
		}
		return s, nil
	}
	s, err := store.Latest(ctx, userID, scenario)
	if err != nil {
		return nil, fmt.Errorf("latest session of user %d: %w", userID, err)
	}
	return s, nil
}

// only flags the user set become overrides
func overridesFromFlags(cmd *cobra.Command) (session.Overrides, error) {
	f := cmd.Flags()
	var o session.Overrides

	if f.Changed("templates") {
		raw, _ := f.GetString("templates")
		o.Templates = timeline.ParseTemplateList(raw, nil)
	}
	if f.Changed("subtitles") {
		mode, _ := f.GetString("subtitles")
		if _, err := timeline.ParseSubtitleMode(mode); err != nil {
			return o, err
		}
		o.SubtitleMode = &mode
	}
	if f.Changed("subtitle-theme") {
		theme, _ := f.GetString("subtitle-theme")
		o.SubtitleTheme = &theme
	}

	o.Intro = bookendOverride(cmd, "intro")
	o.Outro = bookendOverride(cmd, "outro")

	var c session.CircleOverride
	changed := false
	for _, name := range []string{"circle-radius", "circle-center-x", "circle-center-y"} {
		if !f.Changed(name) {
			continue
		}
		v, _ := f.GetFloat64(name)
		switch name {
		case "circle-radius":
			c.Radius = &v
		case "circle-center-x":
			c.CenterX = &v
		case "circle-center-y":
			c.CenterY = &v
		}
		changed = true
	}
	if f.Changed("auto-center") {
		auto, _ := f.GetBool("auto-center")
		c.AutoCenter = &auto
		changed = true
	} else if changed {
		auto := false
		c.AutoCenter = &auto
	}
	if changed {
		o.Circle = &c
	}
	return o, nil
}

func bookendOverride(cmd *cobra.Command, prefix string) *session.BookendOverride {
	f := cmd.Flags()
	var b session.BookendOverride
	set := false

	if off, _ := f.GetBool("no-" + prefix); off {
		disabled := false
		b.Enabled = &disabled
		return &b
	}
	if f.Changed(prefix + "-url") {
		url, _ := f.GetString(prefix + "-url")
		enabled := true
		b.URL = &url
		b.Enabled = &enabled
		set = true
	}
	if f.Changed(prefix + "-length") {
		length, _ := f.GetFloat64(prefix + "-length")
		b.Length = &length
		set = true
	}
	if f.Changed(prefix + "-templates") {
		raw, _ := f.GetString(prefix + "-templates")
		b.Templates = timeline.ParseTemplateList(raw, nil)
		set = true
	}
	if !set {
		return nil
	}
	return &b
}
