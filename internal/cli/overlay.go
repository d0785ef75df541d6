package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mgpai22/headcut/internal/overlay"
	"github.com/mgpai22/headcut/internal/timeline"
)

var overlayCmd = &cobra.Command{
	Use:   "overlay [head_clip]",
	Short: "Build alpha-matted overlays of a talking head clip",
	Long: `Cut the speaker out of a talking head clip and publish one
transparent overlay per shape.

The rect shape keeps the whole matted speaker, the circle shape also
applies a circular gate, either from the --circle-* flags or derived from
the speaker mask with --auto-center.

Examples:
  headcut overlay head.mp4
  headcut overlay https://cdn.example.com/head.mp4 --shapes circle --auto-center
  headcut overlay head.mp4 --shapes rect --engine chroma --container webm`,
	Args: cobra.ExactArgs(1),
	RunE: runOverlay,
}

func init() {
	rootCmd.AddCommand(overlayCmd)

	f := overlayCmd.Flags()
	f.String("shapes", "rect,circle", "Comma separated shapes (rect, circle)")
	f.String("engine", "", "Segmentation engine (http, chroma)")
	f.String("container", "", "Overlay container (mov, webm)")
	f.Float64("circle-radius", 0, "Circle gate radius as a fraction of the smaller frame side")
	f.Float64("circle-center-x", 0, "Circle gate center x in [0,1]")
	f.Float64("circle-center-y", 0, "Circle gate center y in [0,1]")
	f.Bool("auto-center", false, "Derive the circle gate from the speaker mask")
}

func runOverlay(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	headURL := args[0]
	shapesRaw, _ := cmd.Flags().GetString("shapes")
	engine, _ := cmd.Flags().GetString("engine")
	container, _ := cmd.Flags().GetString("container")
	if engine == "" {
		engine = cfg.Overlay.Engine
	}
	if container == "" {
		container = cfg.Overlay.Container
	}

	var shapes []overlay.Shape
	for _, raw := range timeline.ParseTemplateList(shapesRaw, nil) {
		shape, err := overlay.ParseShape(raw)
		if err != nil {
			return err
		}
		shapes = append(shapes, shape)
	}
	if len(shapes) == 0 {
		return fmt.Errorf("at least one shape is required")
	}

	if err := requireShotstackKey(); err != nil {
		return err
	}
	builder, err := newOverlayBuilder(engine, container)
	if err != nil {
		return err
	}

	circle := circleFromFlags(cmd, configCircle())
	gate := overlay.Gate{Circle: circle.Params(), AutoCenter: circle.AutoCenter}

	logger.Infow("Building overlays", "head", headURL, "shapes", shapes, "engine", engine)
	assets, err := builder.Build(ctx, headURL, shapes, gate)
	if err != nil {
		return err
	}

	built := make([]string, 0, len(assets))
	for shape := range assets {
		built = append(built, string(shape))
	}
	sort.Strings(built)
	for _, name := range built {
		a := assets[overlay.Shape(name)]
		fmt.Printf("%s: %s\n", name, a.URL)
		if a.Circle != nil {
			fmt.Printf("  circle: radius=%.3f center=(%.3f, %.3f)\n",
				a.Circle.Radius, a.Circle.CenterX, a.Circle.CenterY)
		}
	}
	return nil
}
