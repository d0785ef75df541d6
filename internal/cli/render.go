package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:   "render [spec_file]",
	Short: "Submit a composed spec for rendering",
	Long: `Render a spec file written by the run command, or any spec in the
same JSON or YAML layout.

Automation entries are resolved before submission. By default the command
waits for the render to finish and prints the result; --no-wait prints the
render id and poll URL right after submission.

Examples:
  headcut render build/auto_20260101_120000/circle.json
  headcut render spec.yaml --no-wait`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().Bool("no-wait", false, "Return after submission without polling")
}

func runRender(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	specPath := args[0]
	noWait, _ := cmd.Flags().GetBool("no-wait")

	if _, err := os.Stat(specPath); os.IsNotExist(err) {
		return fmt.Errorf("spec file not found: %s", specPath)
	}
	if err := requireShotstackKey(); err != nil {
		return err
	}

	logger.Infow("Rendering spec", "spec", specPath, "wait", !noWait)
	res, err := newOrchestrator().RenderSpec(ctx, specPath, !noWait)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
