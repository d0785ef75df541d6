package cli

import (
	"github.com/spf13/cobra"

	"github.com/mgpai22/headcut/internal/config"
	"github.com/mgpai22/headcut/internal/logging"
)

var (
	verbose    bool
	configPath string
	logger     *logging.Logger
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "headcut",
	Short: "Talking head video assembly pipeline",
	Long: `Headcut turns a talking head clip and a background into finished
vertical videos.

It probes the sources, cuts alpha-matted overlays of the speaker, times
subtitles from the speech in the clip, fills the requested templates and
renders them remotely.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.NewLogger(verbose)
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().
		BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output path")
}
