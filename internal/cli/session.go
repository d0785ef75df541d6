package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mgpai22/headcut/internal/storage"
)

var sessionCmd = &cobra.Command{
	Use:   "session [session_id]",
	Short: "Show a stored render session",
	Long: `Print a stored render session as JSON.

Without an id the newest session of --user-id is shown. When object
storage is configured and the session has an archived render, a
presigned download link for it is printed as well.

Examples:
  headcut session 0f6c...
  headcut session --user-id 42 --scenario talking_head`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSession,
}

func init() {
	rootCmd.AddCommand(sessionCmd)

	sessionCmd.Flags().Int64("user-id", 0, "Show the newest session of this user")
	sessionCmd.Flags().String("scenario", "", "Limit --user-id lookup to one scenario")
}

func runSession(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	userID, _ := cmd.Flags().GetInt64("user-id")
	scenario, _ := cmd.Flags().GetString("scenario")

	var id string
	if len(args) == 1 {
		id = args[0]
	}
	if id == "" && userID == 0 {
		return errors.New("a session id or --user-id is required")
	}

	store, err := openSessions()
	if err != nil {
		return err
	}
	defer store.Close()

	s, err := findSession(ctx, store, id, userID, scenario)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if s.ResultKey == "" {
		return nil
	}
	objects, err := openObjects()
	if err != nil || objects == nil {
		return err
	}
	presigner, ok := objects.(storage.Presigner)
	if !ok {
		return nil
	}
	link, err := storage.NewPresignCache(presigner, presignTTL()).URL(ctx, s.ResultKey)
	if err != nil {
		return fmt.Errorf("failed to presign %s: %w", s.ResultKey, err)
	}
	fmt.Printf("Download: %s\n", link)
	return nil
}

func presignTTL() time.Duration {
	if cfg.R2.PresignTTL <= 0 {
		return time.Hour
	}
	return time.Duration(cfg.R2.PresignTTL) * time.Second
}
