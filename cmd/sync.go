package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/dt-pm-tools/board-sync/internal/boardsync"
	"github.com/dt-pm-tools/board-sync/internal/monday"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var syncDryRun bool

var syncCmd = &cobra.Command{
	Use:   "sync <item-id>",
	Short: "Synchronize one source item onto the target board",
	Long: `Runs the same flow as the webhook for a single source item: reads rank, SLA
and revenue, finds the target item with the same name (or external id) and
updates it, or creates it when absent.

Use --dry-run to see the column values and the planned action without writing.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		if err := appConfig.ValidateSync(); err != nil {
			return errors.Wrap(err, "invalid config\nRun 'boardsync config' to set the target board")
		}

		client := monday.NewClient(appConfig)
		syncer := boardsync.NewSyncer(client, appConfig, appLog)

		res, err := syncer.SyncItem(context.Background(), args[0], syncDryRun)
		if err != nil {
			return errors.Wrapf(err, "syncing item %s", args[0])
		}

		if syncDryRun {
			target := res.TargetItemID
			if target == "" {
				target = "(new item)"
			}
			fmt.Fprintf(os.Stderr, "Dry run: would %s %q on board %s (target: %s)\n\n", actionVerb(res.Action), res.Name, appConfig.Target.BoardID, target)
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(res.Values); err != nil {
				return errors.Wrap(err, "encoding column values")
			}
			return nil
		}

		fmt.Fprintf(os.Stderr, "%s %q on board %s (item %s)\n", capitalize(res.Action), res.Name, appConfig.Target.BoardID, res.TargetItemID)
		return nil
	},
}

func actionVerb(action string) string {
	if action == boardsync.ActionCreated {
		return "create"
	}
	return "update"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func init() {
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "preview column values without writing")
	rootCmd.AddCommand(syncCmd)
}
