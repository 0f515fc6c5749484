package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/dt-pm-tools/board-sync/internal/deadline"
	"github.com/dt-pm-tools/board-sync/internal/monday"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	deadlineInput  deadline.Input
	deadlineItem   string
	deadlineBoard  string
	deadlineClient string
	deadlineDryRun bool
)

var deadlineCmd = &cobra.Command{
	Use:   "deadline",
	Short: "Compute an SLA deadline and write it onto an item",
	Long: `Reads the per-severity SLA day counts from a client item, adds the days for
the given criticality to today's date and writes the result to the deadline
column of the item. Column ids default to the ones in the config file.

Use --dry-run to print the date without writing it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}

		in := deadlineInput
		in.ItemID = monday.ID(deadlineItem)
		in.BoardID = monday.ID(deadlineBoard)
		in.ClientItemID = monday.ID(deadlineClient)

		svc, err := deadline.NewService(monday.NewClient(appConfig), appConfig, appLog)
		if err != nil {
			return err
		}

		res, err := svc.Run(context.Background(), in, deadlineDryRun)
		if err != nil {
			return errors.Wrap(err, "computing deadline")
		}

		if deadlineDryRun {
			fmt.Fprintf(os.Stderr, "Dry run: %s severity, %d day(s)\n", res.Severity, res.Days)
			fmt.Println(res.Deadline)
			return nil
		}

		fmt.Fprintf(os.Stderr, "Wrote %s to column %s of item %s (%s, %d day(s))\n", res.Deadline, res.Column, res.ItemID, res.Severity, res.Days)
		return nil
	},
}

func init() {
	f := deadlineCmd.Flags()
	f.StringVar(&deadlineItem, "item", "", "item to write the deadline on (required)")
	f.StringVar(&deadlineBoard, "board", "", "board of the item (required)")
	f.StringVar(&deadlineClient, "client-item", "", "client item holding the SLA columns (required)")
	f.StringVar(&deadlineInput.Criticality, "criticality", "", "criticality label, e.g. Alta or High (required)")
	f.StringVar(&deadlineInput.SLACriticalColumn, "sla-critical-column", "", "SLA column for critical severity")
	f.StringVar(&deadlineInput.SLAHighColumn, "sla-high-column", "", "SLA column for high severity")
	f.StringVar(&deadlineInput.SLAMediumColumn, "sla-medium-column", "", "SLA column for medium severity")
	f.StringVar(&deadlineInput.SLALowColumn, "sla-low-column", "", "SLA column for low severity")
	f.StringVar(&deadlineInput.DeadlineColumn, "deadline-column", "", "date column to write")
	f.BoolVar(&deadlineDryRun, "dry-run", false, "print the deadline without writing it")
	for _, name := range []string{"item", "board", "client-item", "criticality"} {
		_ = deadlineCmd.MarkFlagRequired(name)
	}
	rootCmd.AddCommand(deadlineCmd)
}
