package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"pressdesk/internal/ledger"
)

type statsOutput struct {
	StoreItems int                   `json:"store_items"`
	Messages   map[ledger.Status]int `json:"messages"`
	Runs       int                   `json:"runs"`
	Recent     []runOutput           `json:"recent_runs"`
}

type runOutput struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Scanned    int        `json:"scanned"`
	Relevant   int        `json:"relevant"`
	Added      int        `json:"added"`
	Failed     int        `json:"failed"`
	Error      string     `json:"error,omitempty"`
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	var runs int
	var pruneAfter time.Duration

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the processed-message ledger and recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.Ledger.Enabled {
				return errors.New("ledger is disabled (set ledger.enabled = true)")
			}
			items, err := loadItems(ctx)
			if err != nil {
				return err
			}

			l, err := ledger.Open(cmd.Context(), cfg.LedgerPath())
			if err != nil {
				return err
			}
			defer l.Close()

			out := cmd.OutOrStdout()
			if pruneAfter > 0 {
				removed, err := l.Prune(cmd.Context(), time.Now().Add(-pruneAfter))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Pruned %d run(s) older than %s\n", removed, pruneAfter)
			}

			stats, err := l.Stats(cmd.Context())
			if err != nil {
				return err
			}
			recent, err := l.RecentRuns(cmd.Context(), runs)
			if err != nil {
				return err
			}

			if jsonOut {
				payload := statsOutput{
					StoreItems: len(items),
					Messages:   stats.Messages,
					Runs:       stats.Runs,
					Recent:     make([]runOutput, 0, len(recent)),
				}
				for _, run := range recent {
					payload.Recent = append(payload.Recent, runOutput(run))
				}
				return writeJSON(cmd, payload)
			}

			colorize := shouldColorize(out)
			fmt.Fprintf(out, "Store items: %d (%s)\n", len(items), cfg.Paths.StoreFile)
			fmt.Fprintf(out, "Runs recorded: %d\n\n", stats.Runs)

			statusRows := make([][]string, 0, len(ledger.AllStatuses()))
			for _, status := range ledger.AllStatuses() {
				statusRows = append(statusRows, []string{string(status), strconv.Itoa(stats.Messages[status])})
			}
			fmt.Fprintln(out, renderTable([]string{"Status", "Messages"}, statusRows,
				[]columnAlignment{alignLeft, alignRight}, colorize))

			if len(recent) == 0 {
				fmt.Fprintln(out, "\nNo runs recorded")
				return nil
			}
			runRows := make([][]string, 0, len(recent))
			for _, run := range recent {
				runRows = append(runRows, []string{
					run.StartedAt.Local().Format("2006-01-02 15:04"),
					runDuration(run),
					strconv.Itoa(run.Scanned),
					strconv.Itoa(run.Relevant),
					strconv.Itoa(run.Added),
					strconv.Itoa(run.Failed),
					run.Error,
				})
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, renderTable(
				[]string{"Started", "Duration", "Scanned", "Relevant", "Added", "Failed", "Error"},
				runRows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
				colorize,
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	cmd.Flags().IntVar(&runs, "runs", 5, "Number of recent runs to show")
	cmd.Flags().DurationVar(&pruneAfter, "prune", 0, "Delete runs (and their message rows) older than this duration first")
	return cmd
}

func runDuration(run ledger.Run) string {
	if run.FinishedAt == nil {
		return "running"
	}
	return run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
}
