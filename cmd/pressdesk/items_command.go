package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pressdesk/internal/press"
	"pressdesk/internal/store"
	"pressdesk/internal/textutil"
)

const titleColumnWidth = 48

func loadItems(ctx *commandContext) ([]press.Item, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return nil, err
	}
	res, err := store.New(cfg.Paths.StoreFile, logger).Load()
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	var limit int
	var channel string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored press items, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := loadItems(ctx)
			if err != nil {
				return err
			}
			items = filterByChannel(items, channel)
			if limit > 0 && len(items) > limit {
				items = items[:limit]
			}
			if jsonOut {
				return writeJSON(cmd, items)
			}

			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "No press items stored")
				return nil
			}
			rows := make([][]string, 0, len(items))
			for i, item := range items {
				airTime := "-"
				if item.HasAirTime() {
					airTime = *item.AirTime
				}
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					item.AirDate,
					airTime,
					item.Channel,
					textutil.TruncateRunes(item.Title, titleColumnWidth),
					textutil.Ternary(item.SeasonStart, "yes", ""),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"#", "Air date", "Time", "Channel", "Title", "Season start"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				shouldColorize(out),
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most n items")
	cmd.Flags().StringVar(&channel, "channel", "", "Only show items for this channel (case-insensitive)")
	return cmd
}

func filterByChannel(items []press.Item, channel string) []press.Item {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return items
	}
	filtered := make([]press.Item, 0, len(items))
	for _, item := range items {
		if strings.EqualFold(item.Channel, channel) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one stored press item",
		Long:  "Show one stored press item. The id may be abbreviated to any unique prefix.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := loadItems(ctx)
			if err != nil {
				return err
			}
			id := strings.TrimSpace(args[0])
			if id == "" {
				return errors.New("item id is required")
			}
			item, ok := store.Find(items, id)
			if !ok {
				return fmt.Errorf("no unique item matches %q", id)
			}
			if jsonOut {
				return writeJSON(cmd, item)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:           %s\n", item.ID)
			fmt.Fprintf(out, "Title:        %s\n", item.Title)
			fmt.Fprintf(out, "Channel:      %s\n", item.Channel)
			fmt.Fprintf(out, "Air date:     %s\n", item.AirDate)
			if item.HasAirTime() {
				fmt.Fprintf(out, "Air time:     %s\n", *item.AirTime)
			}
			fmt.Fprintf(out, "Season start: %s\n", yesNo(item.SeasonStart))
			fmt.Fprintf(out, "Captured:     %s\n", item.CapturedAt.Local().Format(time.RFC1123))
			if body := item.Body(); body != "" {
				fmt.Fprintln(out)
				fmt.Fprintln(out, body)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}
