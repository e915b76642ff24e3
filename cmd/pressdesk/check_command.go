package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"pressdesk/internal/mailbox"
	"pressdesk/internal/notifications"
	"pressdesk/internal/services/llm"
)

const checkTimeout = 45 * time.Second

type checkResult struct {
	name   string
	ok     bool
	detail string
}

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var notify bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify mailbox and extraction service connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			checkCtx, cancel := context.WithTimeout(commandContextOrBackground(cmd), checkTimeout)
			defer cancel()

			var results []checkResult

			if !cfg.HasMailboxCredentials() {
				results = append(results, checkResult{name: "mailbox", detail: "no credentials configured for provider " + cfg.Mailbox.Provider})
			} else if source, err := mailbox.New(cfg.Mailbox, logger); err != nil {
				results = append(results, checkResult{name: "mailbox", detail: err.Error()})
			} else if msgs, err := source.Recent(checkCtx, 1); err != nil {
				results = append(results, checkResult{name: "mailbox", detail: err.Error()})
			} else {
				results = append(results, checkResult{name: "mailbox", ok: true, detail: fmt.Sprintf("%s reachable (%d message fetched)", cfg.Mailbox.Provider, len(msgs))})
			}

			if !cfg.HasLLMCredentials() {
				results = append(results, checkResult{name: "extraction service", detail: "no api key configured"})
			} else {
				llmCfg := cfg.GetLLM()
				client := llm.NewClient(llm.Config{
					APIKey:         llmCfg.APIKey,
					BaseURL:        llmCfg.BaseURL,
					Model:          llmCfg.Model,
					Referer:        llmCfg.Referer,
					Title:          llmCfg.Title,
					TimeoutSeconds: llmCfg.TimeoutSeconds,
				}, llm.WithRetryMaxAttempts(1))
				if err := client.HealthCheck(checkCtx); err != nil {
					results = append(results, checkResult{name: "extraction service", detail: err.Error()})
				} else {
					results = append(results, checkResult{name: "extraction service", ok: true, detail: "model " + client.Model()})
				}
			}

			if notify {
				if cfg.Notifications.NtfyTopic == "" {
					results = append(results, checkResult{name: "notifications", detail: "no ntfy topic configured"})
				} else if err := notifications.NewService(cfg.Notifications).TestNotification(checkCtx); err != nil {
					results = append(results, checkResult{name: "notifications", detail: err.Error()})
				} else {
					results = append(results, checkResult{name: "notifications", ok: true, detail: "test notification sent"})
				}
			}

			out := cmd.OutOrStdout()
			failed := printCheckResults(out, results, shouldColorize(out))
			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&notify, "notify", false, "Also send a test notification")
	return cmd
}

const (
	ansiReset = "\x1b[0m"
	ansiGreen = "\x1b[32m"
	ansiRed   = "\x1b[31m"
)

func printCheckResults(out io.Writer, results []checkResult, colorize bool) int {
	failed := 0
	for _, res := range results {
		label, color := "OK", ansiGreen
		if !res.ok {
			label, color = "FAIL", ansiRed
			failed++
		}
		if colorize {
			label = color + label + ansiReset
		}
		fmt.Fprintf(out, "%-4s %-19s %s\n", label, res.name, res.detail)
	}
	return failed
}
