package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pressdesk/internal/mailbox"
)

func newAuthCommand(ctx *commandContext) *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Mailbox authorization helpers",
	}

	authCmd.AddCommand(&cobra.Command{
		Use:   "gmail",
		Short: "Authorize Gmail API access and store the OAuth token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := mailbox.AuthorizeGmail(cmd.Context(), cfg.Mailbox, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
				return fmt.Errorf("authorize gmail: %w", err)
			}
			return nil
		},
	})
	return authCmd
}
