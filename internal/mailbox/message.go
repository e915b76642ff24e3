package mailbox

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"pressdesk/internal/config"
)

// ErrSourceUnavailable marks failures that prevent reading the mailbox at all.
var ErrSourceUnavailable = errors.New("message source unavailable")

// Message is one inbound email reduced to what the pipeline needs.
type Message struct {
	// Key identifies the message across runs: the Message-ID header when
	// present, otherwise a digest of date, sender and subject.
	Key     string
	Subject string
	Sender  string
	// Date is the raw Date header.
	Date string
	Body string
}

// Source yields the n most recent messages, newest first.
type Source interface {
	Recent(ctx context.Context, n int) ([]Message, error)
}

// New returns the Source selected by cfg.Provider.
func New(cfg config.Mailbox, logger *slog.Logger) (Source, error) {
	switch cfg.Provider {
	case config.ProviderIMAP, "":
		return NewIMAPSource(cfg, logger), nil
	case config.ProviderGmail:
		return NewGmailSource(cfg, logger), nil
	default:
		return nil, fmt.Errorf("mailbox: unsupported provider %q", cfg.Provider)
	}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, op, err)
}

// messageKey prefers the Message-ID header and falls back to a stable digest.
func messageKey(messageID, date, sender, subject string) string {
	if id := strings.Trim(strings.TrimSpace(messageID), "<>"); id != "" {
		return id
	}
	sum := sha256.Sum256([]byte(date + "\x00" + sender + "\x00" + subject))
	return "sha256:" + hex.EncodeToString(sum[:16])
}
