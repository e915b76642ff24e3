package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"pressdesk/internal/config"
	"pressdesk/internal/extraction"
	"pressdesk/internal/ledger"
	"pressdesk/internal/mailbox"
	"pressdesk/internal/notifications"
	"pressdesk/internal/relevance"
	"pressdesk/internal/services/llm"
	"pressdesk/internal/store"
)

// Build assembles a Runner from configuration. The returned close function
// releases the ledger database and must be called once the runner is done.
func Build(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger) (*Runner, func() error, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("pipeline: config is nil")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, nil, err
	}

	source, err := mailbox.New(cfg.Mailbox, logger)
	if err != nil {
		return nil, nil, err
	}

	llmCfg := cfg.GetLLM()
	client := llm.NewClient(llm.Config{
		APIKey:         llmCfg.APIKey,
		BaseURL:        llmCfg.BaseURL,
		Model:          llmCfg.Model,
		Referer:        llmCfg.Referer,
		Title:          llmCfg.Title,
		TimeoutSeconds: llmCfg.TimeoutSeconds,
	})
	extractor := extraction.NewService(client, extraction.ParseMode(cfg.Extraction.Mode), cfg.Extraction.MaxBodyChars, logger)

	deps := Deps{
		Source:     source,
		Classifier: relevance.New(cfg.Relevance.TrustedDomains, cfg.Relevance.Keywords),
		Extractor:  extractor,
		Store:      store.New(cfg.Paths.StoreFile, logger),
		Notifier:   notifications.NewService(cfg.Notifications),
		Output:     out,
	}

	closeFn := func() error { return nil }
	if cfg.Ledger.Enabled {
		l, err := ledger.Open(ctx, cfg.LedgerPath())
		if err != nil {
			return nil, nil, err
		}
		deps.History = l
		closeFn = l.Close
	}

	opts := Options{
		Window:          cfg.Mailbox.Window,
		MaxItems:        cfg.Store.MaxItems,
		SkipProcessed:   cfg.Ledger.SkipProcessed,
		MailboxReady:    cfg.HasMailboxCredentials(),
		ExtractionReady: cfg.HasLLMCredentials(),
	}
	return NewRunner(opts, deps, logger), closeFn, nil
}
