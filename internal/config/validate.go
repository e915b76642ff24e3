package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
//
// Missing credentials are not validation errors: a run without them completes
// without touching the store.
func (c *Config) Validate() error {
	if err := c.validateMailbox(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateRelevance(); err != nil {
		return err
	}
	if err := c.validateExtraction(); err != nil {
		return err
	}
	if c.Store.MaxItems < 1 {
		return errors.New("store.max_items must be positive")
	}
	if c.Watch.IntervalMinutes < 1 {
		return errors.New("watch.interval_minutes must be positive")
	}
	return nil
}

func (c *Config) validateMailbox() error {
	switch c.Mailbox.Provider {
	case ProviderIMAP, ProviderGmail:
	default:
		return fmt.Errorf("mailbox.provider: unsupported value %q (valid: imap, gmail)", c.Mailbox.Provider)
	}
	if c.Mailbox.Window < 1 {
		return errors.New("mailbox.window must be positive")
	}
	return nil
}

func (c *Config) validateLLM() error {
	u, err := url.Parse(c.LLM.BaseURL)
	if err != nil {
		return fmt.Errorf("llm.base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("llm.base_url: scheme must be http or https, got %q", u.Scheme)
	}
	return nil
}

func (c *Config) validateRelevance() error {
	if len(c.Relevance.TrustedDomains) == 0 && len(c.Relevance.Keywords) == 0 {
		return errors.New("relevance: at least one trusted domain or keyword is required")
	}
	return nil
}

func (c *Config) validateExtraction() error {
	switch c.Extraction.Mode {
	case ModeSummary, ModeFullText:
	default:
		return fmt.Errorf("extraction.mode: unsupported value %q (valid: summary, full_text)", c.Extraction.Mode)
	}
	if c.Extraction.MaxBodyChars < 1 {
		return errors.New("extraction.max_body_chars must be positive")
	}
	return nil
}
