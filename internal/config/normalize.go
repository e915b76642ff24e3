package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeMailbox(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeRelevance()
	c.normalizeExtraction()
	if c.Store.MaxItems == 0 {
		c.Store.MaxItems = defaultMaxItems
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
	if c.Watch.IntervalMinutes == 0 {
		c.Watch.IntervalMinutes = defaultWatchIntervalMinute
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StoreFile) == "" {
		c.Paths.StoreFile = defaultStoreFile
	}
	if c.Paths.StoreFile, err = expandPath(c.Paths.StoreFile); err != nil {
		return fmt.Errorf("paths.store_file: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeMailbox() error {
	c.Mailbox.Provider = strings.ToLower(strings.TrimSpace(c.Mailbox.Provider))
	if c.Mailbox.Provider == "" {
		c.Mailbox.Provider = defaultProvider
	}
	c.Mailbox.IMAPServer = strings.TrimSpace(c.Mailbox.IMAPServer)
	if c.Mailbox.IMAPServer == "" {
		c.Mailbox.IMAPServer = defaultIMAPServer
	}
	c.Mailbox.Username = strings.TrimSpace(c.Mailbox.Username)
	if c.Mailbox.Username == "" {
		if value, ok := os.LookupEnv("GMAIL_USER"); ok {
			c.Mailbox.Username = strings.TrimSpace(value)
		}
	}
	if c.Mailbox.Password == "" {
		if value, ok := os.LookupEnv("GMAIL_PASSWORD"); ok {
			c.Mailbox.Password = value
		}
	}
	c.Mailbox.Folder = strings.TrimSpace(c.Mailbox.Folder)
	if c.Mailbox.Folder == "" {
		c.Mailbox.Folder = defaultFolder
	}
	if c.Mailbox.Window == 0 {
		c.Mailbox.Window = defaultWindow
	}
	if c.Mailbox.TimeoutSeconds <= 0 {
		c.Mailbox.TimeoutSeconds = defaultMailboxTimeout
	}
	var err error
	if strings.TrimSpace(c.Mailbox.GmailCredentialsFile) == "" {
		c.Mailbox.GmailCredentialsFile = defaultGmailCredentials
	}
	if c.Mailbox.GmailCredentialsFile, err = expandPath(c.Mailbox.GmailCredentialsFile); err != nil {
		return fmt.Errorf("mailbox.gmail_credentials_file: %w", err)
	}
	if strings.TrimSpace(c.Mailbox.GmailTokenFile) == "" {
		c.Mailbox.GmailTokenFile = defaultGmailToken
	}
	if c.Mailbox.GmailTokenFile, err = expandPath(c.Mailbox.GmailTokenFile); err != nil {
		return fmt.Errorf("mailbox.gmail_token_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	if c.LLM.Referer == "" {
		c.LLM.Referer = defaultLLMReferer
	}
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.Title == "" {
		c.LLM.Title = defaultLLMTitle
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeRelevance() {
	c.Relevance.TrustedDomains = normalizeList(c.Relevance.TrustedDomains)
	c.Relevance.Keywords = normalizeList(c.Relevance.Keywords)
}

func (c *Config) normalizeExtraction() {
	c.Extraction.Mode = strings.ToLower(strings.TrimSpace(c.Extraction.Mode))
	switch c.Extraction.Mode {
	case "", ModeSummary:
		c.Extraction.Mode = ModeSummary
	case "full-text", "fulltext":
		c.Extraction.Mode = ModeFullText
	}
	if c.Extraction.MaxBodyChars == 0 {
		c.Extraction.MaxBodyChars = defaultMaxBodyChars
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// normalizeList lowercases, trims, and de-duplicates entries while keeping order.
func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		normalized := strings.ToLower(strings.TrimSpace(value))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}
