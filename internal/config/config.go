package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains file and directory locations.
type Paths struct {
	StoreFile string `toml:"store_file"`
	StateDir  string `toml:"state_dir"`
	LogDir    string `toml:"log_dir"`
}

// Mailbox contains configuration for the message source.
type Mailbox struct {
	Provider             string `toml:"provider"` // "imap" or "gmail"
	IMAPServer           string `toml:"imap_server"`
	Username             string `toml:"username"`
	Password             string `toml:"password"`
	Folder               string `toml:"folder"`
	Window               int    `toml:"window"`
	GmailCredentialsFile string `toml:"gmail_credentials_file"`
	GmailTokenFile       string `toml:"gmail_token_file"`
	TimeoutSeconds       int    `toml:"timeout_seconds"`
}

// LLM contains the extraction service connection settings.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Relevance contains the admission filter lists.
type Relevance struct {
	TrustedDomains []string `toml:"trusted_domains"`
	Keywords       []string `toml:"keywords"`
}

// Extraction contains the request shaping parameters.
type Extraction struct {
	// Mode selects the free-text variant stored with each item: "summary" or "full_text".
	Mode         string `toml:"mode"`
	MaxBodyChars int    `toml:"max_body_chars"`
}

// Store contains retention settings for the history file.
type Store struct {
	MaxItems int `toml:"max_items"`
}

// Ledger contains settings for the processed-message history database.
type Ledger struct {
	Enabled bool `toml:"enabled"`
	// SkipProcessed skips the extraction call for messages whose outcome was
	// already final (valid or ignored) in an earlier run.
	SkipProcessed bool `toml:"skip_processed"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Watch contains configuration for the periodic scan loop.
type Watch struct {
	IntervalMinutes int `toml:"interval_minutes"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for pressdesk.
//
// Configuration sections by subsystem:
//   - Paths: store file, state directory, log directory
//   - Mailbox: IMAP or Gmail API message source
//   - LLM: OpenAI-compatible extraction service
//   - Relevance: trusted sender domains and subject keywords
//   - Extraction: summary/full_text mode and body excerpt bound
//   - Store: retention cap for the history file
//   - Ledger: processed-message history
//   - Notifications: ntfy push notification settings
//   - Watch: periodic scan interval
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Mailbox       Mailbox       `toml:"mailbox"`
	LLM           LLM           `toml:"llm"`
	Relevance     Relevance     `toml:"relevance"`
	Extraction    Extraction    `toml:"extraction"`
	Store         Store         `toml:"store"`
	Ledger        Ledger        `toml:"ledger"`
	Notifications Notifications `toml:"notifications"`
	Watch         Watch         `toml:"watch"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("pressdesk.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the pipeline writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StateDir, filepath.Dir(c.Paths.StoreFile)}
	if strings.TrimSpace(c.Paths.LogDir) != "" {
		dirs = append(dirs, c.Paths.LogDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath returns the path of the single-runner lock guarding the store file.
func (c *Config) LockPath() string {
	return c.Paths.StoreFile + ".lock"
}

// LedgerPath returns the SQLite database path for the processed-message ledger.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "ledger.db")
}

// HasMailboxCredentials reports whether the configured provider has what it needs to connect.
func (c *Config) HasMailboxCredentials() bool {
	switch c.Mailbox.Provider {
	case ProviderGmail:
		_, err := os.Stat(c.Mailbox.GmailCredentialsFile)
		return err == nil
	default:
		return c.Mailbox.Username != "" && c.Mailbox.Password != ""
	}
}

// HasLLMCredentials reports whether an extraction service API key is configured.
func (c *Config) HasLLMCredentials() bool {
	return strings.TrimSpace(c.LLM.APIKey) != ""
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains the extraction service connection settings.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// GetLLM returns the extraction service connection settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		Model:          strings.TrimSpace(c.LLM.Model),
		Referer:        strings.TrimSpace(c.LLM.Referer),
		Title:          strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
	}
}
