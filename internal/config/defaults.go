package config

const (
	defaultConfigPath          = "~/.config/pressdesk/config.toml"
	defaultStoreFile           = "~/.local/share/pressdesk/press.json"
	defaultStateDir            = "~/.local/share/pressdesk"
	defaultProvider            = ProviderIMAP
	defaultIMAPServer          = "imap.gmail.com:993"
	defaultFolder              = "INBOX"
	defaultWindow              = 20
	defaultGmailCredentials    = "~/.config/pressdesk/credentials.json"
	defaultGmailToken          = "~/.config/pressdesk/token.json"
	defaultMailboxTimeout      = 30
	defaultLLMBaseURL          = "https://api.openai.com/v1/chat/completions"
	defaultLLMModel            = "gpt-4o-mini"
	defaultLLMReferer          = "https://github.com/pressdesk/pressdesk"
	defaultLLMTitle            = "pressdesk"
	defaultLLMTimeoutSeconds   = 60
	defaultMaxBodyChars        = 3500
	defaultMaxItems            = 50
	defaultNotifyTimeout       = 10
	defaultWatchIntervalMinute = 60
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Mailbox providers.
const (
	ProviderIMAP  = "imap"
	ProviderGmail = "gmail"
)

// Extraction modes.
const (
	ModeSummary  = "summary"
	ModeFullText = "full_text"
)

// DefaultTrustedDomains lists sender domains known to send program press releases.
func DefaultTrustedDomains() []string {
	return []string{
		"vrt.be",
		"dpgmedia.be",
		"medialaan.be",
		"vtm.be",
		"play.tv",
		"sbs.be",
		"canvas.be",
	}
}

// DefaultKeywords lists subject keywords that admit messages from unlisted senders.
func DefaultKeywords() []string {
	return []string{
		"vtm", "vrt", "play", "canvas", "ketnet", "eén",
		"persbericht", "press release", "telefacts", "programma",
		"uitzending", "broadcast", "start", "seizoen", "season",
		"aflevering", "episode", "nieuws", "news", "tv",
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StoreFile: defaultStoreFile,
			StateDir:  defaultStateDir,
		},
		Mailbox: Mailbox{
			Provider:             defaultProvider,
			IMAPServer:           defaultIMAPServer,
			Folder:               defaultFolder,
			Window:               defaultWindow,
			GmailCredentialsFile: defaultGmailCredentials,
			GmailTokenFile:       defaultGmailToken,
			TimeoutSeconds:       defaultMailboxTimeout,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Relevance: Relevance{
			TrustedDomains: DefaultTrustedDomains(),
			Keywords:       DefaultKeywords(),
		},
		Extraction: Extraction{
			Mode:         ModeSummary,
			MaxBodyChars: defaultMaxBodyChars,
		},
		Store: Store{
			MaxItems: defaultMaxItems,
		},
		Ledger: Ledger{
			Enabled:       true,
			SkipProcessed: true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
		Watch: Watch{
			IntervalMinutes: defaultWatchIntervalMinute,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
