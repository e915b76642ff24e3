package mailbox

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"pressdesk/internal/config"
	"pressdesk/internal/logging"
)

const gmailUser = "me"

// ErrGmailNotAuthorized means no OAuth token has been stored yet.
var ErrGmailNotAuthorized = errors.New("gmail token missing; run `pressdesk auth gmail`")

// GmailSource lists the newest messages through the Gmail REST API and
// fetches them in raw RFC 822 form.
type GmailSource struct {
	credentialsFile string
	tokenFile       string
	folder          string
	logger          *slog.Logger

	newService func(ctx context.Context) (*gmail.Service, error)
}

// GmailOption customizes a GmailSource.
type GmailOption func(*GmailSource)

// WithGmailClientOptions builds the Gmail service from explicit client
// options instead of the stored OAuth token.
func WithGmailClientOptions(opts ...option.ClientOption) GmailOption {
	return func(s *GmailSource) {
		s.newService = func(ctx context.Context) (*gmail.Service, error) {
			return gmail.NewService(ctx, opts...)
		}
	}
}

// NewGmailSource constructs a Gmail source from mailbox settings.
func NewGmailSource(cfg config.Mailbox, logger *slog.Logger, opts ...GmailOption) *GmailSource {
	folder := strings.TrimSpace(cfg.Folder)
	if folder == "" {
		folder = "INBOX"
	}
	s := &GmailSource{
		credentialsFile: cfg.GmailCredentialsFile,
		tokenFile:       cfg.GmailTokenFile,
		folder:          folder,
		logger:          logging.NewComponentLogger(logger, "mailbox.gmail"),
	}
	s.newService = s.oauthService
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Recent implements Source.
func (s *GmailSource) Recent(ctx context.Context, n int) ([]Message, error) {
	if n <= 0 {
		return nil, nil
	}
	srv, err := s.newService(ctx)
	if err != nil {
		return nil, unavailable("gmail service", err)
	}

	query := fmt.Sprintf("in:%s -in:draft", strings.ToLower(s.folder))
	list, err := srv.Users.Messages.List(gmailUser).MaxResults(int64(n)).Q(query).Context(ctx).Do()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, unavailable("gmail list", err)
	}
	if len(list.Messages) == 0 {
		s.logger.Info("mailbox is empty", logging.String("query", query))
		return nil, nil
	}

	messages := make([]Message, 0, len(list.Messages))
	for _, ref := range list.Messages {
		full, err := srv.Users.Messages.Get(gmailUser, ref.Id).Format("raw").Context(ctx).Do()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			logging.WarnWithContext(s.logger, "failed to fetch gmail message", "gmail_get_failed",
				logging.String("gmail_id", ref.Id),
				logging.Error(err),
				logging.String(logging.FieldImpact, "message not processed"))
			continue
		}
		raw, err := decodeRaw(full.Raw)
		if err != nil {
			logging.WarnWithContext(s.logger, "gmail message has invalid raw payload", "gmail_decode_failed",
				logging.String("gmail_id", ref.Id),
				logging.Error(err),
				logging.String(logging.FieldImpact, "message not processed"))
			continue
		}
		msg, err := ParseMessage(raw)
		if err != nil {
			logging.WarnWithContext(s.logger, "skipping unparseable message", "message_parse_failed",
				logging.String("gmail_id", ref.Id),
				logging.Error(err),
				logging.String(logging.FieldImpact, "message not processed"))
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func decodeRaw(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	if data, err := base64.URLEncoding.DecodeString(value); err == nil {
		return data, nil
	}
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(value, "="))
}

func (s *GmailSource) oauthService(ctx context.Context) (*gmail.Service, error) {
	oauthCfg, err := loadOAuthConfig(s.credentialsFile)
	if err != nil {
		return nil, err
	}
	tok, err := tokenFromFile(s.tokenFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrGmailNotAuthorized
		}
		return nil, fmt.Errorf("read gmail token: %w", err)
	}
	ts := &persistingTokenSource{
		base:   oauthCfg.TokenSource(ctx, tok),
		path:   s.tokenFile,
		last:   tok.AccessToken,
		logger: s.logger,
	}
	return gmail.NewService(ctx, option.WithTokenSource(ts))
}

// AuthorizeGmail runs the interactive OAuth consent flow: it prints the
// consent URL to out, reads the authorization code from in and stores the
// resulting token at cfg.GmailTokenFile.
func AuthorizeGmail(ctx context.Context, cfg config.Mailbox, in io.Reader, out io.Writer) error {
	oauthCfg, err := loadOAuthConfig(cfg.GmailCredentialsFile)
	if err != nil {
		return err
	}
	authURL := oauthCfg.AuthCodeURL("pressdesk", oauth2.AccessTypeOffline)
	fmt.Fprintf(out, "Open the following link in your browser, then paste the authorization code:\n%s\n> ", authURL)

	code, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read authorization code: %w", err)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return errors.New("authorization code required")
	}
	tok, err := oauthCfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}
	if err := saveToken(cfg.GmailTokenFile, tok); err != nil {
		return err
	}
	fmt.Fprintf(out, "Token saved to %s\n", cfg.GmailTokenFile)
	return nil
}

func loadOAuthConfig(path string) (*oauth2.Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gmail credentials: %w", err)
	}
	oauthCfg, err := google.ConfigFromJSON(b, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse gmail credentials: %w", err)
	}
	return oauthCfg, nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return tok, nil
}

func saveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("save gmail token: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("encode gmail token: %w", err)
	}
	return f.Close()
}

// persistingTokenSource writes refreshed tokens back to disk so the refresh
// token keeps working across runs.
type persistingTokenSource struct {
	base   oauth2.TokenSource
	path   string
	last   string
	logger *slog.Logger
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken != p.last {
		p.last = tok.AccessToken
		if err := saveToken(p.path, tok); err != nil {
			p.logger.Warn("failed to persist refreshed gmail token",
				logging.Error(err),
				logging.String(logging.FieldEventType, "gmail_token_save_failed"),
				logging.String(logging.FieldErrorHint, "check permissions on the token file"))
		}
	}
	return tok, nil
}
