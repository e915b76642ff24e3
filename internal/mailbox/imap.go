package mailbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"pressdesk/internal/config"
	"pressdesk/internal/logging"
)

const defaultIMAPTimeout = 30 * time.Second

// IMAPSource reads the newest messages of one folder over IMAPS. The folder
// is selected read-only and bodies are fetched with BODY.PEEK so the \Seen
// flag is never touched.
type IMAPSource struct {
	server   string
	username string
	password string
	folder   string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewIMAPSource constructs an IMAP source from mailbox settings.
func NewIMAPSource(cfg config.Mailbox, logger *slog.Logger) *IMAPSource {
	timeout := defaultIMAPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	server := strings.TrimSpace(cfg.IMAPServer)
	if server != "" && !strings.Contains(server, ":") {
		server += ":993"
	}
	folder := strings.TrimSpace(cfg.Folder)
	if folder == "" {
		folder = "INBOX"
	}
	return &IMAPSource{
		server:   server,
		username: cfg.Username,
		password: cfg.Password,
		folder:   folder,
		timeout:  timeout,
		logger:   logging.NewComponentLogger(logger, "mailbox.imap"),
	}
}

// Recent implements Source.
func (s *IMAPSource) Recent(ctx context.Context, n int) ([]Message, error) {
	if s.username == "" || s.password == "" {
		return nil, unavailable("imap login", errors.New("credentials not configured"))
	}

	dialer := &net.Dialer{Timeout: s.timeout}
	c, err := client.DialWithDialerTLS(dialer, s.server, nil)
	if err != nil {
		return nil, unavailable("imap dial "+s.server, err)
	}
	c.Timeout = s.timeout

	stop := context.AfterFunc(ctx, func() { _ = c.Terminate() })
	defer stop()
	defer func() {
		if err := c.Logout(); err != nil && ctx.Err() == nil {
			s.logger.Debug("imap logout failed", logging.Error(err))
		}
	}()

	if err := c.Login(s.username, s.password); err != nil {
		return nil, unavailable("imap login", err)
	}
	mbox, err := c.Select(s.folder, true)
	if err != nil {
		return nil, unavailable("imap select "+s.folder, err)
	}

	from, to, ok := seqWindow(mbox.Messages, n)
	if !ok {
		s.logger.Info("mailbox is empty", logging.String("folder", s.folder))
		return nil, nil
	}
	s.logger.Debug("fetching recent messages",
		logging.String("folder", s.folder),
		logging.Int64("total", int64(mbox.Messages)),
		logging.Int64("from", int64(from)),
		logging.Int64("to", int64(to)))

	seqset := new(imap.SeqSet)
	seqset.AddRange(from, to)
	section := &imap.BodySectionName{Peek: true}

	fetched := make(chan *imap.Message, to-from+1)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, []imap.FetchItem{imap.FetchUid, section.FetchItem()}, fetched)
	}()

	type rawMessage struct {
		seq  uint32
		body []byte
	}
	var raws []rawMessage
	for msg := range fetched {
		literal := msg.GetBody(section)
		if literal == nil {
			continue
		}
		data, err := io.ReadAll(literal)
		if err != nil {
			s.logger.Warn("failed to read message body",
				logging.Int64("seq", int64(msg.SeqNum)),
				logging.Error(err),
				logging.String(logging.FieldEventType, "imap_body_read_failed"))
			continue
		}
		raws = append(raws, rawMessage{seq: msg.SeqNum, body: data})
	}
	if err := <-done; err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, unavailable("imap fetch", err)
	}

	sort.Slice(raws, func(i, j int) bool { return raws[i].seq > raws[j].seq })

	messages := make([]Message, 0, len(raws))
	for _, raw := range raws {
		msg, err := ParseMessage(raw.body)
		if err != nil {
			logging.WarnWithContext(s.logger, "skipping unparseable message", "message_parse_failed",
				logging.Int64("seq", int64(raw.seq)),
				logging.Error(err),
				logging.String(logging.FieldImpact, "message not processed"))
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// seqWindow returns the sequence range covering the newest n of total
// messages.
func seqWindow(total uint32, n int) (from, to uint32, ok bool) {
	if total == 0 || n <= 0 {
		return 0, 0, false
	}
	to = total
	if uint32(n) >= total {
		return 1, to, true
	}
	return total - uint32(n) + 1, to, true
}

func (s *IMAPSource) String() string {
	return fmt.Sprintf("imap://%s@%s/%s", s.username, s.server, s.folder)
}
