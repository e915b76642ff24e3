package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pressdesk/internal/logging"
	"pressdesk/internal/mailbox"
)

// Completer is the subset of the LLM client used for extraction.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ServiceError reports a failed call to the extraction service for one
// message. The run continues with the next message.
type ServiceError struct {
	MessageKey string
	Err        error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("extraction service failed for %s: %v", e.MessageKey, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// IsServiceError reports whether err is a *ServiceError.
func IsServiceError(err error) bool {
	var svcErr *ServiceError
	return errors.As(err, &svcErr)
}

// Service couples request construction, the service call and validation.
type Service struct {
	completer    Completer
	mode         Mode
	maxBodyChars int
	now          func() time.Time
	logger       *slog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source used for reference and capture times.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs an extraction service.
func NewService(completer Completer, mode Mode, maxBodyChars int, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		completer:    completer,
		mode:         mode,
		maxBodyChars: maxBodyChars,
		now:          time.Now,
		logger:       logging.NewComponentLogger(logger, "extraction"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Extract sends msg to the extraction service and validates the answer.
// A non-nil error is always a *ServiceError or a context error.
func (s *Service) Extract(ctx context.Context, msg mailbox.Message) (Outcome, error) {
	now := s.now()
	req := BuildRequest(msg, now, s.mode, s.maxBodyChars)
	if req.Truncated {
		s.logger.Debug("message body truncated",
			logging.String(logging.FieldMessageKey, msg.Key),
			logging.Int("max_body_chars", s.maxBodyChars))
	}

	raw, err := s.completer.CompleteJSON(ctx, req.SystemPrompt(), req.UserPrompt())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &ServiceError{MessageKey: msg.Key, Err: err}
	}

	outcome := Validate(raw, s.mode, now)
	if invalid, ok := outcome.(Invalid); ok {
		s.logger.Debug("extraction response rejected",
			logging.String(logging.FieldMessageKey, msg.Key),
			logging.String("reason", invalid.Reason),
			logging.Int("response_chars", len(raw)))
	}
	return outcome, nil
}
