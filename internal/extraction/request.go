package extraction

import (
	"fmt"
	"strings"
	"time"

	"pressdesk/internal/config"
	"pressdesk/internal/mailbox"
	"pressdesk/internal/press"
	"pressdesk/internal/textutil"
)

// Mode selects which text variant the extracted item carries.
type Mode string

const (
	ModeSummary  Mode = config.ModeSummary
	ModeFullText Mode = config.ModeFullText
)

// DefaultMaxBodyChars bounds the message body sent to the service.
const DefaultMaxBodyChars = 3500

// ParseMode maps a configured mode name to a Mode, defaulting to ModeSummary.
func ParseMode(value string) Mode {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(ModeFullText), "full-text", "fulltext":
		return ModeFullText
	default:
		return ModeSummary
	}
}

// Request is everything the extraction service sees for one message.
type Request struct {
	Message   mailbox.Message
	Reference time.Time
	Mode      Mode
	// Body is the message body truncated to the configured rune budget.
	Body      string
	Truncated bool
}

// BuildRequest assembles the extraction request for msg. reference anchors
// relative dates ("next Tuesday") in the message.
func BuildRequest(msg mailbox.Message, reference time.Time, mode Mode, maxBodyChars int) Request {
	if maxBodyChars <= 0 {
		maxBodyChars = DefaultMaxBodyChars
	}
	body := textutil.TruncateRunes(msg.Body, maxBodyChars)
	return Request{
		Message:   msg,
		Reference: reference,
		Mode:      mode,
		Body:      body,
		Truncated: len(body) < len(msg.Body),
	}
}

// SystemPrompt describes the task and the two permitted response shapes.
func (r Request) SystemPrompt() string {
	textField := `"summary": an engaging summary of at most two sentences, in the language of the email`
	if r.Mode == ModeFullText {
		textField = `"full_text": the complete announcement text, cleaned of greetings, signatures and contact details`
	}

	var b strings.Builder
	b.WriteString("You analyse press releases from television broadcasters.\n")
	b.WriteString("Decide whether the email announces a specific TV programme or broadcast.\n\n")
	b.WriteString("If it does not (security alerts, social notifications, newsletters, advertising, spam), respond with exactly:\n")
	b.WriteString(`{"ignore": true}` + "\n\n")
	b.WriteString("Otherwise respond with one JSON object with these fields:\n")
	b.WriteString(`- "title": the exact programme title` + "\n")
	b.WriteString(`- "channel": the broadcasting channel (for example VTM, VRT 1, Play4, Canvas)` + "\n")
	b.WriteString(`- "air_date": the broadcast date as YYYY-MM-DD; resolve relative or partial dates such as "dinsdag 17 februari" against the reference date and the email date` + "\n")
	b.WriteString(`- "air_time": the broadcast time as HH:MM (24h), or null when unknown` + "\n")
	b.WriteString(`- "season_start": true when this is the start of a new season, otherwise false` + "\n")
	b.WriteString("- " + textField + "\n\n")
	b.WriteString("Respond with JSON only. No prose, no code fences.")
	return b.String()
}

// UserPrompt renders the message and its context.
func (r Request) UserPrompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Reference date: %s\n", r.Reference.Format(press.DateLayout))
	if date := strings.TrimSpace(r.Message.Date); date != "" {
		fmt.Fprintf(&b, "Email date: %s\n", date)
	}
	if sender := strings.TrimSpace(r.Message.Sender); sender != "" {
		fmt.Fprintf(&b, "From: %s\n", sender)
	}
	fmt.Fprintf(&b, "Subject: %s\n\n", r.Message.Subject)
	b.WriteString(r.Body)
	return b.String()
}
