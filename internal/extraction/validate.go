package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"pressdesk/internal/press"
	"pressdesk/internal/services/llm"
)

// Outcome is the result of validating one service response. It is one of
// Ignored, Invalid or Valid.
type Outcome interface {
	outcome()
}

// Ignored means the service judged the message not to be a programme
// announcement.
type Ignored struct{}

// Invalid means the response could not be turned into an item.
type Invalid struct {
	Reason string
}

// Valid carries a fully populated item, including id and captured_at.
type Valid struct {
	Item press.Item
}

func (Ignored) outcome() {}
func (Invalid) outcome() {}
func (Valid) outcome()   {}

// ReasonMalformed is the Invalid reason for responses that are not a JSON object.
const ReasonMalformed = "malformed response"

var (
	titleKeys       = []string{"title", "titel"}
	channelKeys     = []string{"channel", "zender"}
	airDateKeys     = []string{"air_date", "datum", "date"}
	airTimeKeys     = []string{"air_time", "tijd", "time"}
	seasonKeys      = []string{"season_start", "seizoen_start"}
	summaryKeys     = []string{"summary", "samenvatting"}
	fullTextKeys    = []string{"full_text", "volledige_tekst"}
	airTimePattern  = regexp.MustCompile(`^(\d{1,2})\s*[:.hu]\s*(\d{2})(?::\d{2})?$`)
	hourOnlyPattern = regexp.MustCompile(`^(\d{1,2})\s*[hu]$`)
)

// Validate interprets raw as a service response.
func Validate(raw string, mode Mode, capturedAt time.Time) Outcome {
	var fields map[string]json.RawMessage
	if err := llm.DecodeLLMJSON(raw, &fields); err != nil || fields == nil {
		return Invalid{Reason: ReasonMalformed}
	}

	if ignore, ok := lookup(fields, "ignore", "negeer"); ok {
		if flag, err := decodeBool(ignore); err == nil && flag {
			return Ignored{}
		}
	}

	title, reason := requiredString(fields, "title", titleKeys)
	if reason != "" {
		return Invalid{Reason: reason}
	}
	channel, reason := requiredString(fields, "channel", channelKeys)
	if reason != "" {
		return Invalid{Reason: reason}
	}
	airDate, reason := requiredString(fields, "air_date", airDateKeys)
	if reason != "" {
		return Invalid{Reason: reason}
	}
	if _, err := time.Parse(press.DateLayout, airDate); err != nil {
		return Invalid{Reason: fmt.Sprintf("air_date %q is not a calendar date (YYYY-MM-DD)", airDate)}
	}

	item := press.Item{
		Title:      title,
		Channel:    channel,
		AirDate:    airDate,
		AirTime:    normalizeAirTime(optionalString(fields, airTimeKeys)),
		CapturedAt: capturedAt.UTC().Truncate(time.Second),
	}
	if value, ok := lookup(fields, seasonKeys...); ok {
		item.SeasonStart, _ = decodeBool(value)
	}
	switch mode {
	case ModeFullText:
		item.FullText = optionalString(fields, fullTextKeys)
	default:
		item.Summary = optionalString(fields, summaryKeys)
	}
	item.ID = press.DeriveID(item)
	return Valid{Item: item}
}

// lookup returns the first key present with a non-null value.
func lookup(fields map[string]json.RawMessage, keys ...string) (json.RawMessage, bool) {
	for _, key := range keys {
		value, ok := fields[key]
		if !ok {
			continue
		}
		if trimmed := bytes.TrimSpace(value); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
			continue
		}
		return value, true
	}
	return nil, false
}

func requiredString(fields map[string]json.RawMessage, name string, keys []string) (string, string) {
	value, ok := lookup(fields, keys...)
	if !ok {
		return "", "missing " + name
	}
	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return "", name + " must be a string"
	}
	if s = strings.TrimSpace(s); s == "" {
		return "", "missing " + name
	}
	return s, ""
}

func optionalString(fields map[string]json.RawMessage, keys []string) string {
	value, ok := lookup(fields, keys...)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// decodeBool accepts JSON booleans and the common string spellings.
func decodeBool(value json.RawMessage) (bool, error) {
	var b bool
	if err := json.Unmarshal(value, &b); err == nil {
		return b, nil
	}
	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "ja", "1":
		return true, nil
	default:
		return false, nil
	}
}

// normalizeAirTime renders a recognizable broadcast time as HH:MM and drops
// anything else.
func normalizeAirTime(value string) *string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return nil
	}
	var hourText, minuteText string
	if m := airTimePattern.FindStringSubmatch(value); m != nil {
		hourText, minuteText = m[1], m[2]
	} else if m := hourOnlyPattern.FindStringSubmatch(value); m != nil {
		hourText, minuteText = m[1], "00"
	} else {
		return nil
	}
	hour, _ := strconv.Atoi(hourText)
	minute, _ := strconv.Atoi(minuteText)
	if hour > 23 || minute > 59 {
		return nil
	}
	formatted := fmt.Sprintf("%02d:%02d", hour, minute)
	return &formatted
}
