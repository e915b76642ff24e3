package press

import (
	"strings"
	"time"

	"pressdesk/internal/textutil"
)

// MaxItems is the documented history capacity.
const MaxItems = 50

// DateLayout is the calendar date format used for air dates.
const DateLayout = "2006-01-02"

// Item is one structured announcement extracted from a press email.
type Item struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Channel     string    `json:"channel"`
	AirDate     string    `json:"air_date"`
	AirTime     *string   `json:"air_time"`
	SeasonStart bool      `json:"season_start"`
	Summary     string    `json:"summary,omitempty"`
	FullText    string    `json:"full_text,omitempty"`
	CapturedAt  time.Time `json:"captured_at"`
}

// DeriveID returns lower(channel)-lower(alnum(title))-air_date.
func DeriveID(item Item) string {
	channel := strings.ToLower(strings.TrimSpace(item.Channel))
	title := strings.ToLower(textutil.AlphaNumeric(item.Title))
	return channel + "-" + title + "-" + strings.TrimSpace(item.AirDate)
}

// HasAirTime reports whether the item carries a broadcast time.
func (i Item) HasAirTime() bool {
	return i.AirTime != nil && *i.AirTime != ""
}

// Body returns whichever text variant the item carries.
func (i Item) Body() string {
	return textutil.Ternary(i.Summary != "", i.Summary, i.FullText)
}
