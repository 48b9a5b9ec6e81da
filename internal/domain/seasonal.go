package domain

import "time"

// EventType is the kind of calendar event that moves card prices.
type EventType string

const (
	EventCommanderProduct EventType = "COMMANDER_PRODUCT"
	EventHoliday          EventType = "HOLIDAY"
	EventBanAnnouncement  EventType = "BAN_ANNOUNCEMENT"
	EventSetRelease       EventType = "SET_RELEASE"
)

// SeasonalEvent is a dated event with optional tag and format scoping.
type SeasonalEvent struct {
	Name    string
	Type    EventType
	Date    time.Time
	Tags    []string
	Formats []string
}

// ReprintInfo records when a card was reprinted.
type ReprintInfo struct {
	CardID string
	Date   time.Time
}

// SeasonalityConfig is the event calendar plus the reprint registry.
type SeasonalityConfig struct {
	Events   []SeasonalEvent
	Reprints []ReprintInfo
}

// ReprintDate returns the registered reprint date of a card.
func (c SeasonalityConfig) ReprintDate(cardID string) (time.Time, bool) {
	for _, r := range c.Reprints {
		if r.CardID == cardID {
			return r.Date, true
		}
	}
	return time.Time{}, false
}
