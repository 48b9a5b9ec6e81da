// Package seasonality computes date-driven price multipliers for cards.
package seasonality

import (
	"math"
	"strings"
	"time"

	"github.com/alejandrodnm/cardplanner/internal/domain"
)

const (
	CommanderBoost   = 1.3
	HolidayBoost     = 1.2
	ReprintDampening = 0.6
	BanBoost         = 1.5

	MinFactor = 0.5
	MaxFactor = 2.0

	commanderWindowDays = 14
	holidayWindowDays   = 7
	reprintWindowDays   = 30
	banWindowDays       = 7

	TagCommanderStaple = "commander_staple"
	TagAll             = "all"
	reprintTagPrefix   = "reprint:"
)

// Card is the part of a card the calendar cares about.
type Card struct {
	ID      string
	Tags    []string
	Formats []string
}

// CardFromMetrics builds a Card from scoring inputs.
func CardFromMetrics(m domain.CardMetrics) Card {
	return Card{ID: m.CardID, Tags: m.Tags, Formats: m.Formats}
}

// FactorBreakdown exposes every sub-factor of a seasonality multiplier.
type FactorBreakdown struct {
	CommanderBoost   float64  `json:"commander_boost"`
	HolidayBoost     float64  `json:"holiday_boost"`
	ReprintDampening float64  `json:"reprint_dampening"`
	BanBoost         float64  `json:"ban_boost"`
	Factor           float64  `json:"factor"`
	ActiveEvents     []string `json:"active_events"`
}

// Factor returns the seasonality multiplier of a card on a date, in
// [MinFactor, MaxFactor] and rounded to 4 decimals.
func Factor(card Card, date time.Time, cfg domain.SeasonalityConfig) float64 {
	return Breakdown(card, date, cfg).Factor
}

// Breakdown computes the four sub-factors independently, each applied at most
// once from the first matching event, and combines them.
func Breakdown(card Card, date time.Time, cfg domain.SeasonalityConfig) FactorBreakdown {
	b := FactorBreakdown{CommanderBoost: 1, HolidayBoost: 1, ReprintDampening: 1, BanBoost: 1}
	day := truncateDay(date)

	for _, ev := range cfg.Events {
		evDay := truncateDay(ev.Date)
		switch ev.Type {
		case domain.EventCommanderProduct:
			until := daysBetween(day, evDay)
			if b.CommanderBoost == 1 && hasTag(card.Tags, TagCommanderStaple, TagAll) &&
				until > 0 && until <= commanderWindowDays {
				b.CommanderBoost = CommanderBoost
				b.ActiveEvents = append(b.ActiveEvents, ev.Name)
			}
		case domain.EventHoliday:
			until := daysBetween(day, evDay)
			if b.HolidayBoost == 1 && strings.Contains(strings.ToLower(ev.Name), "christmas") &&
				until > 0 && until <= holidayWindowDays {
				b.HolidayBoost = HolidayBoost
				b.ActiveEvents = append(b.ActiveEvents, ev.Name)
			}
		case domain.EventBanAnnouncement:
			since := daysBetween(evDay, day)
			if b.BanBoost == 1 && since >= 0 && since < banWindowDays && banApplies(ev, card) {
				b.BanBoost = BanBoost
				b.ActiveEvents = append(b.ActiveEvents, ev.Name)
			}
		}
	}

	if reprint, ok := reprintDate(card, cfg); ok {
		since := daysBetween(truncateDay(reprint), day)
		if since >= 0 && since < reprintWindowDays {
			b.ReprintDampening = ReprintDampening
			b.ActiveEvents = append(b.ActiveEvents, "Reprint "+reprint.Format(time.DateOnly))
		}
	}

	raw := b.CommanderBoost * b.HolidayBoost * b.ReprintDampening * b.BanBoost
	b.Factor = domain.Round4(math.Max(MinFactor, math.Min(MaxFactor, raw)))
	return b
}

// banApplies gates a ban boost by format legality when the event lists
// formats, else by tag match.
func banApplies(ev domain.SeasonalEvent, card Card) bool {
	if len(ev.Formats) > 0 {
		for _, f := range ev.Formats {
			if hasTag(card.Formats, f) {
				return true
			}
		}
		return false
	}
	for _, tag := range ev.Tags {
		if strings.EqualFold(tag, TagAll) || hasTag(card.Tags, tag) {
			return true
		}
	}
	return false
}

func reprintDate(card Card, cfg domain.SeasonalityConfig) (time.Time, bool) {
	if d, ok := cfg.ReprintDate(card.ID); ok {
		return d, true
	}
	for _, tag := range card.Tags {
		if !strings.HasPrefix(tag, reprintTagPrefix) {
			continue
		}
		d, err := time.Parse(time.DateOnly, strings.TrimPrefix(tag, reprintTagPrefix))
		if err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

func hasTag(tags []string, want ...string) bool {
	for _, t := range tags {
		for _, w := range want {
			if strings.EqualFold(t, w) {
				return true
			}
		}
	}
	return false
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween returns whole days from a to b; both must be day-truncated.
func daysBetween(a, b time.Time) int {
	return int(math.Round(b.Sub(a).Hours() / 24))
}
