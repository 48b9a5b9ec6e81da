package seasonality

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alejandrodnm/cardplanner/internal/domain"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// calendarFile is the on-disk layout shared by the YAML and TOML formats.
// Dates are YYYY-MM-DD strings.
type calendarFile struct {
	Events   []eventEntry   `yaml:"events" toml:"events"`
	Reprints []reprintEntry `yaml:"reprints" toml:"reprints"`
}

type eventEntry struct {
	Name    string   `yaml:"name" toml:"name"`
	Type    string   `yaml:"type" toml:"type"`
	Date    string   `yaml:"date" toml:"date"`
	Tags    []string `yaml:"tags" toml:"tags"`
	Formats []string `yaml:"formats" toml:"formats"`
}

type reprintEntry struct {
	CardID string `yaml:"card_id" toml:"card_id"`
	Date   string `yaml:"date" toml:"date"`
}

// LoadFile reads a calendar from a YAML (.yaml, .yml) or TOML (.toml) file.
func LoadFile(path string) (domain.SeasonalityConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.SeasonalityConfig{}, fmt.Errorf("seasonality.LoadFile: read %q: %w", path, err)
	}
	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return domain.SeasonalityConfig{}, fmt.Errorf("seasonality.LoadFile: %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a calendar; ext selects the format.
func Parse(data []byte, ext string) (domain.SeasonalityConfig, error) {
	var raw calendarFile
	switch strings.ToLower(ext) {
	case ".toml":
		if err := toml.Unmarshal(data, &raw); err != nil {
			return domain.SeasonalityConfig{}, fmt.Errorf("parse TOML: %w", err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return domain.SeasonalityConfig{}, fmt.Errorf("parse YAML: %w", err)
		}
	default:
		return domain.SeasonalityConfig{}, fmt.Errorf("unsupported calendar format %q", ext)
	}
	return raw.toDomain()
}

func (f calendarFile) toDomain() (domain.SeasonalityConfig, error) {
	var cfg domain.SeasonalityConfig
	for _, e := range f.Events {
		d, err := time.Parse(time.DateOnly, e.Date)
		if err != nil {
			return cfg, fmt.Errorf("event %q: date: %w", e.Name, err)
		}
		t := domain.EventType(strings.ToUpper(e.Type))
		switch t {
		case domain.EventCommanderProduct, domain.EventHoliday, domain.EventBanAnnouncement, domain.EventSetRelease:
		default:
			return cfg, fmt.Errorf("event %q: unknown type %q", e.Name, e.Type)
		}
		cfg.Events = append(cfg.Events, domain.SeasonalEvent{
			Name: e.Name, Type: t, Date: d, Tags: e.Tags, Formats: e.Formats,
		})
	}
	for _, r := range f.Reprints {
		d, err := time.Parse(time.DateOnly, r.Date)
		if err != nil {
			return cfg, fmt.Errorf("reprint %q: date: %w", r.CardID, err)
		}
		cfg.Reprints = append(cfg.Reprints, domain.ReprintInfo{CardID: r.CardID, Date: d})
	}
	return cfg, nil
}
