// Package snapshot reads the inputs of a planning run from disk.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/cardplanner/internal/domain"
)

// LoadFile reads a snapshot from a YAML (.yaml, .yml) or JSON (.json) file.
func LoadFile(path string) (domain.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("snapshot.LoadFile: read %q: %w", path, err)
	}
	snap, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("snapshot.LoadFile: %q: %w", path, err)
	}
	return snap, nil
}

// Parse decodes a snapshot; ext selects the format. Unknown fields are
// rejected so typos in hand-written snapshots surface early.
func Parse(data []byte, ext string) (domain.Snapshot, error) {
	var snap domain.Snapshot
	switch strings.ToLower(ext) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&snap); err != nil {
			return domain.Snapshot{}, fmt.Errorf("parse JSON: %w", err)
		}
	case ".yaml", ".yml", "":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&snap); err != nil {
			return domain.Snapshot{}, fmt.Errorf("parse YAML: %w", err)
		}
	default:
		return domain.Snapshot{}, fmt.Errorf("unsupported snapshot format %q", ext)
	}
	if err := validate(snap); err != nil {
		return domain.Snapshot{}, err
	}
	return snap, nil
}

func validate(s domain.Snapshot) error {
	for i, d := range s.Demands {
		if d.CardID == "" {
			return fmt.Errorf("demand %d: card_id is required", i)
		}
		if d.Quantity < 0 {
			return fmt.Errorf("demand %s: negative quantity %d", d.CardID, d.Quantity)
		}
	}
	if s.Budget != nil && s.Budget.MaxTotalSpend < 0 {
		return fmt.Errorf("budget: negative max_total_spend %.2f", s.Budget.MaxTotalSpend)
	}
	return domain.ValidateDirectives(s.Directives)
}
