package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/cardplanner/internal/domain"
)

// FileSource serves offers from a YAML or JSON export of a marketplace.
// The file is read on every fetch so edits are picked up between runs.
type FileSource struct {
	name string
	path string
}

// NewFileSource creates a source named name reading path.
func NewFileSource(name, path string) *FileSource {
	return &FileSource{name: name, path: path}
}

// Name returns the marketplace name.
func (s *FileSource) Name() string { return s.name }

// FetchOffers reads the file and returns the offers for cardIDs.
func (s *FileSource) FetchOffers(ctx context.Context, cardIDs []string) ([]domain.Offer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("marketplace.FileSource: read %s: %w", s.path, err)
	}

	var file struct {
		Offers []offerDTO `json:"offers" yaml:"offers"`
	}
	switch strings.ToLower(filepath.Ext(s.path)) {
	case ".json":
		err = json.Unmarshal(data, &file)
	default:
		err = yaml.Unmarshal(data, &file)
	}
	if err != nil {
		return nil, fmt.Errorf("marketplace.FileSource: parse %s: %w", s.path, err)
	}
	return filterCards(mapOffers(s.name, file.Offers), cardIDs), nil
}
