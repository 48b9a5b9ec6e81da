package seasonality

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alejandrodnm/cardplanner/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlCalendar = `
events:
  - name: Christmas
    type: holiday
    date: "2025-12-25"
  - name: Commander Legends
    type: COMMANDER_PRODUCT
    date: "2025-11-14"
    tags: [commander_staple]
reprints:
  - card_id: sol-ring
    date: "2025-08-01"
`

const tomlCalendar = `
[[events]]
name = "Modern B&R"
type = "BAN_ANNOUNCEMENT"
date = "2025-03-10"
formats = ["modern"]

[[reprints]]
card_id = "thoughtseize"
date = "2025-02-01"
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile_YAML(t *testing.T) {
	cfg, err := LoadFile(writeFile(t, "calendar.yaml", yamlCalendar))
	require.NoError(t, err)

	require.Len(t, cfg.Events, 2)
	assert.Equal(t, domain.EventHoliday, cfg.Events[0].Type)
	assert.Equal(t, day("2025-12-25"), cfg.Events[0].Date)
	assert.Equal(t, []string{"commander_staple"}, cfg.Events[1].Tags)

	d, ok := cfg.ReprintDate("sol-ring")
	require.True(t, ok)
	assert.Equal(t, day("2025-08-01"), d)
}

func TestLoadFile_TOML(t *testing.T) {
	cfg, err := LoadFile(writeFile(t, "calendar.toml", tomlCalendar))
	require.NoError(t, err)

	require.Len(t, cfg.Events, 1)
	assert.Equal(t, domain.EventBanAnnouncement, cfg.Events[0].Type)
	assert.Equal(t, []string{"modern"}, cfg.Events[0].Formats)
	require.Len(t, cfg.Reprints, 1)
	assert.Equal(t, "thoughtseize", cfg.Reprints[0].CardID)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("events:\n  - name: x\n    type: holiday\n    date: tomorrow\n"), ".yaml")
	assert.Error(t, err)

	_, err = Parse([]byte("events:\n  - name: x\n    type: eclipse\n    date: \"2025-01-01\"\n"), ".yaml")
	assert.ErrorContains(t, err, "unknown type")

	_, err = Parse([]byte("{}"), ".json")
	assert.ErrorContains(t, err, "unsupported")
}

func TestService_MemoizesAndInvalidates(t *testing.T) {
	path := writeFile(t, "calendar.yaml", yamlCalendar)
	svc := NewService(path)

	f, err := svc.Factor(Card{ID: "x"}, day("2025-12-20"))
	require.NoError(t, err)
	assert.Equal(t, 1.2, f)

	_, err = svc.Config()
	require.NoError(t, err)
	assert.Equal(t, 1, svc.loadCount(), "second call served from cache")

	require.NoError(t, os.WriteFile(path, []byte("events: []\n"), 0o644))
	f, err = svc.Factor(Card{ID: "x"}, day("2025-12-20"))
	require.NoError(t, err)
	assert.Equal(t, 1.2, f, "stale until invalidated")

	svc.Invalidate()
	f, err = svc.Factor(Card{ID: "x"}, day("2025-12-20"))
	require.NoError(t, err)
	assert.Equal(t, 1.0, f)
	assert.Equal(t, 2, svc.loadCount())
}

func TestService_EmptyPath(t *testing.T) {
	svc := NewService("")
	f, err := svc.Factor(Card{ID: "x"}, day("2025-12-20"))
	require.NoError(t, err)
	assert.Equal(t, 1.0, f)
}

func TestService_MissingFile(t *testing.T) {
	svc := NewService(filepath.Join(t.TempDir(), "missing.yaml"))
	f, err := svc.Factor(Card{ID: "x"}, day("2025-12-20"))
	assert.Error(t, err)
	assert.Equal(t, 1.0, f)
}

func TestService_StaticBreakdown(t *testing.T) {
	svc := NewStaticService(calendar())
	b, err := svc.Breakdown(Card{ID: "sol-ring"}, day("2025-08-02"))
	require.NoError(t, err)
	assert.Equal(t, 0.6, b.ReprintDampening)
	assert.Equal(t, []string{"Reprint 2025-08-01"}, b.ActiveEvents)
}

func TestService_WatchInvalidatesOnWrite(t *testing.T) {
	path := writeFile(t, "calendar.yaml", yamlCalendar)
	svc := NewService(path)
	_, err := svc.Config()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Watch(ctx) }()

	// give the watcher time to register before writing
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("events: []\n"), 0o644))

	assert.Eventually(t, func() bool {
		cfg, err := svc.Config()
		return err == nil && len(cfg.Events) == 0
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
