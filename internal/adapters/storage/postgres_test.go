package storage_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/cardplanner/internal/adapters/storage"
	"github.com/alejandrodnm/cardplanner/internal/ports"
)

func TestPostgresLedger_Contract(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	runLedgerContract(t, func(t *testing.T) ports.RunLedger {
		l, err := storage.NewPostgresLedger(context.Background(), dsn)
		require.NoError(t, err)
		t.Cleanup(func() { l.Close() })
		return l
	})
}
