package repository

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/minutely/consult-server/internal/database"
	"github.com/minutely/consult-server/internal/model"
)

// setupTestDB connects to TEST_DATABASE_URL and resets every table. Run
// `make test-integration` to start a throwaway Postgres and point these tests at it.
func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set; run make test-integration")
	}
	db, err := database.Connect(url)
	require.NoError(t, err)
	require.NoError(t, db.Migrate())

	_, err = db.Exec(`TRUNCATE ledger_entries, withdrawal_requests, payout_methods, sessions, wallets, providers, accounts CASCADE`)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })
	return db
}

func seedAccount(t *testing.T, db *database.DB, role model.Role) string {
	t.Helper()
	id := uuid.NewString()
	_, err := db.Exec(`INSERT INTO accounts (id, role) VALUES ($1, $2)`, id, role)
	require.NoError(t, err)
	return id
}

func seedProvider(t *testing.T, db *database.DB, rate string) string {
	t.Helper()
	id := seedAccount(t, db, model.RoleProvider)
	_, err := db.Exec(`
		INSERT INTO providers (id, display_name, rate_per_minute, online, approved)
		VALUES ($1, 'Test Provider', $2, TRUE, TRUE)
	`, id, rate)
	require.NoError(t, err)
	return id
}

func seedWallet(t *testing.T, db *database.DB, ownerID string, balance int64) {
	t.Helper()
	_, err := NewWalletRepository(db.DB).Credit(context.Background(), ownerID, decimal.NewFromInt(balance))
	require.NoError(t, err)
}
