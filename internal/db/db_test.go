package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConnectSQLiteAppliesSchema(t *testing.T) {
	ctx := context.Background()
	database, err := Connect(ctx, DriverSQLite, filepath.Join(t.TempDir(), "social.db"), zap.NewNop())
	require.NoError(t, err)
	defer database.Close()

	var tables []string
	require.NoError(t, database.SelectContext(ctx, &tables,
		`SELECT name FROM sqlite_master WHERE type='table' ORDER BY name`))
	assert.Subset(t, tables, []string{"friend_requests", "friendships", "users"})
}

func TestConnectIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "social.db")

	first, err := Connect(ctx, DriverSQLite, path, nil)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Connect(ctx, DriverSQLite, path, nil)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestSelfRequestRejectedBySchema(t *testing.T) {
	ctx := context.Background()
	database, err := Connect(ctx, DriverSQLite, filepath.Join(t.TempDir(), "social.db"), nil)
	require.NoError(t, err)
	defer database.Close()

	_, err = database.ExecContext(ctx, `INSERT INTO users (id, full_name, email, created_at) VALUES ('u1', 'U', 'u@example.com', CURRENT_TIMESTAMP)`)
	require.NoError(t, err)

	_, err = database.ExecContext(ctx, `INSERT INTO friend_requests (id, sender_id, recipient_id, pair_key, status, created_at)
		VALUES ('r1', 'u1', 'u1', 'u1:u1', 'pending', CURRENT_TIMESTAMP)`)
	require.Error(t, err)
}
