package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sh00ty/host-orchestrator/internal/models"
)

func TestUpsertHostStatusQuery(t *testing.T) {
	sql, args, err := upsertHostStatusQuery("music", "h1", models.AllowedToBeDown)
	require.NoError(t, err)
	assert.Equal(t,
		"INSERT INTO host_status (application,hostname,status) VALUES ($1,$2,$3) "+
			"on conflict (application, hostname) do update set status = excluded.status, updated_at = now()",
		sql,
	)
	assert.Equal(t, []any{"music", "h1", "ALLOWED_TO_BE_DOWN"}, args)
}

func TestNoRemarksDeletesRow(t *testing.T) {
	sql, args, err := upsertHostStatusQuery("music", "h1", models.NoRemarks)
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM host_status WHERE application = $1 AND hostname = $2", sql)
	assert.Equal(t, []any{"music", "h1"}, args)

	sql, args, err = upsertApplicationStatusQuery("music", models.ApplicationNoRemarks)
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM application_status WHERE application = $1", sql)
	assert.Equal(t, []any{"music"}, args)
}

func TestSelectHostStatusesQuery(t *testing.T) {
	sql, args, err := selectHostStatusesQuery("music")
	require.NoError(t, err)
	assert.Equal(t, "SELECT hostname, status FROM host_status WHERE application = $1", sql)
	assert.Equal(t, []any{"music"}, args)
}

func TestLockKeyIsStable(t *testing.T) {
	assert.Equal(t, lockKey("music"), lockKey("music"))
	assert.NotEqual(t, lockKey("music"), lockKey("books"))
}

func TestConnString(t *testing.T) {
	cfg := Config{Host: "db", User: "orch", Password: "secret", Port: 5432, Name: "orchestrator", MaxConns: 4}
	assert.Equal(t,
		"user=orch password=secret host=db port=5432 dbname=orchestrator sslmode=disable pool_max_conns=4",
		cfg.connString(),
	)
}
