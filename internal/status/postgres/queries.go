package postgres

import (
	"github.com/Masterminds/squirrel"
	"github.com/cespare/xxhash/v2"

	"github.com/Sh00ty/host-orchestrator/internal/models"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// lockKey maps an application to the key of its advisory lock.
func lockKey(app models.ApplicationID) int64 {
	return int64(xxhash.Sum64String("host-orchestrator/" + string(app)))
}

func selectHostStatusesQuery(app models.ApplicationID) (string, []any, error) {
	return psql.
		Select("hostname", "status").
		From(hostStatusTable).
		Where(squirrel.Eq{"application": string(app)}).
		ToSql()
}

func selectHostStatusQuery(app models.ApplicationID, host models.HostName) (string, []any, error) {
	return psql.
		Select("status").
		From(hostStatusTable).
		Where(squirrel.Eq{
			"application": string(app),
			"hostname":    string(host),
		}).
		ToSql()
}

func selectApplicationStatusQuery(app models.ApplicationID) (string, []any, error) {
	return psql.
		Select("status").
		From(applicationStatusTable).
		Where(squirrel.Eq{"application": string(app)}).
		ToSql()
}

func upsertHostStatusQuery(app models.ApplicationID, host models.HostName, status models.HostStatus) (string, []any, error) {
	if status == models.NoRemarks {
		return psql.
			Delete(hostStatusTable).
			Where(squirrel.Eq{
				"application": string(app),
				"hostname":    string(host),
			}).
			ToSql()
	}
	return psql.
		Insert(hostStatusTable).
		Columns("application", "hostname", "status").
		Values(string(app), string(host), string(status)).
		Suffix("on conflict (application, hostname) do update set status = excluded.status, updated_at = now()").
		ToSql()
}

func upsertApplicationStatusQuery(app models.ApplicationID, status models.ApplicationStatus) (string, []any, error) {
	if status == models.ApplicationNoRemarks {
		return psql.
			Delete(applicationStatusTable).
			Where(squirrel.Eq{"application": string(app)}).
			ToSql()
	}
	return psql.
		Insert(applicationStatusTable).
		Columns("application", "status").
		Values(string(app), string(status)).
		Suffix("on conflict (application) do update set status = excluded.status, updated_at = now()").
		ToSql()
}
