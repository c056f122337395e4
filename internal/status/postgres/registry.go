package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	retry "github.com/avast/retry-go/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/Sh00ty/host-orchestrator/internal/models"
	"github.com/Sh00ty/host-orchestrator/internal/status"
	"github.com/Sh00ty/host-orchestrator/internal/status/postgres/pgerror"
)

type Config struct {
	Host         string `envconfig:"DATABASE_HOST,default=127.0.0.1"`
	User         string `envconfig:"DATABASE_USER,default=postgres"`
	Password     string `envconfig:"DATABASE_PASSWORD,optional"`
	Port         uint16 `envconfig:"DATABASE_PORT,default=5432"`
	Name         string `envconfig:"DATABASE_NAME,default=postgres"`
	MaxConns     int    `envconfig:"DATABASE_MAX_CONNS,default=15"`
	PingAttempts uint   `envconfig:"DATABASE_PING_ATTEMPTS,default=5"`
}

func (c Config) connString() string {
	return fmt.Sprintf(
		"user=%s password=%s host=%s port=%d dbname=%s sslmode=disable pool_max_conns=%d",
		c.User, c.Password, c.Host, c.Port, c.Name, c.MaxConns,
	)
}

// Registry stores host statuses in postgres. An application is locked with
// a session advisory lock held on a connection taken out of the pool.
type Registry struct {
	db     *pgxpool.Pool
	logger zerolog.Logger
}

func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.connString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	err = retry.Do(
		func() error {
			return pool.Ping(ctx)
		},
		retry.Context(ctx),
		retry.Attempts(max(cfg.PingAttempts, 1)),
		retry.Delay(500*time.Millisecond),
	)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}
	return pool, nil
}

func NewRegistry(ctx context.Context, cfg Config, logger zerolog.Logger) (*Registry, error) {
	pool, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Registry{
		db:     pool,
		logger: logger.With().Str("component", "postgres-status-registry").Logger(),
	}, nil
}

func (r *Registry) LockApplication(ctx context.Context, app models.ApplicationID) (status.Session, error) {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	_, err = conn.Exec(ctx, "select pg_advisory_lock($1)", lockKey(app))
	if err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to lock application %s: %w", app, err)
	}
	session := &Session{
		conn:   conn,
		app:    app,
		logger: r.logger,
	}
	session.snapshot, err = loadSnapshot(ctx, conn, app)
	if err != nil {
		_ = session.Close(ctx)
		return nil, err
	}
	return session, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func loadSnapshot(ctx context.Context, db querier, app models.ApplicationID) (*status.Snapshot, error) {
	snapshot := status.NewSnapshot()

	sql, args, err := selectHostStatusesQuery(app)
	if err != nil {
		return nil, fmt.Errorf("failed to build host statuses query: %w", err)
	}
	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read host statuses of %s: %w", app, err)
	}
	defer rows.Close()

	for rows.Next() {
		var host, value string
		err = rows.Scan(&host, &value)
		if err != nil {
			return nil, fmt.Errorf("failed to scan host status: %w", err)
		}
		hostStatus, err := models.ParseHostStatus(value)
		if err != nil {
			return nil, fmt.Errorf("bad status of %s: %w", host, err)
		}
		snapshot.SetHost(models.HostName(host), hostStatus)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read host statuses of %s: %w", app, err)
	}

	appStatus, err := readApplicationStatus(ctx, db, app)
	if err != nil {
		return nil, err
	}
	snapshot.SetApplication(appStatus)
	return snapshot, nil
}

func readApplicationStatus(ctx context.Context, db querier, app models.ApplicationID) (models.ApplicationStatus, error) {
	sql, args, err := selectApplicationStatusQuery(app)
	if err != nil {
		return models.ApplicationNoRemarks, fmt.Errorf("failed to build application status query: %w", err)
	}
	var value string
	err = db.QueryRow(ctx, sql, args...).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ApplicationNoRemarks, nil
	}
	if err != nil {
		return models.ApplicationNoRemarks, fmt.Errorf("failed to read status of application %s: %w", app, err)
	}
	return models.ParseApplicationStatus(value)
}

func (r *Registry) HostStatus(ctx context.Context, app models.ApplicationID, host models.HostName) (models.HostStatus, error) {
	sql, args, err := selectHostStatusQuery(app, host)
	if err != nil {
		return models.NoRemarks, fmt.Errorf("failed to build host status query: %w", err)
	}
	var value string
	err = r.db.QueryRow(ctx, sql, args...).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.NoRemarks, nil
	}
	if err != nil {
		return models.NoRemarks, fmt.Errorf("failed to read status of %s: %w", host, err)
	}
	return models.ParseHostStatus(value)
}

func (r *Registry) ApplicationStatus(ctx context.Context, app models.ApplicationID) (models.ApplicationStatus, error) {
	return readApplicationStatus(ctx, r.db, app)
}

func (r *Registry) Close() error {
	r.db.Close()
	return nil
}

var _ status.Session = (*Session)(nil)

type Session struct {
	conn     *pgxpool.Conn
	app      models.ApplicationID
	snapshot *status.Snapshot
	logger   zerolog.Logger
}

func (s *Session) HostStatus(host models.HostName) models.HostStatus {
	return s.snapshot.HostStatus(host)
}

func (s *Session) ApplicationStatus() models.ApplicationStatus {
	return s.snapshot.ApplicationStatus()
}

func (s *Session) SetHostStatus(ctx context.Context, host models.HostName, hostStatus models.HostStatus) error {
	if s.conn == nil {
		return fmt.Errorf("session of %s is closed: %w", s.app, status.ErrLockLost)
	}
	sql, args, err := upsertHostStatusQuery(s.app, host, hostStatus)
	if err != nil {
		return fmt.Errorf("failed to build host status upsert: %w", err)
	}
	_, err = s.conn.Exec(ctx, sql, args...)
	if err != nil {
		if pgerror.IsCheckViolation(err, hostStatusCheck) {
			return fmt.Errorf("status %s can't be stored for %s: %w", hostStatus, host, err)
		}
		return fmt.Errorf("failed to set status of %s: %w", host, err)
	}
	s.snapshot.SetHost(host, hostStatus)
	return nil
}

func (s *Session) SetApplicationStatus(ctx context.Context, appStatus models.ApplicationStatus) error {
	if s.conn == nil {
		return fmt.Errorf("session of %s is closed: %w", s.app, status.ErrLockLost)
	}
	sql, args, err := upsertApplicationStatusQuery(s.app, appStatus)
	if err != nil {
		return fmt.Errorf("failed to build application status upsert: %w", err)
	}
	_, err = s.conn.Exec(ctx, sql, args...)
	if err != nil {
		if constraint, ok := pgerror.ConstraintName(err); ok {
			return fmt.Errorf("status %s of %s violates %s: %w", appStatus, s.app, constraint, err)
		}
		return fmt.Errorf("failed to set status of application %s: %w", s.app, err)
	}
	s.snapshot.SetApplication(appStatus)
	return nil
}

// Close unlocks the application. A connection that failed to unlock is
// dropped, which releases the lock on the server side.
func (s *Session) Close(ctx context.Context) error {
	if s.conn == nil {
		return nil
	}
	conn := s.conn
	s.conn = nil
	defer conn.Release()

	_, err := conn.Exec(context.WithoutCancel(ctx), "select pg_advisory_unlock($1)", lockKey(s.app))
	if err != nil {
		s.logger.Error().Err(err).Msgf("failed to unlock application %s, closing connection", s.app)
		_ = conn.Conn().Close(context.WithoutCancel(ctx))
		return fmt.Errorf("failed to unlock application %s: %w", s.app, err)
	}
	return nil
}
