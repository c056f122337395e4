package etcd

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Sh00ty/host-orchestrator/internal/models"
	"github.com/Sh00ty/host-orchestrator/internal/status"
)

type Config struct {
	Endpoints   []string      `envconfig:"ETCD_ENDPOINTS,default=127.0.0.1:2379"`
	DialTimeout time.Duration `envconfig:"ETCD_DIAL_TIMEOUT,default=5s"`
	// lock sessions die this many seconds after the orchestrator does
	SessionTTL int `envconfig:"ETCD_SESSION_TTL,default=15"`
}

// Registry stores host statuses in etcd. Application locks are etcd
// mutexes bound to one lease, so a crashed orchestrator releases them.
type Registry struct {
	etcd       *clientv3.Client
	sessionTTL int
	logger     zerolog.Logger

	sessionGuard sync.Mutex
	session      *concurrency.Session
}

func NewRegistry(ctx context.Context, cfg Config, logger zerolog.Logger) (*Registry, error) {
	clnt, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
		Context:     ctx,
		Logger:      zap.NewNop(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}
	r := &Registry{
		etcd:       clnt,
		sessionTTL: cfg.SessionTTL,
		logger:     logger.With().Str("component", "etcd-status-registry").Logger(),
	}
	_, err = r.currentSession(ctx)
	if err != nil {
		return nil, multierr.Append(err, clnt.Close())
	}
	return r, nil
}

// currentSession returns the lease backed session, creating a new one
// after the previous lease expired.
func (r *Registry) currentSession(ctx context.Context) (*concurrency.Session, error) {
	r.sessionGuard.Lock()
	defer r.sessionGuard.Unlock()

	if r.session != nil {
		select {
		case <-r.session.Done():
			r.logger.Warn().Msgf("etcd session with lease %x expired, creating new one", r.session.Lease())
		default:
			return r.session, nil
		}
	}
	session, err := concurrency.NewSession(
		r.etcd,
		concurrency.WithContext(context.WithoutCancel(ctx)),
		concurrency.WithTTL(r.sessionTTL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd session: %w", err)
	}
	r.session = session
	return session, nil
}

func (r *Registry) LockApplication(ctx context.Context, app models.ApplicationID) (status.Session, error) {
	session, err := r.currentSession(ctx)
	if err != nil {
		return nil, err
	}
	mutex := concurrency.NewMutex(session, applicationLockKey(app))
	err = mutex.Lock(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to lock application %s: %w", app, err)
	}

	snapshot, err := r.loadSnapshot(ctx, app)
	if err != nil {
		unlockErr := mutex.Unlock(context.WithoutCancel(ctx))
		return nil, multierr.Append(err, unlockErr)
	}
	r.logger.Debug().Msgf("locked application %s with key %s", app, mutex.Key())
	return &Session{
		registry: r,
		app:      app,
		mutex:    mutex,
		snapshot: snapshot,
	}, nil
}

func (r *Registry) loadSnapshot(ctx context.Context, app models.ApplicationID) (*status.Snapshot, error) {
	resp, err := r.etcd.KV.Get(ctx, applicationPrefix(app), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to read statuses of %s: %w", app, err)
	}
	snapshot := status.NewSnapshot()
	for _, kv := range resp.Kvs {
		err = applyEntry(snapshot, app, string(kv.Key), string(kv.Value))
		if err != nil {
			return nil, err
		}
	}
	return snapshot, nil
}

// applyEntry puts one stored key of the application into the snapshot.
func applyEntry(snapshot *status.Snapshot, app models.ApplicationID, key, value string) error {
	if key == applicationStatusKey(app) {
		appStatus, err := models.ParseApplicationStatus(value)
		if err != nil {
			return fmt.Errorf("bad value of %s: %w", key, err)
		}
		snapshot.SetApplication(appStatus)
		return nil
	}
	host, ok := strings.CutPrefix(key, hostsFolder(app)+"/")
	if !ok || host == "" || strings.Contains(host, "/") {
		return nil
	}
	hostStatus, err := models.ParseHostStatus(value)
	if err != nil {
		return fmt.Errorf("bad value of %s: %w", key, err)
	}
	snapshot.SetHost(models.HostName(host), hostStatus)
	return nil
}

func (r *Registry) HostStatus(ctx context.Context, app models.ApplicationID, host models.HostName) (models.HostStatus, error) {
	resp, err := r.etcd.KV.Get(ctx, hostStatusKey(app, host))
	if err != nil {
		return models.NoRemarks, fmt.Errorf("failed to read status of %s: %w", host, err)
	}
	if len(resp.Kvs) == 0 {
		return models.NoRemarks, nil
	}
	return models.ParseHostStatus(string(resp.Kvs[0].Value))
}

func (r *Registry) ApplicationStatus(ctx context.Context, app models.ApplicationID) (models.ApplicationStatus, error) {
	resp, err := r.etcd.KV.Get(ctx, applicationStatusKey(app))
	if err != nil {
		return models.ApplicationNoRemarks, fmt.Errorf("failed to read status of application %s: %w", app, err)
	}
	if len(resp.Kvs) == 0 {
		return models.ApplicationNoRemarks, nil
	}
	return models.ParseApplicationStatus(string(resp.Kvs[0].Value))
}

func (r *Registry) Close() error {
	r.sessionGuard.Lock()
	defer r.sessionGuard.Unlock()

	var err error
	if r.session != nil {
		err = r.session.Close()
	}
	return multierr.Append(err, r.etcd.Close())
}

var _ status.Session = (*Session)(nil)

// Session writes only while its mutex is still owned.
type Session struct {
	registry *Registry
	app      models.ApplicationID
	mutex    *concurrency.Mutex
	snapshot *status.Snapshot
}

func (s *Session) HostStatus(host models.HostName) models.HostStatus {
	return s.snapshot.HostStatus(host)
}

func (s *Session) ApplicationStatus() models.ApplicationStatus {
	return s.snapshot.ApplicationStatus()
}

func (s *Session) SetHostStatus(ctx context.Context, host models.HostName, hostStatus models.HostStatus) error {
	key := hostStatusKey(s.app, host)
	op := clientv3.OpPut(key, string(hostStatus))
	if hostStatus == models.NoRemarks {
		op = clientv3.OpDelete(key)
	}
	err := s.commit(ctx, op)
	if err != nil {
		return fmt.Errorf("failed to set status of %s: %w", host, err)
	}
	s.snapshot.SetHost(host, hostStatus)
	return nil
}

func (s *Session) SetApplicationStatus(ctx context.Context, appStatus models.ApplicationStatus) error {
	key := applicationStatusKey(s.app)
	op := clientv3.OpPut(key, string(appStatus))
	if appStatus == models.ApplicationNoRemarks {
		op = clientv3.OpDelete(key)
	}
	err := s.commit(ctx, op)
	if err != nil {
		return fmt.Errorf("failed to set status of application %s: %w", s.app, err)
	}
	s.snapshot.SetApplication(appStatus)
	return nil
}

func (s *Session) commit(ctx context.Context, op clientv3.Op) error {
	resp, err := s.registry.etcd.Txn(ctx).
		If(s.mutex.IsOwner()).
		Then(op).
		Commit()
	if err != nil {
		return err
	}
	if !resp.Succeeded {
		return fmt.Errorf("lock %s of %s: %w", s.mutex.Key(), s.app, status.ErrLockLost)
	}
	return nil
}

func (s *Session) Close(ctx context.Context) error {
	err := s.mutex.Unlock(context.WithoutCancel(ctx))
	if err != nil {
		return fmt.Errorf("failed to unlock application %s: %w", s.app, err)
	}
	return nil
}
