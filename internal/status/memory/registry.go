package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/Sh00ty/host-orchestrator/internal/models"
	"github.com/Sh00ty/host-orchestrator/internal/status"
)

type applicationEntry struct {
	// holds one token while the application is locked
	lock     chan struct{}
	snapshot *status.Snapshot
}

// Registry keeps host statuses in process memory. Statuses are lost on
// restart, it is meant for tests and single node setups.
type Registry struct {
	apps map[models.ApplicationID]*applicationEntry
	mu   *sync.Mutex
}

func NewRegistry() *Registry {
	return &Registry{
		apps: make(map[models.ApplicationID]*applicationEntry, 128),
		mu:   &sync.Mutex{},
	}
}

func (r *Registry) entry(app models.ApplicationID) *applicationEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := r.apps[app]
	if entry == nil {
		entry = &applicationEntry{
			lock:     make(chan struct{}, 1),
			snapshot: status.NewSnapshot(),
		}
		r.apps[app] = entry
	}
	return entry
}

func (r *Registry) LockApplication(ctx context.Context, app models.ApplicationID) (status.Session, error) {
	entry := r.entry(app)
	select {
	case entry.lock <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("failed to lock application %s: %w", app, ctx.Err())
	}
	return &Session{
		registry: r,
		app:      app,
		entry:    entry,
	}, nil
}

func (r *Registry) HostStatus(_ context.Context, app models.ApplicationID, host models.HostName) (models.HostStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := r.apps[app]
	if entry == nil {
		return models.NoRemarks, nil
	}
	return entry.snapshot.HostStatus(host), nil
}

func (r *Registry) ApplicationStatus(_ context.Context, app models.ApplicationID) (models.ApplicationStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := r.apps[app]
	if entry == nil {
		return models.ApplicationNoRemarks, nil
	}
	return entry.snapshot.ApplicationStatus(), nil
}

func (r *Registry) Close() error {
	return nil
}

var _ status.Session = (*Session)(nil)

type Session struct {
	registry *Registry
	app      models.ApplicationID
	entry    *applicationEntry
	closed   bool
}

func (s *Session) HostStatus(host models.HostName) models.HostStatus {
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()

	return s.entry.snapshot.HostStatus(host)
}

func (s *Session) ApplicationStatus() models.ApplicationStatus {
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()

	return s.entry.snapshot.ApplicationStatus()
}

func (s *Session) SetHostStatus(_ context.Context, host models.HostName, hostStatus models.HostStatus) error {
	if s.closed {
		return fmt.Errorf("session of %s is closed: %w", s.app, status.ErrLockLost)
	}
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()

	s.entry.snapshot.SetHost(host, hostStatus)
	return nil
}

func (s *Session) SetApplicationStatus(_ context.Context, appStatus models.ApplicationStatus) error {
	if s.closed {
		return fmt.Errorf("session of %s is closed: %w", s.app, status.ErrLockLost)
	}
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()

	s.entry.snapshot.SetApplication(appStatus)
	return nil
}

func (s *Session) Close(context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true
	<-s.entry.lock
	return nil
}
