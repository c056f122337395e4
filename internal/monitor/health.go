package monitor

import (
	"sync"

	"github.com/Sh00ty/host-orchestrator/internal/models"
)

type MembershipEventType int8

const (
	MembershipUnknown MembershipEventType = iota
	MembershipAlive
	MembershipLeft
	MembershipSuspect
	MembershipDead
)

func (t MembershipEventType) String() string {
	switch t {
	case MembershipAlive:
		return "alive"
	case MembershipLeft:
		return "left"
	case MembershipSuspect:
		return "suspect"
	case MembershipDead:
		return "dead"
	}
	return "unknown"
}

type MembershipEvent struct {
	Type MembershipEventType
	Host models.HostName
}

// HealthTracker remembers the last gossip verdict of every host.
type HealthTracker struct {
	mu    sync.RWMutex
	hosts map[models.HostName]models.ServiceStatus
}

func NewHealthTracker() *HealthTracker {
	return &HealthTracker{
		hosts: make(map[models.HostName]models.ServiceStatus),
	}
}

func (h *HealthTracker) Handle(event MembershipEvent) {
	var status models.ServiceStatus
	switch event.Type {
	case MembershipAlive:
		status = models.ServiceUp
	case MembershipDead:
		status = models.ServiceDown
	case MembershipSuspect, MembershipLeft:
		status = models.ServiceUnknown
	default:
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.hosts[event.Host] = status
}

// Status is NOT_CHECKED for hosts gossip never told about.
func (h *HealthTracker) Status(host models.HostName) (models.ServiceStatus, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status, ok := h.hosts[host]
	if !ok {
		return models.ServiceNotChecked, false
	}
	return status, true
}
