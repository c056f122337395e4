package orchestrator

import (
	"context"

	"github.com/Sh00ty/host-orchestrator/internal/application"
	"github.com/Sh00ty/host-orchestrator/internal/audit"
	"github.com/Sh00ty/host-orchestrator/internal/models"
	"github.com/Sh00ty/host-orchestrator/internal/status"
)

type StatusRegistry interface {
	LockApplication(ctx context.Context, app models.ApplicationID) (status.Session, error)
	HostStatus(ctx context.Context, app models.ApplicationID, host models.HostName) (models.HostStatus, error)
	ApplicationStatus(ctx context.Context, app models.ApplicationID) (models.ApplicationStatus, error)
}

type TopologyProvider interface {
	ApplicationForHost(host models.HostName) (models.ApplicationInstance, bool)
	Application(id models.ApplicationID) (models.ApplicationInstance, bool)
	Fingerprint() uint64
}

type Policy interface {
	GrantSuspensionRequest(
		ctx context.Context,
		oc models.OrchestratorContext,
		app *application.ApplicationAPI,
	) (models.SuspensionReasons, error)
	ReleaseSuspensionGrant(ctx context.Context, oc models.OrchestratorContext, app *application.ApplicationAPI) error
	AcquirePermissionToRemove(ctx context.Context, oc models.OrchestratorContext, app *application.ApplicationAPI) error
}

type Auditor interface {
	Publish(record audit.Record)
}
