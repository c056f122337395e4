package api

import (
	"context"

	"github.com/Sh00ty/host-orchestrator/internal/models"
	"github.com/Sh00ty/host-orchestrator/internal/orchestrator"
)

type Orchestrator interface {
	HostInfo(ctx context.Context, host models.HostName) (orchestrator.HostInfo, error)
	Suspend(ctx context.Context, oc models.OrchestratorContext, host models.HostName) error
	SuspendAll(ctx context.Context, oc models.OrchestratorContext, parent models.HostName, hosts []models.HostName) error
	Resume(ctx context.Context, oc models.OrchestratorContext, host models.HostName) error
	AcquirePermissionToRemove(ctx context.Context, oc models.OrchestratorContext, host models.HostName) error
	SuspendApplication(ctx context.Context, id models.ApplicationID) error
	ResumeApplication(ctx context.Context, id models.ApplicationID) error
}
