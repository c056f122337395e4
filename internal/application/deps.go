package application

import (
	"context"

	"github.com/Sh00ty/host-orchestrator/internal/clustercontroller"
	"github.com/Sh00ty/host-orchestrator/internal/models"
)

type HostStatusReader interface {
	HostStatus(host models.HostName) models.HostStatus
}

// Session is a host status registry scoped to one locked application.
type Session interface {
	HostStatusReader
	ApplicationStatus() models.ApplicationStatus
	SetHostStatus(ctx context.Context, host models.HostName, status models.HostStatus) error
}

type ClusterControllerClient interface {
	SetNodeState(
		ctx context.Context,
		req clustercontroller.SetNodeStateRequest,
	) (clustercontroller.SetNodeStateResponse, error)
}
