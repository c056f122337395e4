package policy

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sh00ty/host-orchestrator/internal/application"
	"github.com/Sh00ty/host-orchestrator/internal/clustercontroller"
	"github.com/Sh00ty/host-orchestrator/internal/flags"
	"github.com/Sh00ty/host-orchestrator/internal/models"
)

type policyFixture struct {
	policy     *HostedPolicy
	session    *fakeSession
	controller *fakeController
	app        models.ApplicationInstance
}

func newPolicyFixture(flagValues map[flags.Flag]bool) *policyFixture {
	hosts := hostNames("h", 10)
	source := fakeFlags{flags: flagValues}
	return &policyFixture{
		policy:     NewHostedPolicy(NewClusterPolicy(source), source, zerolog.Nop()),
		session:    newFakeSession(),
		controller: &fakeController{},
		app: models.ApplicationInstance{
			ID: "music",
			Clusters: []models.ServiceCluster{
				cluster("music", models.ServiceTypeStorage, hosts...),
				cluster("books", models.ServiceTypeStorage, hosts...),
				cluster("web", models.ServiceTypeContainer, hosts...),
				cluster("cluster-controllers", models.ServiceTypeClusterController, "cc0", "cc1", "cc2"),
			},
		},
	}
}

func (f *policyFixture) api(t *testing.T, hosts ...string) *application.ApplicationAPI {
	t.Helper()
	api, err := application.NewApplicationAPI(mustGroup(f.app, hosts...), f.session, f.controller)
	require.NoError(t, err)
	return api
}

func (f *policyFixture) states() []string {
	states := make([]string, 0, len(f.controller.requests))
	for _, req := range f.controller.requests {
		states = append(states, string(req.ClusterID)+"/"+string(req.NodeType)+"="+string(req.State))
	}
	return states
}

func TestGrantSuspensionRequest(t *testing.T) {
	f := newPolicyFixture(nil)
	ctx := context.Background()

	reasons, err := f.policy.GrantSuspensionRequest(ctx, models.NewOrchestratorContext(false), f.api(t, "h00"))
	require.NoError(t, err)
	assert.True(t, reasons.IsEmpty())

	assert.Equal(t, []string{"books/storage=maintenance", "music/storage=maintenance"}, f.states())
	assert.Equal(t, models.AllowedToBeDown, f.session.HostStatus("h00"))
	assert.Equal(t, models.NoRemarks, f.session.HostStatus("h01"))
}

// withStorageSubset keeps storage on h00..h09 only, so groups may span
// h00 and any of h10..h19 without two storage nodes of one cluster.
func (f *policyFixture) withStorageSubset() *policyFixture {
	f.app = models.ApplicationInstance{
		ID: "music",
		Clusters: []models.ServiceCluster{
			cluster("web", models.ServiceTypeContainer, hostNames("h", 20)...),
			cluster("music", models.ServiceTypeStorage, hostNames("h", 10)...),
			cluster("cluster-controllers", models.ServiceTypeClusterController, "cc0", "cc1", "cc2"),
		},
	}
	return f
}

func TestGrantSuspensionRequestIsIdempotent(t *testing.T) {
	f := newPolicyFixture(nil).withStorageSubset()
	f.session.hosts["h00"] = models.AllowedToBeDown
	f.session.hosts["h10"] = models.ExpectedDown
	f.session.hosts["h15"] = models.AllowedToBeDown

	reasons, err := f.policy.GrantSuspensionRequest(
		context.Background(), models.NewOrchestratorContext(false), f.api(t, "h00", "h10"),
	)
	require.NoError(t, err)
	assert.True(t, reasons.IsEmpty())
	assert.Empty(t, f.controller.requests)
	assert.Zero(t, f.session.writes)
}

func TestGrantSuspensionRequestDeniedWithoutSideEffects(t *testing.T) {
	f := newPolicyFixture(nil)
	f.session.hosts["h05"] = models.AllowedToBeDown

	_, err := f.policy.GrantSuspensionRequest(
		context.Background(), models.NewOrchestratorContext(false), f.api(t, "h00"),
	)
	denied, ok := models.AsDenied(err)
	require.True(t, ok)
	assert.Equal(t, models.ConstraintEnoughServicesUp, denied.Constraint())
	assert.Empty(t, f.controller.requests)
	assert.Zero(t, f.session.writes)
}

func TestGrantSuspensionRequestClusterControllerRefuses(t *testing.T) {
	f := newPolicyFixture(nil)
	f.controller.refuse = true

	_, err := f.policy.GrantSuspensionRequest(
		context.Background(), models.NewOrchestratorContext(false), f.api(t, "h00"),
	)
	denied, ok := models.AsDenied(err)
	require.True(t, ok)
	assert.Equal(t, models.ConstraintSetNodeState, denied.Constraint())
	assert.Len(t, f.controller.requests, 1)
	assert.Equal(t, models.NoRemarks, f.session.HostStatus("h00"))
}

func TestGrantSuspensionRequestProbe(t *testing.T) {
	f := newPolicyFixture(nil)

	_, err := f.policy.GrantSuspensionRequest(
		context.Background(), models.NewOrchestratorContext(true), f.api(t, "h00"),
	)
	require.NoError(t, err)
	require.Len(t, f.controller.requests, 2)
	for _, req := range f.controller.requests {
		assert.True(t, req.Probe)
	}
	assert.Zero(t, f.session.writes)
}

// A cluster over its limit denies every group touching it.
func TestGrantSuspensionRequestIsMonotonic(t *testing.T) {
	f := newPolicyFixture(nil)
	f.session.hosts["h08"] = models.AllowedToBeDown
	f.session.hosts["h09"] = models.AllowedToBeDown

	for _, group := range [][]string{{"h00"}, {"h01"}, {"h07"}} {
		_, err := f.policy.GrantSuspensionRequest(
			context.Background(), models.NewOrchestratorContext(false), f.api(t, group...),
		)
		denied, ok := models.AsDenied(err)
		require.True(t, ok, "group %v", group)
		assert.Equal(t, models.ConstraintEnoughServicesUp, denied.Constraint())
	}
}

func TestGrantThenReleaseRestoresStatuses(t *testing.T) {
	f := newPolicyFixture(nil).withStorageSubset()
	f.session.hosts["h11"] = models.PermanentlyDown
	ctx := context.Background()
	oc := models.NewOrchestratorContext(false)

	_, err := f.policy.GrantSuspensionRequest(ctx, oc, f.api(t, "h00", "h10", "h11"))
	require.NoError(t, err)
	assert.Equal(t, models.AllowedToBeDown, f.session.HostStatus("h00"))
	assert.Equal(t, models.AllowedToBeDown, f.session.HostStatus("h10"))
	assert.Equal(t, models.PermanentlyDown, f.session.HostStatus("h11"))

	err = f.policy.ReleaseSuspensionGrant(ctx, oc, f.api(t, "h00", "h10", "h11"))
	require.NoError(t, err)
	assert.Equal(t, models.NoRemarks, f.session.HostStatus("h00"))
	assert.Equal(t, models.NoRemarks, f.session.HostStatus("h10"))
	assert.Equal(t, models.PermanentlyDown, f.session.HostStatus("h11"))
	assert.Equal(t, []string{"music/storage=maintenance", "music/storage=up"}, f.states())
}

func TestReleaseSuspensionGrant(t *testing.T) {
	f := newPolicyFixture(nil)
	ctx := context.Background()
	oc := models.NewOrchestratorContext(false)

	_, err := f.policy.GrantSuspensionRequest(ctx, oc, f.api(t, "h00"))
	require.NoError(t, err)

	f.controller.requests = nil
	err = f.policy.ReleaseSuspensionGrant(ctx, oc, f.api(t, "h00"))
	require.NoError(t, err)

	assert.Equal(t, []string{"music/storage=up", "books/storage=up"}, f.states())
	assert.Equal(t, models.NoRemarks, f.session.HostStatus("h00"))
}

func TestReleaseLeavesPermanentlyDownHosts(t *testing.T) {
	f := newPolicyFixture(nil)
	f.session.hosts["h00"] = models.PermanentlyDown

	err := f.policy.ReleaseSuspensionGrant(context.Background(), models.NewOrchestratorContext(false), f.api(t, "h00"))
	require.NoError(t, err)
	assert.Empty(t, f.controller.requests)
	assert.Equal(t, models.PermanentlyDown, f.session.HostStatus("h00"))
}

func TestReleaseBringsExpectedDownStorageUp(t *testing.T) {
	f := newPolicyFixture(nil)
	f.session.hosts["h00"] = models.ExpectedDown

	err := f.policy.ReleaseSuspensionGrant(context.Background(), models.NewOrchestratorContext(false), f.api(t, "h00"))
	require.NoError(t, err)
	assert.Len(t, f.controller.requests, 2)
	assert.Equal(t, models.ExpectedDown, f.session.HostStatus("h00"))
}

func TestAcquirePermissionToRemove(t *testing.T) {
	f := newPolicyFixture(nil)

	err := f.policy.AcquirePermissionToRemove(context.Background(), models.NewOrchestratorContext(false), f.api(t, "h00"))
	require.NoError(t, err)

	assert.Equal(t, []string{"books/storage=down", "music/storage=down"}, f.states())
	for _, req := range f.controller.requests {
		assert.Equal(t, clustercontroller.ConditionSafe, req.Condition)
	}
	assert.Equal(t, models.PermanentlyDown, f.session.HostStatus("h00"))
}

func TestAcquirePermissionToRemoveForcesDistributor(t *testing.T) {
	f := newPolicyFixture(map[flags.Flag]bool{flags.ForceDistributorDownOnRemoval: true})

	err := f.policy.AcquirePermissionToRemove(context.Background(), models.NewOrchestratorContext(false), f.api(t, "h00"))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"books/storage=down",
		"books/distributor=down",
		"music/storage=down",
		"music/distributor=down",
	}, f.states())
	for _, req := range f.controller.requests {
		assert.Equal(t, clustercontroller.ConditionForce, req.Condition)
	}
	assert.Equal(t, models.PermanentlyDown, f.session.HostStatus("h00"))
}

func TestAcquirePermissionToRemoveApplicationSuspended(t *testing.T) {
	f := newPolicyFixture(nil)
	f.session.appStatus = models.ApplicationAllowedToBeDown

	err := f.policy.AcquirePermissionToRemove(context.Background(), models.NewOrchestratorContext(false), f.api(t, "h00"))
	denied, ok := models.AsDenied(err)
	require.True(t, ok)
	assert.Equal(t, models.ConstraintApplicationSuspended, denied.Constraint())
	assert.Empty(t, f.controller.requests)
	assert.Zero(t, f.session.writes)
}

func TestAcquirePermissionToRemoveIgnoresAllDownException(t *testing.T) {
	f := newPolicyFixture(nil)
	hosts := hostNames("h", 10)
	f.app.Clusters[2] = markDown(f.app.Clusters[2], hosts...)

	_, err := f.policy.GrantSuspensionRequest(context.Background(), models.NewOrchestratorContext(true), f.api(t, "h00"))
	require.NoError(t, err)

	err = f.policy.AcquirePermissionToRemove(context.Background(), models.NewOrchestratorContext(false), f.api(t, "h00"))
	denied, ok := models.AsDenied(err)
	require.True(t, ok)
	assert.Equal(t, models.ConstraintEnoughServicesUp, denied.Constraint())
}

func TestGrantSuspensionRequestDeadlineAbandonsClusterController(t *testing.T) {
	f := newPolicyFixture(nil)
	f.controller.block = true

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	started := time.Now()
	_, err := f.policy.GrantSuspensionRequest(ctx, models.NewOrchestratorContext(false), f.api(t, "h00"))
	assert.True(t, models.IsTransient(err), "expected transient failure, got %v", err)
	assert.False(t, models.IsDenied(err))
	assert.Less(t, time.Since(started), 5*time.Second)

	assert.Len(t, f.controller.requests, 1)
	assert.Zero(t, f.session.writes)
	assert.Equal(t, models.NoRemarks, f.session.HostStatus("h00"))
}
