package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sh00ty/host-orchestrator/internal/models"
	"github.com/Sh00ty/host-orchestrator/internal/orchestrator"
)

type call struct {
	op    string
	host  models.HostName
	probe bool
	hosts []models.HostName
}

type fakeOrchestrator struct {
	calls []call
	err   error
}

func (f *fakeOrchestrator) HostInfo(_ context.Context, host models.HostName) (orchestrator.HostInfo, error) {
	f.calls = append(f.calls, call{op: "info", host: host})
	return orchestrator.HostInfo{
		Host:        host,
		Application: "music",
		Status:      models.AllowedToBeDown,
		AppStatus:   models.ApplicationNoRemarks,
	}, f.err
}

func (f *fakeOrchestrator) Suspend(_ context.Context, oc models.OrchestratorContext, host models.HostName) error {
	f.calls = append(f.calls, call{op: "suspend", host: host, probe: oc.Probe})
	return f.err
}

func (f *fakeOrchestrator) SuspendAll(
	_ context.Context,
	oc models.OrchestratorContext,
	parent models.HostName,
	hosts []models.HostName,
) error {
	f.calls = append(f.calls, call{op: "suspend-all", host: parent, probe: oc.Probe, hosts: hosts})
	return f.err
}

func (f *fakeOrchestrator) Resume(_ context.Context, oc models.OrchestratorContext, host models.HostName) error {
	f.calls = append(f.calls, call{op: "resume", host: host, probe: oc.Probe})
	return f.err
}

func (f *fakeOrchestrator) AcquirePermissionToRemove(_ context.Context, oc models.OrchestratorContext, host models.HostName) error {
	f.calls = append(f.calls, call{op: "remove", host: host, probe: oc.Probe})
	return f.err
}

func (f *fakeOrchestrator) SuspendApplication(_ context.Context, id models.ApplicationID) error {
	f.calls = append(f.calls, call{op: "suspend-application", host: models.HostName(id)})
	return f.err
}

func (f *fakeOrchestrator) ResumeApplication(_ context.Context, id models.ApplicationID) error {
	f.calls = append(f.calls, call{op: "resume-application", host: models.HostName(id)})
	return f.err
}

func do(t *testing.T, handler http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRoutes(t *testing.T) {
	tests := []struct {
		method string
		target string
		want   call
	}{
		{http.MethodGet, "/orchestrator/v1/hosts/h1", call{op: "info", host: "h1"}},
		{http.MethodPut, "/orchestrator/v1/hosts/h1/suspended", call{op: "suspend", host: "h1"}},
		{http.MethodPut, "/orchestrator/v1/hosts/h1/suspended?probe=true", call{op: "suspend", host: "h1", probe: true}},
		{http.MethodDelete, "/orchestrator/v1/hosts/h1/suspended", call{op: "resume", host: "h1"}},
		{http.MethodPut, "/orchestrator/v1/hosts/h1/removed", call{op: "remove", host: "h1"}},
		{
			http.MethodPut,
			"/orchestrator/v1/suspensions/hosts/p1?hostname=h1&hostname=h2",
			call{op: "suspend-all", host: "p1", hosts: []models.HostName{"h1", "h2"}},
		},
		{http.MethodPut, "/orchestrator/v1/applications/music/suspended", call{op: "suspend-application", host: "music"}},
		{http.MethodDelete, "/orchestrator/v1/applications/music/suspended", call{op: "resume-application", host: "music"}},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			fake := &fakeOrchestrator{}
			rec := do(t, NewServer(Config{}, fake, zerolog.Nop()).Handler(), tt.method, tt.target)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
			require.Len(t, fake.calls, 1)
			assert.Equal(t, tt.want, fake.calls[0])
		})
	}
}

func TestGetHost(t *testing.T) {
	rec := do(t, NewServer(Config{}, &fakeOrchestrator{}, zerolog.Nop()).Handler(), http.MethodGet, "/orchestrator/v1/hosts/h1")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp hostResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, hostResponse{
		Hostname:          "h1",
		Application:       "music",
		Status:            models.AllowedToBeDown,
		ApplicationStatus: models.ApplicationNoRemarks,
	}, resp)
}

func TestBadRequests(t *testing.T) {
	handler := NewServer(Config{}, &fakeOrchestrator{}, zerolog.Nop()).Handler()

	rec := do(t, handler, http.MethodPut, "/orchestrator/v1/hosts/h1/suspended?probe=maybe")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, handler, http.MethodPut, "/orchestrator/v1/suspensions/hosts/p1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	app := models.ApplicationInstance{
		ID: "music",
		Clusters: []models.ServiceCluster{{
			ID:        "web",
			Type:      models.ServiceTypeContainer,
			Instances: []models.ServiceInstance{{ConfigID: "web/container/0", Host: "h1"}},
		}},
	}
	group, err := models.NewNodeGroup(app, "h1")
	require.NoError(t, err)
	denied := models.NewHostStateChangeDenied(group, models.ConstraintEnoughServicesUp, "too many down")

	tests := []struct {
		name       string
		err        error
		code       int
		constraint string
	}{
		{"denied", denied, http.StatusConflict, models.ConstraintEnoughServicesUp},
		{
			"unknown host",
			fmt.Errorf("%w: %w", models.ErrHostNotFound,
				models.NewHostStateChangeDeniedForHost("h1", models.ConstraintUnknownHost, "unknown")),
			http.StatusNotFound,
			models.ConstraintUnknownHost,
		},
		{"transient", fmt.Errorf("cc down: %w", models.ErrTransient), http.StatusServiceUnavailable, ""},
		{"invariant", fmt.Errorf("two storage nodes: %w", models.ErrInvariantViolation), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeOrchestrator{err: tt.err}
			rec := do(t, NewServer(Config{}, fake, zerolog.Nop()).Handler(), http.MethodPut, "/orchestrator/v1/hosts/h1/suspended")
			assert.Equal(t, tt.code, rec.Code)

			var resp errorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.constraint, resp.Constraint)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestBatchDenialBody(t *testing.T) {
	app := models.ApplicationInstance{
		ID: "music",
		Clusters: []models.ServiceCluster{{
			ID:        "web",
			Type:      models.ServiceTypeContainer,
			Instances: []models.ServiceInstance{{ConfigID: "web/container/0", Host: "h1"}},
		}},
	}
	group, err := models.NewNodeGroup(app, "h1")
	require.NoError(t, err)
	batch := models.NewBatchHostStateChangeDenied(
		"p1",
		group,
		models.NewHostStateChangeDenied(group, models.ConstraintEnoughServicesUp, "too many down"),
	)

	fake := &fakeOrchestrator{err: batch}
	rec := do(t, NewServer(Config{}, fake, zerolog.Nop()).Handler(), http.MethodPut, "/orchestrator/v1/suspensions/hosts/p1?hostname=h1")
	require.Equal(t, http.StatusConflict, rec.Code)

	var resp errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, models.HostName("p1"), resp.Parent)
	assert.Equal(t, "h1", resp.NodeGroup)
	assert.Equal(t, models.ConstraintEnoughServicesUp, resp.Constraint)
}

func TestRateLimit(t *testing.T) {
	handler := NewServer(Config{RateLimit: 0.001, RateBurst: 1}, &fakeOrchestrator{}, zerolog.Nop()).Handler()

	rec := do(t, handler, http.MethodGet, "/orchestrator/v1/hosts/h1")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, handler, http.MethodGet, "/orchestrator/v1/hosts/h1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
