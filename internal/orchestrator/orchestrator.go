package orchestrator

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sh00ty/host-orchestrator/internal/application"
	"github.com/Sh00ty/host-orchestrator/internal/audit"
	"github.com/Sh00ty/host-orchestrator/internal/metrics"
	"github.com/Sh00ty/host-orchestrator/internal/models"
	"github.com/Sh00ty/host-orchestrator/internal/status"
)

type Config struct {
	LockTimeout time.Duration `envconfig:"APPLICATION_LOCK_TIMEOUT,default=30s"`
}

type HostInfo struct {
	Host        models.HostName
	Application models.ApplicationID
	Status      models.HostStatus
	// AppStatus is the status of the whole application.
	AppStatus models.ApplicationStatus
}

// Service resolves hosts to node groups and runs policy decisions under
// the application lock.
type Service struct {
	topology    TopologyProvider
	registry    StatusRegistry
	policy      Policy
	controllers application.ClusterControllerClient
	metrics     metrics.Metrics
	auditor     Auditor
	lockTimeout time.Duration
	logger      zerolog.Logger
}

func NewService(
	cfg Config,
	topology TopologyProvider,
	registry StatusRegistry,
	policy Policy,
	controllers application.ClusterControllerClient,
	metrics metrics.Metrics,
	auditor Auditor,
	logger zerolog.Logger,
) *Service {
	return &Service{
		topology:    topology,
		registry:    registry,
		policy:      policy,
		controllers: controllers,
		metrics:     metrics,
		auditor:     auditor,
		lockTimeout: cfg.LockTimeout,
		logger:      logger.With().Str("component", "orchestrator").Logger(),
	}
}

func unknownHost(host models.HostName) error {
	return fmt.Errorf("%w: %w", models.ErrHostNotFound, models.NewHostStateChangeDeniedForHost(
		host,
		models.ConstraintUnknownHost,
		"host is not part of any application",
	))
}

func (s *Service) applicationOf(host models.HostName) (models.ApplicationInstance, error) {
	app, ok := s.topology.ApplicationForHost(host)
	if !ok {
		return models.ApplicationInstance{}, unknownHost(host)
	}
	return app, nil
}

func (s *Service) HostInfo(ctx context.Context, host models.HostName) (HostInfo, error) {
	app, err := s.applicationOf(host)
	if err != nil {
		return HostInfo{}, err
	}
	hostStatus, err := s.registry.HostStatus(ctx, app.ID, host)
	if err != nil {
		return HostInfo{}, fmt.Errorf("failed to get status of %s: %w", host, err)
	}
	appStatus, err := s.registry.ApplicationStatus(ctx, app.ID)
	if err != nil {
		return HostInfo{}, fmt.Errorf("failed to get status of application %s: %w", app.ID, err)
	}
	return HostInfo{
		Host:        host,
		Application: app.ID,
		Status:      hostStatus,
		AppStatus:   appStatus,
	}, nil
}

// Suspend grants a single host permission to go down.
func (s *Service) Suspend(ctx context.Context, oc models.OrchestratorContext, host models.HostName) error {
	app, err := s.applicationOf(host)
	if err != nil {
		s.observe(audit.OperationSuspend, "", []models.HostName{host}, oc, time.Now(), models.NewSuspensionReasons(), err)
		return err
	}
	hostStatus, err := s.registry.HostStatus(ctx, app.ID, host)
	if err != nil {
		return fmt.Errorf("failed to get status of %s: %w", host, err)
	}
	if hostStatus.IsSuspended() {
		s.logger.Debug().Msgf("%s is already %s", host, hostStatus)
		return nil
	}
	group, err := models.NewNodeGroup(app, host)
	if err != nil {
		return fmt.Errorf("failed to build node group of %s: %w", host, err)
	}
	_, err = s.SuspendGroup(ctx, oc, group)
	return err
}

// SuspendGroup is a no-op for suspended applications, the whole
// application is allowed to be down already.
func (s *Service) SuspendGroup(
	ctx context.Context,
	oc models.OrchestratorContext,
	group models.NodeGroup,
) (models.SuspensionReasons, error) {
	started := time.Now()
	reasons := models.NewSuspensionReasons()
	err := s.withApplicationLock(ctx, group.ApplicationID(), func(session status.Session) error {
		if session.ApplicationStatus() == models.ApplicationAllowedToBeDown {
			s.logger.Info().Msgf("application %s is suspended, not suspending %s", group.ApplicationID(), group)
			return nil
		}
		api, err := application.NewApplicationAPI(group, session, s.controllers)
		if err != nil {
			return err
		}
		reasons, err = s.policy.GrantSuspensionRequest(ctx, oc, api)
		return err
	})
	s.observe(audit.OperationSuspend, group.ApplicationID(), group.Hosts(), oc, started, reasons, err)
	return reasons, err
}

// SuspendAll suspends every host with the given parent, one node group per
// application, in application order. The first denial stops the batch.
func (s *Service) SuspendAll(
	ctx context.Context,
	oc models.OrchestratorContext,
	parent models.HostName,
	hosts []models.HostName,
) error {
	groups, err := s.nodeGroupsOf(hosts)
	if err != nil {
		s.observe(audit.OperationSuspendAll, "", hosts, oc, time.Now(), models.NewSuspensionReasons(), err)
		return err
	}
	for _, group := range groups {
		_, err = s.SuspendGroup(ctx, oc, group)
		if err == nil {
			continue
		}
		if denied, ok := models.AsDenied(err); ok {
			return models.NewBatchHostStateChangeDenied(parent, group, denied)
		}
		return fmt.Errorf("failed to suspend %s with parent %s: %w", group, parent, err)
	}
	return nil
}

func (s *Service) nodeGroupsOf(hosts []models.HostName) ([]models.NodeGroup, error) {
	apps := make(map[models.ApplicationID]models.ApplicationInstance)
	hostsByApp := make(map[models.ApplicationID][]models.HostName)
	for _, host := range hosts {
		app, err := s.applicationOf(host)
		if err != nil {
			return nil, err
		}
		apps[app.ID] = app
		hostsByApp[app.ID] = append(hostsByApp[app.ID], host)
	}

	groups := make([]models.NodeGroup, 0, len(apps))
	for id, app := range apps {
		group, err := models.NewNodeGroup(app, hostsByApp[id]...)
		if err != nil {
			return nil, fmt.Errorf("failed to build node group of %s: %w", id, err)
		}
		groups = append(groups, group)
	}
	slices.SortFunc(groups, func(a, b models.NodeGroup) int {
		return strings.Compare(string(a.ApplicationID()), string(b.ApplicationID()))
	})
	return groups, nil
}

// Resume gives back a suspension grant. For a suspended application only
// the host status is reset, its storage nodes stay as they are.
func (s *Service) Resume(ctx context.Context, oc models.OrchestratorContext, host models.HostName) error {
	started := time.Now()
	app, err := s.applicationOf(host)
	if err != nil {
		s.observe(audit.OperationResume, "", []models.HostName{host}, oc, started, models.NewSuspensionReasons(), err)
		return err
	}
	hostStatus, err := s.registry.HostStatus(ctx, app.ID, host)
	if err != nil {
		return fmt.Errorf("failed to get status of %s: %w", host, err)
	}
	if hostStatus == models.NoRemarks {
		return nil
	}
	group, err := models.NewNodeGroup(app, host)
	if err != nil {
		return fmt.Errorf("failed to build node group of %s: %w", host, err)
	}

	err = s.withApplicationLock(ctx, app.ID, func(session status.Session) error {
		api, err := application.NewApplicationAPI(group, session, s.controllers)
		if err != nil {
			return err
		}
		if session.ApplicationStatus() == models.ApplicationAllowedToBeDown {
			if session.HostStatus(host) != models.AllowedToBeDown {
				return nil
			}
			return api.SetHostStatus(ctx, oc, host, models.NoRemarks)
		}
		return s.policy.ReleaseSuspensionGrant(ctx, oc, api)
	})
	s.observe(audit.OperationResume, app.ID, group.Hosts(), oc, started, models.NewSuspensionReasons(), err)
	return err
}

func (s *Service) AcquirePermissionToRemove(ctx context.Context, oc models.OrchestratorContext, host models.HostName) error {
	started := time.Now()
	app, err := s.applicationOf(host)
	if err != nil {
		s.observe(audit.OperationRemove, "", []models.HostName{host}, oc, started, models.NewSuspensionReasons(), err)
		return err
	}
	group, err := models.NewNodeGroup(app, host)
	if err != nil {
		return fmt.Errorf("failed to build node group of %s: %w", host, err)
	}

	err = s.withApplicationLock(ctx, app.ID, func(session status.Session) error {
		api, err := application.NewApplicationAPI(group, session, s.controllers)
		if err != nil {
			return err
		}
		return s.policy.AcquirePermissionToRemove(ctx, oc, api)
	})
	s.observe(audit.OperationRemove, app.ID, group.Hosts(), oc, started, models.NewSuspensionReasons(), err)
	return err
}

func (s *Service) SuspendApplication(ctx context.Context, id models.ApplicationID) error {
	return s.setApplicationStatus(ctx, id, models.ApplicationAllowedToBeDown, audit.OperationSuspendApplication)
}

func (s *Service) ResumeApplication(ctx context.Context, id models.ApplicationID) error {
	return s.setApplicationStatus(ctx, id, models.ApplicationNoRemarks, audit.OperationResumeApplication)
}

func (s *Service) setApplicationStatus(
	ctx context.Context,
	id models.ApplicationID,
	appStatus models.ApplicationStatus,
	operation audit.Operation,
) error {
	started := time.Now()
	oc := models.NewOrchestratorContext(false)
	if _, ok := s.topology.Application(id); !ok {
		err := fmt.Errorf("application %s: %w", id, models.ErrHostNotFound)
		s.observe(operation, id, nil, oc, started, models.NewSuspensionReasons(), err)
		return err
	}
	err := s.withApplicationLock(ctx, id, func(session status.Session) error {
		if session.ApplicationStatus() == appStatus {
			return nil
		}
		return session.SetApplicationStatus(ctx, appStatus)
	})
	s.observe(operation, id, nil, oc, started, models.NewSuspensionReasons(), err)
	return err
}

func (s *Service) withApplicationLock(
	ctx context.Context,
	app models.ApplicationID,
	fn func(session status.Session) error,
) error {
	lockCtx := ctx
	if s.lockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, s.lockTimeout)
		defer cancel()
	}
	session, err := s.registry.LockApplication(lockCtx, app)
	if err != nil {
		return fmt.Errorf("failed to lock application %s: %w: %w", app, models.ErrTransient, err)
	}
	defer func() {
		closeErr := session.Close(ctx)
		if closeErr != nil {
			s.logger.Error().Err(closeErr).Msgf("failed to release lock of %s", app)
		}
	}()
	return fn(session)
}

func (s *Service) observe(
	operation audit.Operation,
	app models.ApplicationID,
	hosts []models.HostName,
	oc models.OrchestratorContext,
	started time.Time,
	reasons models.SuspensionReasons,
	err error,
) {
	metrics.ObserveDecision(s.metrics, string(operation), started, err)

	outcome := metrics.Outcome(err)
	switch outcome {
	case metrics.OutcomeGranted:
		s.logger.Info().Msgf("%s of %v in %s granted (probe=%t)", operation, hosts, app, oc.Probe)
	case metrics.OutcomeDenied:
		s.logger.Warn().Err(err).Msgf("%s of %v in %s denied (probe=%t)", operation, hosts, app, oc.Probe)
	default:
		s.logger.Error().Err(err).Msgf("%s of %v in %s failed (probe=%t)", operation, hosts, app, oc.Probe)
	}

	record, recordErr := audit.NewRecord(operation, app, hosts, oc.Probe)
	if recordErr != nil {
		s.logger.Error().Err(recordErr).Msg("failed to create audit record")
		return
	}
	s.auditor.Publish(record.WithResult(outcome, reasons, err).WithFingerprint(s.topology.Fingerprint()))
}
