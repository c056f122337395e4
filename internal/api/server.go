package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Sh00ty/host-orchestrator/internal/models"
)

const requestIDHeader = "X-Request-Id"

type Config struct {
	Addr string `envconfig:"API_ADDR,default=0.0.0.0:8081"`
	// requests per second over all routes, zero disables limiting
	RateLimit float64 `envconfig:"API_RATE_LIMIT,default=50"`
	RateBurst int     `envconfig:"API_RATE_BURST,default=100"`
	// ClusterControllerTimeout bounds each cluster controller call of a request.
	ClusterControllerTimeout time.Duration `envconfig:"API_CLUSTER_CONTROLLER_TIMEOUT,default=10s"`
}

type Server struct {
	orchestrator Orchestrator
	limiter      *rate.Limiter
	ccTimeout    time.Duration
	logger       zerolog.Logger
}

func NewServer(cfg Config, orchestrator Orchestrator, logger zerolog.Logger) *Server {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}
	return &Server{
		orchestrator: orchestrator,
		limiter:      limiter,
		ccTimeout:    cfg.ClusterControllerTimeout,
		logger:       logger.With().Str("component", "api").Logger(),
	}
}

func (s *Server) Handler() http.Handler {
	router := httprouter.New()
	router.GET("/orchestrator/v1/hosts/:hostname", s.getHost)
	router.PUT("/orchestrator/v1/hosts/:hostname/suspended", s.suspendHost)
	router.DELETE("/orchestrator/v1/hosts/:hostname/suspended", s.resumeHost)
	router.PUT("/orchestrator/v1/hosts/:hostname/removed", s.removeHost)
	router.PUT("/orchestrator/v1/suspensions/hosts/:parent", s.suspendAll)
	router.PUT("/orchestrator/v1/applications/:application/suspended", s.suspendApplication)
	router.DELETE("/orchestrator/v1/applications/:application/suspended", s.resumeApplication)
	return s.limited(router)
}

func (s *Server) limited(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Message: "too many requests"})
			return
		}
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID, _ = uuid.GenerateUUID()
		}
		w.Header().Set(requestIDHeader, requestID)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) orchestratorContext(r *http.Request) (models.OrchestratorContext, error) {
	oc := models.NewOrchestratorContext(false)
	if s.ccTimeout > 0 {
		oc.ClusterControllerTimeout = s.ccTimeout
	}
	probe := r.URL.Query().Get("probe")
	if probe == "" {
		return oc, nil
	}
	value, err := strconv.ParseBool(probe)
	if err != nil {
		return oc, err
	}
	oc.Probe = value
	return oc, nil
}

type hostResponse struct {
	Hostname          models.HostName          `json:"hostname"`
	Application       models.ApplicationID     `json:"application"`
	Status            models.HostStatus        `json:"state"`
	ApplicationStatus models.ApplicationStatus `json:"applicationState"`
}

func (s *Server) getHost(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	host := models.HostName(params.ByName("hostname"))
	info, err := s.orchestrator.HostInfo(r.Context(), host)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hostResponse{
		Hostname:          info.Host,
		Application:       info.Application,
		Status:            info.Status,
		ApplicationStatus: info.AppStatus,
	})
}

type updateHostResponse struct {
	Hostname models.HostName `json:"hostname"`
}

func (s *Server) suspendHost(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	s.updateHost(w, r, params, s.orchestrator.Suspend)
}

func (s *Server) resumeHost(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	s.updateHost(w, r, params, s.orchestrator.Resume)
}

func (s *Server) removeHost(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	s.updateHost(w, r, params, s.orchestrator.AcquirePermissionToRemove)
}

func (s *Server) updateHost(
	w http.ResponseWriter,
	r *http.Request,
	params httprouter.Params,
	update func(ctx context.Context, oc models.OrchestratorContext, host models.HostName) error,
) {
	oc, err := s.orchestratorContext(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid probe parameter"})
		return
	}
	host := models.HostName(params.ByName("hostname"))
	err = update(r.Context(), oc, host)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updateHostResponse{Hostname: host})
}

type batchResponse struct {
	ParentHostname models.HostName `json:"parentHostname"`
	Hostnames      []string        `json:"hostnames"`
}

func (s *Server) suspendAll(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	oc, err := s.orchestratorContext(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid probe parameter"})
		return
	}
	parent := models.HostName(params.ByName("parent"))
	names := r.URL.Query()["hostname"]
	if len(names) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "at least one hostname is required"})
		return
	}
	hosts := make([]models.HostName, 0, len(names))
	for _, name := range names {
		hosts = append(hosts, models.HostName(name))
	}

	err = s.orchestrator.SuspendAll(r.Context(), oc, parent, hosts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, batchResponse{ParentHostname: parent, Hostnames: names})
}

type applicationResponse struct {
	Application models.ApplicationID `json:"application"`
}

func (s *Server) suspendApplication(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	s.updateApplication(w, r, params, s.orchestrator.SuspendApplication)
}

func (s *Server) resumeApplication(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	s.updateApplication(w, r, params, s.orchestrator.ResumeApplication)
}

func (s *Server) updateApplication(
	w http.ResponseWriter,
	r *http.Request,
	params httprouter.Params,
	update func(ctx context.Context, id models.ApplicationID) error,
) {
	id := models.ApplicationID(params.ByName("application"))
	err := update(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, applicationResponse{Application: id})
}

type errorResponse struct {
	Message    string          `json:"message"`
	Hostname   string          `json:"hostname,omitempty"`
	Constraint string          `json:"constraint,omitempty"`
	Parent     models.HostName `json:"parentHostname,omitempty"`
	NodeGroup  string          `json:"nodeGroup,omitempty"`
}

// statusCode maps an orchestrator error to the HTTP status of the response.
// Unknown hosts are denials too, so they are checked first.
func statusCode(err error) int {
	switch {
	case errors.Is(err, models.ErrHostNotFound):
		return http.StatusNotFound
	case models.IsDenied(err):
		return http.StatusConflict
	case models.IsTransient(err), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusCode(err)
	resp := errorResponse{Message: err.Error()}
	if denied, ok := models.AsDenied(err); ok {
		resp.Hostname = denied.Target()
		resp.Constraint = denied.Constraint()
		resp.Message = denied.Message()
	}
	var batch *models.BatchHostStateChangeDeniedError
	if errors.As(err, &batch) {
		resp.Parent = batch.ParentHost()
		resp.NodeGroup = batch.NodeGroup()
	}
	if code == http.StatusInternalServerError {
		s.logger.Error().Err(err).Msgf("%s %s failed", r.Method, r.URL.Path)
	}
	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
