package models

import "time"

const DefaultClusterControllerTimeout = 10 * time.Second

// OrchestratorContext carries per request options down to the cluster
// controller calls. The deadline of the whole request lives in context.Context.
type OrchestratorContext struct {
	// Probe evaluates the request without writing host statuses. The
	// cluster controller is asked with its probe flag set.
	Probe                    bool
	ClusterControllerTimeout time.Duration
}

func NewOrchestratorContext(probe bool) OrchestratorContext {
	return OrchestratorContext{
		Probe:                    probe,
		ClusterControllerTimeout: DefaultClusterControllerTimeout,
	}
}

// Timeout returns the time left for one cluster controller call.
func (c OrchestratorContext) Timeout(deadline time.Time, hasDeadline bool) time.Duration {
	timeout := c.ClusterControllerTimeout
	if timeout <= 0 {
		timeout = DefaultClusterControllerTimeout
	}
	if hasDeadline {
		timeout = min(timeout, time.Until(deadline))
	}
	return timeout
}
