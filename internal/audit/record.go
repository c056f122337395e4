package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/go-uuid"

	"github.com/Sh00ty/host-orchestrator/internal/models"
)

type Operation string

const (
	OperationSuspend            Operation = "suspend"
	OperationResume             Operation = "resume"
	OperationRemove             Operation = "remove"
	OperationSuspendAll         Operation = "suspend-all"
	OperationSuspendApplication Operation = "suspend-application"
	OperationResumeApplication  Operation = "resume-application"
)

// Record describes one orchestrator decision.
type Record struct {
	ID                  string               `json:"id"`
	Time                time.Time            `json:"time"`
	Operation           Operation            `json:"operation"`
	Application         models.ApplicationID `json:"application"`
	Hosts               []models.HostName    `json:"hosts,omitempty"`
	Probe               bool                 `json:"probe"`
	Outcome             string               `json:"outcome"`
	Constraint          string               `json:"constraint,omitempty"`
	Message             string               `json:"message,omitempty"`
	Reasons             []string             `json:"reasons,omitempty"`
	TopologyFingerprint string               `json:"topologyFingerprint,omitempty"`
}

func NewRecord(operation Operation, app models.ApplicationID, hosts []models.HostName, probe bool) (Record, error) {
	id, err := uuid.GenerateUUID()
	if err != nil {
		return Record{}, fmt.Errorf("failed to generate decision id: %w", err)
	}
	return Record{
		ID:          id,
		Time:        time.Now().UTC(),
		Operation:   operation,
		Application: app,
		Hosts:       hosts,
		Probe:       probe,
	}, nil
}

// WithResult fills the outcome fields from the error of the decision.
func (r Record) WithResult(outcome string, reasons models.SuspensionReasons, err error) Record {
	r.Outcome = outcome
	r.Reasons = reasons.LogLines()
	if err == nil {
		return r
	}
	r.Message = err.Error()
	if denied, ok := models.AsDenied(err); ok {
		r.Constraint = denied.Constraint()
	}
	return r
}

func (r Record) WithFingerprint(fingerprint uint64) Record {
	if fingerprint != 0 {
		r.TopologyFingerprint = fmt.Sprintf("%016x", fingerprint)
	}
	return r
}

func (r Record) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
