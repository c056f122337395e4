package models

import (
	"errors"
	"fmt"
)

const (
	ConstraintEnoughServicesUp           = "enough-services-up"
	ConstraintApplicationSuspended       = "application-suspended"
	ConstraintSetNodeState               = "set-node-state"
	ConstraintClusterControllerAvailable = "cluster-controller-available"
	ConstraintUnknownHost                = "unknown-host"
)

var (
	// ErrTransient marks failures that say nothing about safety, e.g. the
	// cluster controller could not be reached. The whole request may be retried.
	ErrTransient = errors.New("transient failure")
	// ErrInvariantViolation marks a topology the policy cannot reason about.
	ErrInvariantViolation = errors.New("invariant violation")
	ErrHostNotFound       = errors.New("host not found")
)

// HostStateChangeDeniedError is the policy refusing an unsafe change.
type HostStateChangeDeniedError struct {
	target     string
	constraint string
	message    string
}

func NewHostStateChangeDenied(group NodeGroup, constraint, message string) *HostStateChangeDeniedError {
	return &HostStateChangeDeniedError{
		target:     group.String(),
		constraint: constraint,
		message:    message,
	}
}

func NewHostStateChangeDeniedForHost(host HostName, constraint, message string) *HostStateChangeDeniedError {
	return &HostStateChangeDeniedError{
		target:     string(host),
		constraint: constraint,
		message:    message,
	}
}

func (e *HostStateChangeDeniedError) Target() string {
	return e.target
}

func (e *HostStateChangeDeniedError) Constraint() string {
	return e.constraint
}

func (e *HostStateChangeDeniedError) Message() string {
	return e.message
}

func (e *HostStateChangeDeniedError) Error() string {
	return fmt.Sprintf("changing the state of %s would violate %s: %s", e.target, e.constraint, e.message)
}

// BatchHostStateChangeDeniedError is a denial of one node group while
// suspending every child of a parent host.
type BatchHostStateChangeDeniedError struct {
	parentHost HostName
	nodeGroup  string
	denied     *HostStateChangeDeniedError
}

func NewBatchHostStateChangeDenied(
	parentHost HostName,
	group NodeGroup,
	denied *HostStateChangeDeniedError,
) *BatchHostStateChangeDeniedError {
	return &BatchHostStateChangeDeniedError{
		parentHost: parentHost,
		nodeGroup:  group.String(),
		denied:     denied,
	}
}

func (e *BatchHostStateChangeDeniedError) ParentHost() HostName {
	return e.parentHost
}

func (e *BatchHostStateChangeDeniedError) NodeGroup() string {
	return e.nodeGroup
}

func (e *BatchHostStateChangeDeniedError) Error() string {
	return fmt.Sprintf(
		"failed to suspend %s with parent host %s: %s",
		e.nodeGroup, e.parentHost, e.denied.Error(),
	)
}

func (e *BatchHostStateChangeDeniedError) Unwrap() error {
	return e.denied
}

// AsDenied returns the denial carried by err, also through batch errors.
func AsDenied(err error) (*HostStateChangeDeniedError, bool) {
	var denied *HostStateChangeDeniedError
	if errors.As(err, &denied) {
		return denied, true
	}
	return nil, false
}

func IsDenied(err error) bool {
	_, ok := AsDenied(err)
	return ok
}

func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
