package models

import "fmt"

type HostStatus string

const (
	NoRemarks       HostStatus = "NO_REMARKS"
	AllowedToBeDown HostStatus = "ALLOWED_TO_BE_DOWN"
	// ExpectedDown is set outside of the suspension flow, the policy
	// only ever reads it.
	ExpectedDown    HostStatus = "EXPECTED_DOWN"
	PermanentlyDown HostStatus = "PERMANENTLY_DOWN"
)

var hostStatuses = []HostStatus{
	NoRemarks,
	AllowedToBeDown,
	ExpectedDown,
	PermanentlyDown,
}

// IsSuspended is true for every status that gives the host permission
// to not serve traffic.
func (s HostStatus) IsSuspended() bool {
	return s != NoRemarks
}

func (s HostStatus) String() string {
	return string(s)
}

func ParseHostStatus(str string) (HostStatus, error) {
	for _, status := range hostStatuses {
		if string(status) == str {
			return status, nil
		}
	}
	return NoRemarks, fmt.Errorf("unknown host status %q", str)
}

type ApplicationStatus string

const (
	ApplicationNoRemarks       ApplicationStatus = "NO_REMARKS"
	ApplicationAllowedToBeDown ApplicationStatus = "ALLOWED_TO_BE_DOWN"
)

func ParseApplicationStatus(str string) (ApplicationStatus, error) {
	switch ApplicationStatus(str) {
	case ApplicationNoRemarks, ApplicationAllowedToBeDown:
		return ApplicationStatus(str), nil
	}
	return ApplicationNoRemarks, fmt.Errorf("unknown application status %q", str)
}

type ClusterControllerNodeState string

const (
	NodeStateUp          ClusterControllerNodeState = "up"
	NodeStateMaintenance ClusterControllerNodeState = "maintenance"
	NodeStateDown        ClusterControllerNodeState = "down"
)

type ConcurrentSuspensionLimit int

const (
	OneNode       ConcurrentSuspensionLimit = 0
	TenPercent    ConcurrentSuspensionLimit = 10
	TwentyPercent ConcurrentSuspensionLimit = 20
	FiftyPercent  ConcurrentSuspensionLimit = 50
	AllNodes      ConcurrentSuspensionLimit = 100
)

func (l ConcurrentSuspensionLimit) Percentage() int {
	return int(l)
}

func (l ConcurrentSuspensionLimit) String() string {
	switch l {
	case OneNode:
		return "ONE_NODE"
	case AllNodes:
		return "ALL_NODES"
	}
	return fmt.Sprintf("%d_PERCENT", int(l))
}
