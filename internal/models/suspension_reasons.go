package models

import (
	"fmt"
	"slices"
	"strings"
)

// SuspensionReasons collects per host justifications for why a suspension
// was granted even though it looked risky. Empty means nothing noteworthy.
type SuspensionReasons struct {
	reasons map[HostName][]string
}

func NewSuspensionReasons() SuspensionReasons {
	return SuspensionReasons{reasons: make(map[HostName][]string)}
}

func (r *SuspensionReasons) Add(host HostName, reason string) {
	if r.reasons == nil {
		r.reasons = make(map[HostName][]string)
	}
	if slices.Contains(r.reasons[host], reason) {
		return
	}
	r.reasons[host] = append(r.reasons[host], reason)
}

// MergeWith adds every reason of other, keeping the order within each host.
func (r *SuspensionReasons) MergeWith(other SuspensionReasons) {
	for _, host := range other.Hosts() {
		for _, reason := range other.reasons[host] {
			r.Add(host, reason)
		}
	}
}

func (r SuspensionReasons) IsEmpty() bool {
	return len(r.reasons) == 0
}

func (r SuspensionReasons) Hosts() []HostName {
	hosts := make([]HostName, 0, len(r.reasons))
	for host := range r.reasons {
		hosts = append(hosts, host)
	}
	slices.Sort(hosts)
	return hosts
}

func (r SuspensionReasons) Reasons(host HostName) []string {
	return slices.Clone(r.reasons[host])
}

// LogLines renders one line per host, sorted by host.
func (r SuspensionReasons) LogLines() []string {
	lines := make([]string, 0, len(r.reasons))
	for _, host := range r.Hosts() {
		lines = append(lines, fmt.Sprintf("%s: %s", host, strings.Join(r.reasons[host], ", ")))
	}
	return lines
}

func (r SuspensionReasons) String() string {
	parts := make([]string, 0, len(r.reasons))
	for _, host := range r.Hosts() {
		parts = append(parts, fmt.Sprintf("%s: [%s]", host, strings.Join(r.reasons[host], ", ")))
	}
	return strings.Join(parts, "; ")
}
