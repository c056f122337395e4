package models

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var ErrEmptyNodeGroup = errors.New("node group must contain at least one host")

// NodeGroup is the set of hosts of one application that is suspended,
// resumed or removed as a single decision.
type NodeGroup struct {
	application ApplicationInstance
	hosts       []HostName
}

func NewNodeGroup(application ApplicationInstance, hosts ...HostName) (NodeGroup, error) {
	if len(hosts) == 0 {
		return NodeGroup{}, ErrEmptyNodeGroup
	}
	unique := slices.Clone(hosts)
	slices.Sort(unique)
	unique = slices.Compact(unique)
	for _, host := range unique {
		if !application.HasHost(host) {
			return NodeGroup{}, fmt.Errorf("host %s does not belong to application %s", host, application.ID)
		}
	}
	return NodeGroup{
		application: application,
		hosts:       unique,
	}, nil
}

func (g NodeGroup) Application() ApplicationInstance {
	return g.application
}

func (g NodeGroup) ApplicationID() ApplicationID {
	return g.application.ID
}

// Hosts returns the sorted hosts of the group.
func (g NodeGroup) Hosts() []HostName {
	return slices.Clone(g.hosts)
}

func (g NodeGroup) Contains(host HostName) bool {
	_, found := slices.BinarySearch(g.hosts, host)
	return found
}

func (g NodeGroup) Size() int {
	return len(g.hosts)
}

func (g NodeGroup) String() string {
	strs := make([]string, 0, len(g.hosts))
	for _, host := range g.hosts {
		strs = append(strs, string(host))
	}
	return strings.Join(strs, ",")
}
