package etcd

import (
	"path"

	"github.com/Sh00ty/host-orchestrator/internal/models"
)

/*
orchestrator/applications/music(%s)/status
orchestrator/applications/music(%s)/hosts/host1.example.com(%s)
orchestrator/locks/music(%s)/<lease-id>
*/

const (
	orchestratorFolder = "/orchestrator"
	applicationsFolder = orchestratorFolder + "/applications"
	locksFolder        = orchestratorFolder + "/locks"

	statusKeyName = "status"
	hostsKeyName  = "hosts"
)

// orchestrator/applications/music(%s)
func applicationFolder(app models.ApplicationID) string {
	return path.Join(applicationsFolder, string(app))
}

// orchestrator/applications/music(%s)/
func applicationPrefix(app models.ApplicationID) string {
	return applicationFolder(app) + "/"
}

// orchestrator/applications/music(%s)/status
func applicationStatusKey(app models.ApplicationID) string {
	return path.Join(applicationFolder(app), statusKeyName)
}

// orchestrator/applications/music(%s)/hosts
func hostsFolder(app models.ApplicationID) string {
	return path.Join(applicationFolder(app), hostsKeyName)
}

// orchestrator/applications/music(%s)/hosts/host1.example.com(%s)
func hostStatusKey(app models.ApplicationID, host models.HostName) string {
	return path.Join(hostsFolder(app), string(host))
}

// orchestrator/locks/music(%s)
func applicationLockKey(app models.ApplicationID) string {
	return path.Join(locksFolder, string(app))
}
