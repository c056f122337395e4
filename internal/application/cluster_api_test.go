package application

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sh00ty/host-orchestrator/internal/models"
)

func TestClusterAPIPartitions(t *testing.T) {
	c := cluster("web", models.ServiceTypeContainer, "h1", "h2", "h3", "h4")
	c.Instances[2].Status = models.ServiceDown
	app := models.ApplicationInstance{ID: "shop", Clusters: []models.ServiceCluster{c}}

	session := newFakeSession()
	session.hosts["h4"] = models.AllowedToBeDown

	api, err := NewClusterAPI(c, mustGroup(app, "h1"), session)
	require.NoError(t, err)

	assert.Equal(t, models.ContainerKind, api.Kind())
	assert.False(t, api.NoServicesInGroupIsUp())
	assert.False(t, api.NoServicesOutsideGroupIsDown())
	assert.Len(t, api.ServicesDownAndNotInGroup(), 2)
	assert.Equal(t, []models.HostName{"h4"}, api.NodesAllowedToBeDownNotInGroup())
	assert.Equal(t, 50, api.PercentageOfServicesDown())
	assert.Equal(t, 75, api.PercentageOfServicesDownIfGroupIsAllowedToBeDown())
}

func TestClusterAPIPercentageTruncates(t *testing.T) {
	c := cluster("web", models.ServiceTypeContainer, "h1", "h2", "h3")
	c.Instances[1].Status = models.ServiceDown
	app := models.ApplicationInstance{ID: "shop", Clusters: []models.ServiceCluster{c}}

	api, err := NewClusterAPI(c, mustGroup(app, "h1"), newFakeSession())
	require.NoError(t, err)
	assert.Equal(t, 66, api.PercentageOfServicesDownIfGroupIsAllowedToBeDown())
	assert.Equal(t, 33, api.PercentageOfServicesDown())
}

func TestClusterAPIMissingServicesCountAsDownOutside(t *testing.T) {
	c := cluster("configservers", models.ServiceTypeConfigServer, "cfg1", "cfg2")
	c.ExpectedSize = 3
	app := models.ApplicationInstance{ID: "zone-config-servers", Clusters: []models.ServiceCluster{c}}

	api, err := NewClusterAPI(c, mustGroup(app, "cfg1"), newFakeSession())
	require.NoError(t, err)

	assert.False(t, api.NoServicesOutsideGroupIsDown())
	assert.Empty(t, api.ServicesDownAndNotInGroup())
	assert.Equal(t, 66, api.PercentageOfServicesDownIfGroupIsAllowedToBeDown())
	assert.Contains(t, api.DownDescription(), "1 missing services")
}

func TestClusterAPIAllowedToBeDownHostsAreDown(t *testing.T) {
	c := cluster("web", models.ServiceTypeContainer, "h1", "h2")
	app := models.ApplicationInstance{ID: "shop", Clusters: []models.ServiceCluster{c}}

	session := newFakeSession()
	session.hosts["h1"] = models.AllowedToBeDown
	session.hosts["h2"] = models.PermanentlyDown

	api, err := NewClusterAPI(c, mustGroup(app, "h1"), session)
	require.NoError(t, err)

	assert.True(t, api.NoServicesInGroupIsUp())
	assert.True(t, api.AllServicesDown())
	assert.Equal(t, 100, api.PercentageOfServicesDown())

	reasons := api.ReasonsForNoServicesUp()
	assert.Equal(t, []models.HostName{"h1", "h2"}, reasons.Hosts())
}

func TestClusterAPIStorageNodeInGroup(t *testing.T) {
	c := cluster("music", models.ServiceTypeStorage, "h1", "h2", "h3")
	app := models.ApplicationInstance{ID: "music", Clusters: []models.ServiceCluster{c}}

	session := newFakeSession()
	session.hosts["h2"] = models.AllowedToBeDown

	api, err := NewClusterAPI(c, mustGroup(app, "h2"), session)
	require.NoError(t, err)
	assert.True(t, api.IsStorageCluster())

	node, ok := api.StorageNodeInGroup()
	require.True(t, ok)
	assert.Equal(t, models.HostName("h2"), node.Host)

	_, ok = api.UpStorageNodeInGroup()
	assert.False(t, ok)
}

func TestClusterAPITwoStorageNodesInGroup(t *testing.T) {
	c := cluster("music", models.ServiceTypeStorage, "h1", "h2", "h3")
	app := models.ApplicationInstance{ID: "music", Clusters: []models.ServiceCluster{c}}

	_, err := NewClusterAPI(c, mustGroup(app, "h1", "h2"), newFakeSession())
	require.ErrorIs(t, err, models.ErrInvariantViolation)
}

func TestClusterAPIWithoutServicesInGroup(t *testing.T) {
	web := cluster("web", models.ServiceTypeContainer, "h1")
	other := cluster("api", models.ServiceTypeContainer, "h2")
	app := models.ApplicationInstance{ID: "shop", Clusters: []models.ServiceCluster{web, other}}

	_, err := NewClusterAPI(other, mustGroup(app, "h1"), newFakeSession())
	require.Error(t, err)
}
