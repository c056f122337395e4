package clustercontroller

import (
	"time"

	"github.com/Sh00ty/host-orchestrator/internal/models"
)

type NodeType string

const (
	NodeTypeStorage     NodeType = "storage"
	NodeTypeDistributor NodeType = "distributor"
)

type Condition string

const (
	// ConditionSafe lets the cluster controller refuse the change when it
	// would reduce redundancy below what it considers safe.
	ConditionSafe  Condition = "SAFE"
	ConditionForce Condition = "FORCE"
)

const waitUntilClusterAcked = "wait-until-cluster-acked"

type SetNodeStateRequest struct {
	// Controllers are tried in order until one of them answers.
	Controllers []models.HostName
	ClusterID   models.ClusterID
	NodeType    NodeType
	NodeIndex   int
	State       models.ClusterControllerNodeState
	Reason      string
	Condition   Condition
	Probe       bool
	Timeout     time.Duration
}

type SetNodeStateResponse struct {
	WasModified bool
	Reason      string
}

// request and response bodies of /cluster/v2/<cluster>/<type>/<index>

type userState struct {
	State  string `json:"state"`
	Reason string `json:"reason"`
}

type stateRequest struct {
	User userState `json:"user"`
}

type setNodeStateBody struct {
	State        stateRequest `json:"state"`
	Condition    string       `json:"condition"`
	ResponseWait string       `json:"response-wait"`
	Probe        bool         `json:"probe"`
}

type setNodeStateResult struct {
	WasModified bool   `json:"wasModified"`
	Reason      string `json:"reason"`
}
