package clustercontroller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sh00ty/host-orchestrator/internal/models"
)

type Config struct {
	Port    int           `envconfig:"CLUSTER_CONTROLLER_PORT,default=19050"`
	Timeout time.Duration `envconfig:"CLUSTER_CONTROLLER_TIMEOUT,default=10s"`
	Scheme  string        `envconfig:"CLUSTER_CONTROLLER_SCHEME,default=http"`
}

var errRetryable = errors.New("cluster controller unavailable")

// ErrRejected marks a 4xx answer, the controller understood the request
// and refused it.
var ErrRejected = errors.New("cluster controller rejected request")

type Client struct {
	http   *http.Client
	port   int
	scheme string
	logger zerolog.Logger
}

func NewClient(cfg Config, logger zerolog.Logger) *Client {
	scheme := cfg.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return &Client{
		http:   &http.Client{Timeout: cfg.Timeout},
		port:   cfg.Port,
		scheme: scheme,
		logger: logger.With().Str("component", "cluster-controller-client").Logger(),
	}
}

// SetNodeState asks the cluster controllers in order to change the user
// state of one node. Transport failures, 5xx and undecodable answers move
// on to the next controller. A 4xx answer is returned as ErrRejected.
func (c *Client) SetNodeState(ctx context.Context, req SetNodeStateRequest) (SetNodeStateResponse, error) {
	if len(req.Controllers) == 0 {
		return SetNodeStateResponse{}, fmt.Errorf("no cluster controllers for cluster %s: %w", req.ClusterID, models.ErrTransient)
	}
	body, err := json.Marshal(setNodeStateBody{
		State: stateRequest{
			User: userState{
				State:  string(req.State),
				Reason: req.Reason,
			},
		},
		Condition:    string(req.Condition),
		ResponseWait: waitUntilClusterAcked,
		Probe:        req.Probe,
	})
	if err != nil {
		return SetNodeStateResponse{}, fmt.Errorf("failed to marshal set node state request: %w", err)
	}

	var lastErr error
	for _, controller := range req.Controllers {
		resp, err := c.setNodeState(ctx, controller, req, body)
		if err == nil {
			return resp, nil
		}
		if !errors.Is(err, errRetryable) {
			return SetNodeStateResponse{}, err
		}
		c.logger.Warn().Err(err).Msgf("cluster controller %s failed, trying next", controller)
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return SetNodeStateResponse{}, fmt.Errorf(
		"failed to set %s/%s/%d to %s on every cluster controller: %w: %w",
		req.ClusterID, req.NodeType, req.NodeIndex, req.State, models.ErrTransient, lastErr,
	)
}

func (c *Client) setNodeState(
	ctx context.Context,
	controller models.HostName,
	req SetNodeStateRequest,
	body []byte,
) (SetNodeStateResponse, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	url := c.nodeStateURL(controller, req)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return SetNodeStateResponse{}, fmt.Errorf("failed to build request to %s: %w", url, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return SetNodeStateResponse{}, fmt.Errorf("%w: %s: %w", errRetryable, url, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return SetNodeStateResponse{}, fmt.Errorf("%w: failed to read answer of %s: %w", errRetryable, url, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return SetNodeStateResponse{}, fmt.Errorf("%w: %s answered %d: %s", errRetryable, url, resp.StatusCode, payload)
	}
	if resp.StatusCode != http.StatusOK {
		return SetNodeStateResponse{}, fmt.Errorf("%w: %s answered %d: %s", ErrRejected, url, resp.StatusCode, payload)
	}

	var result setNodeStateResult
	err = json.Unmarshal(payload, &result)
	if err != nil {
		return SetNodeStateResponse{}, fmt.Errorf("%w: failed to decode answer of %s: %w", errRetryable, url, err)
	}
	c.logger.Debug().Msgf("%s answered wasModified=%t reason=%q", url, result.WasModified, result.Reason)
	return SetNodeStateResponse{
		WasModified: result.WasModified,
		Reason:      result.Reason,
	}, nil
}

func (c *Client) nodeStateURL(controller models.HostName, req SetNodeStateRequest) string {
	return fmt.Sprintf(
		"%s://%s/cluster/v2/%s/%s/%d",
		c.scheme,
		net.JoinHostPort(string(controller), strconv.Itoa(c.port)),
		req.ClusterID,
		req.NodeType,
		req.NodeIndex,
	)
}
