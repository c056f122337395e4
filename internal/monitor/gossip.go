package monitor

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/memberlist"
	"github.com/rs/zerolog"

	"github.com/Sh00ty/host-orchestrator/internal/models"
)

type GossipConfig struct {
	NodeName      string        `envconfig:"GOSSIP_NODE_NAME,optional"`
	Port          int           `envconfig:"GOSSIP_PORT,default=7946"`
	ProbeInterval time.Duration `envconfig:"GOSSIP_PROBE_INTERVAL,default=1s"`
	ProbeTimeout  time.Duration `envconfig:"GOSSIP_PROBE_TIMEOUT,default=500ms"`
	SeedNodes     []string      `envconfig:"GOSSIP_SEED_NODES,optional"`
}

// Gossip joins the memberlist cluster of host agents and turns its node
// events into membership events.
type Gossip struct {
	list      *memberlist.Memberlist
	seedNodes []string
	logger    zerolog.Logger
}

func NewGossip(ctx context.Context, cfg GossipConfig, notify chan<- MembershipEvent, logger zerolog.Logger) (*Gossip, error) {
	const eventBufSize = 256

	logger = logger.With().Str("component", "gossip").Logger()
	events := make(chan memberlist.NodeEvent, eventBufSize)
	config := memberlist.DefaultLANConfig()
	if cfg.NodeName != "" {
		config.Name = cfg.NodeName
	}
	config.BindPort = cfg.Port
	config.AdvertisePort = cfg.Port
	config.LogOutput = io.Discard
	if cfg.ProbeInterval > 0 {
		config.ProbeInterval = cfg.ProbeInterval
	}
	if cfg.ProbeTimeout > 0 {
		config.ProbeTimeout = cfg.ProbeTimeout
	}
	config.Events = &memberlist.ChannelEventDelegate{
		Ch: events,
	}

	ml, err := memberlist.Create(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create memberlist: %w", err)
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case mlEvent, opened := <-events:
				if !opened {
					return
				}
				event, ok := translateEvent(mlEvent)
				if !ok {
					logger.Warn().Msgf(
						"got unknown event from node %s: type=%d, node.status=%d",
						mlEvent.Node.Name, mlEvent.Event, mlEvent.Node.State,
					)
					continue
				}
				logger.Debug().Msgf("host %s is %s", event.Host, event.Type)
				select {
				case notify <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return &Gossip{
		list:      ml,
		seedNodes: cfg.SeedNodes,
		logger:    logger,
	}, nil
}

func translateEvent(event memberlist.NodeEvent) (MembershipEvent, bool) {
	eventType := MembershipUnknown
	switch event.Event {
	case memberlist.NodeJoin:
		eventType = MembershipAlive
	case memberlist.NodeLeave:
		switch event.Node.State {
		case memberlist.StateLeft:
			eventType = MembershipLeft
		case memberlist.StateSuspect:
			eventType = MembershipSuspect
		default:
			eventType = MembershipDead
		}
	case memberlist.NodeUpdate:
		switch event.Node.State {
		case memberlist.StateAlive:
			eventType = MembershipAlive
		case memberlist.StateSuspect:
			eventType = MembershipSuspect
		}
	}
	if eventType == MembershipUnknown {
		return MembershipEvent{}, false
	}
	return MembershipEvent{
		Type: eventType,
		Host: models.HostName(event.Node.Name),
	}, true
}

func (g *Gossip) Join(context.Context) error {
	if len(g.seedNodes) == 0 {
		return nil
	}
	_, err := g.list.Join(g.seedNodes)
	if err != nil {
		return fmt.Errorf("failed to join memberlist: %w", err)
	}
	return nil
}

func (g *Gossip) Leave(timeout time.Duration) error {
	g.logger.Warn().Msg("leaving gossip cluster")

	err := g.list.Leave(timeout)
	if err != nil {
		return fmt.Errorf("failed to leave memberlist: %w", err)
	}
	return g.list.Shutdown()
}
