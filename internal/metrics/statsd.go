package metrics

import (
	"time"

	statsd "github.com/smira/go-statsd"
)

type Config struct {
	Addr   string `envconfig:"STATSD_ADDR,optional"`
	Prefix string `envconfig:"STATSD_PREFIX,default=apps.orchestrator."`
}

type Statsd struct {
	client *statsd.Client
}

// New returns a statsd sink, or a no-op one when no address is set.
func New(cfg Config, nodeName string) Metrics {
	if cfg.Addr == "" {
		return Nop{}
	}
	return NewStatsd(cfg, nodeName)
}

func NewStatsd(cfg Config, nodeName string) *Statsd {
	clnt := statsd.NewClient(
		cfg.Addr,
		statsd.MetricPrefix(cfg.Prefix),
		statsd.DefaultTags(statsd.StringTag("node", nodeName)),
	)
	return &Statsd{
		client: clnt,
	}
}

func (s *Statsd) Increment(metric string) {
	s.client.Incr(metric, 1)
}

func (s *Statsd) Duration(metric string, duration time.Duration) {
	s.client.PrecisionTiming(metric, duration)
}

func (s *Statsd) Gauge(metric string, value int) {
	s.client.Gauge(metric, int64(value))
}

func (s *Statsd) Close() error {
	return s.client.Close()
}

type Nop struct{}

func (Nop) Increment(string) {}

func (Nop) Duration(string, time.Duration) {}

func (Nop) Gauge(string, int) {}
