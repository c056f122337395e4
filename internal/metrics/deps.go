package metrics

import "time"

type Metrics interface {
	Increment(metric string)
	Duration(metric string, duration time.Duration)
	Gauge(metric string, value int)
}
