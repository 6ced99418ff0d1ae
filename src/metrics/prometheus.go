// Package metrics pushes build metrics to a Prometheus pushgateway. Since
// kiln runs as a short-lived process rather than a long-running server, it
// pushes rather than waiting to be scraped.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/prometheus/common/version"
	logging "gopkg.in/op/go-logging.v1"
)

var log = logging.MustGetLogger("metrics")

// Reporter pushes a run's registered collectors to a pushgateway on a timer.
type Reporter struct {
	pusher   *push.Pusher
	ticker   *time.Ticker
	done     chan struct{}
	maxErrs  int
	errCount int
}

// Config controls where and how often metrics are pushed.
type Config struct {
	GatewayURL string
	Frequency  time.Duration
	Timeout    time.Duration
	JobName    string
}

// NewReporter constructs a Reporter registered with the given collectors. A
// zero-value Config.GatewayURL disables reporting entirely (the returned
// Reporter's Start/Stop are then no-ops), matching the teacher's
// config-gated InitFromConfig pattern.
func NewReporter(cfg Config, collectors ...prometheus.Collector) *Reporter {
	if cfg.GatewayURL == "" {
		return &Reporter{}
	}
	registry := prometheus.NewRegistry()
	for _, c := range collectors {
		registry.MustRegister(c)
	}
	jobName := cfg.JobName
	if jobName == "" {
		jobName = "kiln"
	}
	pusher := push.New(cfg.GatewayURL, jobName).Gatherer(registry).
		Grouping("version", version.Version)
	frequency := cfg.Frequency
	if frequency <= 0 {
		frequency = 30 * time.Second
	}
	return &Reporter{pusher: pusher, ticker: time.NewTicker(frequency), done: make(chan struct{}), maxErrs: 3}
}

// Start begins periodic pushing in the background. Call Stop to end it.
func (r *Reporter) Start() {
	if r.pusher == nil {
		return
	}
	go func() {
		for {
			select {
			case <-r.ticker.C:
				if err := r.pusher.Push(); err != nil {
					r.errCount++
					log.Warningf("failed to push metrics: %s", err)
					if r.errCount >= r.maxErrs {
						log.Warningf("too many metrics push failures, giving up")
						return
					}
				}
			case <-r.done:
				return
			}
		}
	}()
}

// Stop ends periodic pushing and performs one final push.
func (r *Reporter) Stop() {
	if r.pusher == nil {
		return
	}
	close(r.done)
	r.ticker.Stop()
	if err := r.pusher.Push(); err != nil {
		log.Warningf("final metrics push failed: %s", err)
	}
}

// DurationToSeconds is a small helper so callers can avoid importing time
// solely to convert a histogram observation.
func DurationToSeconds(d time.Duration) float64 {
	return d.Seconds()
}
