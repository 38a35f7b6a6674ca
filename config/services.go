package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/domain/model"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP server (webhook intake and dashboard API).
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeDispatcher runs the webhook dispatch runner.
	ServiceModeDispatcher ServiceMode = "dispatcher"
)

// ParseServices parses a comma-delimited string of service names and returns
// the enabled services. It validates that all service names are valid and
// returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	for _, part := range strings.Split(servicesStr, ",") {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeDispatcher:
			services[mode] = true
		default:
			return nil, fmt.Errorf("invalid service name: %q (valid options: http, dispatcher)", serviceName)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// OrchestratorConfig contains the review orchestrator collaborator settings.
type OrchestratorConfig struct {
	// BaseURL is the orchestrator's API root.
	BaseURL string `env:"ORCHESTRATOR_BASE_URL" envDefault:"http://localhost:3001"`

	// Token is the bearer token presented to the orchestrator, if any.
	Token string `env:"ORCHESTRATOR_TOKEN" envDefault:""`

	// Timeout bounds each orchestrator request. Automation execution is the
	// slow path, so the default is generous.
	Timeout time.Duration `env:"ORCHESTRATOR_TIMEOUT" envDefault:"120s"`
}

// Sanitize applies guardrails to orchestrator configuration values.
func (o *OrchestratorConfig) Sanitize() {
	o.BaseURL = strings.TrimSpace(o.BaseURL)
	if o.Timeout <= 0 {
		o.Timeout = 120 * time.Second
	}
}

// DispatcherConfig contains dispatch runner configuration.
type DispatcherConfig struct {
	// Concurrency is the number of worker goroutines.
	Concurrency int `env:"DISPATCH_CONCURRENCY" envDefault:"2"`

	// JobLease is the duration a worker holds one webhook job.
	JobLease time.Duration `env:"DISPATCH_JOB_LEASE" envDefault:"120s"`

	// PollInterval is the idle re-check period when no notification arrives.
	PollInterval time.Duration `env:"DISPATCH_POLL_INTERVAL" envDefault:"5s"`

	// RetryDelay is how long a failed job waits before its retry becomes
	// eligible again.
	RetryDelay time.Duration `env:"DISPATCH_RETRY_DELAY" envDefault:"30s"`

	// StatsInterval is the queue depth gauge period; 0 disables.
	StatsInterval time.Duration `env:"DISPATCH_STATS_INTERVAL" envDefault:"30s"`
}

// Sanitize applies guardrails to dispatcher configuration values.
func (d *DispatcherConfig) Sanitize() {
	if d.Concurrency < 1 {
		d.Concurrency = 1
	}
	if d.JobLease < 5*time.Second {
		d.JobLease = 5 * time.Second
	}
	if d.PollInterval <= 0 {
		d.PollInterval = 5 * time.Second
	}
	if d.RetryDelay < time.Second {
		d.RetryDelay = time.Second
	}
	if d.StatsInterval < 0 {
		d.StatsInterval = 0
	}
}

// ReviewConfig contains suggestion selection configuration. A quota of 0
// means unlimited for that tier.
type ReviewConfig struct {
	CriticalQuota int `env:"REVIEW_LIMITS_CRITICAL" envDefault:"0"`
	HighQuota     int `env:"REVIEW_LIMITS_HIGH"     envDefault:"0"`
	MediumQuota   int `env:"REVIEW_LIMITS_MEDIUM"   envDefault:"0"`
	LowQuota      int `env:"REVIEW_LIMITS_LOW"      envDefault:"0"`
}

// Sanitize applies guardrails to review configuration values.
func (r *ReviewConfig) Sanitize() {
	if r.CriticalQuota < 0 {
		r.CriticalQuota = 0
	}
	if r.HighQuota < 0 {
		r.HighQuota = 0
	}
	if r.MediumQuota < 0 {
		r.MediumQuota = 0
	}
	if r.LowQuota < 0 {
		r.LowQuota = 0
	}
}

// SeverityQuotas converts the config into the domain quota table.
func (r ReviewConfig) SeverityQuotas() model.SeverityQuotas {
	return model.SeverityQuotas{
		Critical: r.CriticalQuota,
		High:     r.HighQuota,
		Medium:   r.MediumQuota,
		Low:      r.LowQuota,
	}
}
