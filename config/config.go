// Package config holds the application configuration, loaded once at startup
// from environment variables and passed down by value. Components never read
// the environment themselves.
//
// Configuration is loaded using the github.com/caarlos0/env library. See the
// individual domain config files for available environment variables:
//   - database.go: PostgreSQL and Redis configuration
//   - http.go: HTTP server configuration
//   - services.go: Service mode, dispatcher, and review configuration
//   - observability.go: Metrics configuration
package config

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
type AppConfig struct {
	// Postgres and Redis configuration.
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// HTTP server configuration.
	HTTP HTTPConfig

	// Services is a comma-delimited list of enabled services.
	// Valid values: http, dispatcher
	Services string `env:"SERVICES" envDefault:"http,dispatcher"`

	// Orchestrator collaborator configuration.
	Orchestrator OrchestratorConfig

	// Dispatcher worker configuration.
	Dispatcher DispatcherConfig

	// Review suggestion selection configuration.
	Review ReviewConfig

	// Observability configuration.
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.Orchestrator.Sanitize()
	c.Dispatcher.Sanitize()
	c.Review.Sanitize()
	c.Observability.Sanitize()
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsHTTPServerEnabled returns true if the HTTP server service is enabled.
func (c *AppConfig) IsHTTPServerEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeHTTP]
}

// IsDispatcherEnabled returns true if the dispatch runner service is enabled.
func (c *AppConfig) IsDispatcherEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeDispatcher]
}
