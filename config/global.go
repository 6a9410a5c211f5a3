package config

import (
	"strings"

	"lendledger/native/common"
	"lendledger/native/lending"
	"lendledger/observability/logging"
	"lendledger/observability/otel"
)

// PauseSet converts the pause section into the view consulted by the engine.
func (c *Config) PauseSet() common.PauseSet {
	keys := make([]string, 0, len(c.Pauses.Actions)+1)
	if c.Pauses.Lending {
		keys = append(keys, lending.ModuleName)
	}
	for _, action := range c.Pauses.Actions {
		keys = append(keys, lending.ModuleName+"."+strings.TrimSpace(action))
	}
	return common.NewPauseSet(keys...)
}

// LoggingOptions maps the logging section onto the log sink setup.
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{
		Service:    c.Logging.Service,
		Env:        c.Logging.Env,
		Level:      c.Logging.Level,
		File:       c.Logging.File,
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
	}
}

// TelemetryConfig maps the telemetry section onto the exporter setup.
func (c *Config) TelemetryConfig() otel.Config {
	return otel.Config{
		ServiceName: c.Logging.Service,
		Environment: c.Logging.Env,
		Endpoint:    c.Telemetry.Endpoint,
		Insecure:    c.Telemetry.Insecure,
		Headers:     otel.ParseHeaders(c.Telemetry.Headers),
		Traces:      c.Telemetry.Traces,
		Metrics:     c.Telemetry.Metrics,
		SampleRatio: c.Telemetry.SampleRatio,
	}
}
