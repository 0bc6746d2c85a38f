package otel

import (
	"fmt"
)

// Config configures OpenTelemetry
type Config struct {
	// ServiceName is the name of the service
	ServiceName string `yaml:"service-name" json:"service_name" mapstructure:"service-name"`

	// ServiceVersion is the version of the service
	ServiceVersion string `yaml:"service-version" json:"service_version" mapstructure:"service-version"`

	// Exporter is the exporter type: "jaeger", "zipkin", "stdout", "none"
	Exporter string `yaml:"exporter" json:"exporter" mapstructure:"exporter"`

	// Endpoint is the exporter endpoint URL
	Endpoint string `yaml:"endpoint" json:"endpoint" mapstructure:"endpoint"`

	// Environment is the deployment environment (dev, staging, prod)
	Environment string `yaml:"environment" json:"environment" mapstructure:"environment"`

	// SampleRate is the sampling rate (0.0 to 1.0)
	SampleRate float64 `yaml:"sample-rate" json:"sample_rate" mapstructure:"sample-rate"`
}

// DefaultConfig returns a configuration that traces nothing
func DefaultConfig() Config {
	return Config{
		ServiceName:    "conjecture",
		ServiceVersion: "0.1.0",
		Exporter:       "none",
		Environment:    "development",
		SampleRate:     1.0,
	}
}

// Validate validates the configuration
func (c Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service name cannot be empty")
	}
	if c.SampleRate < 0.0 || c.SampleRate > 1.0 {
		return fmt.Errorf("sample rate must be between 0.0 and 1.0")
	}
	switch c.Exporter {
	case "jaeger", "zipkin", "stdout", "none":
	default:
		return fmt.Errorf("unsupported exporter: %s", c.Exporter)
	}
	return nil
}
