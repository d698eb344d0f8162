// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package observability

import (
	"fmt"
	"time"
)

// Config is the observability section of the server configuration:
// OpenTelemetry tracing plus Prometheus metrics, each independently
// switchable.
type Config struct {
	// Tracing configures distributed tracing.
	Tracing TracingConfig `yaml:"tracing,omitempty"`

	// Metrics configures Prometheus metrics collection.
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	// Enabled turns on distributed tracing. Default: false.
	Enabled bool `yaml:"enabled,omitempty"`

	// Exporter selects the trace exporter. Only "otlp" (gRPC) is
	// wired; the collector fans out to other backends.
	Exporter string `yaml:"exporter,omitempty"`

	// Endpoint is the collector endpoint, e.g. "localhost:4317" for
	// OTLP over gRPC.
	Endpoint string `yaml:"endpoint,omitempty"`

	// SamplingRate is the sampled fraction of traces, 0.0 to 1.0.
	// Default: 1.0.
	SamplingRate float64 `yaml:"sampling_rate,omitempty"`

	// ServiceName identifies this service in traces. Default: "loom".
	ServiceName string `yaml:"service_name,omitempty"`

	// ServiceVersion tags spans with the running version.
	ServiceVersion string `yaml:"service_version,omitempty"`

	// Insecure disables TLS to the collector. nil defaults to true,
	// matching a local collector.
	Insecure *bool `yaml:"insecure,omitempty"`

	// Headers are sent with every export request (auth tokens, tenant
	// routing).
	Headers map[string]string `yaml:"headers,omitempty"`

	// CapturePayloads records full model requests and responses on
	// spans. Spans get large; debugging only.
	CapturePayloads bool `yaml:"capture_payloads,omitempty"`

	// DebugExporter keeps recent spans in memory for the diagnostics
	// UI. nil defaults to enabled whenever tracing is.
	DebugExporter *bool `yaml:"debug_exporter,omitempty"`

	// Timeout bounds each export operation. Default: 10s.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Enabled turns on metrics collection. Default: false.
	Enabled bool `yaml:"enabled,omitempty"`

	// Endpoint is the scrape path. Default: "/metrics".
	Endpoint string `yaml:"endpoint,omitempty"`

	// Namespace prefixes every metric name. Default: "loom".
	Namespace string `yaml:"namespace,omitempty"`

	// Subsystem is accepted but not applied: every metric carries its
	// own fixed subsystem (agent, llm, tool, memory, session, http,
	// rag), so namespace="loom" yields "loom_agent_calls_total".
	Subsystem string `yaml:"subsystem,omitempty"`

	// ConstLabels are attached to every metric.
	ConstLabels map[string]string `yaml:"const_labels,omitempty"`
}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	c.Tracing.SetDefaults()
	c.Metrics.SetDefaults()
}

// Validate checks both sections.
func (c *Config) Validate() error {
	if err := c.Tracing.Validate(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}

// validTraceExporters are the accepted TracingConfig.Exporter values.
// Other backends are reached by pointing the OTLP collector at them.
var validTraceExporters = map[string]bool{
	"otlp": true,
}

// SetDefaults applies default values.
func (c *TracingConfig) SetDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = DefaultServiceName
	}
	if c.SamplingRate == 0 {
		c.SamplingRate = DefaultSamplingRate
	}
	if c.Exporter == "" {
		c.Exporter = "otlp"
	}
	if c.Endpoint == "" {
		c.Endpoint = DefaultOTLPEndpoint
	}
	if c.Insecure == nil {
		insecure := true
		c.Insecure = &insecure
	}
	if c.DebugExporter == nil && c.Enabled {
		debug := true
		c.DebugExporter = &debug
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
}

// Validate checks the tracing section; a disabled section is always
// valid.
func (c *TracingConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required when tracing is enabled")
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return fmt.Errorf("sampling_rate must be between 0 and 1, got %f", c.SamplingRate)
	}
	if !validTraceExporters[c.Exporter] {
		return fmt.Errorf("invalid exporter %q (valid: otlp)", c.Exporter)
	}
	return nil
}

// IsDebugExporterEnabled resolves the tri-state DebugExporter flag,
// defaulting to the tracing flag itself.
func (c *TracingConfig) IsDebugExporterEnabled() bool {
	if c.DebugExporter == nil {
		return c.Enabled
	}
	return *c.DebugExporter
}

// IsInsecure resolves the tri-state Insecure flag, defaulting to true.
func (c *TracingConfig) IsInsecure() bool {
	if c.Insecure == nil {
		return true
	}
	return *c.Insecure
}

// SetDefaults applies default values.
func (c *MetricsConfig) SetDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = DefaultMetricsPath
	}
	if c.Namespace == "" {
		c.Namespace = "loom"
	}
}

// Validate checks the metrics section; a disabled section is always
// valid.
func (c *MetricsConfig) Validate() error {
	if c.Enabled && c.Endpoint == "" {
		return fmt.Errorf("endpoint is required when metrics are enabled")
	}
	return nil
}
