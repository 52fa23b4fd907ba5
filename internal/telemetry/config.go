package telemetry

const (
	defaultServiceName = "nfs4d"
	defaultVersion     = "dev"
	defaultEndpoint    = "localhost:4317"
)

// Config selects the OTLP exporter and the sampling of the process tracer.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string

	// Endpoint is the host:port of an OTLP gRPC collector.
	Endpoint string
	// Insecure disables TLS towards Endpoint.
	Insecure bool
	// SampleRate is the fraction of root spans kept. Children follow their
	// parent's decision.
	SampleRate float64
}

// DefaultConfig returns a disabled configuration for build version that
// samples every trace and points at a local plaintext collector.
func DefaultConfig(version string) Config {
	return Config{
		ServiceVersion: version,
		Insecure:       true,
		SampleRate:     1.0,
	}.withDefaults()
}

// withDefaults fills the empty identity and endpoint fields.
func (c Config) withDefaults() Config {
	if c.ServiceName == "" {
		c.ServiceName = defaultServiceName
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = defaultVersion
	}
	if c.Endpoint == "" {
		c.Endpoint = defaultEndpoint
	}
	return c
}
