package observability

// Span and attribute names shared by the tracer and metrics so dashboards
// can join on them.
const (
	AttrServiceName     = "service.name"
	AttrServiceVersion  = "service.version"
	AttrAgentName       = "agent.name"
	AttrAgentLLM        = "agent.llm"
	AttrToolName        = "tool.name"
	AttrLLMModel        = "llm.model"
	AttrLLMTokensInput  = "llm.tokens.input"
	AttrLLMTokensOutput = "llm.tokens.output"
	AttrErrorType       = "error.type"
	AttrStatusCode      = "http.status_code"

	AttrHTTPMethod       = "http.method"
	AttrHTTPPath         = "http.path"
	AttrHTTPStatusCode   = "http.status_code"
	AttrHTTPResponseSize = "http.response_size"
)

// Span names, one per traced operation kind.
const (
	SpanAgentCall     = "agent.call"
	SpanLLMRequest    = "agent.llm_request"
	SpanToolExecution = "agent.tool_execution"
	SpanMemoryLookup  = "agent.memory_lookup"
	SpanHTTPRequest   = "http.request"
)

// Configuration fallbacks applied by SetDefaults.
const (
	// DefaultServiceName identifies this process in trace backends when
	// the configuration does not name one.
	DefaultServiceName = "loom"

	// DefaultSamplingRate samples every trace; dial down in production.
	DefaultSamplingRate = 1.0

	// DefaultOTLPEndpoint is a local collector's gRPC endpoint.
	DefaultOTLPEndpoint = "localhost:4317"

	// DefaultMetricsPath is the Prometheus scrape path.
	DefaultMetricsPath = "/metrics"
)
