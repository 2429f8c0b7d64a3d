package logkey

// Keys used for structured log attributes across all services.
const (
	RequestID = "request_id"
	ERROR     = "error"
	Service   = "service"
	Endpoint  = "endpoint"
	Event     = "event"
	Extra     = "extra"
)
