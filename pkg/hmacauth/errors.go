package hmacauth

// Reason classifies why a request was rejected.
type Reason int

const (
	MissingHeaders Reason = iota + 1
	UnknownService
	StaleTimestamp
	BadSignature
)

// Message is the client-facing text for the reason.
func (r Reason) Message() string {
	switch r {
	case MissingHeaders:
		return "Missing required authentication headers."
	case UnknownService:
		return "Invalid service identifier."
	case StaleTimestamp:
		return "Request timestamp is outside acceptable window."
	case BadSignature:
		return "Invalid signature."
	default:
		return "Unauthorized."
	}
}

func (r Reason) String() string {
	switch r {
	case MissingHeaders:
		return "missing headers"
	case UnknownService:
		return "unknown service"
	case StaleTimestamp:
		return "stale timestamp"
	case BadSignature:
		return "bad signature"
	default:
		return "unknown"
	}
}

// Error is returned by Verify when a request is rejected.
type Error struct {
	Reason Reason
}

func (e *Error) Error() string {
	return "hmacauth: " + e.Reason.String()
}

var (
	ErrMissingHeaders = &Error{Reason: MissingHeaders}
	ErrUnknownService = &Error{Reason: UnknownService}
	ErrStaleTimestamp = &Error{Reason: StaleTimestamp}
	ErrBadSignature   = &Error{Reason: BadSignature}
)
