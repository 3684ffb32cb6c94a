package dispatch

// Response is the wire-format-neutral result of one command. Payload holds
// the typed result data (domain.Domain, []lifecycle.CheckResult, ...) for the
// codec to render; nil for commands with no result data.
type Response struct {
	Code    int
	Message string
	// Reason carries the engine's detail message on failure.
	Reason  string
	ClTRID  string
	SvTRID  string
	Payload any
}

// Encoder renders one response to wire bytes. The dispatcher encodes inside
// the command transaction so the audit record holds the exact frame sent, and
// replays return those stored bytes verbatim.
type Encoder interface {
	Response(r Response) ([]byte, error)
}
