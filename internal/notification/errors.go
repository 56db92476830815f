package notification

import "fmt"

// ValidationError is returned when a notify payload is missing a required
// field or carries a malformed email address.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error for %q: %s", e.Field, e.Message)
	}
	return e.Message
}

// Stage identifies the step of an SMTP session that failed.
type Stage string

// SMTP session stages reported by TransportError.
const (
	StageRender   Stage = "render"
	StageConnect  Stage = "connect"
	StageGreeting Stage = "greeting"
	StageStartTLS Stage = "starttls"
	StageAuth     Stage = "auth"
	StageMailFrom Stage = "mail_from"
	StageRcptTo   Stage = "rcpt_to"
	StageData     Stage = "data"
)

// TransportError is returned when delivery fails during the SMTP session:
// the server is unreachable, rejects the credentials or breaks protocol.
type TransportError struct {
	Stage Stage
	Host  string
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("smtp %s (%s): %v", e.Stage, e.Host, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
