// Package errkind provides the daemon's single error-kind sum type: a
// stable string identifier plus a Fault wrapper carrying operation
// context, in place of ad-hoc error strings or a growing set of sentinel
// errors.
package errkind

// Kind is a stable, comparable, allocation-free error identifier.
type Kind string

func (k Kind) Error() string { return string(k) }

const (
	BadRequest          Kind = "bad_request"
	Forbidden           Kind = "forbidden"
	NotFound            Kind = "not_found"
	HardwareUnavailable Kind = "hardware_unavailable"
	DeadlineMiss        Kind = "deadline_miss"
	Internal            Kind = "internal"
)

// Fault carries a Kind plus operation context and an optional cause.
type Fault struct {
	K   Kind
	Op  string
	Msg string
	Err error
}

func (f *Fault) Error() string {
	if f.Msg != "" {
		return f.Op + ": " + f.Msg
	}
	if f.Err != nil {
		return f.Op + ": " + f.Err.Error()
	}
	return f.Op + ": " + string(f.K)
}

func (f *Fault) Unwrap() error { return f.Err }
func (f *Fault) Kind() Kind    { return f.K }

// New builds a Fault.
func New(k Kind, op, msg string) *Fault {
	return &Fault{K: k, Op: op, Msg: msg}
}

// Wrap builds a Fault around an existing error.
func Wrap(k Kind, op string, err error) *Fault {
	return &Fault{K: k, Op: op, Err: err}
}

// Of extracts a Kind from an error, defaulting to Internal.
func Of(err error) Kind {
	if err == nil {
		return ""
	}
	if k, ok := err.(Kind); ok {
		return k
	}
	type kinder interface{ Kind() Kind }
	if x, ok := err.(kinder); ok {
		return x.Kind()
	}
	return Internal
}

// HTTPStatus maps a Kind to the status code the REST edge should return.
func HTTPStatus(k Kind) int {
	switch k {
	case BadRequest:
		return 400
	case Forbidden:
		return 403
	case NotFound:
		return 404
	case HardwareUnavailable:
		return 503
	case DeadlineMiss:
		return 504
	default:
		return 500
	}
}
