package streamworker

import (
	"errors"
	"fmt"
)

// ErrorLevel represents the severity of an error.
type ErrorLevel int

const (
	// ErrorLevelDefault selects the default error level.
	ErrorLevelDefault ErrorLevel = iota
	// ErrorLevelDebug represents a very granular message.
	ErrorLevelDebug
	// ErrorLevelInfo represents an informational message.
	ErrorLevelInfo
	// ErrorLevelWarning represents a warning message.
	ErrorLevelWarning
	// ErrorLevelError represents an error message.
	ErrorLevelError
	// ErrorLevelCritical represents a critical error message.
	ErrorLevelCritical
)

const DefaultErrorLevel = ErrorLevelError

// String returns the string representation of the error level.
func (level ErrorLevel) String() string {
	switch level {
	case ErrorLevelDebug:
		return "DEBUG"
	case ErrorLevelInfo:
		return "INFO"
	case ErrorLevelWarning:
		return "WARNING"
	case ErrorLevelError:
		return "ERROR"
	case ErrorLevelCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Kind classifies bridge errors.
type Kind int

const (
	KindUnknown Kind = iota
	KindWorkerNotFound
	KindWorkerInit
	KindWorkerRuntime
	KindChannelDelivery
	KindStreamAlreadyEnded
	KindWorkerUnresponsive
)

func (k Kind) String() string {
	switch k {
	case KindWorkerNotFound:
		return "WorkerNotFound"
	case KindWorkerInit:
		return "WorkerInitError"
	case KindWorkerRuntime:
		return "WorkerRuntimeError"
	case KindChannelDelivery:
		return "ChannelDeliveryError"
	case KindStreamAlreadyEnded:
		return "StreamAlreadyEnded"
	case KindWorkerUnresponsive:
		return "WorkerUnresponsive"
	default:
		return "Unknown"
	}
}

// Error is the descriptor handed to OnError and returned by Start.
type Error struct {
	Kind    Kind
	Level   ErrorLevel
	Worker  string
	Message string
	Err     error
}

// Kind sentinels, for use with errors.Is.
var (
	ErrWorkerNotFound     = &Error{Kind: KindWorkerNotFound}
	ErrWorkerInit         = &Error{Kind: KindWorkerInit}
	ErrWorkerRuntime      = &Error{Kind: KindWorkerRuntime}
	ErrChannelDelivery    = &Error{Kind: KindChannelDelivery}
	ErrStreamAlreadyEnded = &Error{Kind: KindStreamAlreadyEnded, Message: "stream already ended"}
	ErrWorkerUnresponsive = &Error{Kind: KindWorkerUnresponsive}
)

var (
	ErrHandleClosed   = errors.New("handle is closing or closed")
	ErrMailboxClosed  = errors.New("mailbox closed")
	ErrQueueFull      = errors.New("queue full")
	ErrInputClosed    = errors.New("worker input closed")
	ErrNotRunning     = errors.New("handle not running")
	ErrStreamAttached = errors.New("stream already attached")
	ErrUnknownEvent   = errors.New("unknown event")
)

// NewError creates a new Error.
func NewError(kind Kind, level ErrorLevel, worker string, err error, format string, args ...any) *Error {
	if level == ErrorLevelDefault {
		level = DefaultErrorLevel
	}

	return &Error{
		Kind:    kind,
		Level:   level,
		Worker:  worker,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	prefix := e.Kind.String()
	if e.Worker != "" {
		prefix += " " + e.Worker
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, msg)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
