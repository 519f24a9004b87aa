package protocol

import (
	"errors"
	"fmt"
)

// Kind is the closed set of internal error kinds from the error taxonomy.
// Propagation policy for each kind is applied by the callers: the
// connection handler in internal/server for connection-level kinds, and
// keyzd's startup for the configuration kinds.
type Kind int

const (
	// KindIO is an unclassified I/O failure.
	KindIO Kind = iota
	// KindClientDisconnected is a stream EOF / reset / broken pipe.
	KindClientDisconnected
	// KindClientTimeout is an idle-timeout expiry while awaiting a frame.
	KindClientTimeout
	// KindInvalidCommand covers a malformed frame, malformed command, or
	// unknown command.
	KindInvalidCommand
	// KindInvalidUTF8 is a frame body that does not decode as UTF-8.
	KindInvalidUTF8
	// KindTime is a clock failure.
	KindTime
	// KindInvalidConfig is a startup configuration validation failure.
	KindInvalidConfig
	// KindInvalidSocketAddress is an unparsable server.host/server.port pair.
	KindInvalidSocketAddress
	// KindConfigIO is a failure reading the configuration file.
	KindConfigIO
	// KindConfigParse is a failure parsing the configuration file contents.
	KindConfigParse
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindClientDisconnected:
		return "client_disconnected"
	case KindClientTimeout:
		return "client_timeout"
	case KindInvalidCommand:
		return "invalid_command"
	case KindInvalidUTF8:
		return "invalid_utf8"
	case KindTime:
		return "time"
	case KindInvalidConfig:
		return "invalid_config"
	case KindInvalidSocketAddress:
		return "invalid_socket_address"
	case KindConfigIO:
		return "config_io"
	case KindConfigParse:
		return "config_parse"
	default:
		return "unknown"
	}
}

// KeyzError is the single error type propagated across the core
// subsystems. It carries a Kind so callers can branch on propagation
// policy without string matching, plus an optional detail string and
// wrapped cause.
type KeyzError struct {
	Kind   Kind
	Detail string
	Cause  error
}

func (e *KeyzError) Error() string {
	if e.Detail != "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Cause)
		}
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return e.Kind.String()
}

func (e *KeyzError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match on Kind alone, e.g. errors.Is(err, New(KindClientTimeout, "")).
func (e *KeyzError) Is(target error) bool {
	var other *KeyzError
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New builds a KeyzError with no wrapped cause.
func New(kind Kind, detail string) *KeyzError {
	return &KeyzError{Kind: kind, Detail: detail}
}

// Wrap builds a KeyzError of the given kind around a lower-level cause.
func Wrap(kind Kind, detail string, cause error) *KeyzError {
	return &KeyzError{Kind: kind, Detail: detail, Cause: cause}
}

// KindOf reports the Kind of err if it is (or wraps) a *KeyzError, and
// false otherwise.
func KindOf(err error) (Kind, bool) {
	var ke *KeyzError
	if errors.As(err, &ke) {
		return ke.Kind, true
	}
	return 0, false
}

// IsKind reports whether err is a KeyzError of the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// IsSetSyntaxError reports whether err is the specific "SET command
// invalid" syntax error, as opposed to a generic invalid/unknown
// command. The dispatcher uses this to choose between the
// literal "error:set command invalid" response and the configured
// invalid_command_response.
func IsSetSyntaxError(err error) bool {
	var ke *KeyzError
	if !errors.As(err, &ke) {
		return false
	}
	return ke.Kind == KindInvalidCommand && ke.Detail == setInvMsg
}
