package wire

import "fmt"

// ProtocolError is the closed set of wire/session-level failures described
// in spec.md §7. Every one of them terminates only the offending session;
// none are retried.
type ProtocolError struct {
	Kind ProtocolErrorKind
	// Detail carries any extra context (e.g. the byte length that would not
	// fit).
	Detail string
}

// ProtocolErrorKind enumerates the protocol error kinds spec.md §7 names.
type ProtocolErrorKind int

const (
	UnspecifiedQueryState ProtocolErrorKind = iota
	ReceivedReplyWhenExpectingRequest
	ReceivedReplyWhenExpectingSubmitChunk
	ReceivedSubmitWhenExpectingReplyChunk
	MoreAfterQueryComplete
	MessageTooLargeToChunk
	SessionChannelClosed
)

func (k ProtocolErrorKind) String() string {
	switch k {
	case UnspecifiedQueryState:
		return "UnspecifiedQueryState"
	case ReceivedReplyWhenExpectingRequest:
		return "ReceivedReplyWhenExpectingRequest"
	case ReceivedReplyWhenExpectingSubmitChunk:
		return "ReceivedReplyWhenExpectingSubmitChunk"
	case ReceivedSubmitWhenExpectingReplyChunk:
		return "ReceivedSubmitWhenExpectingReplyChunk"
	case MoreAfterQueryComplete:
		return "MoreAfterQueryComplete"
	case MessageTooLargeToChunk:
		return "MessageTooLargeToChunk"
	case SessionChannelClosed:
		return "SessionChannelClosed"
	default:
		return "UnknownProtocolError"
	}
}

func (e *ProtocolError) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind.String(), e.Detail)
}

// NewProtocolError constructs a ProtocolError with an optional formatted
// detail string.
func NewProtocolError(kind ProtocolErrorKind, format string, args ...any) *ProtocolError {
	return &ProtocolError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
