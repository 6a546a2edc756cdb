package wsa

import "fmt"

// Kind classifies an Error into the families described in the driver's
// error handling design: transport, protocol, validation, state,
// resource, or a non-fatal warning.
type Kind int

const (
	KindTransport Kind = iota
	KindProtocol
	KindValidation
	KindState
	KindResource
	KindWarning
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindValidation:
		return "validation"
	case KindState:
		return "state"
	case KindResource:
		return "resource"
	case KindWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// Code names a specific condition within a Kind. Codes are distinct
// across kinds so a caller can switch on Code alone.
type Code int

const (
	CodeNone Code = iota

	// transport
	CodeSocketError
	CodeSocketDropped
	CodeSocketTimeout
	CodeQueryNoResponse
	CodeSendFailed

	// protocol
	CodeRespUnknown
	CodeCmdSendFailed
	CodeSetFailed
	CodeNotIQFrame
	CodeInvTimestamp

	// validation
	CodeFreqOutOfBound
	CodeInvSampleSize
	CodeInvIfGain
	CodeInvRfGain
	CodeInvAttenuation
	CodeInvDecimationRate
	CodeInvAntennaPort
	CodeInvPllRefSource
	CodeInvRfeInputMode
	CodeInvTriggerMode
	CodeInvTriggerDelay
	CodeInvTriggerSync
	CodeInvStopFreq
	CodeStartOob
	CodeStopOob
	CodeInvChPowerRange
	CodeInvSweepStartId
	CodeBadFreqRange
	CodeUnsupportedMode
	CodeInvDialString

	// state
	CodeSweepAlreadyRunning
	CodeSweepNotRunning
	CodeSweepWhileStreaming
	CodeStreamAlreadyRunning
	CodeStreamNotRunning
	CodeSweepListEmpty
	CodeSweepIdOob
	CodeDataAccessDenied
	CodeSweepModeUndef

	// resource
	CodeMallocFailed
	CodeInitFailed
	CodeOpenFailed

	// warning
	CodeTriggerConflict
)

// Error is the single error type returned across the driver's public
// API. Op names the operation that failed; Err, when present, is the
// underlying cause (a transport error, typically).
type Error struct {
	Kind Kind
	Code Code
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("wsa: %s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("wsa: %s: %s", e.Op, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// IsWarning reports whether err is a non-fatal warning (e.g. a trigger
// conflict reported by the SCPI channel).
func IsWarning(err error) bool {
	we, ok := err.(*Error)
	return ok && we.Kind == KindWarning
}

func newErr(kind Kind, code Code, op, msg string) *Error {
	return &Error{Kind: kind, Code: code, Op: op, Msg: msg}
}

func wrapErr(kind Kind, code Code, op, msg string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Op: op, Msg: msg, Err: cause}
}

// Sentinel errors for the no-argument state/resource conditions that
// callers commonly compare against directly.
var (
	ErrSweepAlreadyRunning = newErr(KindState, CodeSweepAlreadyRunning, "sweep", "sweep already running on this device")
	ErrSweepNotRunning     = newErr(KindState, CodeSweepNotRunning, "sweep", "no sweep is running on this device")
	ErrSweepListEmpty      = newErr(KindState, CodeSweepListEmpty, "sweep", "sweep entry list is empty")
	ErrDataAccessDenied    = newErr(KindState, CodeDataAccessDenied, "sweep", "acquisition lock held by another host")
	ErrNotIQFrame          = newErr(KindProtocol, CodeNotIQFrame, "vrt", "packet stream id is not a recognized IF-data, context, or extension id")
)
