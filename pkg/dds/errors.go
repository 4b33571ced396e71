// Package dds is the public, untyped API surface of this runtime:
// ParticipantFactory, DomainParticipant, Publisher, Subscriber, Topic,
// DataWriter, DataReader, operating on (key, payload []byte) samples
// (spec.md §1: the typed generated façade is out of scope).
//
// Grounded on _examples/adred-codev-ws_poc/go-server/pkg/websocket/hub.go + client.go's
// entity-owns-mailbox, factory-creates-child pattern, generalized from
// "hub owns clients" to "participant owns publishers/subscribers/
// topics owns writers/readers" (spec.md §4.1's containment tree).
package dds

import "errors"

// ReturnCode is the single result-kind taxonomy spec.md §7 requires on
// every public operation.
type ReturnCode int

const (
	Ok ReturnCode = iota
	BadParameter
	PreconditionNotMet
	OutOfResources
	NotEnabled
	ImmutablePolicy
	InconsistentPolicy
	AlreadyDeleted
	Timeout
	NoData
	IllegalOperation
)

func (c ReturnCode) String() string {
	switch c {
	case Ok:
		return "Ok"
	case BadParameter:
		return "BadParameter"
	case PreconditionNotMet:
		return "PreconditionNotMet"
	case OutOfResources:
		return "OutOfResources"
	case NotEnabled:
		return "NotEnabled"
	case ImmutablePolicy:
		return "ImmutablePolicy"
	case InconsistentPolicy:
		return "InconsistentPolicy"
	case AlreadyDeleted:
		return "AlreadyDeleted"
	case Timeout:
		return "Timeout"
	case NoData:
		return "NoData"
	case IllegalOperation:
		return "IllegalOperation"
	default:
		return "Unknown"
	}
}

// Error wraps a ReturnCode as an error, so callers that only check
// err != nil still work, while callers that need the kind can use
// errors.As or CodeOf.
type Error struct {
	Code ReturnCode
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Code.String()
	}
	return e.Code.String() + ": " + e.Msg
}

func newError(code ReturnCode, msg string) error {
	return &Error{Code: code, Msg: msg}
}

// CodeOf extracts the ReturnCode from err, or Ok if err is nil, or
// IllegalOperation if err is not one this package produced.
func CodeOf(err error) ReturnCode {
	if err == nil {
		return Ok
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return IllegalOperation
}
