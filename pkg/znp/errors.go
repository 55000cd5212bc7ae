package znp

import (
	"errors"
	"fmt"
	"strings"

	"github.com/claudegel/zigbee-herdsman/pkg/unpi"
)

// Engine errors.
var (
	// ErrNotOpen indicates a request on a link that is not open.
	ErrNotOpen = errors.New("znp: not open")

	// ErrConnectionClosed fails every pending wait when the link goes away.
	ErrConnectionClosed = errors.New("znp: connection closed")

	// ErrUnknownCommand indicates a command missing from the definition table.
	ErrUnknownCommand = errors.New("znp: unknown command")

	// ErrMissingParameter indicates a request payload without a required field.
	ErrMissingParameter = errors.New("znp: missing parameter")

	// ErrParameterType indicates a payload value of the wrong type or range.
	ErrParameterType = errors.New("znp: invalid parameter value")

	// ErrShortPayload indicates a received frame too short for its definition.
	ErrShortPayload = errors.New("znp: payload too short")
)

// TransportError wraps the I/O failure that closed the link.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("znp: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusError reports an SRSP whose status is not among the expected ones.
type StatusError struct {
	Subsystem unpi.Subsystem
	Command   string
	Status    Status
	Expected  []Status
}

func (e *StatusError) Error() string {
	expected := make([]string, len(e.Expected))
	for i, s := range e.Expected {
		expected[i] = s.String()
	}
	return fmt.Sprintf("SREQ '%s %s' failed with status '%s' (expected '%s')",
		e.Subsystem, e.Command, e.Status, strings.Join(expected, ","))
}
