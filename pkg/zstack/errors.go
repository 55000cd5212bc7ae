package zstack

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnsupported indicates an operation the firmware variant cannot do.
	ErrUnsupported = errors.New("unsupported operation")

	// ErrNotStarted indicates an operation before Start completed.
	ErrNotStarted = errors.New("adapter not started")
)

// UnsupportedError describes an unsupported operation. It matches
// ErrUnsupported.
type UnsupportedError struct {
	Reason string
}

func (e *UnsupportedError) Error() string {
	return e.Reason
}

func (e *UnsupportedError) Is(target error) bool {
	return target == ErrUnsupported
}

// LinkDeadError is reported to observers when the chip stops answering
// keep-alive pings.
type LinkDeadError struct {
	Err error
}

func (e *LinkDeadError) Error() string {
	return fmt.Sprintf("coordinator not responding: %v", e.Err)
}

func (e *LinkDeadError) Unwrap() error {
	return e.Err
}

var errBackupUnsupported = &UnsupportedError{Reason: "Backup is only supported for Z-Stack 3"}

// TimeoutError reports a data plane response that did not arrive in time.
type TimeoutError struct {
	NetworkAddress uint16
	Endpoint       uint8
	Sequence       uint8
	CommandID      uint8
	Timeout        time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("Timeout - %d - %d - %d - %d after %dms",
		e.NetworkAddress, e.Endpoint, e.Sequence, e.CommandID, e.Timeout.Milliseconds())
}

// dataRequestReasons maps data confirm statuses to readable reasons.
var dataRequestReasons = map[uint8]string{
	0xB7: "APS no ack",
	0xCD: "No network route",
	0xE1: "MAC channel access failure",
	0xE9: "MAC no ack",
	0xF0: "MAC transaction expired",
}

// DataRequestError reports a non-zero AF data confirm status.
type DataRequestError struct {
	Status uint8
}

// Reason returns the readable reason, or "undefined".
func (e *DataRequestError) Reason() string {
	if r, ok := dataRequestReasons[e.Status]; ok {
		return r
	}
	return "undefined"
}

func (e *DataRequestError) Error() string {
	return fmt.Sprintf("Data request failed with error: '%s' (%d)", e.Reason(), e.Status)
}

// RestoreValidationError reports a backup that does not fit the chip or the
// configured network. Field is the first property found different.
type RestoreValidationError struct {
	Field   string
	Backup  string
	Current string
}

func (e *RestoreValidationError) Error() string {
	if e.Backup != "" || e.Current != "" {
		return fmt.Sprintf("Cannot restore backup, backup is for '%s', current is '%s'", e.Backup, e.Current)
	}
	return fmt.Sprintf("Cannot restore backup, %s of backup is different", e.Field)
}

// NoResponseError reports WithResponse on a command that has no response.
type NoResponseError struct {
	Command string
}

func (e *NoResponseError) Error() string {
	return fmt.Sprintf("Command '%s' has no response, cannot wait for response", e.Command)
}

// ZdoError reports a ZDO management response with a failure status.
type ZdoError struct {
	Operation      string
	NetworkAddress uint16
	Status         uint8
}

func (e *ZdoError) Error() string {
	return fmt.Sprintf("%s for '%d' failed", e.Operation, e.NetworkAddress)
}
