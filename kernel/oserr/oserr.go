// Package oserr defines the error codes returned by kernel operations.
package oserr

// Error is a kernel status code. The zero value is never returned as an
// error; success is a nil error.
type Error uint8

const (
	InvalidArgument Error = iota + 1
	NotAligned
	NotOwner
	Busy
	Timeout
	WouldBlock
	OutOfMemory
	NotStarted
)

func (e Error) Error() string {
	switch e {
	case InvalidArgument:
		return "invalid argument"
	case NotAligned:
		return "not aligned"
	case NotOwner:
		return "not owner"
	case Busy:
		return "busy"
	case Timeout:
		return "timeout"
	case WouldBlock:
		return "would block"
	case OutOfMemory:
		return "out of memory"
	case NotStarted:
		return "not started"
	default:
		return "unknown"
	}
}
