// Package recovery is C7: the typed error taxonomy of §7 and §9, and the
// reconnect-on-transient-failure envelope wrapping the era loop.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// Class is the typed error sum of §9: "model this as a tagged error sum".
type Class int

const (
	ClassFatal Class = iota
	ClassTransientNetwork
	ClassTransientChain
	ClassSubmissionRevert
	ClassShutdown
)

func (c Class) String() string {
	switch c {
	case ClassFatal:
		return "fatal"
	case ClassTransientNetwork:
		return "transient-network"
	case ClassTransientChain:
		return "transient-chain"
	case ClassSubmissionRevert:
		return "submission-revert"
	case ClassShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// BlockNotFoundError is raised by the finalization wait (§4.5.2) when the canonical
// hash at a block number changed after the binary search ran on a fork that didn't
// finalize. Carries (number, expected, got) per §9 note #4.
type BlockNotFoundError struct {
	Number   uint64
	Expected [32]byte
	Got      [32]byte
}

func (e *BlockNotFoundError) Error() string {
	return fmt.Sprintf("block %d not found: expected hash %x, got %x", e.Number, e.Expected, e.Got)
}

// socketClosedSentinel matches the "socket is already closed" fatal class of §4.6/§7:
// when a shut-down socket reports this, the process exits rather than recovering.
const socketClosedSentinel = "socket is already closed"

// ErrDelayShutdown is returned by the era loop once the delay-shutdown sequence of
// §4.7 has run its course (metric set, wait elapsed, self-interrupt sent): the
// envelope must treat this as a shutdown, not another round of recovery.
var ErrDelayShutdown = errors.New("era update delayed past threshold, shutting down")

// Classify maps an error observed by the controller to a Class, per the "expected
// network exception" enumeration of §4.6.
func Classify(err error) Class {
	if err == nil {
		return ClassFatal
	}
	if errors.Is(err, ErrDelayShutdown) {
		return ClassShutdown
	}
	var bnf *BlockNotFoundError
	if errors.As(err, &bnf) {
		return ClassTransientChain
	}
	cause := pkgerrors.Cause(err)
	msg := strings.ToLower(cause.Error())

	if strings.Contains(msg, socketClosedSentinel) {
		return ClassShutdown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ClassTransientNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassTransientNetwork
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ClassTransientNetwork
	}
	for _, needle := range expectedSubstrings {
		if strings.Contains(msg, needle) {
			return ClassTransientNetwork
		}
	}
	return ClassFatal
}

// expectedSubstrings enumerates the rest of §4.6's expected-network-exception set
// that doesn't surface as a typed net.Error: malformed WS frames, substrate request
// errors, bad function-call output, transaction timeouts, validation errors, closed
// sockets (other than the shutdown sentinel, handled above), DNS errors, connection
// reset/refused.
var expectedSubstrings = []string{
	"connection reset",
	"connection refused",
	"no such host",
	"dns",
	"websocket: close",
	"use of closed network connection",
	"broken pipe",
	"i/o timeout",
	"substrate rpc",
	"bad function call output",
	"transaction timeout",
	"validation error",
	"eof",
}

// IsShutdownSentinel reports whether err belongs to ClassShutdown and should
// terminate the process: the "socket is already closed on a shut-down socket"
// fatal class (§4.6, §7) or ErrDelayShutdown.
func IsShutdownSentinel(err error) bool {
	return Classify(err) == ClassShutdown
}
