package rpc

import "errors"

// ErrDaemonUnavailable indicates the daemon's socket could not be reached.
var ErrDaemonUnavailable = errors.New("daemon unavailable")

// ErrUnauthorized indicates a TCP request arrived without a valid token.
var ErrUnauthorized = errors.New("unauthorized")

// Sentinel errors a Client call can be compared against with errors.Is,
// mirroring the three classes store/errors.go defines server-side
// (spec §7). Client.call wraps these around the daemon's error message
// rather than handing back a bare string, so a caller can tell a
// permanent rejection from one it should retry.
var (
	ErrNotFound  = errors.New("not found")
	ErrTransient = errors.New("transient store error")
	ErrFatal     = errors.New("fatal store error")
)
