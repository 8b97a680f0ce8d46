// Package rcerr defines the error kinds rai!connect classifies internally
// (see spec §7) so callers can branch on Is() without parsing strings.
package rcerr

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
)

// Sentinel kinds. Wrap these with fmt.Errorf("...: %w", Kind) to attach
// context while keeping errors.Is matching intact.
var (
	ErrPortInUse         = errors.New("port already in use")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrReadinessTimeout  = errors.New("port binding timeout")
	ErrUpstreamTimeout   = errors.New("upstream request timed out")
	ErrUpstreamUnreach   = errors.New("upstream unreachable")
	ErrBufferOverflow    = errors.New("buffer size limit exceeded")
	ErrCertInstallFailed = errors.New("certificate install failed")
	ErrHostsWriteFailed  = errors.New("hosts file write failed")
)

// ClassifyListenError maps a net.Listen error into one of the sentinel
// kinds above, the way a bind failure is triaged before it's surfaced to
// the user per spec §4.7/§7.
func ClassifyListenError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, syscall.EADDRINUSE) {
		return fmt.Errorf("%w: %v", ErrPortInUse, err)
	}
	if os.IsPermission(err) {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.EADDRINUSE) {
			return fmt.Errorf("%w: %v", ErrPortInUse, err)
		}
		if os.IsPermission(opErr.Err) {
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
	}
	return err
}

// UserMessage renders a remediation-oriented string for the status surface
// the shell polls, per spec §4.7.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPortInUse):
		return "Port already in use. Close the other application using it and try again."
	case errors.Is(err, ErrPermissionDenied):
		return "Try running with elevated privileges."
	case errors.Is(err, ErrReadinessTimeout):
		return "Failed to start proxy: port binding timeout"
	default:
		return err.Error()
	}
}
