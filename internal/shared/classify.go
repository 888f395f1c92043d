package shared

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"os"
	"strings"
)

// ErrPermission marks errors caused by missing write access.
var ErrPermission = errors.New("permission denied")

// IsPermissionError reports access-denied failures, including read-only
// SQLite databases.
func IsPermissionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPermission) || errors.Is(err, fs.ErrPermission) || os.IsPermission(err) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "readonly") || strings.Contains(msg, "read-only") || strings.Contains(msg, "permission denied")
}

// IsNetworkError reports transport-level failures and timeouts.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
