package shared

import (
	"fmt"
	"os/exec"
	"runtime"
)

var getRuntime = func() string { return runtime.GOOS }

// startCommand is replaced in tests.
var startCommand = func(name string, args ...string) error {
	return exec.Command(name, args...).Start()
}

// OpenBrowser opens url in the default system browser without waiting for it.
//
// Supports macOS, Linux, and Windows platforms.
func OpenBrowser(url string) error {
	var name string
	var args []string
	switch rt := getRuntime(); rt {
	case "darwin":
		name, args = "open", []string{url}
	case "linux", "freebsd", "openbsd":
		name, args = "xdg-open", []string{url}
	case "windows":
		name, args = "rundll32", []string{"url.dll,FileProtocolHandler", url}
	default:
		return fmt.Errorf("%w: cannot open a browser on %s", ErrNotImplemented, rt)
	}

	if err := startCommand(name, args...); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
