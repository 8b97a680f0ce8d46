// Package trust installs the generated certificate into the OS trust store
// and manages the hosts-file block that shadows osu!'s official hostnames
// onto loopback (spec §4.4). Both operations require elevated privileges
// and are treated as non-fatal to starting the proxy (spec §7).
package trust

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/rai-osu/connect/pkg/rcerr"
	"github.com/rai-osu/connect/pkg/rclog"
	"go.uber.org/zap"
)

// InstallResult describes the outcome of a certificate install attempt.
type InstallResult int

const (
	Installed InstallResult = iota
	AlreadyInstalled
	UnsupportedPlatform
)

const friendlyName = "rai!connect Local Proxy"

// InstallCertificate enrolls certPath into the OS's user-scoped trust
// store. On Windows this shells out to certutil (spec §4.4, §6); other
// platforms return UnsupportedPlatform with a remediation hint rather than
// an error, since the proxy should continue starting either way.
func InstallCertificate(certPath string) (InstallResult, error) {
	if runtime.GOOS != "windows" {
		rclog.Named("trust").Warn("automatic certificate install is only implemented on Windows",
			zap.String("platform", runtime.GOOS))
		return UnsupportedPlatform, nil
	}

	cmd := exec.Command("certutil", "-addstore", "-user", "Root", certPath)
	out, err := cmd.CombinedOutput()
	if err == nil {
		return Installed, nil
	}

	output := string(out)
	if strings.Contains(output, "already in store") || strings.Contains(output, "Object already exists") {
		return AlreadyInstalled, nil
	}

	return 0, fmt.Errorf("%w: %s", rcerr.ErrCertInstallFailed, strings.TrimSpace(output))
}

// IsCertificateInstalled reports whether the certificate is already in the
// user's Root store, per spec §4.4.
func IsCertificateInstalled() (bool, error) {
	if runtime.GOOS != "windows" {
		return false, nil
	}
	cmd := exec.Command("certutil", "-store", "-user", "Root", friendlyName)
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, err
}
