package trust

import (
	"fmt"
	"os"
	"regexp"
	"runtime"
	"strings"

	"github.com/rai-osu/connect/pkg/rcerr"
)

const (
	beginMarker = "# BEGIN rai!connect"
	endMarker   = "# END rai!connect"
)

// explicitSubdomains are the five hostnames the hosts-file block maps to
// loopback (spec §3 Hosts-file block).
var explicitSubdomains = []string{
	"osu.localhost",
	"c.localhost",
	"a.localhost",
	"b.localhost",
	"i.localhost",
}

// hostsFilePathOverride lets tests point at a fixture file, the same way
// the teacher's commands.go exposes runtimeGoos as a swappable var for its
// own tests rather than hard-coding runtime.GOOS.
var hostsFilePathOverride string

// HostsFilePath returns the platform's hosts file location (spec §6).
func HostsFilePath() string {
	if hostsFilePathOverride != "" {
		return hostsFilePathOverride
	}
	if runtime.GOOS == "windows" {
		return `C:\Windows\System32\drivers\etc\hosts`
	}
	return "/etc/hosts"
}

// stubHostsFilePath overrides HostsFilePath for the duration of a test,
// returning a restore function.
func stubHostsFilePath(path string) (restore func()) {
	prev := hostsFilePathOverride
	hostsFilePathOverride = path
	return func() { hostsFilePathOverride = prev }
}

func renderBlock() string {
	var b strings.Builder
	b.WriteString(beginMarker)
	b.WriteByte('\n')
	for _, sub := range explicitSubdomains {
		fmt.Fprintf(&b, "127.0.0.1 %s\n", sub)
	}
	b.WriteString(endMarker)
	b.WriteByte('\n')
	return b.String()
}

// IsHostsBlockInstalled reports whether the hosts file already contains
// the rai!connect marker block (spec §4.4).
func IsHostsBlockInstalled() (bool, error) {
	content, err := os.ReadFile(HostsFilePath())
	if err != nil {
		return false, err
	}
	return strings.Contains(string(content), beginMarker), nil
}

// InstallHostsBlock appends the marker block to the hosts file, adding a
// leading newline only if the file doesn't already end in one (spec §4.4).
func InstallHostsBlock() error {
	path := HostsFilePath()
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: reading hosts file: %v", rcerr.ErrHostsWriteFailed, err)
	}

	if strings.Contains(string(content), beginMarker) {
		return nil // already installed
	}

	var b strings.Builder
	b.Write(content)
	if len(content) > 0 && content[len(content)-1] != '\n' {
		b.WriteByte('\n')
	}
	b.WriteString(renderBlock())

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("%w: %v", rcerr.ErrHostsWriteFailed, err)
	}
	return nil
}

var collapseNewlines = regexp.MustCompile(`\n{3,}`)

// RemoveHostsBlock deletes everything from the line containing the BEGIN
// marker through the line containing the END marker (inclusive), then
// collapses runs of 3+ consecutive newlines down to 2 (spec §4.4).
func RemoveHostsBlock() error {
	path := HostsFilePath()
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: reading hosts file: %v", rcerr.ErrHostsWriteFailed, err)
	}

	lines := strings.Split(string(content), "\n")
	beginIdx, endIdx := -1, -1
	for i, line := range lines {
		if strings.Contains(line, beginMarker) {
			beginIdx = i
		}
		if strings.Contains(line, endMarker) && beginIdx != -1 && endIdx == -1 {
			endIdx = i
			break
		}
	}
	if beginIdx == -1 || endIdx == -1 {
		return nil // nothing to remove
	}

	remaining := append(append([]string{}, lines[:beginIdx]...), lines[endIdx+1:]...)
	result := collapseNewlines.ReplaceAllString(strings.Join(remaining, "\n"), "\n\n")

	if err := os.WriteFile(path, []byte(result), 0o644); err != nil {
		return fmt.Errorf("%w: %v", rcerr.ErrHostsWriteFailed, err)
	}
	return nil
}
