// Package routing decides, for each inbound request, whether it should be
// served from the beatmap mirror or forwarded untouched to the official
// osu! backends (spec §3 RouteDecision, §4.2).
package routing

import "strings"

// Decision is the outcome of routing a (host, path) pair.
type Decision int

const (
	// ForwardToOfficial sends the request on to the real *.ppy.sh backend.
	ForwardToOfficial Decision = iota
	// HandleLocally serves the request from the configured mirror instead.
	HandleLocally
)

func (d Decision) String() string {
	if d == HandleLocally {
		return "HandleLocally"
	}
	return "ForwardToOfficial"
}

// localPathsBySuffix pairs a matched host suffix with the local-path prefixes
// that qualify for mirroring under it (spec §4.2 steps 2-3).
var localPathsBySuffix = []struct {
	suffix string
	paths  []string
}{
	{
		suffix: "osu.ppy.sh",
		paths: []string{
			"/web/osu-search.php",
			"/web/osu-search-set.php",
			"/web/osu-getbeatmapinfo.php",
			"/d/",
		},
	},
	{
		suffix: "b.ppy.sh",
		paths:  []string{"/thumb/", "/preview/"},
	},
}

// stripPort removes anything from the first ':' onward, per spec §4.2 step 1.
func stripPort(host string) string {
	if idx := strings.IndexByte(host, ':'); idx >= 0 {
		return host[:idx]
	}
	return host
}

// Route implements spec §4.2's route(host, path): the host suffix match is
// deliberately strict (the host must equal the suffix or end with "." plus
// the suffix, not a substring search), so neither "osu.ppy.sh.evil.com" nor
// "fakeosu.ppy.sh" matches "osu.ppy.sh" (spec §8 P4). Every
// bucket is checked independently (grounded on the original route_request's
// two separate `if` blocks) rather than short-circuiting on the first
// matched host suffix: under `-devserver localhost` every official hostname
// is loopback-shadowed to "*.localhost" (spec §2 data flow), so a single
// bucket's suffix check alone can't distinguish which traffic class a
// localhost request belongs to — only the path prefix can.
func Route(host, path string) Decision {
	h := stripPort(host)

	for _, bucket := range localPathsBySuffix {
		matchesSuffix := h == bucket.suffix || strings.HasSuffix(h, "."+bucket.suffix)
		if !matchesSuffix && !strings.HasSuffix(h, "localhost") {
			continue
		}
		for _, p := range bucket.paths {
			if strings.HasPrefix(path, p) {
				return HandleLocally
			}
		}
	}
	return ForwardToOfficial
}

// hostMap buckets official hostnames by first DNS label (spec §3 HostMap).
var hostMap = []struct {
	label  string
	target string
}{
	{"c.", "c.ppy.sh"},
	{"c1.", "c.ppy.sh"},
	{"ce.", "c.ppy.sh"},
	{"a.", "a.ppy.sh"},
	{"b.", "b.ppy.sh"},
	{"s.", "s.ppy.sh"},
	{"i.", "i.ppy.sh"},
}

const defaultOfficialHost = "osu.ppy.sh"

// MapHostToOfficial strips the port and maps a loopback-shadowed hostname
// to its canonical official counterpart (spec §3 HostMap, §4.2).
func MapHostToOfficial(host string) string {
	h := stripPort(host)
	for _, entry := range hostMap {
		if strings.HasPrefix(h, entry.label) {
			return entry.target
		}
	}
	return defaultOfficialHost
}

// MapToMirrorURL concatenates mirrorBase (trailing slash trimmed) with
// path, per spec §4.2.
func MapToMirrorURL(path, mirrorBase string) string {
	return strings.TrimSuffix(mirrorBase, "/") + path
}
