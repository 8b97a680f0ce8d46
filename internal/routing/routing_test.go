package routing

import "testing"

func TestRouteSearchAndDownload(t *testing.T) {
	cases := []struct {
		host, path string
		want       Decision
	}{
		{"osu.ppy.sh", "/web/osu-search.php?q=test", HandleLocally},
		{"osu.ppy.sh", "/d/123456", HandleLocally},
		{"osu.ppy.sh:443", "/d/123456", HandleLocally},
		{"osu.ppy.sh", "/web/osu-submit-modular-selector.php", ForwardToOfficial},
		{"b.ppy.sh", "/thumb/123l.jpg", HandleLocally},
		{"b.ppy.sh", "/preview/123.mp3", HandleLocally},
		{"b.ppy.sh", "/something-else", ForwardToOfficial},
		{"a.ppy.sh", "/123456", ForwardToOfficial},
	}
	for _, c := range cases {
		if got := Route(c.host, c.path); got != c.want {
			t.Errorf("Route(%q, %q) = %v, want %v", c.host, c.path, got, c.want)
		}
	}
}

// TestRouteSuffixSafety pins spec §8 P4: a host that merely contains the
// official suffix, or ends with it without a label boundary
// ("fakeosu.ppy.sh"), must never be treated as the official or local host.
func TestRouteSuffixSafety(t *testing.T) {
	evil := []string{"osu.ppy.sh.evil.com", "fakeosu.ppy.sh", "b.ppy.sh.evil.com"}
	paths := []string{"/web/osu-search.php", "/d/1", "/thumb/1l.jpg"}
	for _, h := range evil {
		for _, p := range paths {
			if got := Route(h, p); got != ForwardToOfficial {
				t.Errorf("Route(%q, %q) = %v, want ForwardToOfficial", h, p, got)
			}
		}
	}
}

// TestRouteLocalhostMatchesEveryBucket pins that under "-devserver
// localhost" (spec §2 data flow shadows every official hostname to
// "*.localhost"), a *.localhost host is checked against all buckets
// independently, not just the first one whose suffix matches.
func TestRouteLocalhostMatchesEveryBucket(t *testing.T) {
	if got := Route("b.localhost", "/thumb/123l.jpg"); got != HandleLocally {
		t.Errorf("Route(b.localhost, /thumb/...) = %v, want HandleLocally", got)
	}
	if got := Route("osu.localhost", "/web/osu-search.php"); got != HandleLocally {
		t.Errorf("Route(osu.localhost, /web/osu-search.php) = %v, want HandleLocally", got)
	}
	if got := Route("osu.localhost", "/web/osu-submit-modular-selector.php"); got != ForwardToOfficial {
		t.Errorf("Route(osu.localhost, /web/osu-submit-modular-selector.php) = %v, want ForwardToOfficial", got)
	}
}

func TestMapHostToOfficial(t *testing.T) {
	cases := map[string]string{
		"c.localhost":  "c.ppy.sh",
		"c1.localhost": "c.ppy.sh",
		"ce.localhost": "c.ppy.sh",
		"a.localhost":  "a.ppy.sh",
		"b.localhost":  "b.ppy.sh",
		"s.localhost":  "s.ppy.sh",
		"i.localhost":  "i.ppy.sh",
		"osu.localhost": "osu.ppy.sh",
		"osu.localhost:443": "osu.ppy.sh",
	}
	for host, want := range cases {
		if got := MapHostToOfficial(host); got != want {
			t.Errorf("MapHostToOfficial(%q) = %q, want %q", host, got, want)
		}
	}
}

func TestMapToMirrorURL(t *testing.T) {
	got := MapToMirrorURL("/d/123", "https://mirror.example.com/")
	want := "https://mirror.example.com/d/123"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
