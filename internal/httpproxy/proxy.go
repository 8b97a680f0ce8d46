// Package httpproxy is the routing/forwarding HTTP(S) proxy (spec §4.5,
// C5): it is the handler served behind the TLS-terminating listener that
// internal/manager builds for rewritten hostnames, and it decides per request
// whether to serve from the mirror or forward to the official backend,
// and rewrites Bancho-over-HTTP response bodies to inject the supporter
// bit when configured.
//
// The teacher's hand-rolled net/http/httputil-style ReverseProxy
// (caddyhttp/proxy/reverseproxy.go, itself adapted from the stdlib) is
// generalized here to net/http/httputil.ReverseProxy's Director/
// ModifyResponse hooks, since spec §4.5 already specifies the
// request/response shape httputil.ReverseProxy expresses idiomatically;
// the teacher's header-stripping and 502-synthesis idioms are kept.
package httpproxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/http2"

	"github.com/rai-osu/connect/internal/config"
	"github.com/rai-osu/connect/internal/packet"
	"github.com/rai-osu/connect/internal/routing"
	"github.com/rai-osu/connect/internal/state"
	"github.com/rai-osu/connect/pkg/rclog"
	"go.uber.org/zap"
)

// requestHeadersToStrip are dropped before forwarding upstream (spec
// §4.5 "Header filter (request)"); the upstream client re-derives Host
// from the URL.
var requestHeadersToStrip = []string{
	"Host", "Connection", "Keep-Alive", "Transfer-Encoding", "TE", "Trailer",
}

// responseHeadersToStrip are dropped before returning to the client (spec
// §4.5 "Header filter (response)"); Content-Length is recomputed by the
// HTTP stack once the (possibly rewritten) body is known.
var responseHeadersToStrip = []string{
	"Transfer-Encoding", "Connection", "Content-Length",
}

// allowedMethods pass through unchanged; anything else is coerced to GET
// (spec §4.5 "Method mapping").
var allowedMethods = map[string]bool{
	http.MethodGet: true, http.MethodPost: true, http.MethodPut: true,
	http.MethodDelete: true, http.MethodHead: true, http.MethodOptions: true,
	http.MethodPatch: true,
}

const chatPresenceOfficialHost = "c.ppy.sh"

// requestTimeout is the overall per-request deadline (spec §4.5 Upstream
// client contract: "30s end-to-end").
const requestTimeout = 30 * time.Second

// Proxy is the HTTP(S) forward proxy. Its *http.Transport is the single
// shared upstream client the spec requires per listener (spec §4.5
// "Upstream client contract"), grounded on the teacher's shared
// connection-pool shape in modules/caddyhttp/app.go's Start().
type Proxy struct {
	cfg   config.ProxyConfig
	state *state.AppState
	rp    *httputil.ReverseProxy
	log   *zap.Logger
}

// New builds a Proxy bound to cfg and backed by the given shared
// AppState (spec §5: "shared by reference across tasks").
func New(cfg config.ProxyConfig, st *state.AppState) *Proxy {
	transport := &http.Transport{
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       30 * time.Second,
		ResponseHeaderTimeout: requestTimeout,
		DialContext: (&net.Dialer{
			Timeout: 10 * time.Second,
		}).DialContext,
	}
	p := &Proxy{
		cfg:   cfg,
		state: st,
		log:   rclog.Named("httpproxy"),
	}

	if err := http2.ConfigureTransport(transport); err != nil {
		p.log.Warn("http/2 upstream support disabled", zap.Error(err))
	}

	p.rp = &httputil.ReverseProxy{
		Director:       p.direct,
		ModifyResponse: p.modifyResponse,
		ErrorHandler:   p.handleError,
		Transport:      transport,
	}
	return p
}

// Handler returns the http.Handler the listener serves, per spec §4.5.
func (p *Proxy) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !allowedMethods[r.Method] {
			r.Method = http.MethodGet
		}
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		p.rp.ServeHTTP(w, r.WithContext(ctx))
	})
}

type routedRequest struct {
	decision  routing.Decision
	upstream  *url.URL
	isBancho  bool
	requestID uuid.UUID
}

const routedRequestCtxKey = ctxKey("routed")

type ctxKey string

// direct implements spec §4.5 steps 1-4: extract host/path, route, count,
// and resolve the upstream URL.
func (p *Proxy) direct(r *http.Request) {
	host := r.Host
	if host == "" {
		host = "localhost"
	}
	path := r.URL.Path

	decision := routing.Route(host, path)
	requestID := uuid.New()

	p.state.IncRequestsProxied()
	if strings.HasPrefix(path, "/d/") && decision == routing.HandleLocally {
		p.state.IncBeatmapsDownloaded()
	}

	var upstreamURL string
	var isBancho bool
	switch decision {
	case routing.HandleLocally:
		upstreamURL = routing.MapToMirrorURL(r.URL.RequestURI(), p.cfg.DirectBaseURL)
	default:
		officialHost := routing.MapHostToOfficial(host)
		upstreamURL = "https://" + officialHost + r.URL.RequestURI()
		isBancho = officialHost == chatPresenceOfficialHost
	}

	u, err := url.Parse(upstreamURL)
	if err != nil {
		p.log.Error("failed to build upstream URL",
			zap.String("request_id", requestID.String()), zap.String("upstream", upstreamURL), zap.Error(err))
		u = r.URL
	}

	for _, h := range requestHeadersToStrip {
		r.Header.Del(h)
	}

	r.URL = u
	r.Host = u.Host
	*r = *r.WithContext(context.WithValue(r.Context(), routedRequestCtxKey, &routedRequest{
		decision:  decision,
		upstream:  u,
		isBancho:  isBancho,
		requestID: requestID,
	}))
}

// modifyResponse implements spec §4.5 step 5: strip response headers and,
// when applicable, run the body through the packet codec to inject the
// supporter bit.
func (p *Proxy) modifyResponse(resp *http.Response) error {
	for _, h := range responseHeadersToStrip {
		resp.Header.Del(h)
	}

	info, _ := resp.Request.Context().Value(routedRequestCtxKey).(*routedRequest)
	if info == nil || !p.cfg.InjectSupporter || !info.isBancho {
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	resp.Body.Close()

	rewritten := injectSupporterIntoBody(body)
	resp.Body = io.NopCloser(bytes.NewReader(rewritten))
	resp.ContentLength = int64(len(rewritten))
	return nil
}

// injectSupporterIntoBody implements spec §4.5's "Supporter injection
// (response body)": run the body through ParseStream, inject into every
// UserPrivileges frame, and re-serialize. If nothing was a recognizable
// packet stream (zero frames parsed but bytes remain, e.g. an error page),
// the original body is returned untouched.
func injectSupporterIntoBody(body []byte) []byte {
	frames, residual := packet.ParseStream(body)
	if len(frames) == 0 && len(residual) > 0 {
		return body
	}

	var out []byte
	for i := range frames {
		packet.InjectSupporter(&frames[i])
		out = append(out, packet.Serialize(frames[i])...)
	}
	out = append(out, residual...)
	return out
}

// handleError implements spec §4.5's "Error response": any failure to
// reach upstream becomes a 502 with a fixed plain-text body.
func (p *Proxy) handleError(w http.ResponseWriter, r *http.Request, err error) {
	info, _ := r.Context().Value(routedRequestCtxKey).(*routedRequest)
	upstream := r.URL.String()
	requestID := ""
	if info != nil {
		if info.upstream != nil {
			upstream = info.upstream.String()
		}
		requestID = info.requestID.String()
	}

	p.log.Warn("upstream unreachable",
		zap.String("request_id", requestID), zap.String("upstream", upstream), zap.Error(err))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusBadGateway)
	fmt.Fprintf(w, "Failed to reach %s", upstream)
}
