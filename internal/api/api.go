// Package api exposes the daemon's NIB-backed introspection endpoints
// over HTTP: one function per resource, a shared JSON envelope with
// count/timestamp, and writeErrorResponse/writeJSONResponse helpers
// every handler funnels through.
package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/hostinger/ipnib/internal/ndp"
	"github.com/hostinger/ipnib/internal/nib"
)

// API holds the daemon's shared state that introspection handlers
// read from. Engine may be nil when the daemon was started without
// NDP sniffing enabled. Metrics is the promhttp handler main.go built
// against the same registerer internal/metrics.NewRegistry registered
// its gauges/counters on.
type API struct {
	NIB     *nib.NIB
	Engine  *ndp.Engine
	Metrics http.Handler
}

// MetricsHandler serves internal/metrics's Prometheus registry, or a
// 503 when the daemon was started without metrics wiring.
func (a *API) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	if a.Metrics == nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, "metrics_disabled", "metrics registry is not configured")
		return
	}
	a.Metrics.ServeHTTP(w, r)
}

// ErrorResponse is the JSON body every non-2xx response carries.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func writeErrorResponse(w http.ResponseWriter, code int, errName, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ErrorResponse{Error: errName, Message: message, Code: code})
}

func writeJSONResponse(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func requireGET(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "method_not_allowed", "only GET is supported on this endpoint")
		return false
	}
	return true
}

// NeighborView is the external-facing shape of one on-link node
// carrying an active neighbor-cache record.
type NeighborView struct {
	Addr          string `json:"addr"`
	Iface         uint16 `json:"iface"`
	NUD           string `json:"nud"`
	AR            string `json:"ar"`
	L2Addr        string `json:"l2addr,omitempty"`
	NextTimeoutMs uint32 `json:"next_timeout_ms,omitempty"`
}

func (a *API) ListNeighborsHandler(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}

	var views []NeighborView
	var prev *nib.OnlNode
	for {
		node := a.NIB.IterateOnl(prev)
		if node == nil {
			break
		}
		prev = node
		if !node.Mode.Has(nib.ModeNC) {
			continue
		}
		rec := a.NIB.NCGet(node)
		view := NeighborView{
			Addr:  rec.Addr.String(),
			Iface: node.Iface,
			NUD:   nudString(rec.NUD),
			AR:    arString(rec.AR),
		}
		if rec.L2AddrLen > 0 {
			view.L2Addr = formatL2Addr(rec.L2Addr[:rec.L2AddrLen])
		}
		if ms, ok := a.NIB.NUDTimeoutIn(node); ok {
			view.NextTimeoutMs = ms
		}
		views = append(views, view)
	}

	sort.Slice(views, func(i, j int) bool { return views[i].Addr < views[j].Addr })

	writeJSONResponse(w, struct {
		Neighbors []NeighborView `json:"neighbors"`
		Count     int            `json:"count"`
		Timestamp time.Time      `json:"timestamp"`
	}{Neighbors: views, Count: len(views), Timestamp: time.Now()})
}

// RouteView is one forwarding-table row: a DRL or OFFL record
// resolved to its actual next hop via FtGetDR/FtGetOffl.
type RouteView struct {
	Dst       string `json:"dst"`
	NextHop   string `json:"next_hop"`
	Iface     uint16 `json:"iface"`
	IsPrimary bool   `json:"is_primary"`
}

func (a *API) ListRoutesHandler(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}

	var views []RouteView
	var prevDR *nib.DrEntry
	for {
		dr := a.NIB.IterateDR(prevDR)
		if dr == nil {
			break
		}
		prevDR = dr
		fe := a.NIB.FtGetDR(dr)
		views = append(views, RouteView{
			Dst:       "::/0",
			NextHop:   fe.NextHop.String(),
			Iface:     fe.Iface,
			IsPrimary: fe.IsPrimary,
		})
	}

	var prevOffl *nib.OfflEntry
	for {
		e := a.NIB.IterateOffl(prevOffl)
		if e == nil {
			break
		}
		prevOffl = e
		if !e.Mode.Has(nib.ModeFT) {
			continue
		}
		fe := a.NIB.FtGetOffl(e)
		views = append(views, RouteView{
			Dst:       e.Prefix.String(),
			NextHop:   fe.NextHop.String(),
			Iface:     fe.Iface,
			IsPrimary: fe.IsPrimary,
		})
	}

	writeJSONResponse(w, struct {
		Routes    []RouteView `json:"routes"`
		Count     int         `json:"count"`
		Timestamp time.Time   `json:"timestamp"`
	}{Routes: views, Count: len(views), Timestamp: time.Now()})
}

func (a *API) ListDefaultRoutersHandler(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}

	var views []RouteView
	var prev *nib.DrEntry
	for {
		dr := a.NIB.IterateDR(prev)
		if dr == nil {
			break
		}
		prev = dr
		fe := a.NIB.FtGetDR(dr)
		views = append(views, RouteView{
			Dst:       "::/0",
			NextHop:   fe.NextHop.String(),
			Iface:     fe.Iface,
			IsPrimary: fe.IsPrimary,
		})
	}

	writeJSONResponse(w, struct {
		Routers   []RouteView `json:"routers"`
		Count     int         `json:"count"`
		Timestamp time.Time   `json:"timestamp"`
	}{Routers: views, Count: len(views), Timestamp: time.Now()})
}

// PrefixView is one prefix-list entry with its lifetime deadlines, in
// the absolute-millisecond encoding internal/nib stores them in.
type PrefixView struct {
	Prefix     string `json:"prefix"`
	Iface      uint16 `json:"iface"`
	ValidUntil uint32 `json:"valid_until_ms"`
	PrefUntil  uint32 `json:"pref_until_ms"`
}

func (a *API) ListPrefixesHandler(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}

	var views []PrefixView
	var prev *nib.OfflEntry
	for {
		e := a.NIB.IterateOffl(prev)
		if e == nil {
			break
		}
		prev = e
		if !e.Mode.Has(nib.ModePL) {
			continue
		}
		fe := a.NIB.FtGetOffl(e)
		views = append(views, PrefixView{
			Prefix:     e.Prefix.String(),
			Iface:      fe.Iface,
			ValidUntil: e.ValidUntil,
			PrefUntil:  e.PrefUntil,
		})
	}

	writeJSONResponse(w, struct {
		Prefixes  []PrefixView `json:"prefixes"`
		Count     int          `json:"count"`
		Timestamp time.Time    `json:"timestamp"`
	}{Prefixes: views, Count: len(views), Timestamp: time.Now()})
}

// AbrView is one authoritative border router and the prefixes
// advertised under it.
type AbrView struct {
	Addr     string   `json:"addr"`
	Prefixes []string `json:"prefixes,omitempty"`
}

func (a *API) ListAbrHandler(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}

	var views []AbrView
	var prev *nib.AbrEntry
	for {
		abr := a.NIB.AbrIter(prev)
		if abr == nil {
			break
		}
		prev = abr
		view := AbrView{Addr: abr.Addr.String()}
		var prevPfx *nib.OfflEntry
		for {
			pfx := a.NIB.AbrIterPfx(abr, prevPfx)
			if pfx == nil {
				break
			}
			prevPfx = pfx
			view.Prefixes = append(view.Prefixes, pfx.Prefix.String())
		}
		views = append(views, view)
	}

	sort.Slice(views, func(i, j int) bool { return views[i].Addr < views[j].Addr })

	writeJSONResponse(w, struct {
		Abrs      []AbrView `json:"abrs"`
		Count     int       `json:"count"`
		Timestamp time.Time `json:"timestamp"`
	}{Abrs: views, Count: len(views), Timestamp: time.Now()})
}

// SniffedInterface reports one interface the NDP engine is actively
// capturing on, and how long it has been running.
type SniffedInterface struct {
	Interface string        `json:"interface"`
	StartedAt time.Time     `json:"started_at"`
	Uptime    time.Duration `json:"uptime_seconds"`
}

func (a *API) ListSniffedInterfacesHandler(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}

	var sniffed []SniffedInterface
	if a.Engine != nil {
		now := time.Now()
		for iface, started := range a.Engine.ActiveInterfaces() {
			sniffed = append(sniffed, SniffedInterface{
				Interface: iface,
				StartedAt: started,
				Uptime:    now.Sub(started) / time.Second,
			})
		}
	}

	sort.Slice(sniffed, func(i, j int) bool { return sniffed[i].Interface < sniffed[j].Interface })

	writeJSONResponse(w, struct {
		Interfaces []SniffedInterface `json:"interfaces"`
		Count      int                `json:"count"`
		Timestamp  time.Time          `json:"timestamp"`
	}{Interfaces: sniffed, Count: len(sniffed), Timestamp: time.Now()})
}

func nudString(s nib.NUDState) string {
	switch s {
	case nib.NUDUnmanaged:
		return "unmanaged"
	case nib.NUDIncomplete:
		return "incomplete"
	case nib.NUDReachable:
		return "reachable"
	case nib.NUDStale:
		return "stale"
	case nib.NUDDelay:
		return "delay"
	case nib.NUDProbe:
		return "probe"
	case nib.NUDUnreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

func arString(s nib.ARState) string {
	switch s {
	case nib.ARStateGC:
		return "gc"
	case nib.ARStateTentative:
		return "tentative"
	case nib.ARStateRegistered:
		return "registered"
	case nib.ARStateRemove:
		return "remove"
	default:
		return "unknown"
	}
}

func formatL2Addr(b []byte) string {
	const hex = "0123456789abcdef"
	out := make([]byte, 0, len(b)*3-1)
	for i, c := range b {
		if i > 0 {
			out = append(out, ':')
		}
		out = append(out, hex[c>>4], hex[c&0xf])
	}
	return string(out)
}
