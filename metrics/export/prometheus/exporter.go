package prometheus

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/meowauth"
	"github.com/MrEthical07/meowauth/metrics/export/internaldefs"
)

// Source supplies the numbers an Exporter renders.
type Source interface {
	MetricsSnapshot() meowauth.MetricsSnapshot
	AuditDropped() uint64
}

type pinger interface {
	Ping(ctx context.Context) error
}

const pingTimeout = 500 * time.Millisecond

type Exporter struct {
	source Source
}

func New(source Source) *Exporter {
	return &Exporter{source: source}
}

// Handler serves Render with the exposition content type.
func (e *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(e.Render(r.Context())))
	})
}

// Render returns the exposition text. A source with metrics disabled and no
// dropped audit events renders nothing.
func (e *Exporter) Render(ctx context.Context) string {
	if e == nil || e.source == nil {
		return ""
	}
	snap := e.source.MetricsSnapshot()
	dropped := e.source.AuditDropped()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var w writer
	w.Grow(4096)
	for _, def := range internaldefs.Counters {
		w.family(def, "counter")
		w.sample(def.Name, "", snap.Counters[def.ID])
	}
	if raw, ok := snap.Histograms[internaldefs.AuthorizeLatency.ID]; ok {
		w.histogram(internaldefs.AuthorizeLatency, internaldefs.Cumulative(internaldefs.Buckets(raw)))
	}
	w.family(internaldefs.AuditDropped, "counter")
	w.sample(internaldefs.AuditDropped.Name, "", dropped)

	if p, ok := e.source.(pinger); ok {
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		var up uint64
		if p.Ping(pctx) == nil {
			up = 1
		}
		cancel()
		def := internaldefs.Def{Name: "meowauth_storage_up", Help: "Whether the session store answered a ping."}
		w.family(def, "gauge")
		w.sample(def.Name, "", up)
	}
	return w.String()
}

type writer struct {
	strings.Builder
}

func (w *writer) family(def internaldefs.Def, typ string) {
	w.WriteString("# HELP " + def.Name + " " + escapeHelp(def.Help) + "\n")
	w.WriteString("# TYPE " + def.Name + " " + typ + "\n")
}

func (w *writer) sample(name, labels string, v uint64) {
	w.WriteString(name)
	w.WriteString(labels)
	w.WriteByte(' ')
	w.WriteString(strconv.FormatUint(v, 10))
	w.WriteByte('\n')
}

// histogram writes cumulative buckets. Snapshots carry no sum, so _sum is
// always zero.
func (w *writer) histogram(def internaldefs.Def, cumulative [8]uint64) {
	w.family(def, "histogram")
	for i, le := range internaldefs.Bounds {
		w.sample(def.Name+"_bucket", `{le="`+le+`"}`, cumulative[i])
	}
	w.sample(def.Name+"_count", "", cumulative[len(cumulative)-1])
	w.sample(def.Name+"_sum", "", 0)
}

func escapeHelp(help string) string {
	return strings.NewReplacer(`\`, `\\`, "\n", `\n`).Replace(help)
}
