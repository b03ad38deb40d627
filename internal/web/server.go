package web

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"

	"gpsapp/internal/engine"
	"gpsapp/internal/route"
)

// Controller is the part of the engine the UI drives. Implementations must
// be safe to call concurrently.
type Controller interface {
	Snapshot() engine.State
	Skip(delta int) bool
	ReloadRoute() bool
}

type Deps struct {
	Status      *Status
	Engine      Controller
	Broadcaster *Broadcaster
	Logs        *LogBuffer
	Settings    SettingsStore
	// Metrics, when set, is mounted at /metrics.
	Metrics http.Handler
}

func Handler(d Deps) http.Handler {
	if d.Status == nil {
		d.Status = NewStatus()
	}
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if !allow(w, r, http.MethodGet) {
			return
		}
		snap := d.Status.Snapshot(time.Now().UTC(), d.Engine)
		snap.Clients = d.Broadcaster.Subscribers()
		writeJSON(w, snap)
	})

	mux.HandleFunc("/api/guidance", func(w http.ResponseWriter, r *http.Request) {
		if !allow(w, r, http.MethodGet) {
			return
		}
		if d.Engine == nil {
			http.Error(w, "engine unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, d.Engine.Snapshot().Guidance)
	})

	mux.HandleFunc("/api/route.geojson", func(w http.ResponseWriter, r *http.Request) {
		if !allow(w, r, http.MethodGet) {
			return
		}
		var rt *route.Route
		if d.Engine != nil {
			rt = d.Engine.Snapshot().Route
		}
		writeGeoJSON(w, route.GeoJSON(rt))
	})

	mux.HandleFunc("/api/trail.geojson", func(w http.ResponseWriter, r *http.Request) {
		if !allow(w, r, http.MethodGet) {
			return
		}
		fc := geojson.NewFeatureCollection()
		if d.Engine != nil {
			st := d.Engine.Snapshot()
			if len(st.Trail) > 0 {
				f := geojson.NewFeature(route.PlanarLine(st.Center, st.Trail))
				f.Properties["kind"] = "trail"
				f.Properties["points"] = len(st.Trail)
				fc.Append(f)
			}
		}
		writeGeoJSON(w, fc)
	})

	mux.HandleFunc("/api/skip", func(w http.ResponseWriter, r *http.Request) {
		if !allow(w, r, http.MethodPost) {
			return
		}
		if d.Engine == nil {
			http.Error(w, "engine unavailable", http.StatusServiceUnavailable)
			return
		}
		delta := 1
		if s := strings.TrimSpace(r.URL.Query().Get("delta")); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil || v == 0 {
				http.Error(w, "delta must be a non-zero integer", http.StatusBadRequest)
				return
			}
			delta = v
		}
		writeAccepted(w, d.Engine.Skip(delta))
	})

	mux.HandleFunc("/api/route/reload", func(w http.ResponseWriter, r *http.Request) {
		if !allow(w, r, http.MethodPost) {
			return
		}
		if d.Engine == nil {
			http.Error(w, "engine unavailable", http.StatusServiceUnavailable)
			return
		}
		writeAccepted(w, d.Engine.ReloadRoute())
	})

	mux.HandleFunc("/api/ws", handleWS(d.Broadcaster, d.Engine))

	mux.Handle("/api/settings", d.Settings.Handler())

	if d.Logs != nil {
		mux.Handle("/api/logs", d.Logs.Handler())
	}
	mux.Handle("/api/about", AboutHandler())
	if d.Metrics != nil {
		mux.Handle("/metrics", d.Metrics)
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if !allow(w, r, http.MethodGet) {
			return
		}
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		writeIndex(w, d.Status.Snapshot(time.Now().UTC(), d.Engine))
	})

	return mux
}

func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	return false
}

func writeJSON(w http.ResponseWriter, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}

func writeGeoJSON(w http.ResponseWriter, fc *geojson.FeatureCollection) {
	b, err := fc.MarshalJSON()
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}

// writeAccepted reports whether a command was queued. A full queue means
// the engine is busy; the client may retry.
func writeAccepted(w http.ResponseWriter, ok bool) {
	if !ok {
		http.Error(w, "engine busy", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte("{\"ok\":true}\n"))
}

// writeIndex renders a plain page that works without scripts; the live
// view subscribes to /api/ws.
func writeIndex(w http.ResponseWriter, snap StatusSnapshot) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprint(w, "<!doctype html><html><head><meta charset=\"utf-8\">"+
		"<meta name=\"viewport\" content=\"width=device-width\"><title>gpsapp</title></head><body>")
	_, _ = fmt.Fprint(w, "<h1>gpsapp</h1>")

	status, instruction, remaining, eta := "engine unavailable", "", "", ""
	if snap.Engine != nil {
		g := snap.Engine.Guidance
		status, instruction, remaining, eta = g.Status, g.Instruction, g.RemainingText, g.ETA
	}
	_, _ = fmt.Fprintf(w, "<p id=\"status\">%s</p>", html.EscapeString(status))
	_, _ = fmt.Fprintf(w, "<h2 id=\"instruction\">%s</h2>", html.EscapeString(instruction))
	_, _ = fmt.Fprintf(w, "<p>remaining <span id=\"remaining\">%s</span> eta <span id=\"eta\">%s</span></p>",
		html.EscapeString(remaining), html.EscapeString(eta))
	_, _ = fmt.Fprint(w, "<p><button onclick=\"send('skip',-1)\">prev</button> "+
		"<button onclick=\"send('skip',1)\">next</button> "+
		"<button onclick=\"send('reload')\">reload route</button></p>")
	_, _ = fmt.Fprint(w, "<p><a href=\"/api/status\">status</a> <a href=\"/api/route.geojson\">route</a> "+
		"<a href=\"/api/trail.geojson\">trail</a> <a href=\"/api/logs?format=text\">logs</a></p>")
	_, _ = fmt.Fprint(w, indexScript)
	_, _ = fmt.Fprint(w, "</body></html>")
}

const indexScript = `<script>
var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/api/ws");
function send(action, delta) { ws.send(JSON.stringify({action: action, delta: delta || 0})); }
ws.onmessage = function (ev) {
  var f = JSON.parse(ev.data);
  if (f.type !== "state") return;
  var g = f.state.guidance;
  document.getElementById("status").textContent = g.status;
  document.getElementById("instruction").textContent = g.instruction;
  document.getElementById("remaining").textContent = g.remaining;
  document.getElementById("eta").textContent = g.eta;
};
</script>`

func Serve(ctx context.Context, listenAddr string, d Deps) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           Handler(d),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
