package web

import (
	"net/http"
	"runtime"
	"runtime/debug"
	"time"

	"gpsapp/internal/gps"
)

type AboutResponse struct {
	Service    string   `json:"service"`
	Protocols  []string `json:"protocols"`
	NowUTC     string   `json:"now_utc"`
	GoVersion  string   `json:"go_version"`
	ModulePath string   `json:"module_path,omitempty"`
	Version    string   `json:"version,omitempty"`
	Commit     string   `json:"commit,omitempty"`
	Dirty      bool     `json:"dirty,omitempty"`
	BuildTime  string   `json:"build_time,omitempty"`
}

func AboutHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !allow(w, r, http.MethodGet) {
			return
		}

		resp := AboutResponse{
			Service:   "gpsapp",
			Protocols: gps.DefaultRegistry().Names(),
			NowUTC:    time.Now().UTC().Format(time.RFC3339Nano),
			GoVersion: runtime.Version(),
		}

		if bi, ok := debug.ReadBuildInfo(); ok && bi != nil {
			resp.ModulePath = bi.Main.Path
			resp.Version = bi.Main.Version
			for _, s := range bi.Settings {
				switch s.Key {
				case "vcs.revision":
					resp.Commit = s.Value
				case "vcs.modified":
					resp.Dirty = s.Value == "true"
				case "vcs.time":
					resp.BuildTime = s.Value
				}
			}
		}

		writeJSON(w, resp)
	})
}
