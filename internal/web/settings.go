package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"gpsapp/internal/config"
	"gpsapp/internal/geo"
)

const maxSettingsBody = 64 << 10

// SettingsPayload is the part of the config a driver may change from the
// web page.
type SettingsPayload struct {
	RoutePath string `json:"route_path"`
	Units     string `json:"units"`
	Upcoming  int    `json:"upcoming"`
}

// SettingsPayloadIn is the POST body. All keys are required and none may be
// null, so a partial form cannot silently reset a setting.
type SettingsPayloadIn struct {
	RoutePath *string `json:"route_path"`
	Units     *string `json:"units"`
	Upcoming  *int    `json:"upcoming"`
}

func settingsOf(cfg config.Config) SettingsPayload {
	return SettingsPayload{
		RoutePath: cfg.Route.Path,
		Units:     cfg.Nav.Units,
		Upcoming:  cfg.Nav.Upcoming,
	}
}

// decodeSettings walks the object once, decoding each known key into its
// field and rejecting unknown, duplicate, null and missing keys.
func decodeSettings(body []byte) (SettingsPayloadIn, error) {
	var in SettingsPayloadIn
	fields := map[string]any{
		"route_path": &in.RoutePath,
		"units":      &in.Units,
		"upcoming":   &in.Upcoming,
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return in, errors.New("invalid json: expected object")
	}
	seen := make(map[string]bool, len(fields))
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return in, fmt.Errorf("invalid json: %w", err)
		}
		key, _ := tok.(string)
		dst, ok := fields[key]
		if !ok {
			return in, fmt.Errorf("invalid json: unknown key %q", key)
		}
		if seen[key] {
			return in, fmt.Errorf("invalid json: duplicate key %q", key)
		}
		seen[key] = true

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return in, fmt.Errorf("invalid json: %w", err)
		}
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return in, fmt.Errorf("invalid json: %q cannot be null", key)
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return in, fmt.Errorf("invalid json: %s: %w", key, err)
		}
	}
	if tok, err := dec.Token(); err != nil || tok != json.Delim('}') {
		return in, errors.New("invalid json: expected end of object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return in, errors.New("invalid json: trailing data")
	}
	for _, k := range []string{"route_path", "units", "upcoming"} {
		if !seen[k] {
			return in, fmt.Errorf("invalid json: missing required key %q", k)
		}
	}
	return in, nil
}

// apply copies validated settings into cfg.
func (p SettingsPayloadIn) apply(cfg *config.Config) error {
	if p.RoutePath == nil || p.Units == nil || p.Upcoming == nil {
		return errors.New("route_path, units and upcoming are required")
	}
	units := strings.ToLower(strings.TrimSpace(*p.Units))
	if _, err := geo.ParseUnits(units); err != nil {
		return err
	}
	if *p.Upcoming < 1 || *p.Upcoming > 20 {
		return errors.New("upcoming must be between 1 and 20")
	}
	cfg.Route.Path = strings.TrimSpace(*p.RoutePath)
	cfg.Nav.Units = units
	cfg.Nav.Upcoming = *p.Upcoming
	return nil
}

// SettingsStore serves /api/settings backed by the YAML config file.
type SettingsStore struct {
	ConfigPath string
	// Apply makes a new config effective. It runs before the file is
	// written; on error the file is left alone.
	Apply func(cfg config.Config) error
}

func (s SettingsStore) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/settings", func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimSpace(s.ConfigPath) == "" {
			http.Error(w, "settings not available (no config path)", http.StatusNotImplemented)
			return
		}
		switch r.Method {
		case http.MethodGet:
			s.get(w)
		case http.MethodPost:
			s.post(w, r)
		default:
			w.Header().Set("Allow", "GET, POST")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	return mux
}

func (s SettingsStore) get(w http.ResponseWriter) {
	cfg, err := config.Load(s.ConfigPath)
	if err != nil {
		http.Error(w, fmt.Sprintf("load failed: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, settingsOf(cfg))
}

func (s SettingsStore) post(w http.ResponseWriter, r *http.Request) {
	if ct := strings.TrimSpace(r.Header.Get("Content-Type")); ct != "application/json" {
		http.Error(w, "content-type must be application/json", http.StatusUnsupportedMediaType)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSettingsBody))
	if err != nil {
		http.Error(w, fmt.Sprintf("read failed: %v", err), http.StatusBadRequest)
		return
	}
	in, err := decodeSettings(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	prev, err := config.Load(s.ConfigPath)
	if err != nil {
		http.Error(w, fmt.Sprintf("load failed: %v", err), http.StatusInternalServerError)
		return
	}
	next := prev
	if err := in.apply(&next); err != nil {
		http.Error(w, fmt.Sprintf("invalid settings: %v", err), http.StatusBadRequest)
		return
	}
	if err := config.DefaultAndValidate(&next); err != nil {
		http.Error(w, fmt.Sprintf("invalid config: %v", err), http.StatusBadRequest)
		return
	}

	if s.Apply != nil {
		if err := s.Apply(next); err != nil {
			http.Error(w, fmt.Sprintf("apply failed: %v", err), http.StatusBadRequest)
			return
		}
	}
	if err := config.Save(s.ConfigPath, next); err != nil {
		// Running config and file must agree.
		if s.Apply != nil {
			_ = s.Apply(prev)
		}
		http.Error(w, fmt.Sprintf("save failed: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, settingsOf(next))
}
