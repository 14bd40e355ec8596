package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/fisaks/voldisp/internal/logging"
)

type SpeakerStateRequest struct {
	Volume  *int    `json:"volume,omitempty"`
	Muted   *bool   `json:"muted,omitempty"`
	Offline *bool   `json:"offline,omitempty"`
	Delay   *string `json:"delay,omitempty"`
}

func RestMux(s *Speaker) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /speaker", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.Snapshot())
	})
	mux.HandleFunc("PATCH /speaker", func(w http.ResponseWriter, r *http.Request) { patchSpeakerHandler(s, w, r) })
	mux.HandleFunc("PUT /speaker/volume/{value}", func(w http.ResponseWriter, r *http.Request) { setVolumeHandler(s, w, r) })
	mux.HandleFunc("POST /speaker/mute/toggle", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.Muted = !s.Muted
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, s.Snapshot())
	})
	mux.HandleFunc("PUT /speaker/offline/{mode}", func(w http.ResponseWriter, r *http.Request) { setOfflineHandler(s, w, r) })

	return mux
}

/* ------------------------ helpers: json & errors ------------------------ */

func readJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func fail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

/* ------------------------------ handlers -------------------------------- */

func patchSpeakerHandler(s *Speaker, w http.ResponseWriter, r *http.Request) {
	var req SpeakerStateRequest
	if err := readJSON(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "bad json")
		return
	}
	var delay time.Duration
	if req.Delay != nil {
		d, err := time.ParseDuration(*req.Delay)
		if err != nil || d < 0 {
			fail(w, http.StatusBadRequest, "invalid delay")
			return
		}
		delay = d
	}
	if req.Volume != nil && (*req.Volume < 0 || *req.Volume > 200) {
		fail(w, http.StatusBadRequest, "volume must be 0..200")
		return
	}

	s.mu.Lock()
	if req.Volume != nil {
		s.Volume = *req.Volume
	}
	if req.Muted != nil {
		s.Muted = *req.Muted
	}
	if req.Offline != nil {
		s.Offline = *req.Offline
	}
	if req.Delay != nil {
		s.Delay = delay
	}
	s.mu.Unlock()

	logging.Info("Speaker state changed", "state", s.Snapshot())
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func setVolumeHandler(s *Speaker, w http.ResponseWriter, r *http.Request) {
	v, err := strconv.Atoi(r.PathValue("value"))
	if err != nil || v < 0 || v > 200 {
		fail(w, http.StatusBadRequest, "volume must be 0..200")
		return
	}
	s.mu.Lock()
	s.Volume = v
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func setOfflineHandler(s *Speaker, w http.ResponseWriter, r *http.Request) {
	var offline bool
	switch r.PathValue("mode") {
	case "on":
		offline = true
	case "off":
		offline = false
	default:
		fail(w, http.StatusBadRequest, "mode must be on or off")
		return
	}
	s.mu.Lock()
	s.Offline = offline
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.Snapshot())
}
