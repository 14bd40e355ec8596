package main

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fisaks/voldisp/internal/logging"
	"github.com/fisaks/voldisp/internal/soap"
)

// Speaker is the simulated RenderingControl state. Volume is the raw speaker
// value, before the appliance applies its divisor.
type Speaker struct {
	mu      sync.RWMutex
	Volume  int
	Muted   bool
	Offline bool
	Delay   time.Duration
}

type SpeakerSnapshot struct {
	Volume  int    `json:"volume"`
	Muted   bool   `json:"muted"`
	Offline bool   `json:"offline"`
	Delay   string `json:"delay"`
}

func (s *Speaker) Snapshot() SpeakerSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SpeakerSnapshot{Volume: s.Volume, Muted: s.Muted, Offline: s.Offline, Delay: s.Delay.String()}
}

const responseTemplate = `<?xml version="1.0" encoding="utf-8"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/"><s:Body><u:%[1]sResponse xmlns:u="%[2]s"><%[3]s>%[4]s</%[3]s></u:%[1]sResponse></s:Body></s:Envelope>`

// SOAPHandler answers GetVolume and GetMute the way a networked speaker does.
func SOAPHandler(s *Speaker, serviceType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		r.Body.Close()

		s.mu.RLock()
		volume, muted, offline, delay := s.Volume, s.Muted, s.Offline, s.Delay
		s.mu.RUnlock()

		if delay > 0 {
			time.Sleep(delay)
		}
		if offline {
			dropConnection(w)
			return
		}

		action := soapAction(r.Header.Get("SOAPACTION"))
		var field, value string
		switch action {
		case soap.ActionGetVolume:
			field, value = "CurrentVolume", fmt.Sprint(volume)
		case soap.ActionGetMute:
			field, value = "CurrentMute", "0"
			if muted {
				value = "1"
			}
		default:
			logging.Warn("Unknown SOAP action", "action", r.Header.Get("SOAPACTION"))
			http.Error(w, "unknown action", http.StatusInternalServerError)
			return
		}
		logging.Debug("SOAP request", "action", action, field, value)
		w.Header().Set("Content-Type", `text/xml; charset="utf-8"`)
		w.Header().Set("Connection", "close")
		fmt.Fprintf(w, responseTemplate, action, serviceType, field, value)
	}
}

// soapAction extracts GetVolume from "urn:...:1#GetVolume".
func soapAction(header string) string {
	header = strings.Trim(header, `"`)
	if i := strings.LastIndexByte(header, '#'); i >= 0 {
		return header[i+1:]
	}
	return header
}

func dropConnection(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "offline", http.StatusServiceUnavailable)
		return
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		return
	}
	conn.Close()
}
