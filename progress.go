/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/triviabox/game"
	"github.com/Seednode/triviabox/store"
)

const qrSize = 320

func writeJSON(cfg *Config, w http.ResponseWriter, r *http.Request, v any, errs chan<- error) {
	startTime := time.Now()

	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "encoding failed", http.StatusInternalServerError)
		errs <- err
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	securityHeaders(cfg, w)

	written, err := w.Write(append(data, '\n'))
	if err != nil {
		errs <- err
		return
	}

	log.Debug().
		Str("path", r.URL.Path).
		Str("size", humanReadableSize(int64(written))).
		Str("ip", realIP(r)).
		Dur("took", time.Since(startTime).Round(time.Microsecond)).
		Msg("served json")
}

func serveProgress(cfg *Config, coord *game.Coordinator, errs chan<- error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scores, err := coord.VisibleScores(r.Context())
		if err != nil {
			http.Error(w, "game unavailable", http.StatusServiceUnavailable)
			return
		}

		writeJSON(cfg, w, r, scores, errs)
	}
}

func serveStandings(cfg *Config, s store.Store, errs chan<- error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		standings, err := s.Standings(r.Context())
		if err != nil {
			log.Warn().Err(err).Msg("standings query failed")
			http.Error(w, "standings unavailable", http.StatusServiceUnavailable)
			return
		}

		if standings == nil {
			standings = []store.Standing{}
		}

		writeJSON(cfg, w, r, standings, errs)
	}
}

func serveStatus(cfg *Config, coord *game.Coordinator, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		status, err := coord.Status(r.Context())
		if err != nil {
			http.Error(w, "game unavailable", http.StatusServiceUnavailable)
			return
		}

		writeJSON(cfg, w, r, status, errs)
	}
}

// socketURL derives the team websocket URL from the request, respecting
// TLS and X-Forwarded-Proto.
func socketURL(cfg *Config, r *http.Request) string {
	scheme := cfg.wsScheme()
	if r.TLS != nil {
		scheme = "wss"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = "ws"
		if strings.EqualFold(proto, "https") {
			scheme = "wss"
		}
	}

	return scheme + "://" + r.Host + cfg.prefix + "/ws"
}

// serveQR returns a PNG QR code of the team websocket URL.
func serveQR(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		png, err := qrcode.Encode(socketURL(cfg, r), qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)
		_, _ = w.Write(png)
	}
}

// registerReadOnly mounts the cross-origin read endpoints for scoreboards.
func registerReadOnly(cfg *Config, mux *httprouter.Router, coord *game.Coordinator, s store.Store, errs chan<- error) {
	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodHead},
		AllowedOrigins: []string{"*"},
	})

	progress := c.Handler(serveProgress(cfg, coord, errs))
	standings := c.Handler(serveStandings(cfg, s, errs))

	mux.Handler(http.MethodGet, cfg.prefix+"/progress", progress)
	mux.Handler(http.MethodOptions, cfg.prefix+"/progress", progress)
	mux.Handler(http.MethodGet, cfg.prefix+"/standings", standings)
	mux.Handler(http.MethodOptions, cfg.prefix+"/standings", standings)

	mux.GET(cfg.prefix+"/status", serveStatus(cfg, coord, errs))
	mux.GET(cfg.prefix+"/qr", serveQR(cfg))
}
