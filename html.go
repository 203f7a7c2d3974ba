/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"html"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
)

// cspPage relaxes the default policy for the inline styles of generated pages.
func cspPage(w http.ResponseWriter) {
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'")
}

func serveHomePage(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)
		cspPage(w)

		body := fmt.Sprintf(`<h1>triviabox</h1><p>Teams connect to <code>%s</code></p><img src="%s/qr" alt="join code"><p><a href="%s/progress">progress</a> &middot; <a href="%s/standings">standings</a></p>`,
			html.EscapeString(socketURL(cfg, r)),
			cfg.prefix, cfg.prefix, cfg.prefix,
		)

		written, err := w.Write([]byte(newPage("triviabox", body)))
		if err != nil {
			errs <- err

			return
		}

		log.Debug().
			Str("size", humanReadableSize(int64(written))).
			Str("ip", realIP(r)).
			Dur("took", time.Since(startTime).Round(time.Microsecond)).
			Msg("served home page")
	}
}

func serveHealthCheck(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)

		_, err := w.Write([]byte("Ok\n"))
		if err != nil {
			errs <- err

			return
		}
	}
}

func serveRobots(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		data := `User-agent: *
Disallow: /`

		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		securityHeaders(cfg, w)

		_, err := w.Write([]byte(data))
		if err != nil {
			errs <- err

			return
		}
	}
}
