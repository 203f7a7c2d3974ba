/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	"github.com/Seednode/triviabox/events"
	"github.com/Seednode/triviabox/game"
	"github.com/Seednode/triviabox/store"
	"github.com/Seednode/triviabox/token"
)

const (
	logDate string        = `2006-01-02T15:04:05.000-07:00`
	timeout time.Duration = 10 * time.Second
)

func securityHeaders(cfg *Config, w http.ResponseWriter) {
	w.Header().Set("Cross-Origin-Embedder-Policy", "require-corp")
	w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
	w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
	w.Header().Set("Permissions-Policy", "geolocation=(), midi=(), sync-xhr=(), microphone=(), camera=(), magnetometer=(), gyroscope=(), fullscreen=(), payment=()")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'self'")

	if cfg.scheme() == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	}
}

func realIP(r *http.Request) string {
	host, port, _ := net.SplitHostPort(r.RemoteAddr)
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	} else if ip := r.Header.Get("X-Real-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	}
	if net.ParseIP(host) != nil && strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		return host + ":" + port
	}
	return host
}

func serveVersion(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusOK)

		_, err := w.Write([]byte("triviabox v" + releaseVersion + "\n"))
		if err != nil {
			errs <- err

			return
		}
	}
}

func openStore(ctx context.Context, cfg *Config) (store.Store, error) {
	var base store.Store = store.NewMemory()

	if cfg.databaseURL != "" {
		pg, err := store.NewPostgres(ctx, cfg.databaseURL)
		if err != nil {
			return nil, err
		}
		base = pg

		log.Info().Msg("using postgres store")
	} else {
		log.Warn().Msg("no --database-url given, results are kept in memory only")
	}

	return store.NewRetrying(base, cfg.storeRetries, cfg.storeBackoff, nil), nil
}

func openEvents(cfg *Config) (events.Publisher, error) {
	if cfg.natsURL == "" {
		return events.Nop{}, nil
	}

	natsCfg := events.DefaultNATSConfig()
	natsCfg.URL = cfg.natsURL
	natsCfg.SubjectPrefix = cfg.natsSubject

	publisher, err := events.NewNATSPublisher(natsCfg)
	if err != nil {
		return nil, err
	}

	log.Info().Str("url", cfg.natsURL).Str("subject", cfg.natsSubject).Msg("publishing round events")

	return publisher, nil
}

func newRouter(cfg *Config, coord *game.Coordinator, s store.Store, errs chan<- error) *httprouter.Router {
	mux := httprouter.New()

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, i any) {
		log.Error().Interface("panic", i).Str("path", r.URL.Path).Msg("handler panicked")

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)
		cspPage(w)
		w.WriteHeader(http.StatusInternalServerError)

		io.WriteString(w, newPage("Server Error", "An error has occurred. Please try again."))
	}

	mux.GET(cfg.prefix+"/", serveHomePage(cfg, errs))

	mux.GET(cfg.prefix+"/healthz", serveHealthCheck(cfg, errs))

	mux.GET(cfg.prefix+"/robots.txt", serveRobots(cfg, errs))

	mux.GET(cfg.prefix+"/version", serveVersion(cfg, errs))

	mux.GET(cfg.prefix+"/ws", serveSocket(cfg, coord))

	registerReadOnly(cfg, mux, coord, s, errs)

	if cfg.operatorKey != "" {
		mux.POST(cfg.prefix+"/operator/:command", serveOperator(cfg, coord, errs))
	}

	if cfg.profile {
		registerProfileHandlers(cfg, mux)
	}

	return mux
}

func ServePage(ctx context.Context, cfg *Config, args []string) error {
	var err error

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	setupLogging(cfg)

	timeZone := os.Getenv("TZ")
	if timeZone != "" {
		time.Local, err = time.LoadLocation(timeZone)
		if err != nil {
			return err
		}
	}

	log.Info().Str("version", releaseVersion).Msg("starting triviabox")

	bank, err := loadQuestions(cfg.questions)
	if err != nil {
		return err
	}

	tokens, err := token.New([]byte(cfg.tokenSecret), nil)
	if err != nil {
		return err
	}

	s, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer s.Close()

	publisher, err := openEvents(cfg)
	if err != nil {
		return err
	}
	defer publisher.Close()

	coord := game.New(game.Options{
		Bank:     bank,
		Store:    s,
		Tokens:   tokens,
		Events:   publisher,
		Clock:    clockwork.NewRealClock(),
		LateJoin: game.LateJoinPolicy(cfg.lateJoin),
		AutoEnd:  cfg.autoEnd,
		Grace:    cfg.grace,

		StoreTimeout: cfg.storeTimeout,
	})

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		coord.Run(ctx)
	}()

	errs := make(chan error, 64)

	go func() {
		for {
			select {
			case err := <-errs:
				log.Debug().Err(err).Msg("write failed")
			case <-ctx.Done():
				return
			}
		}
	}()

	cfg.prefix = strings.TrimSuffix(cfg.prefix, "/")

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           newRouter(cfg, coord, s, errs),
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
		WriteTimeout:      timeout,
	}

	if cfg.console {
		go func() {
			if err := runConsole(ctx, coord, os.Stdin, os.Stdout); err != nil {
				log.Error().Err(err).Msg("operator console stopped")
			}
		}()
	}

	serveErr := make(chan error, 1)

	go func() {
		var err error

		log.Info().Msgf("listening on %s://%s%s/", cfg.scheme(), srv.Addr, cfg.prefix)

		if cfg.tlsKey != "" && cfg.tlsCert != "" {
			err = srv.ListenAndServeTLS(cfg.tlsCert, cfg.tlsKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err = <-serveErr:
		log.Error().Err(err).Msg("server failed")
	}

	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	stop()
	wg.Wait()

	return err
}
