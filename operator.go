/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bufio"
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	"github.com/Seednode/triviabox/game"
)

const operatorHelp = `commands:
  start   open the first question
  end     close the open question and commit scores
  next    open the next question, or finish after the last
  finish  end the game
  status  show the current phase
  teams   list teams and scores
  help    show this text
`

// runConsole reads one operator command per line from in until ctx is
// cancelled or in is exhausted.
func runConsole(ctx context.Context, coord *game.Coordinator, in io.Reader, out io.Writer) error {
	lines := make(chan string)

	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprint(out, operatorHelp)

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := consoleCommand(ctx, coord, strings.TrimSpace(line), out); err != nil {
				if errors.Is(err, game.ErrStopped) || errors.Is(err, context.Canceled) {
					return nil
				}
				fmt.Fprintf(out, "error: %v\n", err)
			}
		}
	}
}

func consoleCommand(ctx context.Context, coord *game.Coordinator, word string, out io.Writer) error {
	if word == "" {
		return nil
	}

	if op, ok := game.ParseOp(word); ok {
		if err := coord.Do(ctx, op); err != nil {
			return err
		}
		word = "status"
	}

	switch word {
	case "status":
		s, err := coord.Status(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "%s question %d/%d, %d teams, %d connections", s.Phase, s.Question+1, s.Questions, s.Teams, s.Connections)
		if s.Deadline != nil {
			fmt.Fprintf(out, ", ends %s", s.Deadline.Local().Format(logDate))
		}
		if s.Backlog > 0 {
			fmt.Fprintf(out, ", %d unsaved submissions", s.Backlog)
		}
		fmt.Fprintln(out)

		for _, warning := range s.Warnings {
			fmt.Fprintf(out, "warning: %s\n", warning)
		}

	case "teams":
		teams, err := coord.Teams(ctx)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TEAM\tSECTION\tSCORE\tPENDING\tCONNECTED")
		for _, team := range teams {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%t\n", team.Name, team.Section, team.Committed, team.Pending, team.Connected)
		}
		return tw.Flush()

	case "help":
		fmt.Fprint(out, operatorHelp)

	default:
		return fmt.Errorf("unknown command %q", word)
	}

	return nil
}

func serveOperator(cfg *Config, coord *game.Coordinator, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		key := r.Header.Get("X-Operator-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(cfg.operatorKey)) != 1 {
			log.Warn().Str("ip", realIP(r)).Msg("rejected operator request")
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		op, ok := game.ParseOp(p.ByName("command"))
		if !ok {
			http.Error(w, "unknown command", http.StatusNotFound)
			return
		}

		err := coord.Do(r.Context(), op)
		switch {
		case errors.Is(err, game.ErrInvalidTransition):
			http.Error(w, err.Error(), http.StatusConflict)
			return
		case err != nil:
			http.Error(w, "game unavailable", http.StatusServiceUnavailable)
			return
		}

		log.Info().Str("op", string(op)).Str("ip", realIP(r)).Msg("operator command via http")

		status, err := coord.Status(r.Context())
		if err != nil {
			http.Error(w, "game unavailable", http.StatusServiceUnavailable)
			return
		}

		writeJSON(cfg, w, r, status, errs)
	}
}
