/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/Seednode/triviabox/store"
	"github.com/Seednode/triviabox/token"
)

const (
	maxSectionLength = 40
	maxMembers       = 10
	maxMemberLength  = 40
)

var validName = regexp.MustCompile(`^[A-Za-z0-9 ]{4,20}$`)

// Conn is the coordinator's view of a team connection. Send must not block;
// it reports false when the frame could not be queued.
type Conn interface {
	ID() string
	Send(frame string) bool
	Close() error
}

type Team struct {
	Name      string
	Section   string
	Members   []string
	Committed int
	Pending   int
	Connected bool
	IssuedAt  time.Time

	conn Conn
}

// Profile is the optional per-team information sent with the profile verb.
type Profile struct {
	Section string   `json:"section"`
	Members []string `json:"members"`
}

func (p *Profile) normalize() error {
	p.Section = strings.TrimSpace(p.Section)
	if len(p.Section) > maxSectionLength || len(p.Members) > maxMembers {
		return ErrProfileInvalid
	}

	members := make([]string, 0, len(p.Members))
	for _, m := range p.Members {
		m = strings.TrimSpace(m)
		if m == "" || len(m) > maxMemberLength {
			return ErrProfileInvalid
		}
		members = append(members, m)
	}
	p.Members = members

	return nil
}

// ValidateName trims name and checks length and charset.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if !validName.MatchString(name) {
		return "", ErrNameInvalid
	}

	return name, nil
}

// Registry maps team names to connections and scores. It is not safe for
// concurrent use; the coordinator goroutine owns it.
type Registry struct {
	store     store.Store
	tokens    *token.Service
	clock     func() time.Time
	startedAt time.Time

	teams  map[string]*Team
	byConn map[string]*Team
}

// NewRegistry returns an empty registry. Tokens issued before startedAt are
// never honoured.
func NewRegistry(s store.Store, tokens *token.Service, startedAt time.Time, now func() time.Time) *Registry {
	return &Registry{
		store:     s,
		tokens:    tokens,
		clock:     now,
		startedAt: startedAt,
		teams:     make(map[string]*Team),
		byConn:    make(map[string]*Team),
	}
}

// Create registers a new team bound to conn and returns its rejoin token.
func (r *Registry) Create(ctx context.Context, name string, conn Conn) (*Team, string, error) {
	name, err := ValidateName(name)
	if err != nil {
		return nil, "", err
	}

	if _, exists := r.teams[name]; exists {
		return nil, "", ErrTeamTaken
	}

	tok, err := r.tokens.Issue(name)
	if err != nil {
		return nil, "", err
	}

	now := r.clock()

	err = r.store.InsertTeam(ctx, store.Team{Name: name, CreatedAt: now})
	switch {
	case errors.Is(err, store.ErrTeamExists):
		return nil, "", ErrTeamTaken
	case err != nil:
		return nil, "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	r.unbind(conn)

	team := &Team{
		Name:      name,
		Connected: true,
		IssuedAt:  now,
		conn:      conn,
	}
	r.teams[name] = team
	r.byConn[conn.ID()] = team

	return team, tok, nil
}

// Rejoin rebinds an existing team to conn. issuedAt must come from a
// verified token. The connection it replaces, if any, is returned so the
// caller can close it.
func (r *Registry) Rejoin(name string, issuedAt time.Time, conn Conn) (*Team, Conn, error) {
	team, exists := r.teams[name]
	if !exists || issuedAt.Before(r.startedAt.Truncate(time.Second)) {
		return nil, nil, ErrTeamNotFound
	}

	var previous Conn
	if team.conn != nil && team.conn.ID() != conn.ID() {
		previous = team.conn
		delete(r.byConn, previous.ID())
	}

	r.unbind(conn)

	team.conn = conn
	team.Connected = true
	r.byConn[conn.ID()] = team

	return team, previous, nil
}

// Disconnect marks the team owning conn as disconnected. It returns the
// team, or nil when conn was not bound.
func (r *Registry) Disconnect(conn Conn) *Team {
	team := r.unbind(conn)
	if team != nil {
		team.Connected = false
	}

	return team
}

func (r *Registry) unbind(conn Conn) *Team {
	team, ok := r.byConn[conn.ID()]
	if !ok {
		return nil
	}

	delete(r.byConn, conn.ID())
	if team.conn != nil && team.conn.ID() == conn.ID() {
		team.conn = nil
		team.Connected = false
	}

	return team
}

// TeamFor returns the team currently bound to conn.
func (r *Registry) TeamFor(conn Conn) (*Team, bool) {
	team, ok := r.byConn[conn.ID()]

	return team, ok
}

func (r *Registry) Lookup(name string) (*Team, bool) {
	team, ok := r.teams[name]

	return team, ok
}

// VisibleScores returns committed scores of connected teams.
func (r *Registry) VisibleScores() map[string]int {
	scores := make(map[string]int, len(r.teams))
	for name, team := range r.teams {
		if team.Connected {
			scores[name] = team.Committed
		}
	}

	return scores
}

// Teams returns every team sorted by name.
func (r *Registry) Teams() []*Team {
	teams := make([]*Team, 0, len(r.teams))
	for _, team := range r.teams {
		teams = append(teams, team)
	}

	slices.SortFunc(teams, func(a, b *Team) int {
		return cmp.Compare(a.Name, b.Name)
	})

	return teams
}

func (r *Registry) Len() int {
	return len(r.teams)
}

func (r *Registry) UpdateProfile(ctx context.Context, conn Conn, profile Profile) error {
	team, ok := r.TeamFor(conn)
	if !ok {
		return ErrTeamNotFound
	}

	if err := profile.normalize(); err != nil {
		return err
	}

	err := r.store.UpdateTeam(ctx, store.Team{
		Name:    team.Name,
		Section: profile.Section,
		Members: profile.Members,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	team.Section = profile.Section
	team.Members = profile.Members

	return nil
}
