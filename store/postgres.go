/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS teams (
	team_name  TEXT PRIMARY KEY,
	section    TEXT NOT NULL DEFAULT '',
	members    TEXT[] NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS submissions (
	id             BIGSERIAL PRIMARY KEY,
	team_name      TEXT NOT NULL REFERENCES teams (team_name),
	question_index INTEGER NOT NULL,
	points         INTEGER NOT NULL,
	solved         BOOLEAN NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS submissions_team_question
	ON submissions (team_name, question_index);
`

// Postgres stores teams and submissions through a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to dsn and creates the tables if they are missing.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

func (p *Postgres) InsertTeam(ctx context.Context, team Team) error {
	members := team.Members
	if members == nil {
		members = []string{}
	}

	var createdAt *time.Time
	if !team.CreatedAt.IsZero() {
		createdAt = &team.CreatedAt
	}

	tag, err := p.pool.Exec(ctx, `
		INSERT INTO teams (team_name, section, members, created_at)
		VALUES ($1, $2, $3, COALESCE($4::TIMESTAMPTZ, now()))
		ON CONFLICT (team_name) DO NOTHING
	`, team.Name, team.Section, members, createdAt)
	if err != nil {
		return fmt.Errorf("insert team %q: %w", team.Name, err)
	}

	if tag.RowsAffected() == 0 {
		return ErrTeamExists
	}

	return nil
}

func (p *Postgres) UpdateTeam(ctx context.Context, team Team) error {
	members := team.Members
	if members == nil {
		members = []string{}
	}

	tag, err := p.pool.Exec(ctx, `
		UPDATE teams SET section = $2, members = $3 WHERE team_name = $1
	`, team.Name, team.Section, members)
	if err != nil {
		return fmt.Errorf("update team %q: %w", team.Name, err)
	}

	if tag.RowsAffected() == 0 {
		return ErrTeamNotFound
	}

	return nil
}

func (p *Postgres) InsertSubmission(ctx context.Context, sub Submission) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO submissions (team_name, question_index, points, solved)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (team_name, question_index) DO NOTHING
	`, sub.Team, sub.QuestionIndex, sub.Points, sub.Solved)
	if err != nil {
		return fmt.Errorf("insert submission for %q: %w", sub.Team, err)
	}

	return nil
}

func (p *Postgres) Standings(ctx context.Context) ([]Standing, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT t.team_name, COALESCE(SUM(s.points), 0)::INTEGER
		FROM teams t
		LEFT JOIN submissions s ON s.team_name = t.team_name
		GROUP BY t.team_name
		ORDER BY 2 DESC, 1 ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query standings: %w", err)
	}
	defer rows.Close()

	var standings []Standing
	for rows.Next() {
		var s Standing
		if err := rows.Scan(&s.Team, &s.Points); err != nil {
			return nil, fmt.Errorf("scan standing: %w", err)
		}
		standings = append(standings, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read standings: %w", err)
	}

	return standings, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}
