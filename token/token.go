/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package token signs and verifies the rejoin tokens handed to teams.
package token

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

const issuer = "triviabox"

// ErrInvalid is returned for any token that cannot be trusted.
var ErrInvalid = errors.New("invalid rejoin token")

// Claims is the verified content of a rejoin token.
type Claims struct {
	Team     string
	IssuedAt time.Time
}

type teamClaims struct {
	Team string `json:"team"`
	jwt.RegisteredClaims
}

// Service issues and verifies HS256 tokens with a process-wide secret.
type Service struct {
	secret []byte
	clock  clockwork.Clock
}

// New returns a Service. An empty secret is replaced with random bytes,
// which makes every token from a previous process unverifiable.
func New(secret []byte, clock clockwork.Clock) (*Service, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate token secret: %w", err)
		}
	}

	return &Service{secret: secret, clock: clock}, nil
}

// Issue returns a signed token binding team to the current time.
func (s *Service) Issue(team string) (string, error) {
	if team == "" {
		return "", fmt.Errorf("%w: empty team", ErrInvalid)
	}

	claims := teamClaims{
		Team: team,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   issuer,
			IssuedAt: jwt.NewNumericDate(s.clock.Now()),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// Verify checks the signature and shape of raw and returns its claims.
func (s *Service) Verify(raw string) (Claims, error) {
	var claims teamClaims

	_, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if claims.Team == "" || claims.IssuedAt == nil {
		return Claims{}, fmt.Errorf("%w: missing claims", ErrInvalid)
	}

	return Claims{Team: claims.Team, IssuedAt: claims.IssuedAt.Time}, nil
}
