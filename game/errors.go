/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"errors"

	"github.com/Seednode/triviabox/token"
)

var (
	ErrNameInvalid       = errors.New("team name must be 4-20 letters, digits or spaces")
	ErrTeamTaken         = errors.New("team name already taken")
	ErrTeamNotFound      = errors.New("team does not exist")
	ErrTokenInvalid      = token.ErrInvalid
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrInvalidTransition = errors.New("invalid phase transition")
	ErrProtocol          = errors.New("protocol violation")
	ErrGameFinished      = errors.New("game finished")
	ErrProfileInvalid    = errors.New("profile invalid")
	ErrStopped           = errors.New("coordinator stopped")
)
