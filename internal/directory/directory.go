// Package directory consumes the account/game directory: the external
// service that resolves user tokens to identities and decides room
// membership. The session core only ever talks to this interface; it never
// touches the directory's storage.
package directory

import (
	"context"
	"errors"
)

// Role is a user's standing in a game room.
type Role string

const (
	// RoleHost grants board-editing rights.
	RoleHost Role = "host"
	// RolePlayer grants presence and movement of controlled tokens.
	RolePlayer Role = "player"
	// RoleNone means the user is not a member of the game.
	RoleNone Role = "none"
)

// ErrUnknownUser indicates a user token the directory does not recognize.
var ErrUnknownUser = errors.New("unknown user token")

// ErrUnknownGame indicates a game token the directory does not recognize.
var ErrUnknownGame = errors.New("unknown game token")

// Account is a resolved user identity.
type Account struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Directory is the narrow surface of the account/game service the session
// core depends on.
type Directory interface {
	// CheckGamePermission reports the user's role in the given game.
	CheckGamePermission(ctx context.Context, userToken, gameToken string) (Role, error)
	// GetAccount resolves a user token to an account.
	GetAccount(ctx context.Context, userToken string) (Account, error)
}
