// Package board holds the authoritative board state for a single room:
// the live tokens and placed objects, and the rules for mutating them.
//
// A Board is owned by exactly one room hub and relies on the hub's lock for
// serialization; it does no locking of its own.
package board

import (
	"sort"
	"strconv"

	"github.com/rolecall/rolecall/internal/game/protocol"
)

// Token is a live board token.
type Token struct {
	ID         string
	Kind       string
	X          int
	Y          int
	Colour     string
	Controller string
}

// PlacedObj is a live placed object referencing an uploaded asset.
type PlacedObj struct {
	ID         string
	ObjID      string
	X          int
	Y          int
	Controller string
}

// Board applies board commands and decides whether to accept them.
// Token and object ids are independent monotonic counters rendered as
// decimal strings; an id is never reused within a room's lifetime.
type Board struct {
	hostUsername string
	tokens       map[string]*Token
	tokenCount   int
	objs         map[string]*PlacedObj
	objCount     int
}

// New creates an empty board for a room hosted by the given user.
// The host's username is stamped as the default controller on every
// newly created entity.
func New(hostUsername string) *Board {
	return &Board{
		hostUsername: hostUsername,
		tokens:       make(map[string]*Token),
		objs:         make(map[string]*PlacedObj),
	}
}

// Apply runs a decoded message against the board.
//
// Structural mutations are gated by the board's rules and may be rewritten in
// place (server-assigned id and controller). Every other message kind passes
// through accepted and untouched.
//
// Postcondition: Returns false iff the mutation was rejected, in which case
// the board is unchanged.
func (b *Board) Apply(msg protocol.Message) bool {
	switch m := msg.(type) {
	case *protocol.PlaceToken:
		return b.PlaceToken(m)
	case *protocol.DeleteToken:
		return b.DeleteToken(m.TokenID)
	case *protocol.PlaceObj:
		return b.PlaceObj(m)
	case *protocol.DeleteObj:
		return b.DeleteObj(m.ID)
	case *protocol.SetController:
		return b.SetController(m.TokenID, m.NewController)
	case *protocol.Movement:
		return b.Move(m.TokenID, m.DX, m.DY)
	default:
		return true
	}
}

// PlaceToken creates a token from the draft, assigning the next token id and
// the host as controller. The draft is rewritten with the assigned values.
//
// Postcondition: Returns false if another live token already occupies the
// draft's (x, y); the board, including the id counter, is then unchanged.
func (b *Board) PlaceToken(draft *protocol.PlaceToken) bool {
	for _, other := range b.tokens {
		if other.X == draft.X && other.Y == draft.Y {
			return false
		}
	}

	id := strconv.Itoa(b.tokenCount)
	b.tokenCount++
	draft.ID = id
	draft.Controller = b.hostUsername

	b.tokens[id] = &Token{
		ID:         id,
		Kind:       draft.Kind,
		X:          draft.X,
		Y:          draft.Y,
		Colour:     draft.Colour,
		Controller: draft.Controller,
	}
	return true
}

// DeleteToken removes a token. Returns false if the id is not live.
func (b *Board) DeleteToken(id string) bool {
	if _, ok := b.tokens[id]; !ok {
		return false
	}
	delete(b.tokens, id)
	return true
}

// PlaceObj places an object from the draft, assigning the next object id and
// the host as controller. Placement is never rejected.
func (b *Board) PlaceObj(draft *protocol.PlaceObj) bool {
	id := strconv.Itoa(b.objCount)
	b.objCount++
	draft.ID = id
	draft.Controller = b.hostUsername

	b.objs[id] = &PlacedObj{
		ID:         id,
		ObjID:      draft.ObjID,
		X:          draft.X,
		Y:          draft.Y,
		Controller: draft.Controller,
	}
	return true
}

// DeleteObj removes a placed object. Returns false if the id is not live.
func (b *Board) DeleteObj(id string) bool {
	if _, ok := b.objs[id]; !ok {
		return false
	}
	delete(b.objs, id)
	return true
}

// SetController reassigns a token's controller. Returns false if the token
// does not exist.
func (b *Board) SetController(tokenID, newController string) bool {
	token, ok := b.tokens[tokenID]
	if !ok {
		return false
	}
	token.Controller = newController
	return true
}

// Move applies a relative move to a token. The delta is applied
// unconditionally: occupancy is only enforced at placement time, so a move
// may stack tokens on one cell.
func (b *Board) Move(tokenID string, dx, dy int) bool {
	token, ok := b.tokens[tokenID]
	if !ok {
		return false
	}
	token.X += dx
	token.Y += dy
	return true
}

// Controller returns the username controlling a token.
func (b *Board) Controller(tokenID string) (string, bool) {
	token, ok := b.tokens[tokenID]
	if !ok {
		return "", false
	}
	return token.Controller, true
}

// TokenCount returns the number of live tokens.
func (b *Board) TokenCount() int { return len(b.tokens) }

// ObjCount returns the number of live placed objects.
func (b *Board) ObjCount() int { return len(b.objs) }

// Token returns a copy of the token with the given id.
func (b *Board) Token(id string) (Token, bool) {
	token, ok := b.tokens[id]
	if !ok {
		return Token{}, false
	}
	return *token, true
}

// Replay produces one placement message per live entity for seeding a newly
// joined client: tokens in id order, then placed objects in id order. Each
// call takes a fresh snapshot.
func (b *Board) Replay() []protocol.Message {
	msgs := make([]protocol.Message, 0, len(b.tokens)+len(b.objs))

	for _, token := range sortByID(b.tokens) {
		msgs = append(msgs, &protocol.PlaceToken{
			ID:         token.ID,
			Kind:       token.Kind,
			X:          token.X,
			Y:          token.Y,
			Colour:     token.Colour,
			Controller: token.Controller,
		})
	}
	for _, obj := range sortByID(b.objs) {
		msgs = append(msgs, &protocol.PlaceObj{
			ID:         obj.ID,
			ObjID:      obj.ObjID,
			X:          obj.X,
			Y:          obj.Y,
			Controller: obj.Controller,
		})
	}
	return msgs
}

// sortByID orders map values by the numeric value of their string key.
func sortByID[V any](m map[string]V) []V {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, _ := strconv.Atoi(ids[i])
		b, _ := strconv.Atoi(ids[j])
		return a < b
	})

	values := make([]V, 0, len(ids))
	for _, id := range ids {
		values = append(values, m[id])
	}
	return values
}
