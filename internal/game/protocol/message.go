// Package protocol defines the wire messages exchanged between clients and a
// room hub, and their JSON encoding. Each frame is a single JSON object
// carrying a "type" tag plus the fields of that message kind.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Type identifies a message kind on the wire.
type Type string

// Wire message kinds. The first group are client-originated board commands;
// the second group are server-originated session events.
const (
	TypePlaceToken    Type = "PlaceToken"
	TypeDeleteToken   Type = "DeleteToken"
	TypeMovement      Type = "Movement"
	TypePlaceObj      Type = "PlaceObj"
	TypeDeleteObj     Type = "DeleteObj"
	TypeSetController Type = "SetController"

	TypeConnect          Type = "Connect"
	TypeDisconnect       Type = "Disconnect"
	TypeFailedConnection Type = "FailedConnection"
)

// ErrMissingType indicates a frame without a "type" tag.
var ErrMissingType = errors.New("frame has no type tag")

// ErrUnknownType indicates a frame whose "type" tag names no known message kind.
var ErrUnknownType = errors.New("unknown message type")

// Message is the closed set of frames a room hub sends and receives.
// Implementations are the pointer struct types in this package.
type Message interface {
	// Type returns the wire tag for this message kind.
	Type() Type
}

// PlaceToken asks the hub to create a board token. The server assigns id and
// controller before broadcasting.
type PlaceToken struct {
	ID         string `json:"id,omitempty"`
	Kind       string `json:"kind"`
	X          int    `json:"x"`
	Y          int    `json:"y"`
	Colour     string `json:"colour"`
	Controller string `json:"controller,omitempty"`
}

// DeleteToken removes the token with the given id.
type DeleteToken struct {
	TokenID string `json:"tokenId"`
}

// Movement applies a relative move to a token.
type Movement struct {
	ID      string `json:"id"`
	TokenID string `json:"tokenId"`
	DX      int    `json:"dx"`
	DY      int    `json:"dy"`
}

// PlaceObj asks the hub to place an uploaded object on the board. The server
// assigns id and controller before broadcasting.
type PlaceObj struct {
	ID         string `json:"id,omitempty"`
	ObjID      string `json:"objId"`
	X          int    `json:"x"`
	Y          int    `json:"y"`
	Controller string `json:"controller,omitempty"`
}

// DeleteObj removes the placed object with the given id.
type DeleteObj struct {
	ID string `json:"id"`
}

// SetController reassigns which user may move a token.
type SetController struct {
	TokenID       string `json:"tokenId"`
	NewController string `json:"newController"`
}

// Connect announces a user joining the room.
type Connect struct {
	Username string `json:"username"`
	Host     bool   `json:"host"`
	HostID   int64  `json:"hostId"`
}

// Disconnect announces a user leaving the room.
type Disconnect struct {
	Username string `json:"username"`
}

// FailedConnection tells a client why its session was refused.
type FailedConnection struct {
	Reason string `json:"reason"`
}

func (*PlaceToken) Type() Type       { return TypePlaceToken }
func (*DeleteToken) Type() Type      { return TypeDeleteToken }
func (*Movement) Type() Type         { return TypeMovement }
func (*PlaceObj) Type() Type         { return TypePlaceObj }
func (*DeleteObj) Type() Type        { return TypeDeleteObj }
func (*SetController) Type() Type    { return TypeSetController }
func (*Connect) Type() Type          { return TypeConnect }
func (*Disconnect) Type() Type       { return TypeDisconnect }
func (*FailedConnection) Type() Type { return TypeFailedConnection }

// Decode parses a single text frame into its message kind.
//
// Postcondition: Returns a pointer to the decoded message, or an error if the
// frame is not valid JSON, has no type tag, or names an unknown kind.
func Decode(data []byte) (Message, error) {
	var env struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}

	var msg Message
	switch env.Type {
	case TypePlaceToken:
		msg = &PlaceToken{}
	case TypeDeleteToken:
		msg = &DeleteToken{}
	case TypeMovement:
		msg = &Movement{}
	case TypePlaceObj:
		msg = &PlaceObj{}
	case TypeDeleteObj:
		msg = &DeleteObj{}
	case TypeSetController:
		msg = &SetController{}
	case TypeConnect:
		msg = &Connect{}
	case TypeDisconnect:
		msg = &Disconnect{}
	case TypeFailedConnection:
		msg = &FailedConnection{}
	case "":
		return nil, ErrMissingType
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}

	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("decoding %s frame: %w", env.Type, err)
	}
	return msg, nil
}

// Encode renders a message as a JSON frame with its type tag.
//
// Precondition: msg must be one of this package's message types.
// Postcondition: Returns a JSON object containing "type" plus the message fields.
func Encode(msg Message) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encoding %s frame: %w", msg.Type(), err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("encoding %s frame: %w", msg.Type(), err)
	}
	tag, err := json.Marshal(msg.Type())
	if err != nil {
		return nil, fmt.Errorf("encoding %s tag: %w", msg.Type(), err)
	}
	fields["type"] = tag

	return json.Marshal(fields)
}
