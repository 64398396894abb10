// Package stream decodes and encodes the agent's line-delimited event frames.
//
// Each frame is one line: a fixed prefix (by default "data: ") followed by a
// JSON object whose "type" field selects the event variant.
package stream

import (
	"github.com/capitalize-ai/tour-assistant/internal/model"
)

// DefaultPrefix is the marker that precedes every JSON frame.
const DefaultPrefix = "data: "

// EventType is the wire tag of a frame.
type EventType string

const (
	TypeStart           EventType = "start"
	TypeToken           EventType = "token"
	TypeRecommendations EventType = "recommendations"
	TypeComplete        EventType = "complete"
	TypeError           EventType = "error"
)

// Event is one decoded frame. The set of implementations is closed:
// Start, Token, Recommendations, Complete, Error and Unknown.
type Event interface {
	Type() EventType
	isEvent()
}

// Start confirms the room and user the cycle runs against.
type Start struct {
	ConversationID string
	UserID         string
}

// Token carries an incremental text fragment.
type Token struct {
	Content string
}

// Recommendations carries the authoritative structured items.
type Recommendations struct {
	TourPackages []model.TourPackage
}

// Complete ends a successful response. FullResponse is informational only.
type Complete struct {
	FullResponse string
	Sources      []model.Source
}

// Error ends the response with a failure to show to the user.
type Error struct {
	Message string
}

// Unknown is a well-formed frame with a tag this client does not handle.
// Consumers ignore it.
type Unknown struct {
	Tag string
}

func (Start) Type() EventType           { return TypeStart }
func (Token) Type() EventType           { return TypeToken }
func (Recommendations) Type() EventType { return TypeRecommendations }
func (Complete) Type() EventType        { return TypeComplete }
func (Error) Type() EventType           { return TypeError }
func (u Unknown) Type() EventType       { return EventType(u.Tag) }

func (Start) isEvent()           {}
func (Token) isEvent()           {}
func (Recommendations) isEvent() {}
func (Complete) isEvent()        {}
func (Error) isEvent()           {}
func (Unknown) isEvent()         {}

// frame is the JSON shape shared by all event types.
type frame struct {
	Type           EventType           `json:"type"`
	ConversationID string              `json:"conversation_id,omitempty"`
	UserID         string              `json:"user_id,omitempty"`
	Content        string              `json:"content,omitempty"`
	TourPackages   []model.TourPackage `json:"tour_packages,omitempty"`
	FullResponse   string              `json:"full_response,omitempty"`
	Sources        []model.Source      `json:"sources,omitempty"`
	Error          string              `json:"error,omitempty"`
}

func (f *frame) event() Event {
	switch f.Type {
	case TypeStart:
		return Start{ConversationID: f.ConversationID, UserID: f.UserID}
	case TypeToken:
		return Token{Content: f.Content}
	case TypeRecommendations:
		return Recommendations{TourPackages: f.TourPackages}
	case TypeComplete:
		return Complete{FullResponse: f.FullResponse, Sources: f.Sources}
	case TypeError:
		return Error{Message: f.Error}
	default:
		return Unknown{Tag: string(f.Type)}
	}
}

func toFrame(ev Event) frame {
	switch e := ev.(type) {
	case Start:
		return frame{Type: TypeStart, ConversationID: e.ConversationID, UserID: e.UserID}
	case Token:
		return frame{Type: TypeToken, Content: e.Content}
	case Recommendations:
		return frame{Type: TypeRecommendations, TourPackages: e.TourPackages}
	case Complete:
		return frame{Type: TypeComplete, FullResponse: e.FullResponse, Sources: e.Sources}
	case Error:
		return frame{Type: TypeError, Error: e.Message}
	case Unknown:
		return frame{Type: EventType(e.Tag)}
	}
	return frame{}
}
