// Package registry holds the set of conversation threads, their ordering and
// their message lists.
//
// A Registry is not safe for concurrent use. It is owned by one assistant
// session, which serializes access.
package registry

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/capitalize-ai/tour-assistant/internal/model"
)

// MaxTitleRunes is the longest derived title kept without truncation.
const MaxTitleRunes = 40

// ErrNotFound is returned for unknown local conversation ids.
var ErrNotFound = errors.New("conversation not found")

type entry struct {
	conv     model.Conversation
	messages []model.Message
	// loadedGen is the activation generation whose load was applied.
	loadedGen uint64
}

// Registry is the conversation store.
type Registry struct {
	entries    []*entry
	activeID   string
	generation uint64
	now        func() time.Time
	newID      func() string
}

// New creates an empty registry. A nil clock selects time.Now.
func New(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		now:   now,
		newID: uuid.NewString,
	}
}

// Len returns the number of conversations.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Conversations returns the conversations in display order.
func (r *Registry) Conversations() []model.Conversation {
	out := make([]model.Conversation, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.conv
	}
	return out
}

// Get returns a conversation by local id.
func (r *Registry) Get(id string) (model.Conversation, bool) {
	e := r.find(id)
	if e == nil {
		return model.Conversation{}, false
	}
	return e.conv, true
}

// FindByRoom returns the conversation bound to a server room id.
func (r *Registry) FindByRoom(roomID string) (model.Conversation, bool) {
	if roomID == "" {
		return model.Conversation{}, false
	}
	for _, e := range r.entries {
		if e.conv.RoomID == roomID {
			return e.conv, true
		}
	}
	return model.Conversation{}, false
}

// ActiveID returns the active conversation id, or "" when none is active.
func (r *Registry) ActiveID() string {
	return r.activeID
}

// Active returns the active conversation.
func (r *Registry) Active() (model.Conversation, bool) {
	if r.activeID == "" {
		return model.Conversation{}, false
	}
	return r.Get(r.activeID)
}

// Generation identifies the current activation. It changes every time a
// different conversation becomes active.
func (r *Registry) Generation() uint64 {
	return r.generation
}

// CreateLocal inserts a new conversation without a room id at the front and
// makes it active.
func (r *Registry) CreateLocal() model.Conversation {
	now := r.now()
	e := &entry{conv: model.Conversation{
		LocalID:   r.newID(),
		CreatedAt: now,
		UpdatedAt: now,
	}}
	r.entries = append([]*entry{e}, r.entries...)
	r.activate(e.conv.LocalID)
	return e.conv
}

// Select makes id active. It reports whether the active conversation changed;
// selecting the already active conversation is a no-op.
func (r *Registry) Select(id string) (bool, error) {
	if r.find(id) == nil {
		return false, ErrNotFound
	}
	if r.activeID == id {
		return false, nil
	}
	r.activate(id)
	return true, nil
}

func (r *Registry) activate(id string) {
	r.activeID = id
	r.generation++
}

// Remove deletes a conversation and its messages. When it was active, the
// conversation now at its position (or the new last one) becomes active, and
// a fresh local conversation is created when none remain. It returns the
// active conversation afterwards.
func (r *Registry) Remove(id string) (model.Conversation, error) {
	idx := r.index(id)
	if idx < 0 {
		return model.Conversation{}, ErrNotFound
	}
	r.entries = append(r.entries[:idx], r.entries[idx+1:]...)

	if r.activeID == id {
		r.activeID = ""
		switch {
		case len(r.entries) == 0:
			return r.CreateLocal(), nil
		case idx < len(r.entries):
			r.activate(r.entries[idx].conv.LocalID)
		default:
			r.activate(r.entries[len(r.entries)-1].conv.LocalID)
		}
	}
	active, _ := r.Active()
	return active, nil
}

// Touch bumps the last-updated timestamp. With reorder the conversation is
// moved to the front and the list re-sorted newest first; without it only
// the timestamp changes.
func (r *Registry) Touch(id string, reorder bool) error {
	idx := r.index(id)
	if idx < 0 {
		return ErrNotFound
	}
	e := r.entries[idx]
	e.conv.UpdatedAt = r.now()
	if !reorder {
		return nil
	}

	r.entries = append(r.entries[:idx], r.entries[idx+1:]...)
	r.entries = append([]*entry{e}, r.entries...)
	r.sort()
	return nil
}

// Replace swaps the whole list for convs, sorted newest first. Messages and
// the active selection are dropped.
func (r *Registry) Replace(convs []model.Conversation) {
	r.entries = make([]*entry, 0, len(convs))
	for _, c := range convs {
		if c.LocalID == "" {
			c.LocalID = r.newID()
		}
		r.entries = append(r.entries, &entry{conv: c})
	}
	r.sort()
	r.activeID = ""
	r.generation++
}

// SetRoom binds the server room and user ids. Ids already set are never
// overwritten. It reports whether anything changed.
func (r *Registry) SetRoom(id, roomID, userID string) (bool, error) {
	e := r.find(id)
	if e == nil {
		return false, ErrNotFound
	}
	changed := false
	if e.conv.RoomID == "" && roomID != "" {
		e.conv.RoomID = roomID
		changed = true
	}
	if e.conv.UserID == "" && userID != "" {
		e.conv.UserID = userID
		changed = true
	}
	return changed, nil
}

// DeriveTitle sets the title from text when no title is set yet.
func (r *Registry) DeriveTitle(id, text string) (bool, error) {
	e := r.find(id)
	if e == nil {
		return false, ErrNotFound
	}
	if e.conv.Title != "" {
		return false, nil
	}
	title := Title(text)
	if title == "" {
		return false, nil
	}
	e.conv.Title = title
	return true, nil
}

// Title normalizes text into a conversation title: whitespace is trimmed and
// collapsed, and text longer than MaxTitleRunes is cut to MaxTitleRunes-3
// runes followed by an ellipsis.
func Title(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= MaxTitleRunes {
		return text
	}
	return string(runes[:MaxTitleRunes-3]) + "…"
}

func (r *Registry) sort() {
	sort.SliceStable(r.entries, func(i, j int) bool {
		return r.entries[i].conv.UpdatedAt.After(r.entries[j].conv.UpdatedAt)
	})
}

func (r *Registry) index(id string) int {
	for i, e := range r.entries {
		if e.conv.LocalID == id {
			return i
		}
	}
	return -1
}

func (r *Registry) find(id string) *entry {
	if i := r.index(id); i >= 0 {
		return r.entries[i]
	}
	return nil
}
