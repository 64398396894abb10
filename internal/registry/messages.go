package registry

import (
	"github.com/capitalize-ai/tour-assistant/internal/model"
)

// Messages returns a copy of a conversation's messages in append order.
func (r *Registry) Messages(id string) ([]model.Message, error) {
	e := r.find(id)
	if e == nil {
		return nil, ErrNotFound
	}
	return model.CloneMessages(e.messages), nil
}

// MessageCount returns the number of messages with the given role, or all
// messages when role is empty.
func (r *Registry) MessageCount(id string, role model.Role) int {
	e := r.find(id)
	if e == nil {
		return 0
	}
	if role == "" {
		return len(e.messages)
	}
	n := 0
	for _, m := range e.messages {
		if m.Role == role {
			n++
		}
	}
	return n
}

// Append adds a message at the end of a conversation.
func (r *Registry) Append(id string, msg model.Message) error {
	e := r.find(id)
	if e == nil {
		return ErrNotFound
	}
	e.messages = append(e.messages, msg.Clone())
	return nil
}

// Update applies fn to the message with msgID. Completed messages are
// immutable, so fn is not called for them and Update reports false.
func (r *Registry) Update(id, msgID string, fn func(*model.Message)) (bool, error) {
	e := r.find(id)
	if e == nil {
		return false, ErrNotFound
	}
	for i := range e.messages {
		if e.messages[i].ID != msgID {
			continue
		}
		if e.messages[i].Complete {
			return false, nil
		}
		fn(&e.messages[i])
		return true, nil
	}
	return false, nil
}

// SetMessages replaces a conversation's message list wholesale and records
// that it was loaded for the given activation generation.
func (r *Registry) SetMessages(id string, msgs []model.Message, generation uint64) error {
	e := r.find(id)
	if e == nil {
		return ErrNotFound
	}
	e.messages = model.CloneMessages(msgs)
	e.loadedGen = generation
	return nil
}

// Loaded reports whether messages were loaded for the current activation of id.
func (r *Registry) Loaded(id string) bool {
	e := r.find(id)
	return e != nil && r.activeID == id && e.loadedGen == r.generation
}

// MarkLoaded records the local list of an active conversation as current,
// e.g. after its room was created during this activation.
func (r *Registry) MarkLoaded(id string) {
	if e := r.find(id); e != nil && r.activeID == id {
		e.loadedGen = r.generation
	}
}
