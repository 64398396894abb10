package registry

import (
	"github.com/capitalize-ai/tour-assistant/internal/model"
)

// Snapshot captures conversation metadata and ordering. Message lists are not
// part of a snapshot.
type Snapshot struct {
	convs    []model.Conversation
	activeID string
}

// Snapshot records the current ordering and metadata.
func (r *Registry) Snapshot() Snapshot {
	return Snapshot{convs: r.Conversations(), activeID: r.activeID}
}

// Restore rolls metadata and ordering back to s. Conversations removed since
// the snapshot stay removed; conversations created since keep their place in
// front. Server ids bound since the snapshot are kept. The active selection
// is restored when that conversation still exists.
func (r *Registry) Restore(s Snapshot) {
	byID := make(map[string]*entry, len(r.entries))
	for _, e := range r.entries {
		byID[e.conv.LocalID] = e
	}

	known := make(map[string]bool, len(s.convs))
	restored := make([]*entry, 0, len(r.entries))
	for _, c := range s.convs {
		known[c.LocalID] = true
		if e, ok := byID[c.LocalID]; ok {
			if c.RoomID == "" {
				c.RoomID = e.conv.RoomID
			}
			if c.UserID == "" {
				c.UserID = e.conv.UserID
			}
			e.conv = c
			restored = append(restored, e)
		}
	}

	var fresh []*entry
	for _, e := range r.entries {
		if !known[e.conv.LocalID] {
			fresh = append(fresh, e)
		}
	}
	r.entries = append(fresh, restored...)

	if s.activeID != r.activeID && r.find(s.activeID) != nil {
		r.activate(s.activeID)
	}
}
