package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatVND(t *testing.T) {
	tests := map[int64]string{
		0:        "0",
		990:      "990",
		12500:    "12.500",
		1890000:  "1.890.000",
		-4500000: "-4.500.000",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatVND(in))
	}
}

func TestConversationDisplayTitle(t *testing.T) {
	c := Conversation{}
	assert.Equal(t, PlaceholderTitle, c.DisplayTitle())
	assert.False(t, c.Persisted())

	c.Title, c.RoomID = "Tour Sapa", "room-1"
	assert.Equal(t, "Tour Sapa", c.DisplayTitle())
	assert.True(t, c.Persisted())
}

func TestMessageCloneIsDeep(t *testing.T) {
	m := Message{
		Content:      "hi",
		TourPackages: []TourPackage{{ID: "a"}},
		Selections:   []TourSelection{{Name: "A", Price: 1}},
	}
	c := m.Clone()
	c.TourPackages[0].ID = "b"
	c.Selections[0].Price = 2

	assert.Equal(t, "a", m.TourPackages[0].ID)
	assert.Equal(t, int64(1), m.Selections[0].Price)
	assert.Nil(t, CloneMessages(nil))
}
