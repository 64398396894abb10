package registry

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/tour-assistant/internal/model"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestRegistry() (*Registry, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	r := New(clock.Now)
	n := 0
	r.newID = func() string {
		n++
		return fmt.Sprintf("c%d", n)
	}
	return r, clock
}

func ids(convs []model.Conversation) []string {
	out := make([]string, len(convs))
	for i, c := range convs {
		out[i] = c.LocalID
	}
	return out
}

func assertSorted(t *testing.T, r *Registry) {
	t.Helper()
	convs := r.Conversations()
	assert.True(t, sort.SliceIsSorted(convs, func(i, j int) bool {
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	}), "registry not sorted: %v", ids(convs))
}

func TestCreateLocal(t *testing.T) {
	r, _ := newTestRegistry()

	a := r.CreateLocal()
	b := r.CreateLocal()

	assert.Equal(t, []string{"c2", "c1"}, ids(r.Conversations()))
	assert.Equal(t, b.LocalID, r.ActiveID())
	assert.Empty(t, a.RoomID)
	assert.Equal(t, model.PlaceholderTitle, a.DisplayTitle())
}

func TestSelect(t *testing.T) {
	r, _ := newTestRegistry()
	a := r.CreateLocal()
	r.CreateLocal()
	gen := r.Generation()

	changed, err := r.Select(a.LocalID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, gen+1, r.Generation())

	changed, err = r.Select(a.LocalID)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, gen+1, r.Generation())

	_, err = r.Select("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTouchReorderKeepsListSorted(t *testing.T) {
	r, _ := newTestRegistry()
	for i := 0; i < 6; i++ {
		r.CreateLocal()
	}

	rng := rand.New(rand.NewSource(7))
	all := ids(r.Conversations())
	for i := 0; i < 50; i++ {
		id := all[rng.Intn(len(all))]
		require.NoError(t, r.Touch(id, true))
		assert.Equal(t, id, r.Conversations()[0].LocalID)
		assertSorted(t, r)
	}
}

func TestTouchWithoutReorder(t *testing.T) {
	r, _ := newTestRegistry()
	a := r.CreateLocal()
	r.CreateLocal()
	before := ids(r.Conversations())

	require.NoError(t, r.Touch(a.LocalID, false))

	assert.Equal(t, before, ids(r.Conversations()))
	got, _ := r.Get(a.LocalID)
	assert.True(t, got.UpdatedAt.After(a.UpdatedAt))

	assert.ErrorIs(t, r.Touch("missing", false), ErrNotFound)
}

func TestRemove(t *testing.T) {
	t.Run("active moves to next in order", func(t *testing.T) {
		r, _ := newTestRegistry()
		r.CreateLocal()
		r.CreateLocal()
		r.CreateLocal()
		_, err := r.Select("c2")
		require.NoError(t, err)

		active, err := r.Remove("c2")
		require.NoError(t, err)
		assert.Equal(t, "c1", active.LocalID)
		assert.Equal(t, []string{"c3", "c1"}, ids(r.Conversations()))
	})

	t.Run("last in order falls back to previous", func(t *testing.T) {
		r, _ := newTestRegistry()
		r.CreateLocal()
		r.CreateLocal()
		_, err := r.Select("c1")
		require.NoError(t, err)

		active, err := r.Remove("c1")
		require.NoError(t, err)
		assert.Equal(t, "c2", active.LocalID)
	})

	t.Run("inactive keeps selection", func(t *testing.T) {
		r, _ := newTestRegistry()
		r.CreateLocal()
		r.CreateLocal()

		active, err := r.Remove("c1")
		require.NoError(t, err)
		assert.Equal(t, "c2", active.LocalID)
	})

	t.Run("removing the only conversation creates a fresh one", func(t *testing.T) {
		r, _ := newTestRegistry()
		r.CreateLocal()

		active, err := r.Remove("c1")
		require.NoError(t, err)
		assert.Equal(t, "c2", active.LocalID)
		assert.Equal(t, 1, r.Len())
	})

	t.Run("unknown id", func(t *testing.T) {
		r, _ := newTestRegistry()
		_, err := r.Remove("nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestReplace(t *testing.T) {
	r, _ := newTestRegistry()
	r.CreateLocal()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	r.Replace([]model.Conversation{
		{RoomID: "r1", UpdatedAt: base},
		{RoomID: "r3", UpdatedAt: base.Add(2 * time.Hour)},
		{RoomID: "r2", UpdatedAt: base.Add(time.Hour)},
	})

	convs := r.Conversations()
	require.Len(t, convs, 3)
	assert.Equal(t, []string{"r3", "r2", "r1"}, []string{convs[0].RoomID, convs[1].RoomID, convs[2].RoomID})
	assert.Empty(t, r.ActiveID())
	for _, c := range convs {
		assert.NotEmpty(t, c.LocalID)
	}
	got, ok := r.FindByRoom("r2")
	assert.True(t, ok)
	assert.Equal(t, convs[1].LocalID, got.LocalID)
}

func TestSetRoomOnlyOnce(t *testing.T) {
	r, _ := newTestRegistry()
	c := r.CreateLocal()

	changed, err := r.SetRoom(c.LocalID, "room-1", "user-1")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = r.SetRoom(c.LocalID, "room-2", "user-2")
	require.NoError(t, err)
	assert.False(t, changed)

	got, _ := r.Get(c.LocalID)
	assert.Equal(t, "room-1", got.RoomID)
	assert.Equal(t, "user-1", got.UserID)
}

func TestTitle(t *testing.T) {
	fifty := strings.Repeat("abcdefghij", 5)
	title := Title(fifty)
	assert.Equal(t, 38, utf8.RuneCountInString(title))
	assert.Equal(t, fifty[:37]+"…", title)

	assert.Equal(t, "Đi Đà Lạt", Title("  Đi   Đà\tLạt  "))
	assert.Equal(t, "0123456789", Title("0123456789"))

	forty := strings.Repeat("ạ", 40)
	assert.Equal(t, forty, Title(forty))
	assert.Equal(t, 38, utf8.RuneCountInString(Title(forty+"b")))
}

func TestDeriveTitle(t *testing.T) {
	r, _ := newTestRegistry()
	c := r.CreateLocal()

	set, err := r.DeriveTitle(c.LocalID, "   ")
	require.NoError(t, err)
	assert.False(t, set)

	set, err = r.DeriveTitle(c.LocalID, "Tôi muốn đi Đà Lạt")
	require.NoError(t, err)
	assert.True(t, set)

	set, err = r.DeriveTitle(c.LocalID, "second message")
	require.NoError(t, err)
	assert.False(t, set)

	got, _ := r.Get(c.LocalID)
	assert.Equal(t, "Tôi muốn đi Đà Lạt", got.Title)
}

func TestMessages(t *testing.T) {
	r, _ := newTestRegistry()
	c := r.CreateLocal()

	require.NoError(t, r.Append(c.LocalID, model.Message{ID: "m1", Role: model.RoleUser, Content: "hi", Complete: true}))
	require.NoError(t, r.Append(c.LocalID, model.Message{ID: "m2", Role: model.RoleAssistant}))

	ok, err := r.Update(c.LocalID, "m2", func(m *model.Message) { m.Content += "hello" })
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Update(c.LocalID, "m1", func(m *model.Message) { m.Content = "changed" })
	require.NoError(t, err)
	assert.False(t, ok, "complete messages are immutable")

	msgs, err := r.Messages(c.LocalID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.Equal(t, "hello", msgs[1].Content)
	assert.Equal(t, 1, r.MessageCount(c.LocalID, model.RoleAssistant))

	msgs[1].Content = "mutated copy"
	again, _ := r.Messages(c.LocalID)
	assert.Equal(t, "hello", again[1].Content)
}

func TestSetMessagesAndLoaded(t *testing.T) {
	r, _ := newTestRegistry()
	a := r.CreateLocal()
	b := r.CreateLocal()
	loaded := []model.Message{{ID: "x", Role: model.RoleUser, Content: "persisted", Complete: true}}

	require.NoError(t, r.SetMessages(b.LocalID, loaded, r.Generation()))
	require.NoError(t, r.SetMessages(b.LocalID, loaded, r.Generation()))
	msgs, _ := r.Messages(b.LocalID)
	assert.Len(t, msgs, 1)
	assert.True(t, r.Loaded(b.LocalID))

	_, err := r.Select(a.LocalID)
	require.NoError(t, err)
	assert.False(t, r.Loaded(b.LocalID))
	_, err = r.Select(b.LocalID)
	require.NoError(t, err)
	assert.False(t, r.Loaded(b.LocalID), "a new activation needs a new load")
}

func TestSnapshotRestore(t *testing.T) {
	r, _ := newTestRegistry()
	a := r.CreateLocal()
	r.CreateLocal()
	_, err := r.Select(a.LocalID)
	require.NoError(t, err)

	snap := r.Snapshot()
	before := r.Conversations()

	_, err = r.DeriveTitle(a.LocalID, "tentative")
	require.NoError(t, err)
	require.NoError(t, r.Touch(a.LocalID, true))
	require.NoError(t, r.Append(a.LocalID, model.Message{ID: "u", Role: model.RoleUser}))
	_, err = r.SetRoom(a.LocalID, "", "user-9")
	require.NoError(t, err)

	r.Restore(snap)

	after := r.Conversations()
	assert.Equal(t, ids(before), ids(after))
	assert.Empty(t, after[1].Title)
	assert.Equal(t, before[1].UpdatedAt, after[1].UpdatedAt)
	assert.Equal(t, "user-9", after[1].UserID)
	assert.Equal(t, 1, r.MessageCount(a.LocalID, ""), "messages are not part of a snapshot")
	assert.Equal(t, a.LocalID, r.ActiveID())
}
