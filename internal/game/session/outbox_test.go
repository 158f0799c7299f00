package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutbox_Send(t *testing.T) {
	o := NewOutbox("alice", 4)
	require.NoError(t, o.Send("s.e"))
	assert.Equal(t, "s.e", <-o.Messages())
}

func TestOutbox_SendClosed(t *testing.T) {
	o := NewOutbox("alice", 4)
	o.Close()
	assert.True(t, o.IsClosed())
	assert.Error(t, o.Send("z.1"))
}

func TestOutbox_SendFull(t *testing.T) {
	o := NewOutbox("alice", 1)
	require.NoError(t, o.Send("first"))
	err := o.Send("overflow")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "buffer full")
}

func TestOutbox_CloseIdempotent(t *testing.T) {
	o := NewOutbox("alice", 0)
	o.Close()
	o.Close()
	assert.True(t, o.IsClosed())

	_, ok := <-o.Messages()
	assert.False(t, ok)
}

func TestOutbox_PreservesOrder(t *testing.T) {
	o := NewOutbox("alice", 8)
	for _, m := range []string{"z.1", "z.2", "t.3"} {
		require.NoError(t, o.Send(m))
	}
	o.Close()

	var got []string
	for m := range o.Messages() {
		got = append(got, m)
	}
	assert.Equal(t, []string{"z.1", "z.2", "t.3"}, got)
}

func TestSession_CounterpartOf(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.player("alice"), f.player("bob")
	s, err := f.matchmaker.FindSessionFor(alice)
	require.NoError(t, err)

	assert.Nil(t, s.CounterpartOf("alice"), "forming session has no counterpart")
	assert.Nil(t, s.CounterpartOf("stranger"))

	_, err = f.matchmaker.FindSessionFor(bob)
	require.NoError(t, err)

	assert.Same(t, bob, s.CounterpartOf("alice"))
	assert.Same(t, alice, s.CounterpartOf("bob"))
	assert.Nil(t, s.CounterpartOf("stranger"))
	assert.True(t, s.Has("bob"))
	assert.False(t, s.Has("stranger"))
	assert.False(t, s.HasCapacity())
}
