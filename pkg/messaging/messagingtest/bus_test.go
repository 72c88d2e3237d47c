package messagingtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubjectMatches(t *testing.T) {
	assert.True(t, SubjectMatches("sos.events.>", "sos.events.user:u1"))
	assert.True(t, SubjectMatches("sos.*.user:u1", "sos.events.user:u1"))
	assert.True(t, SubjectMatches("sos.events.user:u1", "sos.events.user:u1"))
	assert.False(t, SubjectMatches("sos.events.>", "sos.events"))
	assert.False(t, SubjectMatches("sos.events.*", "sos.events.a.b"))
	assert.False(t, SubjectMatches("sos.other.>", "sos.events.x"))
}

func TestMemoryBus(t *testing.T) {
	bus := NewMemoryBus()

	var got []string
	unsubscribe, err := bus.Subscribe("sos.events.>", func(subject string, data []byte) {
		got = append(got, subject+"="+string(data))
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish("sos.events.contact:c1", []byte("x")))
	require.NoError(t, bus.Publish("other", []byte("y")))
	unsubscribe()
	require.NoError(t, bus.Publish("sos.events.contact:c1", []byte("z")))

	assert.Equal(t, []string{"sos.events.contact:c1=x"}, got)
}
