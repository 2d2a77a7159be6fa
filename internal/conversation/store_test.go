package conversation

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/handoff-voice/internal/domain"
)

func newTestStore() *Store {
	var n int
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return NewStore(
		WithClock(func() time.Time {
			n++
			return base.Add(time.Duration(n) * time.Second)
		}),
		WithIDGenerator(func() string { return "t" + strconv.Itoa(n) }),
	)
}

func TestNewStoreDefaults(t *testing.T) {
	s := NewStore()
	assert.Equal(t, domain.Bob, s.Active())
	assert.Empty(t, s.Messages())
	assert.Empty(t, s.Transcript())
}

func TestAppendOrder(t *testing.T) {
	s := newTestStore()

	s.AppendUser("I want to remodel my kitchen")
	s.AppendAssistant(domain.Bob, "Great, what's your budget?")
	s.AppendUser("Transfer me to Alice")
	s.Handoff(domain.Alice, "Hi, I'm Alice.")

	msgs := s.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, domain.RoleUser, msgs[0].Role)
	assert.Equal(t, domain.RoleAssistant, msgs[1].Role)
	assert.Equal(t, domain.Bob, msgs[1].AgentID)
	assert.Equal(t, domain.Alice, msgs[3].AgentID)
	for i := 1; i < len(msgs); i++ {
		assert.True(t, msgs[i].CreatedAt.After(msgs[i-1].CreatedAt))
	}

	tr := s.Transcript()
	require.Len(t, tr, 4)
	assert.Equal(t, domain.SpeakerUser, tr[0].Speaker)
	assert.Equal(t, "bob", tr[1].Speaker)
	assert.Equal(t, "alice", tr[3].Speaker)
	assert.Equal(t, domain.Alice, s.Active())
}

func TestSnapshotsAreCopies(t *testing.T) {
	s := newTestStore()
	s.AppendUser("hello")

	msgs := s.Messages()
	msgs[0].Content = "changed"
	assert.Equal(t, "hello", s.Messages()[0].Content)

	tr := s.Transcript()
	tr[0].Text = "changed"
	assert.Equal(t, "hello", s.Transcript()[0].Text)
}

func TestReset(t *testing.T) {
	s := newTestStore()
	s.AppendUser("hello")
	s.Handoff(domain.Alice, "hi")

	s.Reset()
	assert.Equal(t, domain.Bob, s.Active())
	assert.Zero(t, s.Len())
	assert.Empty(t, s.Transcript())
}

func TestConcurrentAppends(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AppendUser("x")
			_ = s.Messages()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, s.Len())
	assert.Len(t, s.Transcript(), 50)
}
