package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStoreAppendAndRead(t *testing.T) {
	store := NewInMemoryStore()
	runID := NewRunID()

	require.NoError(t, store.AppendEvent(runID, NewEvent(PhaseStartedEvent, runID, PhaseStarted{Phase: "backlog"})))
	require.NoError(t, store.AppendEvent(runID, NewEvent(PhaseCompletedEvent, runID, PhaseCompleted{Phase: "backlog", Objective: 5})))

	recorded, err := store.ReadEvents(runID)
	require.NoError(t, err)
	require.Len(t, recorded, 2)

	assert.Equal(t, PhaseStartedEvent, recorded[0].Type())
	assert.Equal(t, 1, recorded[0].Version())
	assert.Equal(t, PhaseCompletedEvent, recorded[1].Type())
	assert.Equal(t, 2, recorded[1].Version())
	assert.Equal(t, runID, recorded[1].StreamID())

	data, ok := recorded[1].Data().(PhaseCompleted)
	require.True(t, ok)
	assert.Equal(t, 5.0, data.Objective)
}

func TestInMemoryStoreIsolatesStreams(t *testing.T) {
	store := NewInMemoryStore()

	require.NoError(t, store.AppendEvent("run-1", NewEvent(RunStartedEvent, "run-1", nil)))

	other, err := store.ReadEvents("run-2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestInMemoryStoreConcurrentAppends(t *testing.T) {
	store := NewInMemoryStore()
	runID := NewRunID()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.AppendEvent(runID, NewEvent(PhaseStartedEvent, runID, nil))
		}()
	}
	wg.Wait()

	recorded, err := store.ReadEvents(runID)
	require.NoError(t, err)
	assert.Len(t, recorded, 50)

	seen := make(map[int]bool, len(recorded))
	for _, ev := range recorded {
		assert.False(t, seen[ev.Version()], "duplicate version %d", ev.Version())
		seen[ev.Version()] = true
	}
}

func TestNewRunIDUnique(t *testing.T) {
	assert.NotEqual(t, NewRunID(), NewRunID())
}
