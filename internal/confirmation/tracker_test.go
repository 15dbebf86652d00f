package confirmation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_RegisterAndLookup(t *testing.T) {
	tr := NewTracker()
	tr.Register("tx1", "a1")

	auctionID, ok := tr.Lookup("tx1")
	require.True(t, ok)
	assert.Equal(t, "a1", auctionID)

	_, ok = tr.Lookup("unknown")
	assert.False(t, ok)
}

func TestTracker_RegisterIdempotent(t *testing.T) {
	tr := NewTracker()
	tr.Register("tx1", "a1")
	tr.Register("tx1", "a2") // duplicate delivery keeps the original owner

	auctionID, ok := tr.Lookup("tx1")
	require.True(t, ok)
	assert.Equal(t, "a1", auctionID)
	assert.Equal(t, 1, tr.Len())
}

func TestTracker_DetectThenConfirm(t *testing.T) {
	tr := NewTracker()
	tr.Register("tx1", "a1")

	detectedAt := time.Now().UTC()
	require.True(t, tr.MarkDetected("tx1", detectedAt))
	// second detection signal is a no-op
	assert.False(t, tr.MarkDetected("tx1", detectedAt.Add(time.Second)))

	latency, ok := tr.Confirm("tx1", detectedAt.Add(2*time.Second))
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, latency)

	// confirmed entries are evicted; re-delivery resolves to nothing
	_, ok = tr.Confirm("tx1", detectedAt.Add(3*time.Second))
	assert.False(t, ok)
	_, ok = tr.Lookup("tx1")
	assert.False(t, ok)
}

func TestTracker_ConfirmWithoutDetection(t *testing.T) {
	tr := NewTracker()
	tr.Register("tx1", "a1")

	latency, ok := tr.Confirm("tx1", time.Now().UTC())
	require.True(t, ok)
	assert.Equal(t, time.Duration(0), latency)
}

func TestTracker_ConfirmUnknownHash(t *testing.T) {
	tr := NewTracker()

	_, ok := tr.Confirm("never-seen", time.Now().UTC())
	assert.False(t, ok)
	assert.False(t, tr.MarkDetected("never-seen", time.Now().UTC()))
}

func TestTracker_Restore(t *testing.T) {
	tr := NewTracker()
	detectedAt := time.Now().UTC().Add(-time.Minute)
	tr.Restore("tx1", "a1", detectedAt)

	auctionID, ok := tr.Lookup("tx1")
	require.True(t, ok)
	assert.Equal(t, "a1", auctionID)

	// restored detection time feeds latency on confirm
	latency, ok := tr.Confirm("tx1", detectedAt.Add(90*time.Second))
	require.True(t, ok)
	assert.Equal(t, 90*time.Second, latency)
}
