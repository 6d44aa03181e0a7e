// ABOUTME: Tests for the bounded-wait bridge
// ABOUTME: Covers early match, refresh bound, serialization of callers and the timeout

package syncbridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-bdi/internal/bdi"
)

var box = bdi.NewPredicate("on", "box", "table")

func beliefs(bs ...bdi.Belief) *bdi.BeliefSet {
	return bdi.NewBeliefSet(bs)
}

// refreshWhile feeds snapshot to b until done closes.
func refreshWhile(b *Bridge, snapshot Counter, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}
		if b.Waiting() {
			b.OnSnapshotRefresh(snapshot)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestAwait_MatchOnFirstRefresh(t *testing.T) {
	b := New("belief_add", 8, time.Second, nil)

	res, err := b.Await(context.Background(), box.Fingerprint(), 1, func() error {
		// Belief already present: the store republishes an unchanged snapshot.
		go b.OnSnapshotRefresh(beliefs(box))
		return nil
	})

	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, 0, res.Refreshes)
	assert.False(t, res.TimedOut)
}

func TestAwait_ReleasedAfterMaxRefreshes(t *testing.T) {
	b := New("belief_add", 3, 0, nil)
	done := make(chan struct{})
	defer close(done)

	res, err := b.Await(context.Background(), box.Fingerprint(), 1, func() error {
		go refreshWhile(b, beliefs(), done)
		return nil
	})

	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Equal(t, 3, res.Refreshes)
	assert.False(t, res.TimedOut)
}

func TestAwait_AbsenceExpected(t *testing.T) {
	b := New("belief_del", 8, time.Second, nil)

	res, err := b.Await(context.Background(), box.Fingerprint(), 0, func() error {
		go func() {
			b.OnSnapshotRefresh(beliefs(box))
			b.OnSnapshotRefresh(beliefs())
		}()
		return nil
	})

	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, 1, res.Refreshes)
}

func TestAwait_TimeoutWithoutRefreshes(t *testing.T) {
	b := New("desire_add", 8, 30*time.Millisecond, nil)

	start := time.Now()
	res, err := b.Await(context.Background(), box.Fingerprint(), 1, nil)

	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	assert.False(t, res.Matched)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestAwait_PublishError(t *testing.T) {
	b := New("desire_del", 8, time.Second, nil)
	boom := errors.New("bus down")

	_, err := b.Await(context.Background(), box.Fingerprint(), 0, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, b.Waiting())

	// The slot was released.
	res, err := b.Await(context.Background(), box.Fingerprint(), 0, func() error {
		go b.OnSnapshotRefresh(beliefs())
		return nil
	})
	require.NoError(t, err)
	assert.True(t, res.Matched)
}

func TestAwait_ContextCancelled(t *testing.T) {
	b := New("belief_add", 8, 0, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := b.Await(ctx, box.Fingerprint(), 1, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOnSnapshotRefresh_NoWaiterIsNoop(t *testing.T) {
	b := New("belief_add", 2, time.Second, nil)
	b.OnSnapshotRefresh(beliefs())
	b.OnSnapshotRefresh(beliefs())
	assert.False(t, b.Waiting())

	// Earlier refreshes did not count against the next caller.
	res, err := b.Await(context.Background(), box.Fingerprint(), 1, func() error {
		go func() {
			b.OnSnapshotRefresh(beliefs())
			b.OnSnapshotRefresh(beliefs(box))
		}()
		return nil
	})
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, 1, res.Refreshes)
}

func TestAwait_SecondCallerSerializes(t *testing.T) {
	b := New("belief_add", 8, 2*time.Second, nil)
	other := bdi.NewPredicate("on", "cup", "table")

	firstRegistered := make(chan struct{})
	releaseFirst := make(chan struct{})
	firstDone := make(chan Result, 1)
	go func() {
		res, _ := b.Await(context.Background(), box.Fingerprint(), 1, func() error {
			close(firstRegistered)
			return nil
		})
		firstDone <- res
	}()
	<-firstRegistered

	secondPublished := make(chan struct{})
	secondDone := make(chan Result, 1)
	go func() {
		res, _ := b.Await(context.Background(), other.Fingerprint(), 1, func() error {
			close(secondPublished)
			return nil
		})
		secondDone <- res
	}()

	select {
	case <-secondPublished:
		t.Fatal("second caller registered while the first was waiting")
	case <-time.After(50 * time.Millisecond):
	}

	// A snapshot that only matches the second key does not release the first.
	b.OnSnapshotRefresh(beliefs(other))
	select {
	case <-firstDone:
		t.Fatal("first caller released by a non-matching snapshot")
	default:
	}

	go func() {
		<-releaseFirst
		b.OnSnapshotRefresh(beliefs(box))
	}()
	close(releaseFirst)

	first := <-firstDone
	assert.True(t, first.Matched)
	assert.Equal(t, 1, first.Refreshes)

	<-secondPublished
	b.OnSnapshotRefresh(beliefs(other))
	second := <-secondDone
	assert.True(t, second.Matched)
	assert.Equal(t, 0, second.Refreshes, "second caller starts with a fresh counter")
}
