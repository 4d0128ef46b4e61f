package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublish_ReachesAllSubscribers(t *testing.T) {
	b := New()

	s1 := b.Subscribe()
	defer s1.Close()
	s2 := b.Subscribe()
	defer s2.Close()

	b.Publish()

	for _, s := range []*Subscription{s1, s2} {
		select {
		case <-s.C:
		default:
			t.Fatal("subscriber did not receive notification")
		}
	}
}

func TestPublish_CoalescesPendingNotifications(t *testing.T) {
	b := New()
	s := b.Subscribe()
	defer s.Close()

	b.Publish()
	b.Publish()
	b.Publish()

	// One pending signal, not three.
	<-s.C
	select {
	case <-s.C:
		t.Fatal("notifications should coalesce into a single pending signal")
	default:
	}
}

func TestClose_Unregisters(t *testing.T) {
	b := New()
	s := b.Subscribe()
	s.Close()

	b.Publish()

	select {
	case <-s.C:
		t.Fatal("closed subscription must not receive notifications")
	default:
	}

	// Closing twice is safe.
	require.NotPanics(t, func() { s.Close() })
}

func TestPublish_NoSubscribers_DoesNotBlock(t *testing.T) {
	b := New()
	assert.NotPanics(t, func() { b.Publish() })
}

func TestPublish_SlowSubscriberDoesNotBlockOthers(t *testing.T) {
	b := New()

	slow := b.Subscribe()
	defer slow.Close()
	fast := b.Subscribe()
	defer fast.Close()

	// Fill slow's buffer, then publish again: fast must still be served.
	b.Publish()
	<-fast.C
	b.Publish()

	select {
	case <-fast.C:
	default:
		t.Fatal("fast subscriber starved by a slow one")
	}
}
