package core

import (
	"sync"
	"testing"
)

func TestStoreRevisionIncreases(t *testing.T) {
	s := NewStore()

	prev := s.Load().Revision
	for i := 0; i < 10; i++ {
		published := s.Publish(PlayerState{Status: StatusPlaying})
		if published.Revision <= prev {
			t.Fatalf("revision %d not greater than previous %d", published.Revision, prev)
		}
		prev = published.Revision
	}

	if got := s.Load().Revision; got != prev {
		t.Errorf("Load revision = %d, want %d", got, prev)
	}
}

func TestStoreSnapshotIsolation(t *testing.T) {
	s := NewStore()
	track := &Track{ID: "t1", Title: "Original"}
	s.Publish(PlayerState{Status: StatusPlaying, Track: track})

	// Mutating the caller's track must not affect the stored snapshot.
	track.Title = "Mutated"

	if got := s.Load().Track.Title; got != "Original" {
		t.Errorf("snapshot track title = %q, want %q", got, "Original")
	}
}

func TestStoreConcurrentReaders(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup
	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var last uint64
			for {
				select {
				case <-done:
					return
				default:
				}
				st := s.Load()
				if st.Revision < last {
					t.Errorf("revision decreased: %d -> %d", last, st.Revision)
					return
				}
				last = st.Revision
			}
		}()
	}

	for i := 0; i < 1000; i++ {
		s.Publish(PlayerState{Status: StatusPlaying, PositionMs: int64(i)})
	}
	close(done)
	wg.Wait()
}

func TestStoreWatchCoalesces(t *testing.T) {
	s := NewStore()
	ch := s.Watch()

	for i := 0; i < 5; i++ {
		s.Publish(PlayerState{Status: StatusPaused})
	}

	select {
	case <-ch:
	default:
		t.Fatal("expected at least one watch notification")
	}

	// All five publishes coalesce into at most one pending notification.
	select {
	case <-ch:
		t.Error("expected notifications to be coalesced")
	default:
	}
}
