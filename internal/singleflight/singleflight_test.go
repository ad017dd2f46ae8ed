package singleflight

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// Concurrent callers for one key share a single execution.
func TestGroup_Coalesces(t *testing.T) {
	t.Parallel()

	var g Group[int]
	var calls atomic.Int64
	release := make(chan struct{})

	leaderDone := make(chan struct{})
	go func() {
		defer close(leaderDone)
		v, _, err := g.Do(context.Background(), "k", func(context.Context) (int, error) {
			calls.Add(1)
			<-release
			return 42, nil
		})
		if err != nil || v != 42 {
			t.Errorf("leader got v=%d err=%v", v, err)
		}
	}()

	for !g.InFlight("k") {
		time.Sleep(time.Millisecond)
	}

	const followers = 16
	var wg sync.WaitGroup
	wg.Add(followers)
	for i := 0; i < followers; i++ {
		go func() {
			defer wg.Done()
			v, shared, err := g.Do(context.Background(), "k", func(context.Context) (int, error) {
				calls.Add(1)
				return -1, nil
			})
			if err != nil || v != 42 || !shared {
				t.Errorf("follower got v=%d shared=%v err=%v", v, shared, err)
			}
		}()
	}

	for g.Waiters("k") < followers {
		time.Sleep(time.Millisecond)
	}
	close(release)
	wg.Wait()
	<-leaderDone

	if got := calls.Load(); got != 1 {
		t.Fatalf("fn must run exactly once, got %d", got)
	}
	if g.InFlight("k") {
		t.Fatal("key must be released after the call")
	}
	if n := g.Waiters("k"); n != 0 {
		t.Fatalf("no waiters once released, got %d", n)
	}
}

func TestGroup_ErrorsAreShared(t *testing.T) {
	t.Parallel()

	var g Group[string]
	boom := errors.New("boom")
	_, shared, err := g.Do(context.Background(), "k", func(context.Context) (string, error) {
		return "", boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
	if shared {
		t.Fatal("a lone call is not shared")
	}

	// the next call starts fresh
	v, _, err := g.Do(context.Background(), "k", func(context.Context) (string, error) { return "ok", nil })
	if err != nil || v != "ok" {
		t.Fatalf("second call: v=%q err=%v", v, err)
	}
}

// A follower with a cancelled context returns early; the leader finishes.
func TestGroup_FollowerCancel(t *testing.T) {
	t.Parallel()

	var g Group[int]
	release := make(chan struct{})
	leaderDone := make(chan int)
	go func() {
		v, _, _ := g.Do(context.Background(), "k", func(context.Context) (int, error) {
			<-release
			return 7, nil
		})
		leaderDone <- v
	}()
	for !g.InFlight("k") {
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := g.Do(ctx, "k", func(context.Context) (int, error) { return 0, nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("follower: want context.Canceled, got %v", err)
	}

	close(release)
	if v := <-leaderDone; v != 7 {
		t.Fatalf("leader got %d", v)
	}
}
