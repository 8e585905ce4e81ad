package layered

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestWatchMergedFiresOnRewrite(t *testing.T) {
	s := newTestStore(t)
	writeFile(t, s.MergedPath(), "capture: {}\n")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fired := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.WatchMerged(ctx, func() {
			select {
			case fired <- struct{}{}:
			default:
			}
		})
	}()

	// Give the watcher a moment to register before rewriting.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, s.MergedPath(), "capture: {fs: 2000000}\n")

	select {
	case <-fired:
	case <-ctx.Done():
		t.Fatal("change notification never arrived")
	}

	cancel()
	if err := <-done; err != context.Canceled && err != context.DeadlineExceeded {
		t.Fatalf("WatchMerged returned %v", err)
	}
}

func TestWatchMergedIgnoresSiblingFiles(t *testing.T) {
	s := newTestStore(t)
	writeFile(t, s.MergedPath(), "capture: {}\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fired := make(chan struct{}, 1)
	go func() {
		_ = s.WatchMerged(ctx, func() {
			select {
			case fired <- struct{}{}:
			default:
			}
		})
	}()

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(s.OverridePath(), []byte("a: 1\n"), 0o644); err != nil {
		t.Fatalf("write sibling: %v", err)
	}

	select {
	case <-fired:
		t.Fatal("sibling write triggered notification")
	case <-time.After(600 * time.Millisecond):
	}
}
