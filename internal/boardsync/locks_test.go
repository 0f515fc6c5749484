package boardsync

import (
	"context"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/gomega"
)

func mustLock(t *testing.T, k *keyedMutex, key string) func() {
	t.Helper()
	unlock, err := k.Lock(context.Background(), key)
	if err != nil {
		t.Fatal(err)
	}
	return unlock
}

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	g := NewWithT(t)
	k := newKeyedMutex()

	unlock := mustLock(t, k, "a")
	acquired := make(chan struct{})
	go func() {
		u, err := k.Lock(context.Background(), "a")
		if err != nil {
			return
		}
		close(acquired)
		u()
	}()

	g.Consistently(acquired, 50*time.Millisecond).ShouldNot(BeClosed())
	unlock()
	g.Eventually(acquired).Should(BeClosed())
	g.Eventually(k.len).Should(BeZero())
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	g := NewWithT(t)
	k := newKeyedMutex()

	unlockA := mustLock(t, k, "a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		if u, err := k.Lock(context.Background(), "b"); err == nil {
			u()
		}
		close(done)
	}()
	g.Eventually(done).Should(BeClosed())
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	g := NewWithT(t)
	k := newKeyedMutex()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if u, err := k.Lock(context.Background(), "same"); err == nil {
				u()
			}
		}()
	}
	wg.Wait()
	g.Expect(k.len()).To(BeZero())
}

func TestKeyedMutexGivesUpOnCancel(t *testing.T) {
	g := NewWithT(t)
	k := newKeyedMutex()

	unlock := mustLock(t, k, "a")

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := k.Lock(ctx, "a")
		errCh <- err
	}()

	g.Consistently(errCh, 50*time.Millisecond).ShouldNot(Receive())
	cancel()

	var err error
	g.Eventually(errCh).Should(Receive(&err))
	g.Expect(err).To(MatchError(context.Canceled))

	// The waiter left; the holder still owns the key and can release it.
	unlock()
	g.Expect(k.len()).To(BeZero())
	mustLock(t, k, "a")()
}
