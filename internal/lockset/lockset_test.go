package lockset

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSet_Lock_Serializes_Same_Key(t *testing.T) {
	req := require.New(t)
	set := New()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := set.Lock("appointment-1")
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	req.Equal(1, maxSeen)
	req.Zero(set.Len())
}

func TestSet_Lock_Different_Keys_Do_Not_Block(t *testing.T) {
	req := require.New(t)
	set := New()

	unlockA := set.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := set.Lock("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("lock on b blocked behind a")
	}
	req.Equal(1, set.Len())
}

func TestSet_Unlock_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	set := New()

	unlock := set.Lock("a")
	unlock()
	unlock()

	req.Zero(set.Len())

	// The key can be taken again.
	unlock = set.Lock("a")
	unlock()
}
