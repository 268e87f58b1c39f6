package dispatcher

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	km := newKeyedMutex()
	key := uuid.New()

	counter := 0
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			km.lock(key)
			defer km.unlock(key)

			counter++
		}()
	}

	wg.Wait()
	require.Equal(t, 100, counter)
	// All holders released; the entry must be reclaimed.
	require.Empty(t, km.locks)
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	km := newKeyedMutex()

	first := uuid.New()
	second := uuid.New()

	km.lock(first)

	done := make(chan struct{})
	go func() {
		km.lock(second)
		km.unlock(second)
		close(done)
	}()

	// A different key must not block behind the held one.
	<-done

	km.unlock(first)
}
