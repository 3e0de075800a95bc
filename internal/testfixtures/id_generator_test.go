package testfixtures

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDGenerator(t *testing.T) {
	t.Parallel()

	gen := NewIDGenerator("booking")
	assert.Equal(t, "booking-001", gen.Next())
	assert.Equal(t, "booking-002", gen.NextFunc()())
	assert.Equal(t, 2, gen.Issued())
	assert.Equal(t, "id-001", NewIDGenerator("").Next())
}

func TestIDGeneratorIsSafeForConcurrentUse(t *testing.T) {
	t.Parallel()

	gen := NewIDGenerator("r")
	var (
		mu   sync.Mutex
		seen = make(map[string]struct{})
		wg   sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := gen.Next()
			mu.Lock()
			seen[id] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 50)
}
