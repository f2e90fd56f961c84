package convert

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crisslavik/xStage/types"
)

func TestPathLockerExclusive(t *testing.T) {
	l := NewPathLocker()

	require.NoError(t, l.Acquire("/out/a.usda", "job-1"))
	err := l.Acquire("/out/a.usda", "job-2")
	assert.Equal(t, types.ErrOutputPathLocked, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "job-1")

	l.Release("/out/a.usda")
	assert.NoError(t, l.Acquire("/out/a.usda", "job-2"))
}

func TestPathLockerNormalizesPaths(t *testing.T) {
	l := NewPathLocker()

	require.NoError(t, l.Acquire("/out/../out/a.usda", "job-1"))
	err := l.Acquire("/out/a.usda", "job-2")
	assert.Equal(t, types.ErrOutputPathLocked, types.GetErrorCode(err))
}

func TestPathLockerReleaseUnheldIsNoop(t *testing.T) {
	l := NewPathLocker()
	l.Release("/never/held.usda")
	assert.NoError(t, l.Acquire("/never/held.usda", "job-1"))
}

func TestPathLockerConcurrentAcquireAdmitsExactlyOne(t *testing.T) {
	l := NewPathLocker()

	const contenders = 32
	var wg sync.WaitGroup
	errs := make([]error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = l.Acquire("/out/shared.usda", "job")
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.Equal(t, types.ErrOutputPathLocked, types.GetErrorCode(err))
		}
	}
	assert.Equal(t, 1, winners)
}
