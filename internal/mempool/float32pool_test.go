package mempool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeClass(t *testing.T) {
	tests := []struct {
		input, expected int
	}{
		{0, 1024},
		{1, 1024},
		{1024, 1024},
		{1025, 2048},
		{3 * 224 * 224, 150528},
		{150529, 151552},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, sizeClass(tt.input), "n=%d", tt.input)
	}
}

func TestGetFloat32(t *testing.T) {
	buf := GetFloat32(3 * 224 * 224)
	require.Len(t, buf, 3*224*224)
	assert.Equal(t, sizeClass(3*224*224), cap(buf))
	PutFloat32(buf)

	assert.Nil(t, GetFloat32(0))
}

func TestPutFloat32_IgnoresForeignBuffers(t *testing.T) {
	PutFloat32(nil)
	PutFloat32(make([]float32, 10))

	buf := GetFloat32(10)
	assert.Len(t, buf, 10)
	assert.Equal(t, 1024, cap(buf))
}

func TestPool_ConcurrentUse(t *testing.T) {
	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for range 50 {
				buf := GetFloat32(n*100 + 1)
				buf[0] = float32(n)
				PutFloat32(buf)
			}
		}(i)
	}
	wg.Wait()
}
