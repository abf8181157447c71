package serdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAcquireReleaseReusesBuffer(t *testing.T) {
	p := New()
	sd := p.Acquire(64)
	assert.Equal(t, 0, p.Len())
	sd.Unref()
	assert.Equal(t, 1, p.Len())

	sd2 := p.Acquire(32)
	assert.Equal(t, 0, p.Len(), "the freed buffer should have been reused")
	sd2.Unref()
}

func TestOversizeBypassesPool(t *testing.T) {
	p := New()
	sd := p.Acquire(MaxSizeForPool + 1)
	sd.Unref()
	assert.Equal(t, 0, p.Len())
}

func TestPoolBoundedAtMaxSize(t *testing.T) {
	p := New()
	var held []*Serdata
	for i := 0; i < MaxPoolSize+10; i++ {
		held = append(held, p.Acquire(16))
	}
	for _, sd := range held {
		sd.Unref()
	}
	assert.LessOrEqual(t, p.Len(), MaxPoolSize)
}

func TestRefcountGatesRelease(t *testing.T) {
	p := New()
	sd := p.Acquire(16)
	sd.Ref()
	sd.Unref()
	assert.Equal(t, 0, p.Len(), "still referenced once, must not return to pool")
	sd.Unref()
	assert.Equal(t, 1, p.Len())
}
