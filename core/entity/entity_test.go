package entity

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParentChildInvariant(t *testing.T) {
	root := New(KindDomain, nil, Vtable{})
	child := New(KindParticipant, root, Vtable{})

	found := false
	for _, c := range root.Children() {
		if c == child {
			found = true
		}
	}
	assert.True(t, found)
	assert.Same(t, root, child.Parent)
}

func TestChildCursorToleratesConcurrentInsertion(t *testing.T) {
	root := New(KindDomain, nil, Vtable{})
	var created []*Common
	for i := 0; i < 5; i++ {
		created = append(created, New(KindParticipant, root, Vtable{}))
	}

	cur := root.Cursor()
	first, ok := cur.Next()
	require.True(t, ok)
	assert.Contains(t, created, first)

	// Insert a new child after the cursor has started; it must still be
	// reachable on a later Next call because ids are monotonic.
	extra := New(KindParticipant, root, Vtable{})
	seen := map[*Common]bool{first: true}
	for {
		n, ok := cur.Next()
		if !ok {
			break
		}
		seen[n] = true
	}
	assert.True(t, seen[extra])
}

func TestCloseDrainsInflightListenersBeforeDelete(t *testing.T) {
	var deleted bool
	var mu sync.Mutex
	release := make(chan struct{})

	e := New(KindTopic, nil, Vtable{
		Delete: func(e *Common) error {
			mu.Lock()
			deleted = true
			mu.Unlock()
			return nil
		},
	})
	e.AddListener(func(e *Common, changed StatusMask) {
		<-release
	})

	go e.Notify(1)
	time.Sleep(10 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		require.NoError(t, e.Close())
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	mu.Lock()
	assert.False(t, deleted, "delete must wait for in-flight listener")
	mu.Unlock()

	close(release)
	<-done
	mu.Lock()
	assert.True(t, deleted)
	mu.Unlock()
}

func TestCloseIsIdempotent(t *testing.T) {
	e := New(KindTopic, nil, Vtable{})
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	assert.True(t, e.IsClosed())
}

func TestValidateKind(t *testing.T) {
	e := New(KindTopic, nil, Vtable{})
	assert.NoError(t, ValidateKind(e, "op", KindTopic, KindReader))
	assert.Error(t, ValidateKind(e, "op", KindReader))
}
