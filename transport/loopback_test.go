package transport

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	lb := NewLoopback(nil)
	var mu sync.Mutex
	var got []string

	lb.Subscribe("t", func(topic string, msg any) {
		mu.Lock()
		got = append(got, msg.(string)+"-a")
		mu.Unlock()
	})
	lb.Subscribe("t", func(topic string, msg any) {
		mu.Lock()
		got = append(got, msg.(string)+"-b")
		mu.Unlock()
	})

	lb.Publish("t", "hello")

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"hello-a", "hello-b"}, got)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	lb := NewLoopback(nil)
	calls := 0
	id := lb.Subscribe("t", func(topic string, msg any) { calls++ })
	lb.Unsubscribe("t", id)
	lb.Publish("t", "x")
	assert.Equal(t, 0, calls)
}

func TestPublishToUnknownTopicIsNoop(t *testing.T) {
	lb := NewLoopback(nil)
	done := make(chan struct{})
	go func() {
		lb.Publish("nobody-subscribed", 1)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish to an unsubscribed topic should return immediately")
	}
}
