package ws

import (
	"testing"
	"time"
)

func TestHeartbeatInterval(t *testing.T) {
	if got := heartbeatInterval(10 * time.Second); got != 10*time.Second {
		t.Fatalf("expected configured interval, got %v", got)
	}
	if got := heartbeatInterval(0); got != 30*time.Second {
		t.Fatalf("expected 30s default for zero interval, got %v", got)
	}
	if got := heartbeatInterval(-time.Second); got != 30*time.Second {
		t.Fatalf("expected 30s default for negative interval, got %v", got)
	}
}

func TestOrderBoardSubscribe(t *testing.T) {
	ob := newOrderBoardRealtime(nil, nil, 0)
	if ob.pollInterval != 3*time.Second {
		t.Fatalf("expected 3s default poll interval, got %v", ob.pollInterval)
	}

	a := &wsClient{}
	b := &wsClient{}
	unsubA := ob.subscribe("7", a)
	unsubB := ob.subscribe("7", b)

	cafes := ob.subscribedCafes()
	if len(cafes) != 1 || cafes[0] != "7" {
		t.Fatalf("expected single subscribed cafe 7, got %v", cafes)
	}

	unsubA()
	if len(ob.subscribedCafes()) != 1 {
		t.Fatalf("expected cafe to stay subscribed while a client remains")
	}

	unsubB()
	if len(ob.subscribedCafes()) != 0 {
		t.Fatalf("expected no subscriptions after last client left")
	}

	if unsub := ob.subscribe("", a); unsub == nil {
		t.Fatalf("expected no-op unsubscribe for empty cafe id")
	}
	if len(ob.subscribedCafes()) != 0 {
		t.Fatalf("expected empty cafe id to be ignored")
	}
}
