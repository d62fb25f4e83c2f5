package handlers

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from    string
		to      string
		allowed bool
	}{
		{OrderStatusPending, OrderStatusAccepted, true},
		{OrderStatusAccepted, OrderStatusInProgress, true},
		{OrderStatusInProgress, OrderStatusReady, true},
		{OrderStatusReady, OrderStatusCompleted, true},
		{OrderStatusPending, OrderStatusCompleted, false},
		{OrderStatusPending, OrderStatusReady, false},
		{OrderStatusAccepted, OrderStatusAccepted, false},
		{OrderStatusReady, OrderStatusInProgress, false},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusAccepted, OrderStatusCancelled, true},
		{OrderStatusInProgress, OrderStatusCancelled, true},
		{OrderStatusReady, OrderStatusCancelled, true},
		{OrderStatusCompleted, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusAccepted, false},
		{OrderStatusCancelled, OrderStatusCancelled, false},
		{OrderStatusCompleted, OrderStatusAccepted, false},
	}
	for _, tc := range cases {
		t.Run(tc.from+"_to_"+tc.to, func(t *testing.T) {
			if got := canTransition(tc.from, tc.to); got != tc.allowed {
				t.Fatalf("canTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.allowed)
			}
		})
	}
}
