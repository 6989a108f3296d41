package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCanTransition(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusShipped, false},
		{StatusPending, StatusDelivered, false},

		{StatusProcessing, StatusShipped, true},
		{StatusProcessing, StatusCancelled, true},
		{StatusProcessing, StatusDelivered, false},
		{StatusProcessing, StatusPending, false},

		{StatusShipped, StatusDelivered, true},
		{StatusShipped, StatusCancelled, false},
		{StatusShipped, StatusPending, false},

		// Terminal states admit nothing.
		{StatusDelivered, StatusPending, false},
		{StatusDelivered, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusCancelled, StatusProcessing, false},

		// Self transitions are not admissible.
		{StatusPending, StatusPending, false},
		{StatusDelivered, StatusDelivered, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled} {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, Status("").Valid())
	assert.False(t, Status("RETURNED").Valid())
}

func TestInvalidTransitionError(t *testing.T) {
	err := &InvalidTransitionError{From: StatusDelivered, To: StatusPending}
	assert.Equal(t, "cannot transition order from DELIVERED to PENDING", err.Error())
}
