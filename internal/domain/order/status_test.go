package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_CanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusConfirmed, StatusPreparing, true},
		{StatusPreparing, StatusReady, true},
		{StatusReady, StatusOutForDelivery, true},
		{StatusOutForDelivery, StatusDelivered, true},

		// cancel is reachable from any non-terminal state
		{StatusPending, StatusCancelled, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusPreparing, StatusCancelled, true},
		{StatusReady, StatusCancelled, true},
		{StatusOutForDelivery, StatusCancelled, true},

		// no skipping forward, no moving backward
		{StatusPending, StatusDelivered, false},
		{StatusPending, StatusReady, false},
		{StatusReady, StatusConfirmed, false},
		{StatusConfirmed, StatusConfirmed, false},

		// terminal states have no successors
		{StatusDelivered, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusDelivered, StatusDelivered, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.from.CanTransition(tc.to), "%s → %s", tc.from, tc.to)
	}
}

func TestStatus_Terminal(t *testing.T) {
	assert.True(t, StatusDelivered.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusOutForDelivery.Terminal())
}

func TestStatus_Valid(t *testing.T) {
	for _, s := range []Status{
		StatusPending, StatusConfirmed, StatusPreparing, StatusReady,
		StatusOutForDelivery, StatusDelivered, StatusCancelled,
	} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, Status("refunded").Valid())
	assert.False(t, Status("").Valid())
}

func TestStatus_Label(t *testing.T) {
	assert.Equal(t, "Saiu para entrega", StatusOutForDelivery.Label())
	assert.Equal(t, "Entregue", StatusDelivered.Label())
	// unknown statuses fall through untranslated
	assert.Equal(t, "refunded", Status("refunded").Label())
}
