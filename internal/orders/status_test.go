package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStatuses = []Status{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}

func TestCanTransition_Table(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusPending, StatusProcessing}:   true,
		{StatusPending, StatusCancelled}:    true,
		{StatusProcessing, StatusShipped}:   true,
		{StatusProcessing, StatusCancelled}: true,
		{StatusShipped, StatusDelivered}:    true,
		{StatusShipped, StatusCancelled}:    true,
	}
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := allowed[[2]Status{from, to}]
			assert.Equalf(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestCanTransition_UnknownStatus(t *testing.T) {
	assert.False(t, CanTransition("archived", StatusCancelled))
	assert.False(t, CanTransition(StatusPending, "archived"))
}

func TestStatus_Terminal(t *testing.T) {
	assert.True(t, StatusDelivered.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusShipped.Terminal())
	assert.False(t, Status("bogus").Terminal())
}

func TestReleasesStock(t *testing.T) {
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := to == StatusCancelled && from != StatusCancelled
			assert.Equalf(t, want, ReleasesStock(from, to), "%s -> %s", from, to)
		}
	}
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("shipped")
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, s)

	_, err = ParseStatus("SHIPPED")
	require.Error(t, err)
	assert.Equal(t, CodeValidation, Code(err))
}
