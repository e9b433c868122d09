package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryTripsPerMethod(t *testing.T) {
	r := NewRegistry(Config{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Millisecond,
		MinRequests: 2,
		FailureRate: 0.5,
	}, nil)

	boom := errors.New("callback wedged")
	for i := 0; i < 3; i++ {
		_, err := r.Call("ns=2;s=Reboot", func() (interface{}, error) { return nil, boom })
		assert.Error(t, err)
	}

	state, ok := r.State("ns=2;s=Reboot")
	require.True(t, ok)
	assert.Equal(t, gobreaker.StateOpen, state)

	_, err := r.Call("ns=2;s=Reboot", func() (interface{}, error) { return nil, nil })
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)

	otherState, ok := r.State("ns=2;s=OtherMethod")
	assert.False(t, ok)
	assert.Equal(t, gobreaker.StateClosed, otherState)
}

func TestRegistryStaysClosedOnSuccess(t *testing.T) {
	r := NewRegistry(Config{MaxRequests: 1, Interval: time.Minute, Timeout: time.Second, MinRequests: 1, FailureRate: 0.5}, nil)
	for i := 0; i < 5; i++ {
		v, err := r.Call("ns=2;s=Ping", func() (interface{}, error) { return "pong", nil })
		require.NoError(t, err)
		assert.Equal(t, "pong", v)
	}
	state, _ := r.State("ns=2;s=Ping")
	assert.Equal(t, gobreaker.StateClosed, state)
}
