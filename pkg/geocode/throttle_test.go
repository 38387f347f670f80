package geocode

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedClient returns canned outcomes in order.
type scriptedClient struct {
	outcomes []error
	calls    int
}

func (s *scriptedClient) Geocode(_ context.Context, _ string) (*Result, error) {
	err := s.outcomes[s.calls%len(s.outcomes)]
	s.calls++
	if err != nil {
		return nil, err
	}
	return &Result{Latitude: 1, Longitude: 2, Matched: true}, nil
}

func newTestThrottled(client Client) (*Throttled, *[]time.Duration) {
	t := NewThrottled(client, DefaultBackoffConfig())
	var slept []time.Duration
	t.sleep = func(_ context.Context, d time.Duration) {
		slept = append(slept, d)
	}
	return t, &slept
}

func TestThrottledPassesThroughSuccess(t *testing.T) {
	th, slept := newTestThrottled(&scriptedClient{outcomes: []error{nil}})

	result, err := th.Geocode(context.Background(), "q")
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.Empty(t, *slept)
}

func TestThrottledTransientCooldown(t *testing.T) {
	th, slept := newTestThrottled(&scriptedClient{
		outcomes: []error{eris.New("read tcp: i/o timeout")},
	})

	_, err := th.Geocode(context.Background(), "q")
	require.Error(t, err)
	require.Len(t, *slept, 1)
	assert.Equal(t, 2*time.Second, (*slept)[0])
}

func TestThrottledNonTransientNoCooldown(t *testing.T) {
	th, slept := newTestThrottled(&scriptedClient{
		outcomes: []error{eris.New("parse response: unexpected token")},
	})

	_, err := th.Geocode(context.Background(), "q")
	require.Error(t, err)
	assert.Empty(t, *slept)
	assert.Equal(t, 1, th.consecutive)
}

func TestThrottledExtendedPauseAfterStreak(t *testing.T) {
	th, slept := newTestThrottled(&scriptedClient{
		outcomes: []error{eris.New("service unavailable")},
	})

	for i := 0; i < 5; i++ {
		_, err := th.Geocode(context.Background(), "q")
		require.Error(t, err)
	}

	// Five transient cooldowns plus one extended pause on the fifth failure,
	// then the counter resets before the sixth attempt.
	require.Len(t, *slept, 6)
	assert.Equal(t, 10*time.Second, (*slept)[5])
	assert.Equal(t, 0, th.consecutive)

	_, err := th.Geocode(context.Background(), "q")
	require.Error(t, err)
	assert.Equal(t, 1, th.consecutive)
}

func TestThrottledSuccessResetsStreak(t *testing.T) {
	th, _ := newTestThrottled(&scriptedClient{
		outcomes: []error{eris.New("timeout"), eris.New("timeout"), nil},
	})

	_, _ = th.Geocode(context.Background(), "q")
	_, _ = th.Geocode(context.Background(), "q")
	assert.Equal(t, 2, th.consecutive)

	_, err := th.Geocode(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, 0, th.consecutive)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(eris.New("connection timeout")))
	assert.True(t, IsTransient(eris.New("503 Service Unavailable")))
	assert.True(t, IsTransient(eris.New("Max retries exceeded")))
	assert.False(t, IsTransient(eris.New("invalid query")))
	assert.False(t, IsTransient(nil))
}
