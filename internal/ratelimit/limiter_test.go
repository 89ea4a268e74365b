package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowConsumesBurst(t *testing.T) {
	l := New(1, 2)
	assert.True(t, l.Allow("en.wikipedia.org"))
	assert.True(t, l.Allow("en.wikipedia.org"))
	assert.False(t, l.Allow("en.wikipedia.org"), "burst should be exhausted")
}

func TestBucketsArePerHost(t *testing.T) {
	l := New(1, 1)
	require.True(t, l.Allow("en.wikipedia.org"))
	require.False(t, l.Allow("en.wikipedia.org"))
	assert.True(t, l.Allow("de.wikipedia.org"))
	assert.Equal(t, 2, l.Hosts())
}

func TestZeroRateIsUnlimited(t *testing.T) {
	l := New(0, 0)
	for i := range 100 {
		require.True(t, l.Allow("en.wikipedia.org"), "request %d", i)
	}
	require.NoError(t, l.Wait(context.Background(), "en.wikipedia.org"))
	assert.Zero(t, l.Waited())
}

func TestWaitPaces(t *testing.T) {
	l := New(20, 1)
	ctx := context.Background()

	start := time.Now()
	for range 3 {
		require.NoError(t, l.Wait(ctx, "en.wikipedia.org"))
	}
	// Two refills at 20/s take about 100ms.
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	assert.Greater(t, l.Waited(), time.Duration(0))
}

func TestWaitHonoursContext(t *testing.T) {
	l := New(0.1, 1)
	require.True(t, l.Allow("en.wikipedia.org"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx, "en.wikipedia.org"))
}

func TestHostOf(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "https://en.wikipedia.org/w/api.php", want: "en.wikipedia.org"},
		{in: "http://localhost:8080/api.php", want: "localhost:8080"},
		{in: "not a url", want: "not a url"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HostOf(tt.in), tt.in)
	}
}
