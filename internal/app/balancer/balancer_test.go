package balancer

import (
	"sync"
	"testing"

	"github.com/dkeye/Conference/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickHostLeastLoaded(t *testing.T) {
	h1 := domain.NewHost("h1", "10.0.0.1")
	h2 := domain.NewHost("h2", "10.0.0.2")
	b := New(h1, h2)

	got, err := b.PickHost()
	require.NoError(t, err)
	assert.Equal(t, h1, got)

	b.IncrementHostStreams("h1", domain.MediaKindVideo)
	got, err = b.PickHost()
	require.NoError(t, err)
	assert.Equal(t, h2, got)
}

func TestPickHostEmpty(t *testing.T) {
	_, err := New().PickHost()
	assert.ErrorIs(t, err, ErrNoHosts)
}

func TestConcurrentIncrements(t *testing.T) {
	h := domain.NewHost("h1", "10.0.0.1")
	b := New(h)

	var wg sync.WaitGroup
	for loopIdx := 0; loopIdx < 50; loopIdx++ {
		wg.Add(2)
		go func() { defer wg.Done(); b.IncrementHostStreams("h1", domain.MediaKindAudio) }()
		go func() { defer wg.Done(); b.IncrementHostStreams("h1", domain.MediaKindVideo) }()
	}
	wg.Wait()

	assert.EqualValues(t, 50, h.Streams(domain.MediaKindAudio))
	assert.EqualValues(t, 50, h.Streams(domain.MediaKindVideo))
}

func TestDecrementStopsAtZero(t *testing.T) {
	h := domain.NewHost("h1", "10.0.0.1")
	b := New(h)

	b.IncrementHostStreams("h1", domain.MediaKindAudio)
	b.DecrementHostStreams("h1", domain.MediaKindAudio)
	b.DecrementHostStreams("h1", domain.MediaKindAudio)
	b.DecrementHostStreams("missing", domain.MediaKindAudio)

	assert.Zero(t, h.Streams(domain.MediaKindAudio))
}
