package telemon

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soda-auto/telemon/ncom"
)

func TestSyntheticSampleChannels(t *testing.T) {
	for i := 0; i < 3*testModeChannels; i++ {
		s := syntheticSample(i, 3*time.Minute)
		assert.Equal(t, uint8(i%testModeChannels), s.Channel)
		assert.Equal(t, ncom.Sync, s.Sync)
		if s.Channel == 0 {
			require.True(t, s.HasGPS())
			assert.Equal(t, uint32(3), s.GPS.Minutes)
		} else {
			assert.False(t, s.HasGPS())
		}
	}
}

func TestRunTestMode(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mu := sync.Mutex{}
	var frames [][]byte
	send := func(frame []byte) error {
		mu.Lock()
		defer mu.Unlock()
		frames = append(frames, frame)
		if len(frames) == 5 {
			cancel()
		}
		// errors are logged, generation continues
		return errors.New("unreachable")
	}

	err := RunTestMode(ctx, send)
	assert.Equal(t, context.Canceled, err)

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(frames), 5)
	for i, frame := range frames {
		s, err := ncom.Decoder{StrictSync: true, VerifyChecksums: true}.Decode(frame)
		require.NoError(t, err)
		assert.Equal(t, uint8(i), s.Channel)
	}
}
