package analysis

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samples(vals ...float64) []*float64 {
	out := make([]*float64, len(vals))
	for i, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		out[i] = floatPtr(v)
	}
	return out
}

func TestPreprocess(t *testing.T) {
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	nan := math.NaN()

	tests := []struct {
		name      string
		time      []*float64
		heartrate []*float64
		expected  []float64
	}{
		{
			name:      "regular samples pass through",
			time:      samples(0, 1, 2),
			heartrate: samples(100, 110, 120),
			expected:  []float64{100, 110, 120},
		},
		{
			name:      "gap is linearly interpolated",
			time:      samples(0, 4),
			heartrate: samples(100, 140),
			expected:  []float64{100, 110, 120, 130, 140},
		},
		{
			name:      "duplicate offsets are averaged",
			time:      samples(0, 1, 1, 2),
			heartrate: samples(100, 110, 130, 120),
			expected:  []float64{100, 120, 120},
		},
		{
			name:      "out of order offsets",
			time:      samples(2, 0, 1),
			heartrate: samples(120, 100, 110),
			expected:  []float64{100, 110, 120},
		},
		{
			name:      "missing readings inside are interpolated",
			time:      samples(0, 1, 2, 3),
			heartrate: samples(100, nan, nan, 130),
			expected:  []float64{100, 110, 120, 130},
		},
		{
			name:      "edges take nearest reading",
			time:      samples(0, 1, 2, 3, 4),
			heartrate: samples(nan, nan, 120, 130, nan),
			expected:  []float64{120, 120, 120, 130, 130},
		},
		{
			name:      "single sample",
			time:      samples(5),
			heartrate: samples(90),
			expected:  []float64{90},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			series, err := Preprocess(RawStreamSet{StreamTime: tt.time, StreamHeartrate: tt.heartrate}, start)
			require.NoError(t, err)
			require.Equal(t, len(tt.expected), series.Len())
			for i, want := range tt.expected {
				assert.InDelta(t, want, series.Heartrate[i], 1e-9, "sample %d", i)
			}
			for i := 1; i < series.Len(); i++ {
				assert.Equal(t, time.Second, series.Timestamps[i].Sub(series.Timestamps[i-1]))
			}
		})
	}
}

func TestPreprocessTimestamps(t *testing.T) {
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	series, err := Preprocess(RawStreamSet{
		StreamTime:      samples(10, 12),
		StreamHeartrate: samples(100, 102),
	}, start)
	require.NoError(t, err)
	require.Equal(t, 3, series.Len())
	assert.True(t, series.Timestamps[0].Equal(start.Add(10*time.Second)))
	assert.True(t, series.Timestamps[2].Equal(start.Add(12*time.Second)))
	assert.Equal(t, 101.0, series.Heartrate[1])
}

func TestPreprocessDegenerate(t *testing.T) {
	start := time.Now()

	series, err := Preprocess(RawStreamSet{StreamTime: nil, StreamHeartrate: nil}, start)
	require.NoError(t, err)
	assert.Equal(t, 0, series.Len())

	series, err = Preprocess(RawStreamSet{
		StreamTime:      samples(0, 1),
		StreamHeartrate: samples(math.NaN(), math.NaN()),
	}, start)
	require.NoError(t, err)
	assert.Equal(t, 0, series.Len())
}

func TestPreprocessMissingStream(t *testing.T) {
	start := time.Now()

	for name, streams := range map[string]RawStreamSet{
		"no time":      {StreamHeartrate: samples(100, 110)},
		"no heartrate": {StreamTime: samples(0, 1)},
		"empty":        {},
	} {
		t.Run(name, func(t *testing.T) {
			series, err := Preprocess(streams, start)
			require.NoError(t, err)
			assert.Equal(t, 0, series.Len())
		})
	}
}

func TestPreprocessLengthMismatch(t *testing.T) {
	_, err := Preprocess(RawStreamSet{StreamTime: samples(0, 1), StreamHeartrate: samples(100)}, time.Now())
	assert.ErrorIs(t, err, ErrStreamLength)
}

func TestRawStreamSet(t *testing.T) {
	s := RawStreamSet{StreamTime: samples(0, 1), StreamHeartrate: samples(math.NaN(), 120)}
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.HasHeartrate())

	s = RawStreamSet{StreamTime: samples(0), StreamHeartrate: samples(math.NaN())}
	assert.False(t, s.HasHeartrate())
}
