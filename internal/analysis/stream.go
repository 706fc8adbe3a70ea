package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// Stream names used by the preprocessor
const (
	StreamTime      = "time"
	StreamHeartrate = "heartrate"
)

// ErrStreamLength is returned when streams of one activity differ in length
var ErrStreamLength = errors.New("stream lengths differ")

// RawStreamSet maps a stream name to its samples. A nil entry is a missing
// reading. All streams share the index of the "time" stream.
type RawStreamSet map[string][]*float64

// Len returns the number of samples in the time stream
func (s RawStreamSet) Len() int {
	return len(s[StreamTime])
}

// HasHeartrate returns true if at least one heart-rate reading exists
func (s RawStreamSet) HasHeartrate() bool {
	for _, v := range s[StreamHeartrate] {
		if v != nil && !math.IsNaN(*v) {
			return true
		}
	}
	return false
}

// HRSeries is a dense heart-rate series sampled once per second
type HRSeries struct {
	Timestamps []time.Time
	Heartrate  []float64
}

// Len returns the number of samples in the series
func (s HRSeries) Len() int {
	return len(s.Heartrate)
}

// Preprocess converts raw time/heartrate streams into a gap-free 1 Hz series
// anchored at start. Samples falling into the same second are averaged,
// empty seconds are linearly interpolated and the edges take the nearest
// valid reading. A missing time or heartrate stream yields an empty series.
func Preprocess(streams RawStreamSet, start time.Time) (HRSeries, error) {
	offsets, hasTime := streams[StreamTime]
	hr, hasHR := streams[StreamHeartrate]
	if !hasTime || !hasHR {
		return HRSeries{}, nil
	}
	if len(hr) != len(offsets) {
		return HRSeries{}, fmt.Errorf("%w: time=%d heartrate=%d", ErrStreamLength, len(offsets), len(hr))
	}

	type bucket struct {
		sum   float64
		count int
	}

	buckets := make(map[int64]*bucket, len(offsets))
	keys := make([]int64, 0, len(offsets))
	for i, off := range offsets {
		if off == nil || math.IsNaN(*off) {
			continue
		}
		sec := start.Add(time.Duration(*off * float64(time.Second))).Unix()
		b, seen := buckets[sec]
		if !seen {
			b = &bucket{}
			buckets[sec] = b
			keys = append(keys, sec)
		}
		if v := hr[i]; v != nil && !math.IsNaN(*v) {
			b.sum += *v
			b.count++
		}
	}

	if len(keys) == 0 {
		return HRSeries{}, nil
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	first, last := keys[0], keys[len(keys)-1]
	n := int(last-first) + 1
	series := HRSeries{
		Timestamps: make([]time.Time, n),
		Heartrate:  make([]float64, n),
	}
	loc := start.Location()
	for i := 0; i < n; i++ {
		sec := first + int64(i)
		series.Timestamps[i] = time.Unix(sec, 0).In(loc)
		series.Heartrate[i] = math.NaN()
		if b, ok := buckets[sec]; ok && b.count > 0 {
			series.Heartrate[i] = b.sum / float64(b.count)
		}
	}

	if !interpolate(series.Heartrate) {
		// Not a single reading: nothing to analyze
		return HRSeries{}, nil
	}
	return series, nil
}

// interpolate fills NaN gaps in place. Interior gaps are linear between the
// surrounding readings, leading and trailing gaps copy the nearest reading.
// It returns false if vals holds no reading at all.
func interpolate(vals []float64) bool {
	prev := -1
	for i, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		switch {
		case prev == -1:
			for j := 0; j < i; j++ {
				vals[j] = v
			}
		case i-prev > 1:
			step := (v - vals[prev]) / float64(i-prev)
			for j := prev + 1; j < i; j++ {
				vals[j] = vals[prev] + step*float64(j-prev)
			}
		}
		prev = i
	}
	if prev == -1 {
		return false
	}
	for j := prev + 1; j < len(vals); j++ {
		vals[j] = vals[prev]
	}
	return true
}
