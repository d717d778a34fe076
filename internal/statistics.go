package internal

import (
	"github.com/Eyevinn/hevc-rtmp-tools/common"
)

type StreamStatistics struct {
	Type       string  `json:"streamType"`
	FrameRate  float64 `json:"frameRate"`
	TimeStamps []int64 `json:"-"`
	MaxStep    int64   `json:"maxStep,omitempty"`
	MinStep    int64   `json:"minStep,omitempty"`
	AvgStep    int64   `json:"avgStep,omitempty"`
	// Composition time offsets
	MinCTS int64 `json:"minCts"`
	MaxCTS int64 `json:"maxCts"`
	// Key frame markers
	KeyTimeStamps []int64 `json:"-"`
	GOPDuration   float64 `json:"GoPDuration,omitempty"`
	// Conversion counters
	Demuxer any `json:"demuxer,omitempty"`
	Muxer   any `json:"muxer,omitempty"`
	// Errors
	Errors []string `json:"errors,omitempty"`
}

// AddPicture records one access unit.
func (s *StreamStatistics) AddPicture(dts, pts int64, key bool) {
	cts := pts - dts
	if len(s.TimeStamps) == 0 || cts < s.MinCTS {
		s.MinCTS = cts
	}
	if len(s.TimeStamps) == 0 || cts > s.MaxCTS {
		s.MaxCTS = cts
	}
	s.TimeStamps = append(s.TimeStamps, dts)
	if key {
		s.KeyTimeStamps = append(s.KeyTimeStamps, dts)
	}
}

func (p *JsonPrinter) PrintStatistics(s StreamStatistics, show bool) {
	s.calculateFrameRate(common.TimeScale)
	s.calculateGoPDuration(common.TimeScale)
	p.Print(s, show)
}

func sliceMinMaxAverage(values []int64) (min, max, avg int64) {
	if len(values) == 0 {
		return 0, 0, 0
	}

	min = values[0]
	max = values[0]
	sum := int64(0)
	for _, number := range values {
		if number < min {
			min = number
		}
		if number > max {
			max = number
		}
		sum += number
	}
	avg = sum / int64(len(values))
	return min, max, avg
}

// CalculateSteps returns the differences between consecutive RTMP timestamps.
func CalculateSteps(timestamps []int64) []int64 {
	if len(timestamps) < 2 {
		return nil
	}

	// RTMP timestamps are 32-bit milliseconds, so they wrap after 49.7 days
	steps := make([]int64, len(timestamps)-1)
	for i := 0; i < len(timestamps)-1; i++ {
		steps[i] = common.SignedTimestampDiff(timestamps[i+1], timestamps[i])
	}
	return steps
}

// Calculate frame rate from DTS steps
func (s *StreamStatistics) calculateFrameRate(timescale int64) {
	if len(s.TimeStamps) < 2 {
		s.Errors = append(s.Errors, "too few timestamps to calculate frame rate")
		return
	}

	steps := CalculateSteps(s.TimeStamps)
	minStep, maxStep, avgStep := sliceMinMaxAverage(steps)
	if maxStep != minStep {
		s.Errors = append(s.Errors, "irregular DTS steps")
		s.MinStep, s.MaxStep, s.AvgStep = minStep, maxStep, avgStep
	}
	if avgStep <= 0 {
		s.Errors = append(s.Errors, "non-increasing DTS")
		return
	}
	s.FrameRate = float64(timescale) / float64(avgStep)
}

func (s *StreamStatistics) calculateGoPDuration(timescale int64) {
	if len(s.KeyTimeStamps) < 2 {
		s.Errors = append(s.Errors, "no GoP duration since less than 2 key frames")
		return
	}

	_, _, avgStep := sliceMinMaxAverage(CalculateSteps(s.KeyTimeStamps))
	s.GOPDuration = float64(avgStep) / float64(timescale)
}
