package common

const (
	PacketSize = 188
	// TimeScale of RTMP/FLV timestamps (milliseconds).
	TimeScale = 1000
	// TsTimeScale of MPEG-TS PTS/DTS.
	TsTimeScale = 90000
	TsWrap      = 1 << 33
	// TimestampWrap of the 32-bit RTMP timestamp.
	TimestampWrap = 1 << 32
)

func SignedTimestampDiff(t2, t1 int64) int64 {
	return (t2-t1+3*TimestampWrap/2)%TimestampWrap - TimestampWrap/2
}

// TsToMs converts a 90 kHz timestamp to milliseconds, rounding down.
func TsToMs(ts int64) int64 {
	return ts * TimeScale / TsTimeScale
}

// UnwrapTs returns ts extended past the 33-bit wrap so that it is close to prev.
func UnwrapTs(ts, prev int64) int64 {
	if prev < 0 {
		return ts
	}
	base := prev - prev%TsWrap
	ts += base
	if ts-prev > TsWrap/2 {
		ts -= TsWrap
	} else if prev-ts > TsWrap/2 {
		ts += TsWrap
	}
	return ts
}
