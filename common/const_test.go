package common

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignedTimestampDiff(t *testing.T) {
	require.Equal(t, int64(40), SignedTimestampDiff(80, 40))
	require.Equal(t, int64(-40), SignedTimestampDiff(40, 80))
	require.Equal(t, int64(10), SignedTimestampDiff(5, TimestampWrap-5))
}

func TestUnwrapTs(t *testing.T) {
	testCases := []struct {
		name string
		ts   int64
		prev int64
		want int64
	}{
		{"first", 1000, -1, 1000},
		{"forward", 4600, 1000, 4600},
		{"wrap", 100, TsWrap - 3500, TsWrap + 100},
		{"reorder before wrap", TsWrap - 100, TsWrap + 3500, TsWrap - 100},
		{"second period", 7200, TsWrap + 3600, TsWrap + 7200},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, UnwrapTs(tc.ts, tc.prev))
		})
	}
}

func TestTsToMs(t *testing.T) {
	require.Equal(t, int64(40), TsToMs(3600))
	require.Equal(t, int64(0), TsToMs(89))
}
