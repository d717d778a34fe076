package internal

type TagInfo struct {
	DTS            uint32     `json:"dts"`
	PTS            int64      `json:"pts"`
	Key            bool       `json:"key"`
	SequenceHeader bool       `json:"seqHdr,omitempty"`
	Size           int        `json:"size"`
	NALUS          []NaluData `json:"nalus,omitempty"`
	Error          string     `json:"error,omitempty"`
}

type NaluData struct {
	Type string `json:"type"`
	Len  int    `json:"len"`
	Data any    `json:"data,omitempty"`
}
