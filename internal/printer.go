package internal

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
)

// JsonPrinter writes one JSON document per line. The first error is kept and
// all later prints become no-ops.
type JsonPrinter struct {
	W        io.Writer
	Indent   bool
	AccError error
}

func (p *JsonPrinter) Print(data any, show bool) {
	if !show {
		return
	}
	var out []byte
	var err error
	if p.AccError != nil {
		return
	}
	if p.Indent {
		out, err = json.MarshalIndent(data, "", "  ")
	} else {
		out, err = json.Marshal(data)
	}
	if err != nil {
		p.AccError = err
		return
	}
	_, p.AccError = fmt.Fprintln(p.W, string(out))
}

func (p *JsonPrinter) Error() error {
	return p.AccError
}

type PsInfo struct {
	ParameterSet string `json:"parameterSet"`
	Timestamp    uint32 `json:"timestamp"`
	Hex          string `json:"hex"`
	Length       int    `json:"length"`
	Details      any    `json:"details,omitempty"`
}

func (p *JsonPrinter) PrintPS(psKind string, timestamp uint32, ps []byte, details any, verbose bool, show bool) {
	psInfo := PsInfo{
		ParameterSet: psKind,
		Timestamp:    timestamp,
		Hex:          hex.EncodeToString(ps),
		Length:       len(ps),
	}
	if verbose {
		psInfo.Details = details
	}
	p.Print(psInfo, show)
}
