//go:build gofuzz
// +build gofuzz

package fuzz

import (
	"bytes"
	"io"

	"github.com/xarantolus/safejson"
	"github.com/xarantolus/safejson/internal/report"
)

func Fuzz(data []byte) (ret int) {
	v, err := safejson.ParseLiteral(bytes.NewReader(data))
	if err != nil {
		// Not a JavaScript value, neutral (0)
		return 0
	}

	// Returns 1 for something that looked good
	r := report.Build(safejson.Convert(v), false)
	for _, format := range []report.Format{report.JSON, report.CBOR} {
		if err := report.Encode(io.Discard, r, format, ""); err != nil {
			panic(err)
		}
	}

	return 1
}
