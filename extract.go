package safejson

import (
	"bytes"
	"errors"
	"io"

	"github.com/tdewolff/parse/js"
)

var (
	// ErrStop can be returned from an ExtractCallback to indicate that extraction should stop at this value
	ErrStop = errors.New("stop extracting")
)

// ExtractCallback is the callback function passed to Extract.
// If this function returns an error, extraction will stop and return that error.
// If the returned error is ErrStop, extraction will stop but not return an error.
type ExtractCallback func(v any) error

// Extract finds all JavaScript objects and arrays in r, e.g. in an HTML page, and calls callback for each of them.
// Values are read like ParseLiteral reads them and can be passed to Convert. Nested values are only reported as
// part of the object or array that contains them.
//
// Please note that r must return UTF-8 bytes.
func Extract(r io.Reader, callback ExtractCallback) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	// The lexer terminates its input with a NUL byte, which fits into this spare byte without copying
	data = append(data, 0)[:len(data)]

	for offset := 0; offset < len(data); {
		// We're looking for opening brackets
		i := bytes.IndexAny(data[offset:], "{[")
		if i < 0 {
			break
		}
		start := offset + i

		v, n, err := parsePrefix(data[start:])
		if err != nil {
			// OK, so we tried to parse, but it didn't work.
			// We now just skip this opening bracket and check the following data
			offset = start + 1
			continue
		}
		offset = start + n

		if err := callback(v); err != nil {
			// ErrStop just stops, returns nil
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}

	return nil
}

// ExtractAll returns all values Extract finds in r
func ExtractAll(r io.Reader) (values []any, err error) {
	return values, Extract(r, func(v any) error {
		values = append(values, v)
		return nil
	})
}

// parsePrefix reads the value data starts with and returns it together with
// the number of bytes it spans. Anything after the value is ignored.
func parsePrefix(data []byte) (v any, n int, err error) {
	p := &literalParser{lex: js.NewLexer(bytes.NewBuffer(data))}
	p.next()

	v, err = p.value(0)
	if err != nil {
		return nil, 0, err
	}
	return v, p.end, nil
}
