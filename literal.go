package safejson

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/go-json-experiment/json"
	"github.com/tdewolff/parse/js"
)

var (
	// ErrTrailingData is returned by ParseLiteral if the input continues after the value
	ErrTrailingData = errors.New("unexpected data after value")

	// ErrDepth is returned by ParseLiteral if the value is nested too deeply
	ErrDepth = errors.New("value is nested too deeply")
)

// ParseLiteral reads a single JavaScript value literal from r, e.g. a JSON document
// or an object declared in a <script> tag.
//
// Everything JSON supports is accepted, as well as unquoted and single-quoted keys,
// comments, trailing commas, array holes, single-quoted and template strings,
// hex/octal/binary numbers, numeric separators, bigints (as *big.Int), NaN,
// Infinity and undefined.
// A leading declaration like "var x =" is skipped.
// Objects become *Object so that key order is kept. Regular expressions become
// strings.
//
// The returned value is not necessarily valid JSON, pass it to Convert for that.
func ParseLiteral(r io.Reader) (v any, err error) {
	p := &literalParser{lex: js.NewLexer(r)}
	p.next()

	if err = p.declaration(); err != nil {
		return nil, err
	}

	v, err = p.value(0)
	if err != nil {
		return nil, err
	}

	// Declarations usually end with a semicolon
	if p.is(";") {
		p.next()
	}
	if p.tt != js.ErrorToken {
		return nil, fmt.Errorf("%w: %q", ErrTrailingData, string(p.text))
	}
	if p.err != nil {
		return nil, p.err
	}
	return v, nil
}

// ParseLiteralString is like ParseLiteral, but reads from a string
func ParseLiteralString(s string) (any, error) {
	return ParseLiteral(strings.NewReader(s))
}

type literalParser struct {
	lex *js.Lexer

	// current token, never a comment or whitespace
	tt   js.TokenType
	text []byte

	// a token that was lexed ahead but not consumed yet
	pending     bool
	pendingTT   js.TokenType
	pendingText []byte

	// read error other than io.EOF
	err error

	// pos is the number of bytes consumed so far, end the offset after the last consumed token
	pos, end int
}

// next moves to the next token that is relevant for the value
func (p *literalParser) next() {
	p.end = p.pos
	for {
		p.tt, p.text = p.token()

		switch p.tt {
		case js.SingleLineCommentToken, js.MultiLineCommentToken, js.WhitespaceToken, js.LineTerminatorToken:
			// Ignore tokens that are not needed for JSON
			continue
		case js.NumericToken:
			p.text = p.numberSuffix(p.text)
		case js.ErrorToken:
			if err := p.lex.Err(); err != nil && err != io.EOF {
				p.err = err
			}
		}
		return
	}
}

// token returns the next token, including whitespace and comments
func (p *literalParser) token() (js.TokenType, []byte) {
	tt, text := p.pendingTT, p.pendingText
	if p.pending {
		p.pending = false
	} else {
		tt, text = p.lex.Next()
	}
	p.pos += len(text)
	return tt, text
}

// numberSuffix adds what the lexer splits off a number to num: the n of a
// bigint like 21n and the parts after separators like in 1_000_000.5
func (p *literalParser) numberSuffix(num []byte) []byte {
	var separated bool
	for num[len(num)-1] != 'n' {
		tt, text := p.lex.Next()

		switch {
		case tt == js.IdentifierToken && (string(text) == "n" || text[0] == '_'):
			separated = text[0] == '_'
		case tt == js.NumericToken && separated && text[0] == '.':
			separated = false
		default:
			p.pending, p.pendingTT, p.pendingText = true, tt, text
			return num
		}

		num = append(num[:len(num):len(num)], text...)
		p.pos += len(text)
	}
	return num
}

// is reports whether the current token is the punctuator s
func (p *literalParser) is(s string) bool {
	return p.tt == js.PunctuatorToken && string(p.text) == s
}

func (p *literalParser) unexpected() error {
	if p.tt == js.ErrorToken {
		if p.err != nil {
			return p.err
		}
		return io.ErrUnexpectedEOF
	}
	return fmt.Errorf("unexpected token %q in JS value", string(p.text))
}

// declaration skips "var x =", "let x =" or "const x =" in front of the value
func (p *literalParser) declaration() error {
	if p.tt != js.IdentifierToken {
		return nil
	}
	switch string(p.text) {
	case "var", "let", "const":
	default:
		return nil
	}

	p.next()
	if p.tt != js.IdentifierToken {
		return p.unexpected()
	}
	p.next()
	if !p.is("=") {
		return p.unexpected()
	}
	p.next()
	return nil
}

func (p *literalParser) value(depth int) (v any, err error) {
	if depth > maxDepth {
		return nil, ErrDepth
	}

	switch p.tt {
	case js.PunctuatorToken:
		switch string(p.text) {
		case "{":
			return p.object(depth + 1)
		case "[":
			return p.array(depth + 1)
		case "-", "+":
			negative := p.text[0] == '-'
			p.next()
			v, err = p.number()
			if err != nil || !negative {
				return
			}
			return negate(v), nil
		}
	case js.IdentifierToken:
		switch string(p.text) {
		case "true":
			v = true
		case "false":
			v = false
		case "null":
			v = nil
		case "undefined":
			v = Undefined
		case "NaN", "Infinity":
			return p.number()
		default:
			return nil, p.unexpected()
		}
		p.next()
		return v, nil
	case js.NumericToken:
		return p.number()
	case js.StringToken:
		s, err := unquote(p.text)
		if err != nil {
			return nil, err
		}
		p.next()
		return s, nil
	case js.TemplateToken:
		// Template literals are taken as they are, only escaped backticks are resolved
		s := templateQuoteReplacer.Replace(string(p.text[1 : len(p.text)-1]))
		p.next()
		return s, nil
	case js.RegexpToken:
		// Regex patterns are treated as strings
		s := string(p.text)
		p.next()
		return s, nil
	}

	return nil, p.unexpected()
}

func (p *literalParser) number() (v any, err error) {
	switch {
	case p.tt == js.NumericToken:
		v, err = parseNumber(string(p.text))
		if err != nil {
			return nil, err
		}
	case p.tt == js.IdentifierToken && string(p.text) == "NaN":
		v = math.NaN()
	case p.tt == js.IdentifierToken && string(p.text) == "Infinity":
		v = math.Inf(1)
	default:
		return nil, p.unexpected()
	}
	p.next()
	return v, nil
}

func (p *literalParser) object(depth int) (any, error) {
	obj := NewObject()
	p.next()

	for {
		// Also handles trailing commas
		if p.is("}") {
			p.next()
			return obj, nil
		}

		var key string
		switch p.tt {
		case js.IdentifierToken:
			key = string(p.text)
		case js.StringToken:
			s, err := unquote(p.text)
			if err != nil {
				return nil, err
			}
			key = s
		case js.NumericToken:
			n, err := parseNumber(string(p.text))
			if err != nil {
				return nil, err
			}
			key = numberKey(n)
		default:
			return nil, p.unexpected()
		}

		p.next()
		if !p.is(":") {
			return nil, p.unexpected()
		}
		p.next()

		v, err := p.value(depth)
		if err != nil {
			return nil, err
		}
		obj.Set(key, v)

		switch {
		case p.is(","):
			p.next()
		case p.is("}"):
		default:
			return nil, p.unexpected()
		}
	}
}

func (p *literalParser) array(depth int) (any, error) {
	arr := []any{}
	p.next()

	for {
		switch {
		case p.is("]"):
			p.next()
			return arr, nil
		case p.is(","):
			// A hole, e.g. [1,,2]
			arr = append(arr, Undefined)
			p.next()
			continue
		}

		v, err := p.value(depth)
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)

		switch {
		case p.is(","):
			p.next()
		case p.is("]"):
		default:
			return nil, p.unexpected()
		}
	}
}

// singleQuoteReplacer replaces a single quoted string to be double-quoted
var singleQuoteReplacer = strings.NewReplacer(
	// Replace single quotes with double, ' => "
	"'", "\"",
	// Escape quotes from before, " => \"
	"\"", "\\\"",
	// unescape single quotes from before, \' => '
	"\\'", "'",
)

// https://developer.mozilla.org/en-US/docs/Web/JavaScript/Reference/Template_literals
var templateQuoteReplacer = strings.NewReplacer(
	// Escaped quotes become normal characters
	"\\`", "`",
)

// unquote decodes a single- or double-quoted string token
func unquote(text []byte) (string, error) {
	quoted := string(text)
	if quoted[0] == '\'' {
		quoted = singleQuoteReplacer.Replace(quoted)
	}

	var s string
	if err := json.Unmarshal([]byte(quoted), &s); err == nil {
		return s, nil
	}

	// JavaScript has some escapes JSON doesn't know, like \x41
	s, err := strconv.Unquote(quoted)
	if err != nil {
		return "", fmt.Errorf("invalid string %s: %w", string(text), err)
	}
	return s, nil
}

// parseNumber parses a numeric token. Bigints become *big.Int, everything else float64.
func parseNumber(text string) (any, error) {
	// Separators must be between two digits
	if strings.Contains(text, "__") || strings.HasSuffix(strings.TrimSuffix(text, "n"), "_") {
		return nil, fmt.Errorf("invalid number %q", text)
	}
	text = strings.ReplaceAll(text, "_", "")

	negative := strings.HasPrefix(text, "-")
	digits := strings.TrimLeft(text, "+-")
	if len(digits) == 0 {
		return nil, fmt.Errorf("invalid number %q", text)
	}

	if strings.HasSuffix(digits, "n") {
		n, ok := new(big.Int).SetString(digits[:len(digits)-1], 0)
		if !ok {
			return nil, fmt.Errorf("invalid bigint %q", text)
		}
		if negative {
			n.Neg(n)
		}
		return n, nil
	}

	// 0x15, 0o25 and 0b10101 are not supported by ParseFloat
	if len(digits) > 2 && digits[0] == '0' && strings.ContainsRune("xXoObB", rune(digits[1])) {
		n, ok := new(big.Int).SetString(digits, 0)
		if !ok {
			return nil, fmt.Errorf("invalid number %q", text)
		}
		f, _ := new(big.Float).SetInt(n).Float64()
		if negative {
			f = -f
		}
		return f, nil
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return nil, fmt.Errorf("invalid number %q: %w", text, err)
	}
	// Out of range numbers are Infinity in JS too
	return f, nil
}

// numberKey formats a numeric object key the way JavaScript does, e.g. {1.50: x} has the key "1.5"
func numberKey(n any) string {
	switch v := n.(type) {
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case *big.Int:
		return v.String()
	}
	return fmt.Sprint(n)
}

func negate(v any) any {
	switch n := v.(type) {
	case float64:
		return -n
	case *big.Int:
		return new(big.Int).Neg(n)
	}
	return v
}
