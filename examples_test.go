package safejson

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/go-json-experiment/json"
)

// This example shows which changes are recorded for a value that is not valid JSON.
func ExampleConvert() {
	input := NewObject().
		Set("name", "report").
		Set("created", time.Date(2021, 2, 3, 4, 5, 6, 0, time.UTC)).
		Set("ratio", math.NaN()).
		Define("size", Descriptor{Get: func(this any) (any, error) { return 3.0, nil }})

	res := Convert(input)
	fmt.Println(res.Value)

	for _, c := range res.Changes {
		fmt.Println(c.Path, c.Reason)
	}

	// Output:
	// map[created:2021-02-03T04:05:06Z name:report size:3]
	// /created toJSON
	// /ratio invalidType
	// /size unresolvedGetter
}

// This example shows that failures are contained to the value that caused them.
func ExampleConvert_failingGetter() {
	input := map[string]any{
		"ok": true,
		"broken": NewObject().Define("value", Descriptor{
			Get: func(this any) (any, error) { return nil, errors.New("connection reset") },
		}),
	}

	res := Convert(input)
	fmt.Println(res.Value)

	for _, c := range res.Changes {
		fmt.Printf("%s %s: %s\n", c.Path, c.Reason, c.Error.Message)
	}

	// Output:
	// map[broken:map[] ok:true]
	// /broken/value unsafeGetter: connection reset
}

// This example shows how JavaScript notation can be turned into JSON.
func ExampleParseLiteral() {
	v, err := ParseLiteralString(`{
		// Keys without quotes are valid in JavaScript, but not in JSON
		key: 'value',
		num: NaN,
		list: [1, 0x10, undefined,],
	};`)
	if err != nil {
		panic(err)
	}

	res := Convert(v)

	err = json.MarshalWrite(os.Stdout, res.Value, json.Deterministic(true))
	if err != nil {
		panic(err)
	}
	fmt.Println()

	for _, c := range res.Changes {
		fmt.Println(c.Path, c.Reason)
	}

	// Output:
	// {"key":"value","list":[1,16]}
	// /num invalidType
	// /list/2 invalidType
}
