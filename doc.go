// Package safejson converts arbitrary values into values that are guaranteed to be valid JSON
// and reports every change that was necessary to get there.
//
// Input values can come from anywhere: plain Go data, objects with getters and toJSON hooks
// (see Object and Container), or JavaScript notation read by ParseLiteral, like this:
//     var x = {
//     	// Keys without quotes are valid in JavaScript, but not in JSON
//     	key: "value",
//     	'other quotes': true,
//
//     	// JSON doesn't support all these number formats
//     	"hex": 0x15,
//     	million: 1_000_000,
//     	bigint: 21n,
//     	"num": NaN,
//     	"udef": undefined,
//
//     	lastvalue: `multiline strings are
//     no problem`,
//     };
//
// Convert walks such a value depth-first. toJSON hooks are called, getters are resolved and
// everything JSON cannot represent (undefined, functions, NaN, Infinity, bigints, cycles) is omitted.
// Each of these steps is recorded as a Change with the JSON pointer of the affected value and
// a Reason. Failures of user code, e.g. a panicking getter, never escape Convert; they are
// recorded with an ErrorInfo and only the failing value is dropped.
package safejson
