package canon

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func canonicalText(t *testing.T, v Value, opts Options) string {
	t.Helper()
	b, err := CanonicalJSON(v, opts)
	require.NoError(t, err)
	return string(b)
}

func TestCanonicalJSONBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    Value
		expected string
	}{
		{"null", Null{}, "null"},
		{"nil interface", nil, "null"},
		{"string", String("hello"), `"hello"`},
		{"empty string", String(""), `""`},
		{"int", Int(42), "42"},
		{"negative int", Int(-100), "-100"},
		{"max int64", Int(math.MaxInt64), "9223372036854775807"},
		{"bool true", Bool(true), "true"},
		{"bool false", Bool(false), "false"},
		{"float", Float(2.5), "2.5"},
		{"empty array", Array{}, "[]"},
		{"empty object", Object{}, "{}"},
		{"array of ints", Array{Int(1), Int(2), Int(3)}, "[1,2,3]"},
		{"simple object", Object{"a": Int(1)}, `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, canonicalText(t, tt.input, DefaultOptions()))
		})
	}
}

func TestCanonicalJSONSortedKeys(t *testing.T) {
	obj := Object{
		"zebra": Int(1),
		"alpha": Int(2),
		"beta":  Object{"y": Int(1), "x": Int(2)},
	}

	assert.Equal(t, `{"alpha":2,"beta":{"x":2,"y":1},"zebra":1}`, canonicalText(t, obj, DefaultOptions()))
}

func TestCanonicalJSONASCIIEscaping(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"latin", "café", `"caf\u00e9"`},
		{"astral plane", "😀", `"\ud83d\ude00"`},
		{"html chars untouched", "<a & b>", `"<a & b>"`},
		{"slash untouched", "a/b", `"a/b"`},
		{"quote and backslash", `say "hi" \o/`, `"say \"hi\" \\o/"`},
		{"short escapes", "\t\b\f", `"\t\b\f"`},
		{"control char", "\x01", `"\u0001"`},
		{"delete char", "\x7f", `"\u007f"`},
		{"line separator", "\u2028", `"\u2028"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Marshal(String(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(b))
		})
	}
}

func TestCanonicalizeLineEndings(t *testing.T) {
	crlf := Object{"text": String("one\r\ntwo\rthree\n")}
	lf := Object{"text": String("one\ntwo\nthree\n")}

	assert.Equal(t, canonicalText(t, lf, DefaultOptions()), canonicalText(t, crlf, DefaultOptions()))
	assert.Equal(t, `{"text":"one\ntwo\nthree\n"}`, canonicalText(t, crlf, DefaultOptions()))
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`C:\Users\dev\project\`, "/c/Users/dev/project/"},
		{`c:\Users\dev\file.txt`, "/c/Users/dev/file.txt"},
		{`D:`, "/d/"},
		{"/tmp//a/./b/../c", "/tmp/a/c"},
		{"/tmp/x/", "/tmp/x/"},
		{"/", "/"},
		{"//", "/"},
		{`a\b`, "a/b"},
		{"../a/b", "../a/b"},
		{"./src/", "src/"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := NormalizePath(tt.input)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, got, NormalizePath(got), "path normalization must be idempotent")
		})
	}
}

func TestCanonicalizePathHints(t *testing.T) {
	obj := Object{
		"cwd":        String(`C:\work\repo`),
		"log_path":   String(`logs\\app.log`),
		"cache_dir":  String("/var//cache/"),
		"FilePath":   String(`src\main.go`),
		"name":       String(`a\b`),
		"files_list": Array{String(`x\y`)},
	}

	cv, err := Canonicalize(obj, DefaultOptions())
	require.NoError(t, err)
	out := cv.(Object)

	assert.Equal(t, String("/c/work/repo"), out["cwd"])
	assert.Equal(t, String("logs/app.log"), out["log_path"])
	assert.Equal(t, String("/var/cache/"), out["cache_dir"])
	assert.Equal(t, String("src/main.go"), out["FilePath"])
	assert.Equal(t, String(`a\b`), out["name"], "non-path keys are untouched")
	assert.Equal(t, Array{String(`x\y`)}, out["files_list"])
}

func TestCanonicalizePathArrayInheritsKey(t *testing.T) {
	obj := Object{"path": Array{String(`a\b`), String("c//d")}}

	cv, err := Canonicalize(obj, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, Array{String("a/b"), String("c/d")}, cv.(Object)["path"])
}

func TestNormalizeTimestamp(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{"zulu", "2026-01-01T00:00:00Z", "2026-01-01T00:00:00.000000Z", true},
		{"positive offset", "2026-01-01T01:00:00+01:00", "2026-01-01T00:00:00.000000Z", true},
		{"negative offset", "2025-12-31T19:00:00-05:00", "2026-01-01T00:00:00.000000Z", true},
		{"offset without colon", "2026-01-01T02:00:00+0200", "2026-01-01T00:00:00.000000Z", true},
		{"space separator", "2026-01-01 00:00:00+00:00", "2026-01-01T00:00:00.000000Z", true},
		{"nanoseconds truncated", "2026-01-01T00:00:00.123456789Z", "2026-01-01T00:00:00.123456Z", true},
		{"millis padded", "2026-01-01T00:00:00.5Z", "2026-01-01T00:00:00.500000Z", true},
		{"no zone", "2026-01-01T00:00:00", "2026-01-01T00:00:00", false},
		{"garbage", "yesterday", "yesterday", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeTimestamp(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCanonicalizeTimestampHints(t *testing.T) {
	a := Object{"created_at": String("2026-01-01T01:00:00+01:00"), "note": String("2026-01-01T01:00:00+01:00")}
	b := Object{"created_at": String("2026-01-01T00:00:00Z"), "note": String("2026-01-01T01:00:00+01:00")}

	assert.Equal(t, canonicalText(t, a, DefaultOptions()), canonicalText(t, b, DefaultOptions()))
	assert.Contains(t, canonicalText(t, a, DefaultOptions()), `"note":"2026-01-01T01:00:00+01:00"`)
}

func TestCanonicalizeFloats(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected string
	}{
		{"drift erased", 0.1 + 0.2, "0.3"},
		{"third", 1.0 / 3.0, "0.333333333333"},
		{"integral", 3.0, "3"},
		{"large", 1e21, "1e+21"},
		{"small", 1.5e-7, "1.5e-7"},
		{"negative", -2.75, "-2.75"},
		{"negative zero", math.Copysign(0, -1), "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, canonicalText(t, Float(tt.input), DefaultOptions()))
		})
	}
}

func TestCanonicalizeRejectsNonFinite(t *testing.T) {
	for name, f := range map[string]float64{
		"nan":     math.NaN(),
		"+inf":    math.Inf(1),
		"-inf":    math.Inf(-1),
		"nested":  math.NaN(),
		"in list": math.Inf(1),
	} {
		t.Run(name, func(t *testing.T) {
			var v Value = Float(f)
			switch name {
			case "nested":
				v = Object{"a": Object{"b": Float(f)}}
			case "in list":
				v = Array{Int(1), Float(f)}
			}
			_, err := CanonicalJSON(v, DefaultOptions())
			require.Error(t, err)
			assert.True(t, IsCanonicalizationError(err))
		})
	}
}

func TestCanonicalizeErrorPath(t *testing.T) {
	_, err := Canonicalize(Object{"a": Array{Int(1), Float(math.NaN())}}, DefaultOptions())
	require.Error(t, err)

	var ce *CanonicalizationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "/a/1", ce.Path)
}

func TestCanonicalizeVolatileStripping(t *testing.T) {
	obj := Object{
		"duration_ms": Int(3),
		"Trace_ID":    String("abc"),
		"model":       String("m-1"),
		"nested":      Object{"latency_ms": Int(1), "k": Int(1)},
		"list":        Array{Object{"pid": Int(7), "v": Int(2)}},
	}

	stripped := DefaultOptions()
	stripped.StripVolatile = true

	assert.Equal(t, `{"list":[{"v":2}],"model":"m-1","nested":{"k":1}}`, canonicalText(t, obj, stripped))
	assert.Contains(t, canonicalText(t, obj, DefaultOptions()), `"duration_ms":3`)
}

func TestCanonicalizeUnorderedFields(t *testing.T) {
	a := Object{"tags": Array{String("beta"), String("alpha")}}
	b := Object{"tags": Array{String("alpha"), String("beta")}}

	assert.Equal(t, `{"tags":["alpha","beta"]}`, canonicalText(t, a, DefaultOptions()))
	assert.Equal(t, canonicalText(t, a, DefaultOptions()), canonicalText(t, b, DefaultOptions()))

	objects := Object{"labels": Array{Object{"b": Int(1)}, Object{"a": Int(2)}}}
	assert.Equal(t, `{"labels":[{"a":2},{"b":1}]}`, canonicalText(t, objects, DefaultOptions()))

	ordered := Object{"items": Array{String("beta"), String("alpha")}}
	assert.Equal(t, `{"items":["beta","alpha"]}`, canonicalText(t, ordered, DefaultOptions()))
}

func TestCanonicalizeExtraFields(t *testing.T) {
	opts := DefaultOptions().WithExtraFields([]string{"seed_ms"}, []string{"scopes"})
	opts.StripVolatile = true

	obj := Object{"seed_ms": Int(1), "scopes": Array{String("b"), String("a")}}
	assert.Equal(t, `{"scopes":["a","b"]}`, canonicalText(t, obj, opts))
}

func TestCanonicalizeNFC(t *testing.T) {
	decomposed := Object{"name": String("cafe\u0301")}
	composed := Object{"name": String("caf\u00e9")}

	assert.Equal(t, canonicalText(t, composed, DefaultOptions()), canonicalText(t, decomposed, DefaultOptions()))
}

func TestCanonicalizeIdempotent(t *testing.T) {
	fixtures := []Value{
		Object{
			"cwd":        String(`C:\repo\.\src\..\lib\`),
			"created_at": String("2026-03-04T05:06:07.891+02:00"),
			"tags":       Array{String("z"), String("a"), String("m")},
			"text":       String("a\r\nb"),
			"score":      Float(0.1 + 0.2),
			"nested": Object{
				"labels":    Array{Object{"k": Int(2)}, Object{"k": Int(1)}},
				"timestamp": String("2026-01-01T00:00:00"),
				"flag":      Bool(true),
				"none":      Null{},
			},
		},
		Array{Float(1.0 / 7.0), String("x"), Object{}},
		String("plain"),
	}

	for i, fx := range fixtures {
		once, err := Canonicalize(fx, DefaultOptions())
		require.NoError(t, err, "fixture %d", i)
		twice, err := Canonicalize(once, DefaultOptions())
		require.NoError(t, err, "fixture %d", i)

		assert.True(t, Equal(once, twice), "fixture %d", i)

		text1, err := Marshal(once)
		require.NoError(t, err)
		text2, err := Marshal(twice)
		require.NoError(t, err)
		assert.Equal(t, string(text1), string(text2))

		decoded, err := Decode(text1)
		require.NoError(t, err)
		assert.Equal(t, string(text1), canonicalText(t, decoded, DefaultOptions()), "fixture %d survives a text round-trip", i)
	}
}

func TestCanonicalizeEquivalentPayloads(t *testing.T) {
	windows := Object{
		"working_directory": String(`C:\agents\run\`),
		"started_at":        String("2026-01-01T09:30:00+09:30"),
		"body":              String("line1\r\nline2"),
		"capabilities":      Array{String("write"), String("read")},
	}
	posix := Object{
		"working_directory": String("/c/agents/run/"),
		"started_at":        String("2026-01-01T00:00:00Z"),
		"body":              String("line1\nline2"),
		"capabilities":      Array{String("read"), String("write")},
	}

	assert.Equal(t, canonicalText(t, posix, DefaultOptions()), canonicalText(t, windows, DefaultOptions()))
}

func TestCanonicalizeDoesNotMutateInput(t *testing.T) {
	tags := Array{String("b"), String("a")}
	obj := Object{"tags": tags, "duration_ms": Int(1)}

	opts := DefaultOptions()
	opts.StripVolatile = true
	_, err := Canonicalize(obj, opts)
	require.NoError(t, err)

	assert.Equal(t, Array{String("b"), String("a")}, tags)
	assert.Contains(t, obj, "duration_ms")
}

func TestCanonicalizeBigIntegersUnchanged(t *testing.T) {
	a, err := Decode([]byte(`{"n":18446744073709551616}`))
	require.NoError(t, err)
	b, err := Decode([]byte(`{"n":18446744073709551617}`))
	require.NoError(t, err)

	textA := canonicalText(t, a, DefaultOptions())
	textB := canonicalText(t, b, DefaultOptions())
	assert.Equal(t, `{"n":18446744073709551616}`, textA)
	assert.Equal(t, `{"n":18446744073709551617}`, textB)
	assert.NotEqual(t, textA, textB)

	neg := canonicalText(t, Array{BigInt("-99999999999999999999")}, DefaultOptions())
	assert.Equal(t, "[-99999999999999999999]", neg)
}

func TestMarshalRejectsMalformedBigInt(t *testing.T) {
	for _, bad := range []string{"", "-", "12a", "007", "1.5"} {
		_, err := Marshal(BigInt(bad))
		require.Error(t, err, "%q", bad)
		assert.True(t, IsCanonicalizationError(err))
	}
}

func TestNegativeZeroSurvivesDecode(t *testing.T) {
	negZero := Object{"x": Float(math.Copysign(0, -1))}

	text := canonicalText(t, negZero, DefaultOptions())
	assert.Equal(t, `{"x":0}`, text)

	raw, err := Marshal(negZero)
	require.NoError(t, err)
	assert.Equal(t, `{"x":0}`, string(raw))

	back, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, text, canonicalText(t, back, DefaultOptions()))
}
