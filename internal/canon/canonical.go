package canon

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"
)

// floatDigits is the number of significant digits floats are rounded to,
// erasing platform float-formatting drift.
const floatDigits = 12

// Canonicalize normalizes v into its canonical form under opts.
//
// Rules are applied recursively; string and array rules are keyed by the
// immediately enclosing object key (array elements inherit it):
//   - objects: volatile keys dropped when opts.StripVolatile
//   - arrays under an unordered key: sorted by element canonical text
//   - strings: NFC, CRLF/CR to LF, path and timestamp normalization by key
//   - integers: unchanged, including those beyond int64
//   - floats: NaN/Inf rejected, otherwise rounded to 12 significant digits
//     with -0 written as 0
//
// The result shares no mutable structure with v.
func Canonicalize(v Value, opts Options) (Value, error) {
	return canonicalize(v, "", "", opts)
}

// CanonicalJSON canonicalizes v and serializes it with sorted keys,
// ASCII-only escaping and no insignificant whitespace.
func CanonicalJSON(v Value, opts Options) ([]byte, error) {
	cv, err := Canonicalize(v, opts)
	if err != nil {
		return nil, err
	}
	return Marshal(cv)
}

func canonicalize(v Value, key, ptr string, opts Options) (Value, error) {
	switch val := v.(type) {
	case nil, Null:
		return Null{}, nil
	case Bool, Int, BigInt:
		return val, nil
	case Float:
		return canonicalFloat(float64(val), ptr)
	case String:
		return String(normalizeString(key, string(val))), nil
	case Array:
		return canonicalArray(val, key, ptr, opts)
	case Object:
		out := make(Object, len(val))
		for k, elem := range val {
			if opts.StripVolatile && opts.IsVolatile(k) {
				continue
			}
			cv, err := canonicalize(elem, k, ptr+"/"+EscapePointer(k), opts)
			if err != nil {
				return nil, err
			}
			out[k] = cv
		}
		return out, nil
	default:
		return nil, &CanonicalizationError{Path: ptr, Reason: fmt.Sprintf("unsupported value type %T", v)}
	}
}

func canonicalFloat(f float64, ptr string) (Value, error) {
	if math.IsNaN(f) {
		return nil, &CanonicalizationError{Path: ptr, Reason: "NaN is not representable"}
	}
	if math.IsInf(f, 0) {
		return nil, &CanonicalizationError{Path: ptr, Reason: "infinity is not representable"}
	}
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(f, 'g', floatDigits, 64), 64)
	if err != nil {
		return nil, &CanonicalizationError{Path: ptr, Reason: err.Error()}
	}
	if rounded == 0 {
		// -0 would not survive a decode, which reads it back as Int(0).
		rounded = 0
	}
	return Float(rounded), nil
}

func canonicalArray(arr Array, key, ptr string, opts Options) (Value, error) {
	out := make(Array, len(arr))
	for i, elem := range arr {
		cv, err := canonicalize(elem, key, ptr+"/"+strconv.Itoa(i), opts)
		if err != nil {
			return nil, err
		}
		out[i] = cv
	}
	if !opts.isUnordered(key) || len(out) < 2 {
		return out, nil
	}

	texts := make([]string, len(out))
	for i, elem := range out {
		b, err := Marshal(elem)
		if err != nil {
			return nil, err
		}
		texts[i] = string(b)
	}
	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return texts[idx[a]] < texts[idx[b]] })

	sorted := make(Array, len(out))
	for i, j := range idx {
		sorted[i] = out[j]
	}
	return sorted, nil
}

// Marshal serializes v deterministically (sorted keys, ASCII-only escaping,
// no whitespace) without applying any normalization rules. NaN and infinite
// floats are rejected.
func Marshal(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, v, ""); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeValue(buf *bytes.Buffer, v Value, ptr string) error {
	switch val := v.(type) {
	case nil, Null:
		buf.WriteString("null")
	case Bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case BigInt:
		if !isIntegerLiteral(string(val)) {
			return &CanonicalizationError{Path: ptr, Reason: fmt.Sprintf("big integer %q is not a decimal literal", string(val))}
		}
		buf.WriteString(string(val))
	case Float:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return &CanonicalizationError{Path: ptr, Reason: fmt.Sprintf("%v is not representable", f)}
		}
		if f == 0 {
			f = 0
		}
		buf.Write(appendFloat(nil, f))
	case String:
		writeString(buf, string(val))
	case Array:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, elem, ptr+"/"+strconv.Itoa(i)); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		for i, k := range val.SortedKeys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, k)
			buf.WriteByte(':')
			if err := writeValue(buf, val[k], ptr+"/"+EscapePointer(k)); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return &CanonicalizationError{Path: ptr, Reason: fmt.Sprintf("unsupported value type %T", v)}
	}
	return nil
}

func isIntegerLiteral(s string) bool {
	if strings.HasPrefix(s, "-") {
		s = s[1:]
	}
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// appendFloat formats like encoding/json: plain notation for ordinary
// magnitudes, exponent notation below 1e-6 and from 1e21.
func appendFloat(b []byte, f float64) []byte {
	abs := math.Abs(f)
	format := byte('f')
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'e'
	}
	b = strconv.AppendFloat(b, f, format, -1, 64)
	if format == 'e' {
		// e-09 -> e-9
		n := len(b)
		if n >= 4 && b[n-4] == 'e' && b[n-3] == '-' && b[n-2] == '0' {
			b[n-2] = b[n-1]
			b = b[:n-1]
		}
	}
	return b
}

const hexDigits = "0123456789abcdef"

// writeString writes s as a JSON string. Everything outside printable ASCII
// is escaped as \uXXXX (surrogate pairs above the BMP).
func writeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		default:
			switch {
			case r >= 0x20 && r <= 0x7e:
				buf.WriteByte(byte(r))
			case r > 0xffff:
				r1, r2 := utf16.EncodeRune(r)
				writeUnicodeEscape(buf, r1)
				writeUnicodeEscape(buf, r2)
			default:
				writeUnicodeEscape(buf, r)
			}
		}
	}
	buf.WriteByte('"')
}

func writeUnicodeEscape(buf *bytes.Buffer, r rune) {
	buf.WriteString(`\u`)
	buf.WriteByte(hexDigits[(r>>12)&0xf])
	buf.WriteByte(hexDigits[(r>>8)&0xf])
	buf.WriteByte(hexDigits[(r>>4)&0xf])
	buf.WriteByte(hexDigits[r&0xf])
}
