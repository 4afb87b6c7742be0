package canon

import "strings"

// DefaultVolatileFields are keys treated as non-semantic noise when
// volatile stripping is enabled.
var DefaultVolatileFields = []string{
	"duration_ms",
	"latency_ms",
	"wall_time_ms",
	"request_id",
	"trace_id",
	"span_id",
	"captured_at",
	"captured_ns",
	"thread_id",
	"pid",
}

// DefaultUnorderedFields are keys whose array values are compared as sets.
var DefaultUnorderedFields = []string{
	"tags",
	"labels",
	"capabilities",
}

var pathKeys = fieldSet([]string{
	"path",
	"file",
	"filepath",
	"file_path",
	"cwd",
	"dir",
	"directory",
	"working_directory",
})

var timestampKeys = fieldSet([]string{
	"timestamp",
	"created_at",
	"updated_at",
	"started_at",
	"ended_at",
	"captured_at",
})

// Options controls canonicalization. The zero value performs no volatile
// stripping and treats no arrays as unordered; use DefaultOptions for the
// standard field sets.
type Options struct {
	// StripVolatile drops keys in VolatileFields at every depth.
	StripVolatile bool

	// VolatileFields are matched case-insensitively against object keys.
	VolatileFields []string

	// UnorderedFields name keys whose array values are sorted by the
	// canonical text of their elements.
	UnorderedFields []string
}

// DefaultOptions returns the standard field sets with stripping disabled.
func DefaultOptions() Options {
	return Options{
		VolatileFields:  append([]string(nil), DefaultVolatileFields...),
		UnorderedFields: append([]string(nil), DefaultUnorderedFields...),
	}
}

// HashOptions returns the options used for content hashing: standard field
// sets with stripping enabled.
func HashOptions() Options {
	opts := DefaultOptions()
	opts.StripVolatile = true
	return opts
}

// WithExtraFields returns a copy of o with additional volatile and
// unordered field names appended.
func (o Options) WithExtraFields(volatile, unordered []string) Options {
	out := o
	out.VolatileFields = append(append([]string(nil), o.VolatileFields...), volatile...)
	out.UnorderedFields = append(append([]string(nil), o.UnorderedFields...), unordered...)
	return out
}

// IsVolatile reports whether key is in the volatile set, ignoring case.
func (o Options) IsVolatile(key string) bool {
	return containsFold(o.VolatileFields, key)
}

func (o Options) isUnordered(key string) bool {
	return key != "" && containsFold(o.UnorderedFields, key)
}

func isPathKey(key string) bool {
	k := strings.ToLower(key)
	if _, ok := pathKeys[k]; ok {
		return true
	}
	return strings.HasSuffix(k, "_path") || strings.HasSuffix(k, "_dir")
}

func isTimestampKey(key string) bool {
	_, ok := timestampKeys[strings.ToLower(key)]
	return ok
}

func fieldSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[strings.ToLower(n)] = struct{}{}
	}
	return set
}

func containsFold(names []string, key string) bool {
	for _, n := range names {
		if strings.EqualFold(n, key) {
			return true
		}
	}
	return false
}
