package diff

import (
	"github.com/roach88/runproof/internal/canon"
	"github.com/roach88/runproof/internal/run"
)

// contextKeys are the display hints pulled into every StepDiff.
var contextKeys = []string{"model", "provider", "tool", "method", "url", "temperature", "max_tokens"}

// stepContext collects display hints from metadata, then input, then
// output. The first source holding a key wins.
func stepContext(s run.Step) canon.Object {
	out := canon.Object{}
	sources := []canon.Object{s.Metadata}
	if in, ok := s.Input.(canon.Object); ok {
		sources = append(sources, in)
	}
	if o, ok := s.Output.(canon.Object); ok {
		sources = append(sources, o)
	}
	for _, key := range contextKeys {
		for _, src := range sources {
			if v, ok := src.Get(key); ok {
				out[key] = canon.Clone(v)
				break
			}
		}
	}
	return out
}
