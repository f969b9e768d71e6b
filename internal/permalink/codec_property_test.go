package permalink

import (
	"fmt"
	"strings"
	"testing"
	"unicode"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"
)

// printableValue generates printable strings with the characters that need
// escaping mixed in.
func printableValue() gopter.Gen {
	return gen.OneGenOf(
		gen.AlphaString(),
		gen.UnicodeString(unicode.Han),
		gen.UnicodeString(unicode.Latin),
		gen.SliceOf(gen.OneConstOf("&", "=", " ", "+", "%", "?", "#", "é", "東京", "a", "Z", "9")).
			Map(func(parts []string) string { return strings.Join(parts, "") }),
	)
}

func TestCodec_RoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("decode(encode(v, pairs)) yields v and pairs", prop.ForAll(
		func(view int, values []string) bool {
			pairs := make([]Pair, len(values))
			for i, v := range values {
				pairs[i] = Pair{Name: fmt.Sprintf("ctl%d", i), Value: v}
			}

			st := Decode(Encode(view, pairs), zerolog.Nop())
			if st.View != view || len(st.Values) != len(pairs) {
				return false
			}
			for _, p := range pairs {
				if st.Values[p.Name] != p.Value {
					return false
				}
			}
			return Encode(st.View, st.Pairs()) == Encode(view, pairs)
		},
		gen.IntRange(0, 1000),
		gen.SliceOf(printableValue()),
	))

	properties.TestingRun(t)
}
