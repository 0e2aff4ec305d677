package pose

import (
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// DefaultName returns the default name of a collection of member type.
// Top-level collections keep the type's casing ("Skeletons"); nested ones use
// snake case ("training_frames").
func DefaultName(member string, nested bool) string {
	if nested {
		return inflection.Plural(snake(member))
	}
	return inflection.Plural(member)
}

func snake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
