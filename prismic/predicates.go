package prismic

import (
	"strconv"
	"strings"
)

// Predicate is a single filter in the Content API query language,
// e.g. [at(document.type, "posts")].
type Predicate string

// At matches documents whose field at path equals value exactly.
func At(path, value string) Predicate {
	return Predicate("[at(" + path + ", " + strconv.Quote(value) + ")]")
}

// Any matches documents whose field at path equals one of values.
func Any(path string, values ...string) Predicate {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = strconv.Quote(v)
	}
	return Predicate("[any(" + path + ", [" + strings.Join(quoted, ", ") + "])]")
}

// DocumentType matches documents of the given custom type.
func DocumentType(docType string) Predicate {
	return At("document.type", docType)
}

// encodePredicates renders the q parameter. Predicates are concatenated
// inside an outer pair of brackets.
func encodePredicates(preds []Predicate) string {
	var b strings.Builder
	b.WriteByte('[')
	for _, p := range preds {
		b.WriteString(string(p))
	}
	b.WriteByte(']')
	return b.String()
}
