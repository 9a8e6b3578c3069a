package index

// Field identifies one indexed field of a guidance document.
type Field int

const (
	FieldTitle Field = iota
	FieldHeading
	FieldText
	FieldTags
	NumFields
)

var fieldNames = [NumFields]string{"title", "heading", "text", "tags"}

func (f Field) String() string {
	if f < 0 || f >= NumFields {
		return "unknown"
	}
	return fieldNames[f]
}

// ParseField maps a field name back to its Field.
func ParseField(name string) (Field, bool) {
	for i, n := range fieldNames {
		if n == name {
			return Field(i), true
		}
	}
	return 0, false
}

// Posting records how often a term occurs in each field of one document.
type Posting struct {
	DocID     string
	Frequency [NumFields]int
}

// Total is the occurrence count across all fields.
func (p Posting) Total() int {
	n := 0
	for _, f := range p.Frequency {
		n += f
	}
	return n
}

type PostingList []Posting

// Document is the indexable view of a guidance section.
type Document struct {
	ID     string
	Fields [NumFields]string
}

// TermMatch is a dictionary term reached from a query term, with the edit
// distance that reached it (0 for exact and prefix matches).
type TermMatch struct {
	Term     string
	Distance int
}
