// Package query parses raw query strings into a typed AST.
//
// Every search mode has its own grammar; all of them produce nodes from one
// closed set of kinds, so execution is an exhaustive switch with no unknown
// operators at runtime. A parsed AST is well-formed or parsing fails with a
// typed error; partial trees are never returned.
package query

// Kind identifies an AST node kind.
type Kind int

// Node kinds.
const (
	KindTerm Kind = iota
	KindPhrase
	KindProximity
	KindWildcard
	KindFuzzy
	KindAnd
	KindOr
	KindNot
	KindFieldFilter
)

// Node is an AST node.
type Node interface {
	Kind() Kind
}

// Term matches documents containing the normalized term in any field.
type Term struct {
	Term string
}

// Kind implements Node.
func (*Term) Kind() Kind { return KindTerm }

// Phrase matches terms appearing consecutively, in order.
type Phrase struct {
	Terms []string
}

// Kind implements Node.
func (*Phrase) Kind() Kind { return KindPhrase }

// Proximity matches documents containing all terms with some pair of
// occurrences within MaxDistance tokens (inclusive).
type Proximity struct {
	Terms       []string
	MaxDistance int
}

// Kind implements Node.
func (*Proximity) Kind() Kind { return KindProximity }

// Wildcard matches index terms against a */? glob over a single token.
// Leading marks patterns starting with a wildcard, which force a full term
// scan and are planned as higher cost.
type Wildcard struct {
	Pattern string
	Leading bool
}

// Kind implements Node.
func (*Wildcard) Kind() Kind { return KindWildcard }

// Fuzzy matches index terms within MaxEdits edit distance of Term.
type Fuzzy struct {
	Term     string
	MaxEdits int
}

// Kind implements Node.
func (*Fuzzy) Kind() Kind { return KindFuzzy }

// And intersects its children.
type And struct {
	Children []Node
}

// Kind implements Node.
func (*And) Kind() Kind { return KindAnd }

// Or unions its children.
type Or struct {
	Children []Node
}

// Kind implements Node.
func (*Or) Kind() Kind { return KindOr }

// Not subtracts its child from the filtered corpus.
type Not struct {
	Child Node
}

// Kind implements Node.
func (*Not) Kind() Kind { return KindNot }

// HasLeadingWildcard reports whether the tree contains a wildcard pattern
// that starts with a wildcard character. Such patterns cannot be narrowed to
// a lexical prefix range and cost a full term scan.
func HasLeadingWildcard(n Node) bool {
	switch t := n.(type) {
	case *Wildcard:
		return t.Leading
	case *And:
		for _, c := range t.Children {
			if HasLeadingWildcard(c) {
				return true
			}
		}
	case *Or:
		for _, c := range t.Children {
			if HasLeadingWildcard(c) {
				return true
			}
		}
	case *Not:
		return HasLeadingWildcard(t.Child)
	}
	return false
}

// FieldFilter ops.
const (
	// OpContains matches documents whose named field contains the term.
	OpContains = "contains"
)

// FieldFilter restricts a term match to a single searchable field,
// produced by `field:term` syntax in boolean queries.
type FieldFilter struct {
	Field string
	Op    string
	Value string
}

// Kind implements Node.
func (*FieldFilter) Kind() Kind { return KindFieldFilter }
