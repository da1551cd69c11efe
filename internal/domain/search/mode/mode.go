// Package mode enumerates the search strategies of the query engine.
package mode

// Mode is the search strategy. It decides how the raw query string is parsed
// and how candidates are scored. Scores are comparable only within one mode.
type Mode string

// Search mode constants.
const (
	// FullText is the default mode: free-text tokens OR-combined with
	// relevance ranking.
	FullText Mode = "full_text"
	// Boolean supports AND, OR, NOT and parentheses.
	Boolean Mode = "boolean"
	// Phrase matches a quoted sequence of consecutive terms.
	Phrase Mode = "phrase"
	// Proximity matches `term1 NEAR/n term2` within n tokens.
	Proximity Mode = "proximity"
	// Wildcard matches a single token against a */? glob.
	Wildcard Mode = "wildcard"
	// Fuzzy matches `term~k` within k edits.
	Fuzzy Mode = "fuzzy"
	// Semantic ranks by an externally supplied similarity score.
	Semantic Mode = "semantic"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	switch m {
	case FullText, Boolean, Phrase, Proximity, Wildcard, Fuzzy, Semantic:
		return true
	}
	return false
}
