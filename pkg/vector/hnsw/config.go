package hnsw

// Config holds the tuning parameters for one HNSW index (§4.H).
type Config struct {
	// M is the target neighbor count per node at every level above ground.
	M int
	// MMax0 is the target neighbor count at the ground level (level 0),
	// conventionally 2*M.
	MMax0 int
	// EfConstruction is the candidate-list size used while inserting.
	EfConstruction int
	// EfSearch is the candidate-list size used while searching, when
	// larger than the requested k.
	EfSearch int
	// MaxInlineNodes bounds synchronous, in-transaction inserts. Beyond
	// this, Insert returns ErrGraphTooLarge.
	MaxInlineNodes int
	// ExpansionFactor multiplies the search's ef (EfSearch, or k when
	// larger) to size the traversal budget for
	// ACORN-filtered search, which must explore more broadly than an
	// unfiltered search to find enough matches past the filter.
	ExpansionFactor float64
	// MaxPredicateEvaluations caps how many candidates a filtered search
	// evaluates the predicate against before treating the rest as
	// non-matching for the remainder of the traversal. Zero means
	// unlimited.
	MaxPredicateEvaluations int
}

// DefaultConfig returns the spec-mandated defaults.
func DefaultConfig() Config {
	return Config{
		M:                       16,
		MMax0:                   32,
		EfConstruction:          200,
		EfSearch:                50,
		MaxInlineNodes:          10000,
		ExpansionFactor:         2,
		MaxPredicateEvaluations: 0,
	}
}
