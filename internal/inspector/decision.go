package inspector

import "github.com/vyrodovalexey/httpvec/internal/vector"

// Decision is the outcome of one Selector call: a chosen vector or no
// opinion.
type Decision struct {
	vector *vector.Vector
}

// NoOpinion defers to the next inspector in the chain.
var NoOpinion = Decision{}

// Choose returns a decision for v. Choose(nil) is NoOpinion.
func Choose(v *vector.Vector) Decision {
	return Decision{vector: v}
}

// Chosen reports whether the decision names a vector.
func (d Decision) Chosen() bool {
	return d.vector != nil
}

// Vector returns the chosen vector, or nil.
func (d Decision) Vector() *vector.Vector {
	return d.vector
}
