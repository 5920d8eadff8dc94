package inspector

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/ext"

	"github.com/vyrodovalexey/httpvec/internal/vector"
)

// celSelector evaluates a compiled CEL program. Programs are safe for
// concurrent evaluation.
type celSelector struct {
	expression string
	program    cel.Program
}

// newCELEnvironment creates the environment inspector expressions are
// compiled against.
func newCELEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		// Request headers, lower-cased names, first value.
		cel.Variable("headers", cel.MapType(cel.StringType, cel.StringType)),

		// Vector catalog in order.
		cel.Variable("vectors", cel.ListType(cel.MapType(cel.StringType, cel.DynType))),

		ext.Strings(),
	)
}

// NewCELSelector compiles expression into a selector. The expression
// yields a vector index; a negative index or null is no opinion.
func NewCELSelector(expression string) (Selector, error) {
	env, err := newCELEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile expression: %w", issues.Err())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program: %w", err)
	}

	return &celSelector{expression: expression, program: program}, nil
}

// Select implements Selector.
func (s *celSelector) Select(headers Headers, vectors *vector.Catalog) (Decision, error) {
	views := vectors.Views()
	list := make([]any, len(views))
	for i, v := range views {
		list[i] = v
	}

	result, _, err := s.program.Eval(map[string]any{
		"headers": headers.Map(),
		"vectors": list,
	})
	if err != nil {
		return NoOpinion, fmt.Errorf("evaluation failed: %w", err)
	}

	switch v := result.(type) {
	case types.Null:
		return NoOpinion, nil
	case types.Int:
		return indexDecision(int64(v), vectors)
	default:
		return NoOpinion, fmt.Errorf("expression returned %s, want int or null", result.Type().TypeName())
	}
}

// indexDecision resolves a selector's index result against the catalog.
func indexDecision(idx int64, vectors *vector.Catalog) (Decision, error) {
	if idx < 0 {
		return NoOpinion, nil
	}
	if idx >= int64(vectors.Len()) {
		return NoOpinion, fmt.Errorf("index %d out of range for %d vectors", idx, vectors.Len())
	}
	return Choose(vectors.At(int(idx))), nil
}
