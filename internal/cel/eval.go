// Package cel provides CEL expression evaluation over journal entry attributes.
package cel

import (
	"fmt"
	"sort"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
)

// Program is a compiled CEL expression evaluated against attribute maps.
type Program struct {
	expr    string
	program cel.Program
}

// Compile parses and compiles a CEL expression. Every key in knownKeys is
// declared as a dynamic-typed variable; referencing anything else is a compile
// error.
func Compile(expr string, knownKeys []string) (*Program, error) {
	keys := append([]string(nil), knownKeys...)
	sort.Strings(keys)

	opts := make([]cel.EnvOption, 0, len(keys))
	for _, k := range keys {
		opts = append(opts, cel.Variable(k, cel.DynType))
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("cel compile: %w", issues.Err())
	}

	prog, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("cel program: %w", err)
	}

	return &Program{expr: expr, program: prog}, nil
}

// String returns the source expression.
func (p *Program) String() string {
	return p.expr
}

// Int evaluates the program and returns its integer result. ok is false on
// evaluation errors or when the result is not an integer.
func (p *Program) Int(attrs map[string]any) (int64, bool) {
	out, _, err := p.program.Eval(attrs)
	if err != nil {
		return 0, false
	}
	switch out.Type() {
	case types.IntType:
		v, ok := out.Value().(int64)
		return v, ok
	case types.UintType:
		v, ok := out.Value().(uint64)
		return int64(v), ok
	default:
		return 0, false
	}
}
