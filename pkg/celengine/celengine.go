package celengine

import (
	"fmt"

	"github.com/google/cel-go/cel"
	lru "github.com/hashicorp/golang-lru"
)

// DefaultMaxPrograms bounds the compiled program cache of New.
const DefaultMaxPrograms = 512

// Engine compiles boolean predicates against one CEL environment. Compiled
// programs are kept in an LRU keyed by source text.
type Engine struct {
	env      *cel.Env
	programs *lru.Cache
}

func New(vars ...cel.EnvOption) (*Engine, error) {
	return NewWithCapacity(DefaultMaxPrograms, vars...)
}

func NewWithCapacity(maxPrograms int, vars ...cel.EnvOption) (*Engine, error) {
	env, err := cel.NewEnv(vars...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	programs, err := lru.New(maxPrograms)
	if err != nil {
		return nil, fmt.Errorf("failed to create program cache: %w", err)
	}

	return &Engine{env: env, programs: programs}, nil
}

// Compile returns the program for expr. Expressions that do not type-check to
// bool are rejected.
func (e *Engine) Compile(expr string) (cel.Program, error) {
	if v, ok := e.programs.Get(expr); ok {
		return v.(cel.Program), nil
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile expression: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("expression must return a boolean, got %s", ast.OutputType())
	}

	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	e.programs.Add(expr, prg)
	return prg, nil
}

func Evaluate(prg cel.Program, attrs map[string]any) (bool, error) {
	out, _, err := prg.Eval(attrs)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate expression: %w", err)
	}

	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expected bool from expression, got %T (%v)", out.Value(), out.Value())
	}
	return b, nil
}
