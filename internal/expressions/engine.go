package expressions

import "context"

// Engine evaluates expressions against run data.
// Three implementations: CEL (conditions), Expr (computed transforms), GoJQ
// (data reshaping).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}
