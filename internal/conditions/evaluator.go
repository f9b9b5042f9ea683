// Package conditions evaluates decision-node conditions. Evaluation never
// fails a run: every fault resolves to the "default" branch with the error
// recorded in the node result.
package conditions

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/rendis/graphflow/internal/capabilities"
	"github.com/rendis/graphflow/internal/expressions"
	"github.com/rendis/graphflow/pkg/schema"
)

// Branch labels produced by evaluation.
const (
	BranchYes     = "yes"
	BranchNo      = "no"
	BranchDefault = "default"
)

// Comparison operators, checked in order. The first operator found in the
// condition wins; operators must be surrounded by spaces.
var operators = []string{" == ", " != ", " in ", " > ", " < "}

// Evaluator resolves a decision node to a branch label.
//
// Modes, selected from node data:
//   - default: syntactic comparison over the condition string;
//   - use_llm: delegated to the Reasoner, "yes" substring wins;
//   - engine "cel" / "expr": the condition is a full expression, truthy
//     result takes the yes branch.
type Evaluator struct {
	resolver *expressions.Resolver
	reasoner capabilities.Reasoner
	engines  map[string]expressions.Engine
	logger   *slog.Logger
}

// NewEvaluator creates an Evaluator. The reasoner may be nil; delegated
// conditions then route to the default branch. Engines are optional and
// keyed by their Name().
func NewEvaluator(reasoner capabilities.Reasoner, engines []expressions.Engine, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	byName := make(map[string]expressions.Engine, len(engines))
	for _, e := range engines {
		if e != nil {
			byName[e.Name()] = e
		}
	}
	return &Evaluator{
		resolver: expressions.NewResolver(),
		reasoner: reasoner,
		engines:  byName,
		logger:   logger,
	}
}

// Evaluate resolves a decision node against the scope. It returns the node
// result patch and the branch label to follow. The branch is always one of
// yes, no, or default.
func (e *Evaluator) Evaluate(ctx context.Context, node *schema.WorkflowNode, scope *expressions.Scope) (map[string]any, string) {
	condition := node.DataString("condition", "")

	if name := node.DataString("engine", ""); name != "" {
		return e.evaluateEngine(ctx, name, condition, scope)
	}

	if node.DataBool("use_llm", false) {
		return e.evaluateDelegated(ctx, condition, scope)
	}

	return e.evaluateSyntactic(condition, scope)
}

// evaluateSyntactic substitutes template references in the condition and
// applies the first matching operator.
func (e *Evaluator) evaluateSyntactic(condition string, scope *expressions.Scope) (map[string]any, string) {
	resolved := e.resolver.Resolve(condition, scope)
	variables := scope.Variables

	var result bool
	for _, op := range operators {
		if !strings.Contains(resolved, op) {
			continue
		}
		parts := strings.SplitN(resolved, op, 2)
		ok, err := compare(op, parts[0], parts[1], variables)
		if err != nil {
			e.logger.Warn("condition evaluation failed",
				slog.String("condition", resolved),
				slog.String("error", err.Error()),
			)
			return map[string]any{"error": err.Error()}, BranchDefault
		}
		result = ok
		label := BranchNo
		if result {
			label = BranchYes
		}
		return map[string]any{"decision": label, "condition": resolved}, label
	}

	// No operator: the condition names a variable, branch on its truthiness.
	result = truthy(variables[strings.TrimSpace(resolved)])
	label := BranchNo
	if result {
		label = BranchYes
	}
	return map[string]any{"decision": label, "condition": resolved}, label
}

// compare applies a single binary operator. Equality operators compare the
// stringified variable (falling back to the literal) against the unquoted
// right side; "in" is a substring check against the right-side variable;
// ordering operators compare numerically.
func compare(op, left, right string, variables map[string]any) (bool, error) {
	left = strings.TrimSpace(left)
	right = strings.TrimSpace(right)

	switch op {
	case " == ":
		return lookupString(variables, left) == unquote(right), nil
	case " != ":
		return lookupString(variables, left) != unquote(right), nil
	case " in ":
		return strings.Contains(lookupString(variables, right), unquote(left)), nil
	case " > ":
		l, r, err := numericPair(variables, left, right)
		if err != nil {
			return false, err
		}
		return l > r, nil
	case " < ":
		l, r, err := numericPair(variables, left, right)
		if err != nil {
			return false, err
		}
		return l < r, nil
	}
	return false, schema.NewErrorf(schema.ErrCodeEvaluation, "unsupported operator %q", op)
}

// evaluateDelegated asks the Reasoner to answer the condition. A response
// containing "yes" (case-insensitive) takes the yes branch.
func (e *Evaluator) evaluateDelegated(ctx context.Context, condition string, scope *expressions.Scope) (map[string]any, string) {
	if e.reasoner == nil {
		return map[string]any{"error": "no reasoner configured"}, BranchDefault
	}

	answer, err := e.reasoner.Invoke(ctx, condition, scope.Variables)
	if err != nil {
		e.logger.Warn("delegated decision failed", slog.String("error", err.Error()))
		return map[string]any{"error": err.Error()}, BranchDefault
	}

	if strings.Contains(strings.ToLower(strings.TrimSpace(answer)), "yes") {
		return map[string]any{"decision": BranchYes}, BranchYes
	}
	return map[string]any{"decision": BranchNo}, BranchNo
}

// evaluateEngine runs the condition through a named expression engine and
// branches on the truthiness of the result.
func (e *Evaluator) evaluateEngine(ctx context.Context, name, condition string, scope *expressions.Scope) (map[string]any, string) {
	eng, ok := e.engines[name]
	if !ok {
		return map[string]any{"error": "unknown condition engine: " + name}, BranchDefault
	}

	out, err := eng.Evaluate(ctx, condition, scope.Env())
	if err != nil {
		e.logger.Warn("engine condition failed",
			slog.String("engine", name),
			slog.String("error", err.Error()),
		)
		return map[string]any{"error": err.Error()}, BranchDefault
	}

	label := BranchNo
	if truthy(out) {
		label = BranchYes
	}
	return map[string]any{"decision": label, "condition": condition, "engine": name}, label
}

// lookupString resolves a name in variables and stringifies it, falling back
// to the name itself as a literal.
func lookupString(variables map[string]any, name string) string {
	if variables != nil {
		if v, ok := variables[name]; ok {
			return anyToString(v)
		}
	}
	return name
}

// numericPair converts the left side (variable or literal) and the right
// side (literal) to floats.
func numericPair(variables map[string]any, left, right string) (float64, float64, error) {
	l, err := toFloat(lookupValue(variables, left))
	if err != nil {
		return 0, 0, err
	}
	r, err := toFloat(right)
	if err != nil {
		return 0, 0, err
	}
	return l, r, nil
}

func lookupValue(variables map[string]any, name string) any {
	if variables != nil {
		if v, ok := variables[name]; ok {
			return v
		}
	}
	return name
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, schema.NewErrorf(schema.ErrCodeEvaluation, "not a number: %q", x)
		}
		return f, nil
	default:
		return 0, schema.NewErrorf(schema.ErrCodeEvaluation, "not a number: %v", v)
	}
}

func unquote(s string) string {
	return strings.Trim(s, `'"`)
}

// truthy mirrors loose boolean semantics: nil, false, zero numbers, empty
// strings and empty containers are false.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	case float32:
		return x != 0
	case int:
		return x != 0
	case int64:
		return x != 0
	case map[string]any:
		return len(x) > 0
	case []any:
		return len(x) > 0
	default:
		return true
	}
}

func anyToString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case nil:
		return ""
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
