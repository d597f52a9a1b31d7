package allocator

import (
	"strings"

	"github.com/relforge/tagship/model/graph"
	"github.com/relforge/tagship/runtime/evaluator"
	"github.com/relforge/tagship/runtime/execution"
)

// evaluateCondition evaluates a when-condition against the run session,
// overlaying the execution output under the step namespace.
func evaluateCondition(condition string, aRun *execution.Run, step *graph.Step, anExecution *execution.StepExecution, defaultValue bool) (bool, error) {
	if condition == "" {
		return defaultValue, nil
	}

	expr := strings.TrimPrefix(condition, "${")
	expr = strings.TrimSuffix(expr, "}")

	session := aRun.Session.Clone()
	if step.Namespace != "" && anExecution.Output != nil {
		session.Set(step.Namespace, anExecution.Output)
	}

	result, err := evaluator.Evaluate(expr, session.State)
	if err != nil {
		return false, err
	}
	aRun.Session.FireWhen(condition, result)
	return result, nil
}
