package builtin

import (
	"github.com/hupe1980/studycoach/core"
	"github.com/hupe1980/studycoach/tool"
)

// CalculatorArgs are the arguments of the calculator tool.
type CalculatorArgs struct {
	Expression string `json:"expression" description:"Arithmetic expression, e.g. '2 + 3 * 4', 'sqrt(16)', 'pow(2, 10)'"`
}

// Calculator evaluates arithmetic expressions. Supported: + - * / // % ** and
// parentheses, the functions abs round min max sum sqrt pow sin cos tan log exp
// and the constants pi and e. The result is rendered as a string.
func Calculator() tool.Tool {
	return tool.NewTypedTool(CalculatorName,
		"Evaluate a mathematical expression. Supports arithmetic operators, parentheses, sqrt, pow, sin, cos, tan, log, exp, abs, round, min, max, sum and the constants pi and e.",
		func(tc *core.ToolContext, args CalculatorArgs) (any, error) {
			v, err := evaluate(args.Expression)
			if err != nil {
				return nil, err
			}
			return formatNumber(v), nil
		})
}
