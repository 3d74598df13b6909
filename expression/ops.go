package expression

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// operators that depend on the camera or on runtime state; they cannot be
// answered for a tile that has not been rendered yet.
var unsupported = map[string]bool{
	"pitch":                true,
	"distance-from-center": true,
	"feature-state":        true,
	"heatmap-density":      true,
	"line-progress":        true,
	"sky-radial-progress":  true,
	"accumulated":          true,
	"within":               true,
	"distance":             true,
	"collator":             true,
	"format":               true,
	"image":                true,
	"number-format":        true,
	"resolved-locale":      true,
	"is-supported-script":  true,
}

func parseCall(e []interface{}) (Expression, error) {
	if len(e) == 0 {
		return nil, syntaxError("expected an array with at least one element")
	}
	op, ok := e[0].(string)
	if !ok {
		return nil, syntaxError("expression name must be a string, got %T", e[0])
	}
	if unsupported[op] {
		return nil, syntaxError("%q expressions are not supported in tile filters", op)
	}
	args := e[1:]

	switch op {
	case "literal":
		if len(args) != 1 {
			return nil, syntaxError(`"literal" expects exactly one argument`)
		}
		return literal(normalize(args[0])), nil

	case "get", "has":
		return parseLookup(op, args)

	case "id":
		if len(args) != 0 {
			return nil, syntaxError(`"id" expects no arguments`)
		}
		return evalFunc(func(ctx *Context) (interface{}, error) {
			id, ok := ctx.Feature.ID()
			if !ok {
				return nil, nil
			}
			return normalize(id), nil
		}), nil

	case "geometry-type":
		if len(args) != 0 {
			return nil, syntaxError(`"geometry-type" expects no arguments`)
		}
		return evalFunc(func(ctx *Context) (interface{}, error) {
			return ctx.Feature.GeometryType(), nil
		}), nil

	case "zoom":
		if len(args) != 0 {
			return nil, syntaxError(`"zoom" expects no arguments`)
		}
		return evalFunc(func(ctx *Context) (interface{}, error) {
			return ctx.Zoom, nil
		}), nil

	case "!":
		if len(args) != 1 {
			return nil, syntaxError(`"!" expects exactly one argument`)
		}
		arg, err := Parse(args[0])
		if err != nil {
			return nil, err
		}
		return evalFunc(func(ctx *Context) (interface{}, error) {
			b, err := evalBool(arg, ctx)
			return !b, err
		}), nil

	case "all", "any":
		exprs, err := parseArgs(args)
		if err != nil {
			return nil, err
		}
		return logical(op == "all", exprs), nil

	case "==", "!=":
		if len(args) != 2 {
			return nil, syntaxError("%q expects two arguments", op)
		}
		exprs, err := parseArgs(args)
		if err != nil {
			return nil, err
		}
		negate := op == "!="
		return evalFunc(func(ctx *Context) (interface{}, error) {
			a, b, err := evalPair(exprs, ctx)
			if err != nil {
				return nil, err
			}
			return equal(a, b) != negate, nil
		}), nil

	case "<", "<=", ">", ">=":
		if len(args) != 2 {
			return nil, syntaxError("%q expects two arguments", op)
		}
		exprs, err := parseArgs(args)
		if err != nil {
			return nil, err
		}
		return evalFunc(func(ctx *Context) (interface{}, error) {
			a, b, err := evalPair(exprs, ctx)
			if err != nil {
				return nil, err
			}
			c, ok := compare(a, b)
			if !ok {
				return nil, fmt.Errorf("cannot compare %s and %s", typeName(a), typeName(b))
			}
			return compareResult(op, c), nil
		}), nil

	case "in":
		return parseIn(args)

	case "match":
		return parseMatch(args)

	case "case":
		return parseCase(args)

	case "coalesce":
		exprs, err := parseArgs(args)
		if err != nil {
			return nil, err
		}
		return evalFunc(func(ctx *Context) (interface{}, error) {
			for _, e := range exprs {
				v, err := e.Evaluate(ctx)
				if err != nil {
					return nil, err
				}
				if v != nil {
					return v, nil
				}
			}
			return nil, nil
		}), nil

	case "step":
		return parseStep(args)

	case "interpolate":
		return parseInterpolate(args)

	case "to-boolean":
		if len(args) != 1 {
			return nil, syntaxError(`"to-boolean" expects exactly one argument`)
		}
		arg, err := Parse(args[0])
		if err != nil {
			return nil, err
		}
		return evalFunc(func(ctx *Context) (interface{}, error) {
			v, err := arg.Evaluate(ctx)
			if err != nil {
				return nil, err
			}
			return truthy(v), nil
		}), nil

	case "to-number":
		return parseConversion(op, args, convertNumber)

	case "to-string":
		if len(args) != 1 {
			return nil, syntaxError(`"to-string" expects exactly one argument`)
		}
		arg, err := Parse(args[0])
		if err != nil {
			return nil, err
		}
		return evalFunc(func(ctx *Context) (interface{}, error) {
			v, err := arg.Evaluate(ctx)
			if err != nil {
				return nil, err
			}
			return stringify(v), nil
		}), nil

	case "boolean", "number", "string":
		return parseAssertion(op, args)

	case "+", "*":
		return parseArithmetic(op, args, 1, -1)

	case "-":
		return parseArithmetic(op, args, 1, 2)

	case "/", "%":
		return parseArithmetic(op, args, 2, 2)

	case "downcase", "upcase":
		if len(args) != 1 {
			return nil, syntaxError("%q expects exactly one argument", op)
		}
		arg, err := Parse(args[0])
		if err != nil {
			return nil, err
		}
		fn := strings.ToLower
		if op == "upcase" {
			fn = strings.ToUpper
		}
		return evalFunc(func(ctx *Context) (interface{}, error) {
			v, err := arg.Evaluate(ctx)
			if err != nil {
				return nil, err
			}
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("%s expected a string, got %s", op, typeName(v))
			}
			return fn(s), nil
		}), nil

	case "concat":
		exprs, err := parseArgs(args)
		if err != nil {
			return nil, err
		}
		return evalFunc(func(ctx *Context) (interface{}, error) {
			var sb strings.Builder
			for _, e := range exprs {
				v, err := e.Evaluate(ctx)
				if err != nil {
					return nil, err
				}
				sb.WriteString(stringify(v))
			}
			return sb.String(), nil
		}), nil

	default:
		return nil, syntaxError("unknown expression %q", op)
	}
}

func parseLookup(op string, args []interface{}) (Expression, error) {
	if len(args) != 1 {
		return nil, syntaxError("%q with an object argument is not supported in tile filters", op)
	}
	key, err := Parse(args[0])
	if err != nil {
		return nil, err
	}
	return evalFunc(func(ctx *Context) (interface{}, error) {
		k, err := key.Evaluate(ctx)
		if err != nil {
			return nil, err
		}
		name, ok := k.(string)
		if !ok {
			return nil, fmt.Errorf("%s expected a string key, got %s", op, typeName(k))
		}
		v, found := ctx.Feature.Property(name)
		if op == "has" {
			return found, nil
		}
		return v, nil
	}), nil
}

func logical(all bool, exprs []Expression) Expression {
	return evalFunc(func(ctx *Context) (interface{}, error) {
		for _, e := range exprs {
			b, err := evalBool(e, ctx)
			if err != nil {
				return nil, err
			}
			if b != all {
				return !all, nil
			}
		}
		return all, nil
	})
}

func parseIn(args []interface{}) (Expression, error) {
	if len(args) != 2 {
		return nil, syntaxError(`"in" expects two arguments`)
	}
	exprs, err := parseArgs(args)
	if err != nil {
		return nil, err
	}
	return evalFunc(func(ctx *Context) (interface{}, error) {
		needle, haystack, err := evalPair(exprs, ctx)
		if err != nil {
			return nil, err
		}
		switch h := haystack.(type) {
		case []interface{}:
			for _, item := range h {
				if equal(needle, item) {
					return true, nil
				}
			}
			return false, nil
		case string:
			s, ok := needle.(string)
			if !ok {
				return nil, fmt.Errorf("in expected a string needle, got %s", typeName(needle))
			}
			return strings.Contains(h, s), nil
		default:
			return nil, fmt.Errorf("in expected an array or string, got %s", typeName(haystack))
		}
	}), nil
}

func parseMatch(args []interface{}) (Expression, error) {
	if len(args) < 4 || len(args)%2 != 0 {
		return nil, syntaxError(`"match" expects an input, label/output pairs and a fallback`)
	}
	input, err := Parse(args[0])
	if err != nil {
		return nil, err
	}

	type branch struct {
		labels []interface{}
		output Expression
	}
	var branches []branch
	for i := 1; i < len(args)-1; i += 2 {
		var labels []interface{}
		if arr, ok := args[i].([]interface{}); ok {
			if len(arr) == 0 {
				return nil, syntaxError(`"match" label arrays must not be empty`)
			}
			labels = append([]interface{}(nil), arr...)
		} else {
			labels = []interface{}{args[i]}
		}
		for j, l := range labels {
			l = normalize(l)
			switch l.(type) {
			case string, float64:
			default:
				return nil, syntaxError(`"match" labels must be strings or numbers`)
			}
			labels[j] = l
		}
		out, err := Parse(args[i+1])
		if err != nil {
			return nil, err
		}
		branches = append(branches, branch{labels: labels, output: out})
	}
	fallback, err := Parse(args[len(args)-1])
	if err != nil {
		return nil, err
	}

	return evalFunc(func(ctx *Context) (interface{}, error) {
		v, err := input.Evaluate(ctx)
		if err != nil {
			return nil, err
		}
		for _, b := range branches {
			for _, l := range b.labels {
				if equal(v, l) {
					return b.output.Evaluate(ctx)
				}
			}
		}
		return fallback.Evaluate(ctx)
	}), nil
}

func parseCase(args []interface{}) (Expression, error) {
	if len(args) < 3 || len(args)%2 != 1 {
		return nil, syntaxError(`"case" expects condition/output pairs and a fallback`)
	}
	exprs, err := parseArgs(args)
	if err != nil {
		return nil, err
	}
	return evalFunc(func(ctx *Context) (interface{}, error) {
		for i := 0; i < len(exprs)-1; i += 2 {
			b, err := evalBool(exprs[i], ctx)
			if err != nil {
				return nil, err
			}
			if b {
				return exprs[i+1].Evaluate(ctx)
			}
		}
		return exprs[len(exprs)-1].Evaluate(ctx)
	}), nil
}

type stop struct {
	input  float64
	output Expression
}

func parseStops(args []interface{}) ([]stop, error) {
	if len(args)%2 != 0 {
		return nil, syntaxError("expected an even number of stop arguments")
	}
	var stops []stop
	for i := 0; i < len(args); i += 2 {
		in, ok := toNumber(args[i])
		if !ok {
			return nil, syntaxError("stop inputs must be numeric literals")
		}
		if len(stops) > 0 && in <= stops[len(stops)-1].input {
			return nil, syntaxError("stop inputs must be in strictly ascending order")
		}
		out, err := Parse(args[i+1])
		if err != nil {
			return nil, err
		}
		stops = append(stops, stop{input: in, output: out})
	}
	return stops, nil
}

func parseStep(args []interface{}) (Expression, error) {
	if len(args) < 2 {
		return nil, syntaxError(`"step" expects an input and a default output`)
	}
	input, err := Parse(args[0])
	if err != nil {
		return nil, err
	}
	first, err := Parse(args[1])
	if err != nil {
		return nil, err
	}
	stops, err := parseStops(args[2:])
	if err != nil {
		return nil, err
	}
	return evalFunc(func(ctx *Context) (interface{}, error) {
		x, err := evalNumber(input, ctx)
		if err != nil {
			return nil, err
		}
		i := sort.Search(len(stops), func(i int) bool { return stops[i].input > x })
		if i == 0 {
			return first.Evaluate(ctx)
		}
		return stops[i-1].output.Evaluate(ctx)
	}), nil
}

func parseInterpolate(args []interface{}) (Expression, error) {
	if len(args) < 4 {
		return nil, syntaxError(`"interpolate" expects a type, an input and at least one stop`)
	}
	kind, ok := args[0].([]interface{})
	if !ok || len(kind) == 0 {
		return nil, syntaxError(`"interpolate" type must be an array`)
	}
	base := 1.0
	switch kind[0] {
	case "linear":
	case "exponential":
		if len(kind) != 2 {
			return nil, syntaxError(`"exponential" interpolation expects a base`)
		}
		if base, ok = toNumber(kind[1]); !ok {
			return nil, syntaxError(`"exponential" base must be a number`)
		}
	default:
		return nil, syntaxError("unsupported interpolation type %v", kind[0])
	}
	input, err := Parse(args[1])
	if err != nil {
		return nil, err
	}
	stops, err := parseStops(args[2:])
	if err != nil {
		return nil, err
	}

	return evalFunc(func(ctx *Context) (interface{}, error) {
		x, err := evalNumber(input, ctx)
		if err != nil {
			return nil, err
		}
		i := sort.Search(len(stops), func(i int) bool { return stops[i].input > x })
		if i == 0 {
			return stops[0].output.Evaluate(ctx)
		}
		if i == len(stops) {
			return stops[i-1].output.Evaluate(ctx)
		}
		lo, hi := stops[i-1], stops[i]
		a, err := evalNumber(lo.output, ctx)
		if err != nil {
			return nil, err
		}
		b, err := evalNumber(hi.output, ctx)
		if err != nil {
			return nil, err
		}
		t := interpolationFactor(x, base, lo.input, hi.input)
		return a + t*(b-a), nil
	}), nil
}

func interpolationFactor(x, base, lo, hi float64) float64 {
	diff := hi - lo
	progress := x - lo
	if diff == 0 {
		return 0
	}
	if base == 1 {
		return progress / diff
	}
	return (math.Pow(base, progress) - 1) / (math.Pow(base, diff) - 1)
}

func parseConversion(op string, args []interface{}, conv func(interface{}) (interface{}, bool)) (Expression, error) {
	if len(args) == 0 {
		return nil, syntaxError("%q expects at least one argument", op)
	}
	exprs, err := parseArgs(args)
	if err != nil {
		return nil, err
	}
	return evalFunc(func(ctx *Context) (interface{}, error) {
		var last interface{}
		for _, e := range exprs {
			v, err := e.Evaluate(ctx)
			if err != nil {
				return nil, err
			}
			if out, ok := conv(v); ok {
				return out, nil
			}
			last = v
		}
		return nil, fmt.Errorf("could not convert %s with %s", typeName(last), op)
	}), nil
}

func convertNumber(v interface{}) (interface{}, bool) {
	switch x := v.(type) {
	case nil:
		return 0.0, true
	case bool:
		if x {
			return 1.0, true
		}
		return 0.0, true
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil, false
		}
		return f, true
	}
	return nil, false
}

func parseAssertion(op string, args []interface{}) (Expression, error) {
	return parseConversion(op, args, func(v interface{}) (interface{}, bool) {
		return v, typeName(v) == op
	})
}

func parseArithmetic(op string, args []interface{}, minArgs, maxArgs int) (Expression, error) {
	if len(args) < minArgs || (maxArgs >= 0 && len(args) > maxArgs) {
		return nil, syntaxError("wrong number of arguments for %q", op)
	}
	exprs, err := parseArgs(args)
	if err != nil {
		return nil, err
	}
	return evalFunc(func(ctx *Context) (interface{}, error) {
		acc, err := evalNumber(exprs[0], ctx)
		if err != nil {
			return nil, err
		}
		if op == "-" && len(exprs) == 1 {
			return -acc, nil
		}
		for _, e := range exprs[1:] {
			x, err := evalNumber(e, ctx)
			if err != nil {
				return nil, err
			}
			switch op {
			case "+":
				acc += x
			case "*":
				acc *= x
			case "-":
				acc -= x
			case "/":
				acc /= x
			case "%":
				acc = math.Mod(acc, x)
			}
		}
		return acc, nil
	}), nil
}

func evalPair(exprs []Expression, ctx *Context) (interface{}, interface{}, error) {
	a, err := exprs[0].Evaluate(ctx)
	if err != nil {
		return nil, nil, err
	}
	b, err := exprs[1].Evaluate(ctx)
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

func evalBool(e Expression, ctx *Context) (bool, error) {
	v, err := e.Evaluate(ctx)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("expected a boolean, got %s", typeName(v))
	}
	return b, nil
}

func evalNumber(e Expression, ctx *Context) (float64, error) {
	v, err := e.Evaluate(ctx)
	if err != nil {
		return 0, err
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("expected a number, got %s", typeName(v))
	}
	return f, nil
}

func toNumber(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	}
	return 0, false
}

func typeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// equal compares two values without type coercion.
func equal(a, b interface{}) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case float64:
		y, ok := b.(float64)
		return ok && x == y
	case string:
		y, ok := b.(string)
		return ok && x == y
	}
	return false
}

// compare orders two numbers or two strings.
func compare(a, b interface{}) (int, bool) {
	switch x := a.(type) {
	case float64:
		y, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	}
	return 0, false
}

func compareResult(op string, c int) bool {
	switch op {
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	default:
		return c >= 0
	}
}

func truthy(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0 && !math.IsNaN(x)
	case string:
		return x != ""
	}
	return true
}

func stringify(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(x)
	case float64:
		if math.Abs(x) < 1e21 {
			return strconv.FormatFloat(x, 'f', -1, 64)
		}
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
