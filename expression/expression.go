// Package expression evaluates map style filters against vector tile
// features.
//
// Both the legacy filter syntax (["==", "class", "river"]) and the
// expression syntax (["==", ["get", "class"], "river"]) are accepted. Legacy
// filters are converted to expressions when parsed.
package expression

import (
	"errors"
	"fmt"
)

// ErrSyntax is wrapped by every parse error.
var ErrSyntax = errors.New("invalid filter expression")

// Feature is the read-only view of a feature that filters evaluate against.
type Feature interface {
	// GeometryType returns "Point", "LineString", "Polygon" or "Unknown".
	GeometryType() string
	// ID returns the feature identifier, if it has one.
	ID() (interface{}, bool)
	// Property returns the value of a property as a string, float64, bool
	// or nil.
	Property(key string) (interface{}, bool)
}

// Context pairs a zoom level with the feature being evaluated.
type Context struct {
	Zoom    float64
	Feature Feature
}

// Expression is a parsed expression.
type Expression interface {
	Evaluate(ctx *Context) (interface{}, error)
}

type evalFunc func(ctx *Context) (interface{}, error)

func (f evalFunc) Evaluate(ctx *Context) (interface{}, error) {
	return f(ctx)
}

func syntaxError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrSyntax, fmt.Sprintf(format, args...))
}

// Filter is a parsed boolean style filter.
type Filter struct {
	expr   Expression
	always bool
}

var alwaysTrue = &Filter{always: true}

// True returns the filter that matches every feature. It is what a style
// layer without a filter turns into.
func True() *Filter {
	return alwaysTrue
}

// IsAlwaysTrue reports whether the filter is the match-everything filter
// returned by True, meaning no per-feature evaluation is needed.
func (f *Filter) IsAlwaysTrue() bool {
	return f.always
}

// Match evaluates the filter at the given zoom. Evaluation errors, such as
// comparing a string with a number, count as a non-match.
func (f *Filter) Match(zoom float64, feature Feature) bool {
	if f.always {
		return true
	}
	res, err := f.expr.Evaluate(&Context{Zoom: zoom, Feature: feature})
	if err != nil {
		return false
	}
	b, ok := res.(bool)
	return ok && b
}

const mixedSyntaxMessage = "Unable to create Filter object, ensure all filters are expression-based"

// ParseFilter parses a JSON-decoded filter. The boolean true yields the
// filter returned by True.
func ParseFilter(v interface{}) (*Filter, error) {
	switch f := v.(type) {
	case bool:
		if f {
			return True(), nil
		}
		return &Filter{expr: literal(false)}, nil

	case []interface{}:
		if isExpression(f) {
			expr, err := Parse(f)
			if err != nil {
				return nil, err
			}
			return &Filter{expr: expr}, nil
		}
		expr, err := convertLegacy(f)
		if errors.Is(err, errLegacyProperty) {
			return nil, syntaxError(mixedSyntaxMessage)
		} else if err != nil {
			return nil, err
		}
		return &Filter{expr: expr}, nil

	default:
		return nil, syntaxError("filter must be an array or a boolean, got %T", v)
	}
}

// isExpression tells legacy filters apart from expressions, following the
// rules used by the GL renderers.
func isExpression(filter []interface{}) bool {
	if len(filter) == 0 {
		return false
	}
	op, ok := filter[0].(string)
	if !ok {
		return false
	}

	switch op {
	case "has":
		if len(filter) < 2 {
			return false
		}
		key, _ := filter[1].(string)
		return key != "$id" && key != "$type"

	case "in":
		if len(filter) < 3 {
			return false
		}
		_, keyIsString := filter[1].(string)
		_, listIsArray := filter[2].([]interface{})
		return !keyIsString || listIsArray

	case "!in", "!has", "none":
		return false

	case "==", "!=", ">", ">=", "<", "<=":
		if len(filter) != 3 {
			return true
		}
		_, a := filter[1].([]interface{})
		_, b := filter[2].([]interface{})
		return a || b

	case "any", "all":
		for _, child := range filter[1:] {
			if arr, ok := child.([]interface{}); ok {
				if !isExpression(arr) {
					return false
				}
			} else if _, ok := child.(bool); !ok {
				return false
			}
		}
		return true

	default:
		return true
	}
}

// Parse parses a JSON-decoded value written in expression syntax.
func Parse(v interface{}) (Expression, error) {
	switch e := v.(type) {
	case nil, bool, string:
		return literal(e), nil
	case []interface{}:
		return parseCall(e)
	case map[string]interface{}:
		return nil, syntaxError(`bare objects invalid, use ["literal", {...}] instead`)
	default:
		if n, ok := toNumber(v); ok {
			return literal(n), nil
		}
		return nil, syntaxError("unsupported value of type %T", v)
	}
}

func literal(v interface{}) Expression {
	return evalFunc(func(*Context) (interface{}, error) {
		return v, nil
	})
}

func parseArgs(args []interface{}) ([]Expression, error) {
	exprs := make([]Expression, len(args))
	for i, a := range args {
		e, err := Parse(a)
		if err != nil {
			return nil, err
		}
		exprs[i] = e
	}
	return exprs, nil
}

// normalize converts literal values so numbers are always float64.
func normalize(v interface{}) interface{} {
	switch x := v.(type) {
	case []interface{}:
		out := make([]interface{}, len(x))
		for i := range x {
			out[i] = normalize(x[i])
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, val := range x {
			out[k] = normalize(val)
		}
		return out
	}
	if n, ok := toNumber(v); ok {
		return n
	}
	return v
}
