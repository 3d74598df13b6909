package expression

import (
	"errors"
	"fmt"
)

var errLegacyProperty = errors.New("filter property must be a string")

// convertLegacy turns a legacy filter into an expression.
func convertLegacy(f []interface{}) (Expression, error) {
	if len(f) == 0 {
		return nil, syntaxError("filter operator must be a string")
	}
	op, ok := f[0].(string)
	if !ok {
		return nil, syntaxError("filter operator must be a string")
	}

	switch op {
	case "all", "any", "none":
		children := make([]Expression, 0, len(f)-1)
		for _, c := range f[1:] {
			var e Expression
			switch child := c.(type) {
			case []interface{}:
				var err error
				if e, err = convertLegacy(child); err != nil {
					return nil, err
				}
			case bool:
				e = literal(child)
			default:
				return nil, syntaxError("filter operator must be a string")
			}
			children = append(children, e)
		}
		if op == "none" {
			anyOf := logical(false, children)
			return evalFunc(func(ctx *Context) (interface{}, error) {
				b, err := evalBool(anyOf, ctx)
				return !b, err
			}), nil
		}
		return logical(op == "all", children), nil

	case "==", "!=", "<", "<=", ">", ">=":
		if len(f) != 3 {
			return nil, syntaxError("filter %q expects a property and a value", op)
		}
		key, err := legacyKey(f[1])
		if err != nil {
			return nil, err
		}
		value := normalize(f[2])
		get := legacyGetter(key)
		if op == "==" || op == "!=" {
			negate := op == "!="
			return evalFunc(func(ctx *Context) (interface{}, error) {
				v, ok := get(ctx)
				return (ok && equal(v, value)) != negate, nil
			}), nil
		}
		return evalFunc(func(ctx *Context) (interface{}, error) {
			v, ok := get(ctx)
			if !ok {
				return false, nil
			}
			c, comparable := compare(v, value)
			return comparable && compareResult(op, c), nil
		}), nil

	case "in", "!in":
		if len(f) < 2 {
			return nil, syntaxError("filter %q expects a property", op)
		}
		key, err := legacyKey(f[1])
		if err != nil {
			return nil, err
		}
		values := make([]interface{}, len(f)-2)
		for i, v := range f[2:] {
			values[i] = normalize(v)
		}
		get := legacyGetter(key)
		negate := op == "!in"
		return evalFunc(func(ctx *Context) (interface{}, error) {
			v, ok := get(ctx)
			found := false
			if ok {
				for _, candidate := range values {
					if equal(v, candidate) {
						found = true
						break
					}
				}
			}
			return found != negate, nil
		}), nil

	case "has", "!has":
		if len(f) != 2 {
			return nil, syntaxError("filter %q expects a property", op)
		}
		key, err := legacyKey(f[1])
		if err != nil {
			return nil, err
		}
		get := legacyGetter(key)
		negate := op == "!has"
		return evalFunc(func(ctx *Context) (interface{}, error) {
			_, ok := get(ctx)
			return ok != negate, nil
		}), nil

	default:
		return nil, syntaxError("unknown filter operator %q", op)
	}
}

func legacyKey(v interface{}) (string, error) {
	key, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %w", ErrSyntax, errLegacyProperty)
	}
	return key, nil
}

// legacyGetter resolves the special $type and $id keys.
func legacyGetter(key string) func(*Context) (interface{}, bool) {
	switch key {
	case "$type":
		return func(ctx *Context) (interface{}, bool) {
			return ctx.Feature.GeometryType(), true
		}
	case "$id":
		return func(ctx *Context) (interface{}, bool) {
			id, ok := ctx.Feature.ID()
			return normalize(id), ok
		}
	default:
		return func(ctx *Context) (interface{}, bool) {
			return ctx.Feature.Property(key)
		}
	}
}
