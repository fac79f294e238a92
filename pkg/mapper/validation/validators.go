package validation

import (
	"fmt"
	"net/mail"
	"reflect"
	"regexp"
	"slices"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

func builtins() map[string]Func {
	return map[string]Func{
		"notEmpty":      notEmpty,
		"required":      required,
		"email":         email,
		"lengthBetween": lengthBetween,
		"inRange":       inRange,
		"inList":        inList,
		"match":         match,
		"uuid":          isUUID,
		"equalTo":       equalTo,
		"future":        future,
		"boolean":       boolean,
	}
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []byte:
		return len(v) == 0
	case time.Time:
		return v.IsZero()
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}

	return false
}

func notEmpty(value any, _ []any, _ Context) bool {
	return !isEmpty(value)
}

// required only asks for the field to be present with a non nil value
func required(value any, _ []any, ctx Context) bool {
	_, ok := ctx.Data[ctx.Field]
	return ok && value != nil
}

func email(value any, _ []any, _ Context) bool {
	s, ok := value.(string)
	if !ok {
		return false
	}

	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

func lengthBetween(value any, params []any, _ Context) bool {
	if len(params) < 2 {
		return false
	}

	var length int
	switch v := value.(type) {
	case string:
		length = utf8.RuneCountInString(v)
	case []byte:
		length = len(v)
	default:
		return false
	}

	lo, ok1 := toFloat(params[0])
	hi, ok2 := toFloat(params[1])

	return ok1 && ok2 && float64(length) >= lo && float64(length) <= hi
}

func inRange(value any, params []any, _ Context) bool {
	if len(params) < 2 {
		return false
	}

	v, ok := toFloat(value)
	lo, ok1 := toFloat(params[0])
	hi, ok2 := toFloat(params[1])

	return ok && ok1 && ok2 && v >= lo && v <= hi
}

func inList(value any, params []any, _ Context) bool {
	return slices.ContainsFunc(params, func(p any) bool {
		return fmt.Sprint(p) == fmt.Sprint(value)
	})
}

func match(value any, params []any, _ Context) bool {
	if len(params) < 1 {
		return false
	}

	s, ok := value.(string)
	pattern, ok2 := params[0].(string)
	if !ok || !ok2 {
		return false
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}

	return re.MatchString(s)
}

func isUUID(value any, _ []any, _ Context) bool {
	s, ok := value.(string)
	if !ok {
		return false
	}

	_, err := uuid.Parse(s)
	return err == nil
}

// equalTo compares the value with another field of the same snapshot
func equalTo(value any, params []any, ctx Context) bool {
	if len(params) < 1 {
		return false
	}

	other, ok := params[0].(string)
	if !ok {
		return false
	}

	return reflect.DeepEqual(value, ctx.Data[other])
}

func future(value any, _ []any, ctx Context) bool {
	t, ok := value.(time.Time)
	return ok && t.After(ctx.Now)
}

func boolean(value any, _ []any, _ Context) bool {
	_, ok := value.(bool)
	return ok
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
