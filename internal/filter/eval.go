package filter

import (
	"strings"
	"time"
)

// Eval проверяет строку против запроса в памяти, повторяя семантику
// скомпилированного SQL. NULL не удовлетворяет ни одному сравнению,
// кроме isnull.
func Eval(req *Request, row map[string]any) bool {
	if req == nil || req.Empty() {
		return true
	}
	for _, leaf := range req.Leaves {
		if !evalLeaf(leaf, row) {
			return false
		}
	}
	for _, child := range req.And {
		if !Eval(child, row) {
			return false
		}
	}
	if len(req.Or) > 0 {
		matched := false
		for _, child := range req.Or {
			if Eval(child, row) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if req.Not != nil && Eval(req.Not, row) {
		return false
	}
	return true
}

func evalLeaf(l Leaf, row map[string]any) bool {
	value := fieldValue(l.Field, row)
	if l.Op == OpIsNull {
		want, _ := l.Value.(bool)
		return (value == nil) == want
	}
	if value == nil {
		return false
	}
	switch l.Op {
	case OpExact:
		return equal(value, l.Value)
	case OpIExact:
		return strings.EqualFold(asString(value), asString(l.Value))
	case OpContains:
		return strings.Contains(asString(value), asString(l.Value))
	case OpIContains:
		return strings.Contains(strings.ToLower(asString(value)), strings.ToLower(asString(l.Value)))
	case OpStartsWith:
		return strings.HasPrefix(asString(value), asString(l.Value))
	case OpIStartsWith:
		return strings.HasPrefix(strings.ToLower(asString(value)), strings.ToLower(asString(l.Value)))
	case OpEndsWith:
		return strings.HasSuffix(asString(value), asString(l.Value))
	case OpIEndsWith:
		return strings.HasSuffix(strings.ToLower(asString(value)), strings.ToLower(asString(l.Value)))
	case OpIn:
		list, _ := l.Value.([]any)
		for _, item := range list {
			if equal(value, item) {
				return true
			}
		}
		return false
	case OpGt:
		return compare(value, l.Value) > 0
	case OpLt:
		return compare(value, l.Value) < 0
	case OpGte:
		return compare(value, l.Value) >= 0
	case OpLte:
		return compare(value, l.Value) <= 0
	case OpDate:
		t, ok := asTime(value)
		day, wantOK := l.Value.(time.Time)
		if !ok || !wantOK {
			return false
		}
		y1, m1, d1 := t.UTC().Date()
		y2, m2, d2 := day.Date()
		return y1 == y2 && m1 == m2 && d1 == d2
	case OpYear:
		return yearOf(value) == intArg(l.Value)
	case OpYearGt:
		return yearOf(value) > intArg(l.Value)
	case OpYearGte:
		return yearOf(value) >= intArg(l.Value)
	case OpYearLt:
		return yearOf(value) < intArg(l.Value)
	case OpYearLte:
		return yearOf(value) <= intArg(l.Value)
	}
	return false
}

// fieldValue достаёт значение листа из строки, проходя вложенные связи.
// Связь, сериализованная вложенной строкой, сводится к её id.
func fieldValue(f *Field, row map[string]any) any {
	segments := strings.Split(f.Key, "__")
	current := any(row)
	for _, seg := range segments {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[seg]
		if current == nil {
			return nil
		}
	}
	if m, ok := current.(map[string]any); ok {
		current = m["id"]
	}
	return current
}

func equal(a, b any) bool {
	switch av := a.(type) {
	case string:
		bs, ok := b.(string)
		return ok && av == bs
	case bool:
		bb, ok := b.(bool)
		return ok && av == bb
	case time.Time:
		bt, ok := asTime(b)
		return ok && av.Equal(bt)
	}
	fa, errA := toFloat64(a)
	fb, errB := toFloat64(b)
	return errA == nil && errB == nil && fa == fb
}

// compare возвращает -1, 0 или 1; несопоставимые значения считаются равными
func compare(a, b any) int {
	fa, errA := toFloat64(a)
	fb, errB := toFloat64(b)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	if ta, ok := asTime(a); ok {
		if tb, okB := asTime(b); okB {
			switch {
			case ta.Before(tb):
				return -1
			case ta.After(tb):
				return 1
			}
			return 0
		}
	}
	return strings.Compare(asString(a), asString(b))
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

func intArg(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	}
	return 0
}

func yearOf(v any) int {
	if t, ok := asTime(v); ok {
		return t.UTC().Year()
	}
	return 0
}
