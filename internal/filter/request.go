package filter

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/organigram-api/internal/domain"
	"github.com/organigram-api/internal/meta"
)

// Leaf - листовое ограничение фильтра: поле, оператор и приведённое значение
type Leaf struct {
	Field *Field
	Op    string
	Value any
}

// Request - запрос фильтрации: набор листовых ограничений (соединяются
// через AND) и/или булева композиция вложенных запросов той же формы
type Request struct {
	Leaves []Leaf
	And    []*Request
	Or     []*Request
	Not    *Request
}

// Empty сообщает, пуст ли запрос
func (r *Request) Empty() bool {
	return r == nil || (len(r.Leaves) == 0 && len(r.And) == 0 && len(r.Or) == 0 && r.Not == nil)
}

// Reserved - параметры строки запроса, не являющиеся фильтрами
var Reserved = map[string]bool{
	"search":    true,
	"ordering":  true,
	"expand":    true,
	"page":      true,
	"page_size": true,
	"all":       true,
	"strategy":  true,
}

// ParseQuery разбирает параметры строки запроса REST в запрос фильтрации.
// Ключи используют двойное подчёркивание (grade__name__icontains); значения
// оператора in разделяются запятыми. Неизвестный ключ или непригодное
// значение - ошибка валидации.
func ParseQuery(spec *Spec, values url.Values) (*Request, error) {
	keys := make([]string, 0, len(values))
	for k := range values {
		if !Reserved[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	req := &Request{}
	for _, k := range keys {
		f, op, err := spec.Lookup(k)
		if err != nil {
			return nil, err
		}
		v, err := coerceString(f, op, values.Get(k))
		if err != nil {
			return nil, err
		}
		req.Leaves = append(req.Leaves, Leaf{Field: f, Op: op, Value: v})
	}
	return req, nil
}

// ParseMap разбирает объект фильтра GraphQL. Ключи используют одиночное
// подчёркивание (grade_name_icontains) и раскладываются по графу внешних
// ключей; AND, OR и NOT рекурсивно содержат объекты той же формы.
func ParseMap(spec *Spec, input map[string]any) (*Request, error) {
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	req := &Request{}
	for _, k := range keys {
		v := input[k]
		if v == nil {
			continue
		}
		switch k {
		case "AND", "OR":
			list, ok := v.([]any)
			if !ok {
				return nil, domain.NewValidationError("%s must be a list of filters", k)
			}
			for _, item := range list {
				m, ok := item.(map[string]any)
				if !ok {
					return nil, domain.NewValidationError("%s items must be filter objects", k)
				}
				child, err := ParseMap(spec, m)
				if err != nil {
					return nil, err
				}
				if k == "AND" {
					req.And = append(req.And, child)
				} else {
					req.Or = append(req.Or, child)
				}
			}
		case "NOT":
			m, ok := v.(map[string]any)
			if !ok {
				return nil, domain.NewValidationError("NOT must be a filter object")
			}
			child, err := ParseMap(spec, m)
			if err != nil {
				return nil, err
			}
			req.Not = child
		default:
			f, op, err := spec.LookupCompact(k)
			if err != nil {
				return nil, err
			}
			val, err := coerceAny(f, op, v)
			if err != nil {
				return nil, err
			}
			req.Leaves = append(req.Leaves, Leaf{Field: f, Op: op, Value: val})
		}
	}
	return req, nil
}

func coerceString(f *Field, op, raw string) (any, error) {
	switch op {
	case OpIsNull:
		b, err := strconv.ParseBool(strings.ToLower(raw))
		if err != nil {
			return nil, domain.NewValidationError("invalid boolean %q for %s__isnull", raw, f.Key)
		}
		return b, nil
	case OpIn:
		parts := strings.Split(raw, ",")
		out := make([]any, 0, len(parts))
		for _, p := range parts {
			v, err := coerceScalarString(f, strings.TrimSpace(p))
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case OpYear, OpYearGt, OpYearLt, OpYearGte, OpYearLte:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, domain.NewValidationError("invalid year %q for field %s", raw, f.Key)
		}
		return n, nil
	case OpDate:
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, domain.NewValidationError("invalid date %q for field %s", raw, f.Key)
		}
		return t, nil
	default:
		return coerceScalarString(f, raw)
	}
}

func coerceScalarString(f *Field, raw string) (any, error) {
	switch {
	case f.Kind == meta.KindForeignKey:
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, domain.NewValidationError("invalid id %q for field %s", raw, f.Key)
		}
		return id, nil
	case f.Kind == meta.KindText:
		return raw, nil
	case f.Kind == meta.KindInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, domain.NewValidationError("invalid integer %q for field %s", raw, f.Key)
		}
		return n, nil
	case f.Kind == meta.KindFloat:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, domain.NewValidationError("invalid number %q for field %s", raw, f.Key)
		}
		return n, nil
	case f.Kind == meta.KindBool:
		b, err := strconv.ParseBool(strings.ToLower(raw))
		if err != nil {
			return nil, domain.NewValidationError("invalid boolean %q for field %s", raw, f.Key)
		}
		return b, nil
	case f.Kind.Temporal():
		return parseTime(f, raw)
	default:
		return nil, domain.NewValidationError("field %s is not filterable", f.Key)
	}
}

func coerceAny(f *Field, op string, raw any) (any, error) {
	switch op {
	case OpIsNull:
		b, ok := raw.(bool)
		if !ok {
			return nil, domain.NewValidationError("isnull for field %s expects a boolean", f.Key)
		}
		return b, nil
	case OpIn:
		list, ok := raw.([]any)
		if !ok {
			return nil, domain.NewValidationError("in for field %s expects a list", f.Key)
		}
		out := make([]any, 0, len(list))
		for _, item := range list {
			v, err := coerceScalarAny(f, item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case OpYear, OpYearGt, OpYearLt, OpYearGte, OpYearLte:
		n, err := toInt64(raw)
		if err != nil {
			return nil, domain.NewValidationError("invalid year %v for field %s", raw, f.Key)
		}
		return int(n), nil
	case OpDate:
		switch v := raw.(type) {
		case time.Time:
			return v, nil
		case string:
			return coerceString(f, OpDate, v)
		}
		return nil, domain.NewValidationError("invalid date %v for field %s", raw, f.Key)
	default:
		return coerceScalarAny(f, raw)
	}
}

func coerceScalarAny(f *Field, raw any) (any, error) {
	switch {
	case f.Kind == meta.KindForeignKey:
		id, err := toInt64(raw)
		if err != nil {
			return nil, domain.NewValidationError("invalid id %v for field %s", raw, f.Key)
		}
		return id, nil
	case f.Kind == meta.KindText:
		s, ok := raw.(string)
		if !ok {
			return nil, domain.NewValidationError("field %s expects a string, got %v", f.Key, raw)
		}
		return s, nil
	case f.Kind == meta.KindInteger:
		n, err := toInt64(raw)
		if err != nil {
			return nil, domain.NewValidationError("invalid integer %v for field %s", raw, f.Key)
		}
		return n, nil
	case f.Kind == meta.KindFloat:
		n, err := toFloat64(raw)
		if err != nil {
			return nil, domain.NewValidationError("invalid number %v for field %s", raw, f.Key)
		}
		return n, nil
	case f.Kind == meta.KindBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, domain.NewValidationError("field %s expects a boolean, got %v", f.Key, raw)
		}
		return b, nil
	case f.Kind.Temporal():
		switch v := raw.(type) {
		case time.Time:
			return v, nil
		case string:
			return parseTime(f, v)
		}
		return nil, domain.NewValidationError("invalid datetime %v for field %s", raw, f.Key)
	default:
		return nil, domain.NewValidationError("field %s is not filterable", f.Key)
	}
}

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

func parseTime(f *Field, raw string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, domain.NewValidationError("invalid datetime %q for field %s", raw, f.Key)
}

func toInt64(raw any) (int64, error) {
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	}
	return 0, fmt.Errorf("not an integer: %v", raw)
}

func toFloat64(raw any) (float64, error) {
	switch v := raw.(type) {
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	case string:
		return strconv.ParseFloat(v, 64)
	}
	return 0, fmt.Errorf("not a number: %v", raw)
}
