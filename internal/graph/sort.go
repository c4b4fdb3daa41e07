package graph

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/organigram-api/internal/domain"
)

// numericSampleSize - сколько непустых значений колонки просматривается,
// чтобы решить, сравнивать её численно или как строки
const numericSampleSize = 5

// orderKey - один ключ сортировки списка: имя поля строки и направление
type orderKey struct {
	field string
	desc  bool
}

// orderKeys разбирает аргумент order_by
func orderKeys(raw any) ([]orderKey, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, nil
	}
	keys := make([]orderKey, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		field, _ := m["field"].(string)
		if field == "" {
			continue
		}
		dir, _ := m["direction"].(string)
		switch strings.ToLower(dir) {
		case "", "asc":
			keys = append(keys, orderKey{field: field})
		case "desc":
			keys = append(keys, orderKey{field: field, desc: true})
		default:
			return nil, domain.NewValidationError("invalid sort direction %q", dir)
		}
	}
	return keys, nil
}

// sortRows упорядочивает строки по ключам. Ключи применяются
// последовательными устойчивыми сортировками от последнего к первому,
// поэтому первый ключ оказывается старшим. Строки без значения поля
// оказываются в начале при любом направлении.
func sortRows(rows []map[string]any, keys []orderKey) {
	for i := len(keys) - 1; i >= 0; i-- {
		key := keys[i]
		numeric := numericColumn(rows, key.field)
		sort.SliceStable(rows, func(l, r int) bool {
			return compareCells(rows[l][key.field], rows[r][key.field], numeric, key.desc) < 0
		})
	}
}

// numericColumn решает, сравнивать ли колонку численно, по первым непустым
// значениям. Колонка без единого числового значения сравнивается строками.
func numericColumn(rows []map[string]any, field string) bool {
	seen := 0
	for _, row := range rows {
		v := row[field]
		if v == nil {
			continue
		}
		if _, ok := toNumber(v); !ok {
			return false
		}
		seen++
		if seen == numericSampleSize {
			break
		}
	}
	return seen > 0
}

func compareCells(a, b any, numeric, desc bool) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	c := strings.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
	if numeric {
		if av, ok := toNumber(a); ok {
			if bv, ok := toNumber(b); ok {
				switch {
				case av < bv:
					c = -1
				case av > bv:
					c = 1
				default:
					c = 0
				}
			}
		}
	}
	if desc {
		c = -c
	}
	return c
}

// toNumber приводит сравнимое значение к float64; метки времени
// упорядочиваются по наносекундам
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case time.Time:
		return float64(n.UnixNano()), true
	default:
		return 0, false
	}
}
