package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/organigram-api/internal/domain"
)

// Join - соединение таблицы связи; псевдоним повторяет путь фильтра
type Join struct {
	Alias string
	Table string
	On    string
}

// SQL - скомпилированное условие фильтра: соединения, WHERE и аргументы.
// Представлено данными, чтобы условие можно было проверять без БД.
type SQL struct {
	Joins []Join
	Where string
	Args  []any
}

// Empty сообщает, пусто ли условие
func (s *SQL) Empty() bool {
	return s == nil || s.Where == ""
}

// ToSQL компилирует запрос фильтрации в условие WHERE с соединениями
func ToSQL(spec *Spec, req *Request) *SQL {
	c := &compiler{spec: spec, seen: make(map[string]bool)}
	where := c.request(req)
	return &SQL{Joins: c.joins, Where: where, Args: c.args}
}

type compiler struct {
	spec  *Spec
	joins []Join
	seen  map[string]bool
	args  []any
}

func (c *compiler) request(req *Request) string {
	if req.Empty() {
		return ""
	}
	var parts []string
	for _, leaf := range req.Leaves {
		parts = append(parts, c.leaf(leaf))
	}
	for _, child := range req.And {
		if sub := c.request(child); sub != "" {
			parts = append(parts, "("+sub+")")
		}
	}
	if len(req.Or) > 0 {
		var ors []string
		for _, child := range req.Or {
			if sub := c.request(child); sub != "" {
				ors = append(ors, "("+sub+")")
			}
		}
		if len(ors) > 0 {
			parts = append(parts, "("+strings.Join(ors, " OR ")+")")
		}
	}
	if req.Not != nil {
		if sub := c.request(req.Not); sub != "" {
			parts = append(parts, "NOT ("+sub+")")
		}
	}
	return strings.Join(parts, " AND ")
}

// columnRef возвращает квалифицированную колонку листа, добавляя
// недостающие соединения по цепочке связей
func (c *compiler) columnRef(f *Field) string {
	alias := c.spec.Desc.Table
	path := ""
	for _, rel := range f.Relations {
		if path == "" {
			path = rel.Name
		} else {
			path = path + "__" + rel.Name
		}
		owner := alias
		alias = path
		if !c.seen[alias] {
			c.seen[alias] = true
			c.joins = append(c.joins, Join{
				Alias: alias,
				Table: rel.Table,
				On:    fmt.Sprintf("%s.%s = %s.%s", owner, rel.Column, alias, rel.TargetPK),
			})
		}
	}
	return alias + "." + f.Column
}

func (c *compiler) leaf(l Leaf) string {
	col := c.columnRef(l.Field)
	switch l.Op {
	case OpExact:
		c.args = append(c.args, l.Value)
		return col + " = ?"
	case OpIExact:
		c.args = append(c.args, l.Value)
		return "LOWER(" + col + ") = LOWER(?)"
	case OpContains:
		return c.like(col, l.Value, "%", "%", false)
	case OpIContains:
		return c.like(col, l.Value, "%", "%", true)
	case OpStartsWith:
		return c.like(col, l.Value, "", "%", false)
	case OpIStartsWith:
		return c.like(col, l.Value, "", "%", true)
	case OpEndsWith:
		return c.like(col, l.Value, "%", "", false)
	case OpIEndsWith:
		return c.like(col, l.Value, "%", "", true)
	case OpIn:
		list, _ := l.Value.([]any)
		if len(list) == 0 {
			return "1 = 0"
		}
		c.args = append(c.args, list...)
		return col + " IN (" + placeholders(len(list)) + ")"
	case OpGt:
		c.args = append(c.args, l.Value)
		return col + " > ?"
	case OpLt:
		c.args = append(c.args, l.Value)
		return col + " < ?"
	case OpGte:
		c.args = append(c.args, l.Value)
		return col + " >= ?"
	case OpLte:
		c.args = append(c.args, l.Value)
		return col + " <= ?"
	case OpIsNull:
		if b, _ := l.Value.(bool); b {
			return col + " IS NULL"
		}
		return col + " IS NOT NULL"
	case OpDate:
		day, _ := l.Value.(time.Time)
		start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
		c.args = append(c.args, start, start.AddDate(0, 0, 1))
		return "(" + col + " >= ? AND " + col + " < ?)"
	case OpYear:
		y, _ := l.Value.(int)
		c.args = append(c.args, yearStart(y), yearStart(y+1))
		return "(" + col + " >= ? AND " + col + " < ?)"
	case OpYearGt:
		y, _ := l.Value.(int)
		c.args = append(c.args, yearStart(y+1))
		return col + " >= ?"
	case OpYearGte:
		y, _ := l.Value.(int)
		c.args = append(c.args, yearStart(y))
		return col + " >= ?"
	case OpYearLt:
		y, _ := l.Value.(int)
		c.args = append(c.args, yearStart(y))
		return col + " < ?"
	case OpYearLte:
		y, _ := l.Value.(int)
		c.args = append(c.args, yearStart(y+1))
		return col + " < ?"
	default:
		c.args = append(c.args, l.Value)
		return col + " = ?"
	}
}

func (c *compiler) like(col string, value any, before, after string, fold bool) string {
	s, _ := value.(string)
	c.args = append(c.args, before+escapeLike(s)+after)
	if fold {
		return "LOWER(" + col + ") LIKE LOWER(?) ESCAPE '\\'"
	}
	return col + " LIKE ? ESCAPE '\\'"
}

func yearStart(year int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

// Search строит условие полнотекстового поиска: OR из icontains
// по всем текстовым полям сущности
func Search(spec *Spec, term string) *SQL {
	if term == "" {
		return &SQL{}
	}
	var parts []string
	var args []any
	for _, name := range spec.Desc.TextFields() {
		fd, ok := spec.Desc.Field(name)
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("LOWER(%s.%s) LIKE LOWER(?) ESCAPE '\\'", spec.Desc.Table, fd.Column))
		args = append(args, "%"+escapeLike(term)+"%")
	}
	if len(parts) == 0 {
		return &SQL{}
	}
	return &SQL{Where: "(" + strings.Join(parts, " OR ") + ")", Args: args}
}

// OrderClause проверяет ключ сортировки и возвращает ORDER BY с нужными
// соединениями. Допускается любое поле сущности и не более одного перехода
// по внешнему ключу (grade__level); префикс "-" задаёт убывание.
func OrderClause(spec *Spec, ordering string) (string, []Join, error) {
	direction := "ASC"
	key := ordering
	if strings.HasPrefix(key, "-") {
		direction = "DESC"
		key = strings.TrimPrefix(key, "-")
	}
	f, ok := spec.Fields[key]
	if !ok {
		return "", nil, domain.NewValidationError("unknown ordering field %q", key)
	}
	if len(f.Relations) > 1 {
		return "", nil, domain.NewValidationError("ordering by %s crosses more than one relation", key)
	}
	c := &compiler{spec: spec, seen: make(map[string]bool)}
	col := c.columnRef(f)
	return col + " " + direction, c.joins, nil
}
