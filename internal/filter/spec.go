package filter

import (
	"sort"
	"strings"

	"github.com/organigram-api/internal/domain"
	"github.com/organigram-api/internal/meta"
)

// Операторы фильтрации. Ключ фильтра - путь поля и суффикс оператора,
// разделённые двойным подчёркиванием: title__icontains, grade__id__in.
const (
	OpExact       = "exact"
	OpIExact      = "iexact"
	OpContains    = "contains"
	OpIContains   = "icontains"
	OpStartsWith  = "startswith"
	OpIStartsWith = "istartswith"
	OpEndsWith    = "endswith"
	OpIEndsWith   = "iendswith"
	OpIn          = "in"
	OpGt          = "gt"
	OpLt          = "lt"
	OpGte         = "gte"
	OpLte         = "lte"
	OpIsNull      = "isnull"
	OpDate        = "date"
	OpYear        = "year"
	OpYearGt      = "year__gt"
	OpYearLt      = "year__lt"
	OpYearGte     = "year__gte"
	OpYearLte     = "year__lte"
)

var (
	textOps    = []string{OpExact, OpIExact, OpContains, OpIContains, OpStartsWith, OpIStartsWith, OpEndsWith, OpIEndsWith, OpIn}
	numericOps = []string{OpExact, OpGt, OpLt, OpGte, OpLte, OpIn}
	boolOps    = []string{OpExact}
	timeOps    = []string{OpExact, OpGt, OpLt, OpGte, OpLte, OpDate, OpYear, OpYearGt, OpYearLt, OpYearGte, OpYearLte}
	fkOps      = []string{OpExact, OpIn}
	genericOps = []string{OpExact, OpIn}

	// все операторы, отсортированные по убыванию длины: при разборе ключа
	// более длинный суффикс (year__gte) должен выигрывать у короткого (gte)
	allOpsByLength []string
)

func init() {
	seen := make(map[string]bool)
	for _, set := range [][]string{textOps, numericOps, timeOps, fkOps, {OpIsNull}} {
		for _, op := range set {
			if !seen[op] {
				seen[op] = true
				allOpsByLength = append(allOpsByLength, op)
			}
		}
	}
	sort.Slice(allOpsByLength, func(i, j int) bool {
		return len(allOpsByLength[i]) > len(allOpsByLength[j])
	})
}

// Relation - один переход по внешнему ключу в пути фильтра
type Relation struct {
	Name     string
	Entity   string
	Table    string
	Column   string
	TargetPK string
}

// Field - одна фильтруемая позиция спецификации: цепочка связей,
// терминальная колонка и допустимые операторы
type Field struct {
	Key       string
	Relations []Relation
	Column    string
	Kind      meta.FieldKind
	Nullable  bool
	Target    string
	Generic   bool
	Ops       []string

	ops map[string]struct{}
}

// Allows сообщает, допустим ли оператор для поля
func (f *Field) Allows(op string) bool {
	_, ok := f.ops[op]
	return ok
}

// Spec - спецификация фильтрации сущности: отображение ключа пути
// на допустимые операторы. Строится один раз и далее только читается.
type Spec struct {
	Entity string
	Desc   *meta.EntityDescriptor
	Fields map[string]*Field
	Keys   []string

	compact map[string]string
}

// BuildSpec строит спецификацию фильтрации сущности, рекурсивно обходя
// внешние ключи до maxDepth переходов. Сущность, уже встреченная в текущей
// ветви обхода, повторно не разворачивается.
func BuildSpec(reg *meta.Registry, entity string, maxDepth int) (*Spec, error) {
	desc, err := reg.Describe(entity)
	if err != nil {
		return nil, err
	}
	s := &Spec{
		Entity: entity,
		Desc:   desc,
		Fields: make(map[string]*Field),
	}
	visited := make(map[string]bool)

	var add func(d *meta.EntityDescriptor, prefix string, chain []Relation, depth int)
	add = func(d *meta.EntityDescriptor, prefix string, chain []Relation, depth int) {
		if depth > maxDepth {
			return
		}
		visited[d.Name] = true
		defer delete(visited, d.Name)

		for _, fd := range d.Fields {
			key := prefix + fd.Name
			f := &Field{
				Key:       key,
				Relations: chain,
				Column:    fd.Column,
				Kind:      fd.Kind,
				Nullable:  fd.Nullable,
				Target:    fd.Target,
				Generic:   fd.GenericOf != "",
			}
			switch {
			case fd.GenericOf != "":
				f.Ops = append(f.Ops, genericOps...)
			case fd.Kind == meta.KindForeignKey:
				f.Ops = append(f.Ops, fkOps...)
			case fd.Kind == meta.KindText:
				f.Ops = append(f.Ops, textOps...)
			case fd.Kind.Numeric():
				f.Ops = append(f.Ops, numericOps...)
			case fd.Kind == meta.KindBool:
				f.Ops = append(f.Ops, boolOps...)
			case fd.Kind.Temporal():
				f.Ops = append(f.Ops, timeOps...)
			default:
				continue
			}
			if fd.Nullable {
				f.Ops = append(f.Ops, OpIsNull)
			}
			f.ops = make(map[string]struct{}, len(f.Ops))
			for _, op := range f.Ops {
				f.ops[op] = struct{}{}
			}
			s.Fields[key] = f
			s.Keys = append(s.Keys, key)

			if fd.Kind == meta.KindForeignKey && depth < maxDepth && !visited[fd.Target] {
				target, terr := reg.Describe(fd.Target)
				if terr != nil {
					continue
				}
				pk := "id"
				if p := target.PrimaryKey(); p != nil {
					pk = p.Column
				}
				rel := Relation{
					Name:     fd.Name,
					Entity:   fd.Target,
					Table:    target.Table,
					Column:   fd.Column,
					TargetPK: pk,
				}
				next := make([]Relation, len(chain), len(chain)+1)
				copy(next, chain)
				next = append(next, rel)
				add(target, key+"__", next, depth+1)
			}
		}
	}
	add(desc, "", nil, 0)
	s.buildCompactIndex()
	return s, nil
}

// Lookup разбирает сырой ключ фильтра (title__icontains, grade_id__in) и
// возвращает поле спецификации с оператором. Ключ без суффикса оператора
// означает точное совпадение.
func (s *Spec) Lookup(key string) (*Field, string, error) {
	if f, ok := s.Fields[key]; ok {
		return f, OpExact, nil
	}
	for _, op := range allOpsByLength {
		suffix := "__" + op
		if !strings.HasSuffix(key, suffix) {
			continue
		}
		base := strings.TrimSuffix(key, suffix)
		f, ok := s.Fields[base]
		if !ok {
			// колоночная запись внешнего ключа: grade_id__in
			if alias, aok := s.fkAlias(base); aok {
				f, ok = alias, true
			}
		}
		if ok {
			if !f.Allows(op) {
				return nil, "", domain.NewValidationError("operator %s is not supported for field %s", op, f.Key)
			}
			return f, op, nil
		}
	}
	if f, ok := s.fkAlias(key); ok {
		return f, OpExact, nil
	}
	return nil, "", domain.NewValidationError("unknown filter field %q", key)
}

// fkAlias принимает колоночную форму внешнего ключа (structure_id) и
// возвращает поле связи (structure)
func (s *Spec) fkAlias(key string) (*Field, bool) {
	if !strings.HasSuffix(key, "_id") {
		return nil, false
	}
	f, ok := s.Fields[strings.TrimSuffix(key, "_id")]
	if !ok || f.Kind != meta.KindForeignKey {
		return nil, false
	}
	return f, true
}
