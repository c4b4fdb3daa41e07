package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/organigram-api/internal/domain"
	"github.com/organigram-api/internal/filter"
	"github.com/organigram-api/internal/meta"
)

// ListQuery описывает запрос списка: фильтр, поиск, сортировка, страница
// и пути связей для предзагрузки
type ListQuery struct {
	Spec     *filter.Spec
	Filter   *filter.Request
	Search   string
	Ordering []string
	Offset   int
	Limit    int
	Expand   []string
}

// BulkItem - одна запись массового обновления
type BulkItem struct {
	ID    int64
	Attrs map[string]any
}

// ResourceRepository - универсальный репозиторий зарегистрированных сущностей.
// Конкретная сущность задаётся именем из реестра; строки сериализуются
// в карты по дескриптору.
type ResourceRepository interface {
	List(ctx context.Context, q ListQuery) ([]map[string]any, int64, error)
	Get(ctx context.Context, entity string, id int64, expand []string) (map[string]any, error)
	Create(ctx context.Context, entity string, attrs map[string]any) (map[string]any, error)
	Update(ctx context.Context, entity string, id int64, attrs map[string]any) (map[string]any, error)
	Delete(ctx context.Context, entity string, id int64) error
	BulkCreate(ctx context.Context, entity string, items []map[string]any) ([]map[string]any, error)
	BulkUpdate(ctx context.Context, entity string, items []BulkItem) ([]map[string]any, error)
	BulkDelete(ctx context.Context, entity string, ids []int64) (int64, error)
	Exists(ctx context.Context, entity string, id int64) (bool, error)
	Count(ctx context.Context, entity string) (int64, error)
}

type resourceRepository struct {
	db  *gorm.DB
	reg *meta.Registry
}

// NewResourceRepository создаёт новый экземпляр репозитория
func NewResourceRepository(db *gorm.DB, reg *meta.Registry) ResourceRepository {
	return &resourceRepository{db: db, reg: reg}
}

func (r *resourceRepository) List(ctx context.Context, q ListQuery) ([]map[string]any, int64, error) {
	desc := q.Spec.Desc
	tx := r.scoped(r.db.WithContext(ctx).Model(desc.NewInstance()), desc)

	joined := make(map[string]bool)
	join := func(db *gorm.DB, joins []filter.Join) *gorm.DB {
		for _, j := range joins {
			if joined[j.Alias] {
				continue
			}
			joined[j.Alias] = true
			db = db.Joins(fmt.Sprintf("LEFT JOIN %s %s ON %s", j.Table, j.Alias, j.On))
		}
		return db
	}

	if !q.Filter.Empty() {
		cond := filter.ToSQL(q.Spec, q.Filter)
		tx = join(tx, cond.Joins)
		if cond.Where != "" {
			tx = tx.Where(cond.Where, cond.Args...)
		}
	}
	if q.Search != "" {
		if cond := filter.Search(q.Spec, q.Search); !cond.Empty() {
			tx = tx.Where(cond.Where, cond.Args...)
		}
	}
	tx = tx.Session(&gorm.Session{})

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := tx
	var order []string
	for _, key := range q.Ordering {
		clause, joins, err := filter.OrderClause(q.Spec, key)
		if err != nil {
			return nil, 0, err
		}
		query = join(query, joins)
		order = append(order, clause)
	}
	if len(order) == 0 {
		order = append(order, qualifyOrder(desc))
	}
	query = query.Order(strings.Join(order, ", "))

	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	if q.Offset > 0 {
		query = query.Offset(q.Offset)
	}

	preloads, err := r.preloads(desc.Name, q.Expand)
	if err != nil {
		return nil, 0, err
	}
	for _, p := range preloads {
		query = query.Preload(p)
	}

	dest := desc.NewSlice()
	if err := query.Find(dest).Error; err != nil {
		return nil, 0, err
	}
	rows := desc.Rows(dest)
	r.reg.ExpandRows(desc, dest, rows, q.Expand)
	return rows, total, nil
}

func (r *resourceRepository) Get(ctx context.Context, entity string, id int64, expand []string) (map[string]any, error) {
	desc, err := r.reg.Describe(entity)
	if err != nil {
		return nil, err
	}
	tx := r.scoped(r.db.WithContext(ctx), desc)

	preloads, err := r.preloads(entity, expand)
	if err != nil {
		return nil, err
	}
	for _, p := range preloads {
		tx = tx.Preload(p)
	}

	model := desc.NewInstance()
	if err := tx.First(model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &domain.NotFoundError{Entity: desc.GraphName, ID: id}
		}
		return nil, err
	}
	row := desc.Row(model)
	r.reg.ExpandRow(desc, model, row, expand)
	return row, nil
}

func (r *resourceRepository) Create(ctx context.Context, entity string, attrs map[string]any) (map[string]any, error) {
	desc, err := r.reg.Describe(entity)
	if err != nil {
		return nil, err
	}
	model := desc.NewInstance()
	if err := assign(desc, model, attrs); err != nil {
		return nil, err
	}
	applyScope(desc, model)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return nil, translate(desc, err)
	}
	return desc.Row(model), nil
}

func (r *resourceRepository) Update(ctx context.Context, entity string, id int64, attrs map[string]any) (map[string]any, error) {
	desc, err := r.reg.Describe(entity)
	if err != nil {
		return nil, err
	}
	model := desc.NewInstance()
	tx := r.scoped(r.db.WithContext(ctx), desc)
	if err := tx.First(model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &domain.NotFoundError{Entity: desc.GraphName, ID: id}
		}
		return nil, err
	}
	if err := assign(desc, model, attrs); err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return nil, translate(desc, err)
	}
	return desc.Row(model), nil
}

func (r *resourceRepository) Delete(ctx context.Context, entity string, id int64) error {
	desc, err := r.reg.Describe(entity)
	if err != nil {
		return err
	}
	result := r.scoped(r.db.WithContext(ctx), desc).Delete(desc.NewInstance(), id)
	if result.Error != nil {
		return translate(desc, result.Error)
	}
	if result.RowsAffected == 0 {
		return &domain.NotFoundError{Entity: desc.GraphName, ID: id}
	}
	return nil
}

func (r *resourceRepository) BulkCreate(ctx context.Context, entity string, items []map[string]any) ([]map[string]any, error) {
	desc, err := r.reg.Describe(entity)
	if err != nil {
		return nil, err
	}
	rows := make([]map[string]any, 0, len(items))
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, attrs := range items {
			model := desc.NewInstance()
			if err := assign(desc, model, attrs); err != nil {
				return err
			}
			applyScope(desc, model)
			if err := tx.Create(model).Error; err != nil {
				return translate(desc, err)
			}
			rows = append(rows, desc.Row(model))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *resourceRepository) BulkUpdate(ctx context.Context, entity string, items []BulkItem) ([]map[string]any, error) {
	desc, err := r.reg.Describe(entity)
	if err != nil {
		return nil, err
	}
	rows := make([]map[string]any, 0, len(items))
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range items {
			model := desc.NewInstance()
			scoped := r.scoped(tx, desc)
			if err := scoped.First(model, item.ID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return &domain.NotFoundError{Entity: desc.GraphName, ID: item.ID}
				}
				return err
			}
			if err := assign(desc, model, item.Attrs); err != nil {
				return err
			}
			if err := tx.Save(model).Error; err != nil {
				return translate(desc, err)
			}
			rows = append(rows, desc.Row(model))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *resourceRepository) BulkDelete(ctx context.Context, entity string, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	desc, err := r.reg.Describe(entity)
	if err != nil {
		return 0, err
	}
	result := r.scoped(r.db.WithContext(ctx), desc).
		Where(desc.Table+".id IN ?", ids).
		Delete(desc.NewInstance())
	if result.Error != nil {
		return 0, translate(desc, result.Error)
	}
	return result.RowsAffected, nil
}

func (r *resourceRepository) Exists(ctx context.Context, entity string, id int64) (bool, error) {
	desc, err := r.reg.Describe(entity)
	if err != nil {
		return false, err
	}
	var count int64
	err = r.scoped(r.db.WithContext(ctx).Model(desc.NewInstance()), desc).
		Where(desc.Table+".id = ?", id).
		Count(&count).Error
	return count > 0, err
}

func (r *resourceRepository) Count(ctx context.Context, entity string) (int64, error) {
	desc, err := r.reg.Describe(entity)
	if err != nil {
		return 0, err
	}
	var count int64
	err = r.scoped(r.db.WithContext(ctx).Model(desc.NewInstance()), desc).Count(&count).Error
	return count, err
}

// scoped добавляет условие дискриминатора для сущностей-вариантов
func (r *resourceRepository) scoped(tx *gorm.DB, desc *meta.EntityDescriptor) *gorm.DB {
	if desc.Scope == nil {
		return tx
	}
	return tx.Where(desc.Table+"."+desc.Scope.Column+" = ?", desc.Scope.Value)
}

func (r *resourceRepository) preloads(entity string, expand []string) ([]string, error) {
	if len(expand) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(expand))
	for _, path := range expand {
		name, err := r.reg.PreloadPath(entity, path)
		if err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, nil
}

func qualifyOrder(desc *meta.EntityDescriptor) string {
	parts := strings.Split(desc.DefaultOrder, ",")
	for i, p := range parts {
		parts[i] = desc.Table + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// applyScope выставляет значение дискриминатора перед записью варианта
func applyScope(desc *meta.EntityDescriptor, model any) {
	if desc.Scope == nil {
		return
	}
	fd, ok := desc.Field(desc.Scope.Field)
	if !ok {
		return
	}
	fv := reflect.ValueOf(model).Elem().FieldByName(fd.GoName)
	if fv.IsValid() && fv.CanSet() && fv.Kind() == reflect.String {
		fv.SetString(desc.Scope.Value)
	}
}

// assign записывает значения из карты атрибутов в поля модели.
// Карта уже приведена к типам полей сервисным слоем; авто-управляемые
// поля пропускаются.
func assign(desc *meta.EntityDescriptor, model any, attrs map[string]any) error {
	v := reflect.ValueOf(model).Elem()
	for name, raw := range attrs {
		fd, ok := desc.Field(name)
		if !ok {
			return domain.NewValidationError("unknown field %q for %s", name, desc.Name)
		}
		if fd.AutoManaged {
			continue
		}
		fv := v.FieldByName(fd.GoName)
		if !fv.IsValid() || !fv.CanSet() {
			continue
		}
		if err := setValue(fv, raw, fd); err != nil {
			return err
		}
	}
	return nil
}

func setValue(fv reflect.Value, raw any, fd *meta.FieldDescriptor) error {
	if raw == nil {
		if fv.Kind() == reflect.Ptr {
			fv.Set(reflect.Zero(fv.Type()))
			return nil
		}
		return domain.NewValidationError("field %s cannot be null", fd.Name)
	}
	target := fv
	if fv.Kind() == reflect.Ptr {
		target = reflect.New(fv.Type().Elem()).Elem()
	}
	switch target.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := rawInt64(raw)
		if !ok {
			return domain.NewValidationError("field %s expects an integer, got %v", fd.Name, raw)
		}
		target.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, ok := rawFloat64(raw)
		if !ok {
			return domain.NewValidationError("field %s expects a number, got %v", fd.Name, raw)
		}
		target.SetFloat(f)
	case reflect.Bool:
		b, ok := raw.(bool)
		if !ok {
			return domain.NewValidationError("field %s expects a boolean, got %v", fd.Name, raw)
		}
		target.SetBool(b)
	case reflect.String:
		s, ok := raw.(string)
		if !ok {
			return domain.NewValidationError("field %s expects a string, got %v", fd.Name, raw)
		}
		target.SetString(s)
	default:
		rv := reflect.ValueOf(raw)
		if t, ok := raw.(time.Time); ok && target.Type() == reflect.TypeOf(time.Time{}) {
			target.Set(reflect.ValueOf(t))
		} else if rv.Type().AssignableTo(target.Type()) {
			target.Set(rv)
		} else {
			return domain.NewValidationError("field %s has unsupported value %v", fd.Name, raw)
		}
	}
	if fv.Kind() == reflect.Ptr {
		p := reflect.New(fv.Type().Elem())
		p.Elem().Set(target)
		fv.Set(p)
	}
	return nil
}

func rawInt64(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v == float64(int64(v)) {
			return int64(v), true
		}
	}
	return 0, false
}

func rawFloat64(raw any) (float64, bool) {
	switch v := raw.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

// translate сопоставляет ошибки драйвера с доменной таксономией
func translate(desc *meta.EntityDescriptor, err error) error {
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &domain.ConstraintError{Message: fmt.Sprintf("%s violates a unique constraint", desc.GraphName)}
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: %s references a missing row", domain.ErrReferenceNotFound, desc.GraphName)
	}
	return err
}
