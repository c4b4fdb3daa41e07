package meta

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/go-openapi/inflect"
	"gorm.io/gorm/schema"
)

// Registry - реестр дескрипторов сущностей. Заполняется на старте процесса
// в два этапа: Register выделяет дескриптор-заготовку для каждой модели,
// Finalize достраивает поля и связи, когда все цели внешних ключей уже
// зарегистрированы. После Finalize реестр только читается.
type Registry struct {
	namer      schema.Namer
	cacheStore *sync.Map
	pending    []*registration
	entities   map[string]*EntityDescriptor
	byType     map[reflect.Type]*EntityDescriptor
	unions     map[string]*Union
	order      []string
	finalized  bool
}

type registration struct {
	name string
	sch  *schema.Schema
}

// RegisterOption настраивает регистрацию сущности
type RegisterOption func(*EntityDescriptor)

// WithName переопределяет имя сущности (по умолчанию snake_case имени типа)
func WithName(name string) RegisterOption {
	return func(d *EntityDescriptor) { d.Name = name }
}

// WithRoute переопределяет имя REST-ресурса (по умолчанию множественное число через дефис)
func WithRoute(route string) RegisterOption {
	return func(d *EntityDescriptor) { d.Route = route }
}

// WithComputed добавляет вычисляемое поле
func WithComputed(name string, resolve func(map[string]any, RowFetcher) (any, error)) RegisterOption {
	return func(d *EntityDescriptor) {
		d.Computed = append(d.Computed, &ComputedField{Name: name, Resolve: resolve})
	}
}

// WithGeneric объявляет обобщённую ссылку (пара колонок тип+id)
func WithGeneric(g GenericRelation) RegisterOption {
	return func(d *EntityDescriptor) {
		gc := g
		d.Generics = append(d.Generics, &gc)
	}
}

// WithScope регистрирует сущность-вариант, ограниченную значением дискриминатора
func WithScope(field, value string) RegisterOption {
	return func(d *EntityDescriptor) {
		d.Scope = &Scope{Field: field, Value: value}
	}
}

// WithPolymorphic объявляет сущность полиморфной базой с перечисленными вариантами
func WithPolymorphic(discriminator string, variants ...PolymorphicVariant) RegisterOption {
	return func(d *EntityDescriptor) {
		d.Polymorphic = &Polymorphic{Discriminator: discriminator, Variants: variants}
	}
}

// WithDefaultOrder задаёт сортировку списков по умолчанию
func WithDefaultOrder(order string) RegisterOption {
	return func(d *EntityDescriptor) { d.DefaultOrder = order }
}

// NewRegistry создаёт пустой реестр
func NewRegistry() *Registry {
	return &Registry{
		namer:      schema.NamingStrategy{},
		cacheStore: &sync.Map{},
		entities:   make(map[string]*EntityDescriptor),
		byType:     make(map[reflect.Type]*EntityDescriptor),
		unions:     make(map[string]*Union),
	}
}

// AddUnion объявляет именованное объединение сущностей
func (r *Registry) AddUnion(name string, members ...string) {
	r.unions[name] = &Union{Name: name, Members: members}
}

// Register разбирает GORM-схему модели и выделяет дескриптор сущности.
// Поля и связи достраивает Finalize.
func (r *Registry) Register(model any, opts ...RegisterOption) error {
	if r.finalized {
		return fmt.Errorf("meta: registry is finalized")
	}
	sch, err := schema.Parse(model, r.cacheStore, r.namer)
	if err != nil {
		return fmt.Errorf("meta: parse model %T: %w", model, err)
	}

	desc := &EntityDescriptor{
		GoName:    sch.Name,
		Table:     sch.Table,
		Model:     model,
		ModelType: sch.ModelType,
	}
	for _, opt := range opts {
		opt(desc)
	}
	if desc.Name == "" {
		desc.Name = inflect.Underscore(sch.Name)
	}
	if desc.Route == "" {
		desc.Route = inflect.Dasherize(inflect.Pluralize(desc.Name))
	}
	if desc.DefaultOrder == "" {
		desc.DefaultOrder = "id ASC"
	}
	desc.GraphName = inflect.Camelize(desc.Name)

	if _, dup := r.entities[desc.Name]; dup {
		return fmt.Errorf("meta: entity %q is already registered", desc.Name)
	}
	r.entities[desc.Name] = desc
	r.order = append(r.order, desc.Name)
	r.pending = append(r.pending, &registration{name: desc.Name, sch: sch})
	if desc.Scope == nil {
		if _, exists := r.byType[sch.ModelType]; !exists {
			r.byType[sch.ModelType] = desc
		}
	}
	return nil
}

// Finalize достраивает дескрипторы: сначала поля всех сущностей, затем
// обратные связи (им нужны уже построенные поля целей). После успешного
// завершения реестр неизменяем.
func (r *Registry) Finalize() error {
	if r.finalized {
		return nil
	}
	for _, reg := range r.pending {
		if err := r.buildFields(r.entities[reg.name], reg.sch); err != nil {
			return err
		}
	}
	for _, reg := range r.pending {
		r.buildReverse(r.entities[reg.name], reg.sch)
	}
	if err := r.validate(); err != nil {
		return err
	}
	r.pending = nil
	r.finalized = true
	return nil
}

func (r *Registry) buildFields(desc *EntityDescriptor, sch *schema.Schema) error {
	fkByColumn := make(map[string]*schema.Relationship)
	for _, rel := range sch.Relationships.BelongsTo {
		if len(rel.References) != 1 {
			continue
		}
		fkByColumn[rel.References[0].ForeignKey.DBName] = rel
	}

	genericOf := make(map[string]string)
	for _, g := range desc.Generics {
		genericOf[g.TypeField] = g.Name
		genericOf[g.IDField] = g.Name
	}

	desc.byName = make(map[string]*FieldDescriptor)
	desc.byColumn = make(map[string]*FieldDescriptor)

	for _, sf := range sch.Fields {
		if sf.DBName == "" {
			continue
		}
		var fd *FieldDescriptor
		if rel, ok := fkByColumn[sf.DBName]; ok {
			target, known := r.byType[rel.FieldSchema.ModelType]
			if !known {
				return fmt.Errorf("meta: entity %s: foreign key %s targets unregistered model %s",
					desc.Name, sf.DBName, rel.FieldSchema.Name)
			}
			fd = &FieldDescriptor{
				Name:     r.namer.ColumnName("", rel.Name),
				Kind:     KindForeignKey,
				Target:   target.Name,
				RelField: rel.Name,
			}
		} else {
			kind, err := classifyField(sf)
			if err != nil {
				return fmt.Errorf("meta: entity %s: %w", desc.Name, err)
			}
			fd = &FieldDescriptor{
				Name:      sf.DBName,
				Kind:      kind,
				GenericOf: genericOf[sf.DBName],
			}
		}
		fd.GoName = sf.Name
		fd.Column = sf.DBName
		fd.Nullable = sf.FieldType.Kind() == reflect.Ptr
		fd.PrimaryKey = sf.PrimaryKey
		fd.HasDefault = sf.HasDefaultValue
		fd.AutoManaged = sf.PrimaryKey || sf.AutoCreateTime != 0 || sf.AutoUpdateTime != 0
		if desc.Scope != nil && fd.Name == desc.Scope.Field {
			fd.AutoManaged = true
		}
		fd.Required = !fd.Nullable && !fd.HasDefault && !fd.AutoManaged

		desc.Fields = append(desc.Fields, fd)
		desc.byName[fd.Name] = fd
		desc.byColumn[fd.Column] = fd
	}

	if desc.Scope != nil {
		f, ok := desc.byName[desc.Scope.Field]
		if !ok {
			return fmt.Errorf("meta: entity %s: scope field %q not found", desc.Name, desc.Scope.Field)
		}
		desc.Scope.Column = f.Column
	}
	_, desc.SoftDelete = desc.byName["is_deleted"]
	return nil
}

func (r *Registry) buildReverse(desc *EntityDescriptor, sch *schema.Schema) {
	if desc.Scope != nil {
		return
	}
	for _, rel := range sch.Relationships.HasMany {
		if len(rel.References) != 1 {
			continue
		}
		target, known := r.byType[rel.FieldSchema.ModelType]
		if !known {
			continue
		}
		column := rel.References[0].ForeignKey.DBName
		fk := ""
		if tf, ok := target.FieldByColumn(column); ok {
			fk = tf.Name
		}
		desc.Reverse = append(desc.Reverse, &ReverseRelation{
			Name:         r.namer.ColumnName("", rel.Name),
			GoName:       rel.Name,
			Target:       target.Name,
			TargetFK:     fk,
			TargetColumn: column,
		})
	}
}

func (r *Registry) validate() error {
	for _, u := range r.unions {
		for _, m := range u.Members {
			if _, ok := r.entities[m]; !ok {
				return fmt.Errorf("meta: union %s references unknown entity %q", u.Name, m)
			}
		}
	}
	for _, name := range r.order {
		desc := r.entities[name]
		if desc.Polymorphic != nil {
			if _, ok := desc.byName[desc.Polymorphic.Discriminator]; !ok {
				return fmt.Errorf("meta: entity %s: discriminator %q not found",
					name, desc.Polymorphic.Discriminator)
			}
			for _, v := range desc.Polymorphic.Variants {
				vd, ok := r.entities[v.Entity]
				if !ok {
					return fmt.Errorf("meta: entity %s: variant %q is not registered", name, v.Entity)
				}
				if vd.Scope == nil || vd.Table != desc.Table {
					return fmt.Errorf("meta: variant %s must be a scoped view over table %s", v.Entity, desc.Table)
				}
			}
		}
		for _, g := range desc.Generics {
			if _, ok := r.unions[g.Union]; !ok {
				return fmt.Errorf("meta: entity %s: generic relation %s references unknown union %q",
					name, g.Name, g.Union)
			}
		}
	}
	return nil
}

// Describe возвращает дескриптор сущности по имени
func (r *Registry) Describe(name string) (*EntityDescriptor, error) {
	if !r.finalized {
		return nil, fmt.Errorf("meta: registry is not finalized")
	}
	d, ok := r.entities[name]
	if !ok {
		return nil, fmt.Errorf("meta: unknown entity %q", name)
	}
	return d, nil
}

// MustDescribe возвращает дескриптор или паникует; используется при сборке приложения
func (r *Registry) MustDescribe(name string) *EntityDescriptor {
	d, err := r.Describe(name)
	if err != nil {
		panic(err)
	}
	return d
}

// Entities возвращает все дескрипторы в порядке регистрации
func (r *Registry) Entities() []*EntityDescriptor {
	out := make([]*EntityDescriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entities[name])
	}
	return out
}

// Union возвращает объединение по имени
func (r *Registry) Union(name string) (*Union, bool) {
	u, ok := r.unions[name]
	return u, ok
}

// UnionMember возвращает дескриптор участника объединения по тегу типа
func (r *Registry) UnionMember(union, kind string) (*EntityDescriptor, bool) {
	u, ok := r.unions[union]
	if !ok || !u.Member(kind) {
		return nil, false
	}
	d, ok := r.entities[kind]
	return d, ok
}

// ForeignKeyPaths возвращает все допустимые цепочки внешних ключей сущности
// в точечной нотации ("structure.parent"), глубиной до maxDepth. Сущность,
// уже встреченная в текущей ветви обхода, повторно не разворачивается.
func (r *Registry) ForeignKeyPaths(entity string, maxDepth int) []string {
	desc, err := r.Describe(entity)
	if err != nil {
		return nil
	}
	active := make(map[string]bool)
	var walk func(d *EntityDescriptor, prefix string, depth int) []string
	walk = func(d *EntityDescriptor, prefix string, depth int) []string {
		if depth >= maxDepth || active[d.Name] {
			return nil
		}
		active[d.Name] = true
		var paths []string
		for _, fk := range d.ForeignKeys() {
			p := fk.Name
			if prefix != "" {
				p = prefix + "." + fk.Name
			}
			paths = append(paths, p)
			if t, ok := r.entities[fk.Target]; ok {
				paths = append(paths, walk(t, p, depth+1)...)
			}
		}
		delete(active, d.Name)
		return paths
	}
	return walk(desc, "", 0)
}

func classifyField(sf *schema.Field) (FieldKind, error) {
	t := sf.IndirectFieldType
	if t == reflect.TypeOf(time.Time{}) {
		if tagType, ok := sf.TagSettings["TYPE"]; ok && tagType == "date" {
			return KindDate, nil
		}
		return KindDateTime, nil
	}
	switch t.Kind() {
	case reflect.String:
		return KindText, nil
	case reflect.Bool:
		return KindBool, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return KindInteger, nil
	case reflect.Float32, reflect.Float64:
		return KindFloat, nil
	default:
		return "", fmt.Errorf("unsupported field type %s for %s", t, sf.Name)
	}
}
