package meta

import (
	"reflect"
	"time"
)

// FieldKind классифицирует поле сущности по семантическому типу
type FieldKind string

// Допустимые семантические типы полей
const (
	KindText       FieldKind = "text"
	KindInteger    FieldKind = "integer"
	KindFloat      FieldKind = "float"
	KindBool       FieldKind = "boolean"
	KindDate       FieldKind = "date"
	KindDateTime   FieldKind = "datetime"
	KindForeignKey FieldKind = "foreign_key"
)

// Numeric сообщает, сравнивается ли поле как число
func (k FieldKind) Numeric() bool {
	return k == KindInteger || k == KindFloat
}

// Temporal сообщает, является ли поле датой или временем
func (k FieldKind) Temporal() bool {
	return k == KindDate || k == KindDateTime
}

// FieldDescriptor описывает одно хранимое поле сущности.
// Для внешних ключей Name содержит имя связи ("grade"), а Column - колонку ("grade_id").
type FieldDescriptor struct {
	Name        string
	GoName      string
	Column      string
	Kind        FieldKind
	Nullable    bool
	PrimaryKey  bool
	HasDefault  bool
	AutoManaged bool
	Required    bool
	Target      string
	RelField    string
	GenericOf   string
}

// RowFetcher загружает строку сущности по первичному ключу; используется
// вычисляемыми полями, когда связь не была предзагружена
type RowFetcher func(entity string, id int64) (map[string]any, error)

// ComputedField - вычисляемое (виртуальное) поле, сериализуемое вместе со строкой
type ComputedField struct {
	Name    string
	Resolve func(row map[string]any, fetch RowFetcher) (any, error)
}

// GenericRelation описывает обобщённую ссылку: пара колонок (тип, id),
// указывающая на одну из сущностей объединения Union
type GenericRelation struct {
	Name      string
	TypeField string
	IDField   string
	Union     string
}

// Union - именованное объединение сущностей для обобщённых ссылок
type Union struct {
	Name    string
	Members []string
}

// Member сообщает, входит ли сущность в объединение
func (u *Union) Member(entity string) bool {
	for _, m := range u.Members {
		if m == entity {
			return true
		}
	}
	return false
}

// Scope ограничивает сущность-вариант значением дискриминатора базовой таблицы
type Scope struct {
	Field  string
	Column string
	Value  string
}

// PolymorphicVariant связывает значение дискриминатора с сущностью-вариантом
type PolymorphicVariant struct {
	Value  string
	Entity string
}

// Polymorphic описывает полиморфную (tagged-union) базовую сущность
type Polymorphic struct {
	Discriminator string
	Variants      []PolymorphicVariant
}

// VariantFor возвращает имя сущности-варианта для значения дискриминатора
func (p *Polymorphic) VariantFor(value string) (string, bool) {
	for _, v := range p.Variants {
		if v.Value == value {
			return v.Entity, true
		}
	}
	return "", false
}

// ReverseRelation описывает обратную связь (один-ко-многим) на другую сущность
type ReverseRelation struct {
	Name         string
	GoName       string
	Target       string
	TargetFK     string
	TargetColumn string
}

// EntityDescriptor - метаданные зарегистрированной сущности: поля, связи,
// вычисляемые поля и полиморфная информация. Создаётся реестром один раз
// на старте процесса и далее не изменяется.
type EntityDescriptor struct {
	Name         string
	GoName       string
	GraphName    string
	Table        string
	Route        string
	Model        any
	ModelType    reflect.Type
	Fields       []*FieldDescriptor
	Reverse      []*ReverseRelation
	Computed     []*ComputedField
	Generics     []*GenericRelation
	Scope        *Scope
	Polymorphic  *Polymorphic
	SoftDelete   bool
	DefaultOrder string

	byName   map[string]*FieldDescriptor
	byColumn map[string]*FieldDescriptor
}

// Field возвращает дескриптор поля по имени
func (d *EntityDescriptor) Field(name string) (*FieldDescriptor, bool) {
	f, ok := d.byName[name]
	return f, ok
}

// FieldByColumn возвращает дескриптор поля по имени колонки
func (d *EntityDescriptor) FieldByColumn(column string) (*FieldDescriptor, bool) {
	f, ok := d.byColumn[column]
	return f, ok
}

// PrimaryKey возвращает поле первичного ключа
func (d *EntityDescriptor) PrimaryKey() *FieldDescriptor {
	for _, f := range d.Fields {
		if f.PrimaryKey {
			return f
		}
	}
	return nil
}

// TextFields возвращает имена всех текстовых полей; по ним работает поиск
func (d *EntityDescriptor) TextFields() []string {
	var names []string
	for _, f := range d.Fields {
		if f.Kind == KindText && f.GenericOf == "" {
			names = append(names, f.Name)
		}
	}
	return names
}

// ForeignKeys возвращает дескрипторы всех полей-внешних ключей
func (d *EntityDescriptor) ForeignKeys() []*FieldDescriptor {
	var fks []*FieldDescriptor
	for _, f := range d.Fields {
		if f.Kind == KindForeignKey {
			fks = append(fks, f)
		}
	}
	return fks
}

// Generic возвращает обобщённую ссылку по имени
func (d *EntityDescriptor) Generic(name string) (*GenericRelation, bool) {
	for _, g := range d.Generics {
		if g.Name == name {
			return g, true
		}
	}
	return nil, false
}

// NewInstance создаёт новый указатель на значение модели
func (d *EntityDescriptor) NewInstance() any {
	return reflect.New(d.ModelType).Interface()
}

// NewSlice создаёт указатель на пустой срез значений модели; GORM заполняет его при Find
func (d *EntityDescriptor) NewSlice() any {
	return reflect.New(reflect.SliceOf(d.ModelType)).Interface()
}

// Row сериализует значение модели в плоскую карту "имя поля - значение".
// Внешние ключи выводятся как id под именем связи; указатели разыменовываются,
// nil остаётся nil. Вычисляемые поля сюда не входят, их добавляет сервис.
func (d *EntityDescriptor) Row(model any) map[string]any {
	v := reflect.Indirect(reflect.ValueOf(model))
	row := make(map[string]any, len(d.Fields))
	for _, f := range d.Fields {
		fv := v.FieldByName(f.GoName)
		if !fv.IsValid() {
			continue
		}
		row[f.Name] = normalizeValue(fv)
	}
	return row
}

// Rows сериализует срез моделей (значение или указатель на срез)
func (d *EntityDescriptor) Rows(models any) []map[string]any {
	v := reflect.Indirect(reflect.ValueOf(models))
	if v.Kind() != reflect.Slice {
		return nil
	}
	out := make([]map[string]any, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		out = append(out, d.Row(v.Index(i).Addr().Interface()))
	}
	return out
}

// PrimaryKeyValue извлекает значение первичного ключа из модели
func (d *EntityDescriptor) PrimaryKeyValue(model any) int64 {
	pk := d.PrimaryKey()
	if pk == nil {
		return 0
	}
	v := reflect.Indirect(reflect.ValueOf(model)).FieldByName(pk.GoName)
	if !v.IsValid() {
		return 0
	}
	return v.Int()
}

func normalizeValue(v reflect.Value) any {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if t, ok := v.Interface().(time.Time); ok {
		return t
	}
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(v.Uint())
	case reflect.Float32, reflect.Float64:
		return v.Float()
	case reflect.Bool:
		return v.Bool()
	case reflect.String:
		return v.String()
	default:
		return v.Interface()
	}
}
