package meta

import (
	"reflect"
	"strings"

	"github.com/organigram-api/internal/domain"
)

// PreloadPath переводит точечный путь связи (structure.parent) в имя
// предзагрузки GORM (Structure.Parent)
func (r *Registry) PreloadPath(entity, path string) (string, error) {
	desc, err := r.Describe(entity)
	if err != nil {
		return "", err
	}
	segments := strings.Split(path, ".")
	names := make([]string, 0, len(segments))
	for _, seg := range segments {
		fd, ok := desc.Field(seg)
		if !ok || fd.Kind != KindForeignKey || fd.RelField == "" {
			return "", domain.NewValidationError("unknown relation %q for %s", path, entity)
		}
		names = append(names, fd.RelField)
		desc, err = r.Describe(fd.Target)
		if err != nil {
			return "", err
		}
	}
	return strings.Join(names, "."), nil
}

// ExpandRow заменяет id связи вложенной строкой по каждому из путей.
// Связь должна быть предзагружена; непредзагруженная или пустая связь
// остаётся как есть.
func (r *Registry) ExpandRow(desc *EntityDescriptor, model any, row map[string]any, paths []string) {
	v := reflect.Indirect(reflect.ValueOf(model))
	for _, path := range paths {
		r.expandPath(desc, v, row, strings.Split(path, "."))
	}
}

// ExpandRows применяет ExpandRow к срезу моделей и их строкам
func (r *Registry) ExpandRows(desc *EntityDescriptor, models any, rows []map[string]any, paths []string) {
	if len(paths) == 0 {
		return
	}
	v := reflect.Indirect(reflect.ValueOf(models))
	if v.Kind() != reflect.Slice {
		return
	}
	for i := 0; i < v.Len() && i < len(rows); i++ {
		r.ExpandRow(desc, v.Index(i).Addr().Interface(), rows[i], paths)
	}
}

func (r *Registry) expandPath(desc *EntityDescriptor, v reflect.Value, row map[string]any, segments []string) {
	if len(segments) == 0 {
		return
	}
	fd, ok := desc.Field(segments[0])
	if !ok || fd.Kind != KindForeignKey || fd.RelField == "" {
		return
	}
	relV := v.FieldByName(fd.RelField)
	if !relV.IsValid() || relV.Kind() != reflect.Ptr || relV.IsNil() {
		return
	}
	target, err := r.Describe(fd.Target)
	if err != nil {
		return
	}
	nested, ok := row[fd.Name].(map[string]any)
	if !ok {
		nested = target.Row(relV.Interface())
		row[fd.Name] = nested
	}
	r.expandPath(target, relV.Elem(), nested, segments[1:])
}
