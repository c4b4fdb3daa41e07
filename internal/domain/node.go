package domain

import "fmt"

// NodeKind - тег варианта для ссылок на узлы схемы
type NodeKind string

// Допустимые варианты узла
const (
	NodeKindStructure NodeKind = "structure"
	NodeKindPosition  NodeKind = "position"
)

// Valid сообщает, является ли значение известным вариантом
func (k NodeKind) Valid() bool {
	return k == NodeKindStructure || k == NodeKindPosition
}

// NodeRef - типизированная ссылка (вид, id) на Structure или Position.
// Используется концами рёбер и кешем координат вместо обычного внешнего ключа.
type NodeRef struct {
	Kind NodeKind `json:"type"`
	ID   int64    `json:"id"`
}

// Equal сравнивает ссылки по виду и идентификатору
func (r NodeRef) Equal(other NodeRef) bool {
	return r.Kind == other.Kind && r.ID == other.ID
}

// String возвращает текстовое представление ссылки
func (r NodeRef) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}
