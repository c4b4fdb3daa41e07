package domain

import (
	"time"
)

// Grade представляет грейд (ранг) должности; меньший level означает более высокий ранг
type Grade struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Name        string    `json:"name" gorm:"type:varchar(255);not null;uniqueIndex:uq_grades_name_level"`
	Level       int       `json:"level" gorm:"not null;uniqueIndex:uq_grades_name_level"`
	Category    *string   `json:"category" gorm:"type:varchar(100)"`
	Color       string    `json:"color" gorm:"type:varchar(7);not null;default:#3B82F6"`
	Description *string   `json:"description" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Positions []Position `json:"-" gorm:"foreignKey:GradeID"`
}

// TableName задаёт имя таблицы для GORM
func (Grade) TableName() string {
	return "grades"
}

// StructureType представляет тип организационной единицы
type StructureType struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string    `json:"name" gorm:"type:varchar(100);not null;uniqueIndex"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName задаёт имя таблицы для GORM
func (StructureType) TableName() string {
	return "structure_types"
}

// Structure представляет организационную единицу; корень схемы помечается is_main
type Structure struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Name        string    `json:"name" gorm:"type:varchar(255);not null"`
	ParentID    *int64    `json:"parent_id" gorm:"index"`
	TypeID      *int64    `json:"type_id" gorm:"index"`
	ManagerID   *int64    `json:"manager_id" gorm:"index"`
	IsMain      bool      `json:"is_main" gorm:"not null;default:false;index"`
	InitialNode bool      `json:"initial_node" gorm:"not null;default:false"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Parent    *Structure     `json:"-" gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE"`
	Type      *StructureType `json:"-" gorm:"foreignKey:TypeID;constraint:OnDelete:SET NULL"`
	Manager   *Position      `json:"-" gorm:"foreignKey:ManagerID;constraint:OnDelete:SET NULL"`
	Children  []Structure    `json:"-" gorm:"foreignKey:ParentID"`
	Positions []Position     `json:"-" gorm:"foreignKey:StructureID"`
}

// TableName задаёт имя таблицы для GORM
func (Structure) TableName() string {
	return "structures"
}

// Position представляет должность внутри организационной единицы
type Position struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	StructureID int64     `json:"structure_id" gorm:"not null;index"`
	Title       string    `json:"title" gorm:"type:varchar(255);not null"`
	GradeID     *int64    `json:"grade_id" gorm:"index"`
	Level       *int      `json:"level" gorm:"index"`
	IsManager   bool      `json:"is_manager" gorm:"not null;default:false"`
	Color       string    `json:"color" gorm:"type:varchar(7);not null;default:#3B82F6"`
	Mission     *string   `json:"mission" gorm:"type:text"`
	Tasks       *string   `json:"tasks" gorm:"type:text"`
	Formation   *string   `json:"formation" gorm:"type:text"`
	PositionX   float64   `json:"position_x" gorm:"not null;default:0"`
	PositionY   float64   `json:"position_y" gorm:"not null;default:0"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Structure *Structure       `json:"-" gorm:"foreignKey:StructureID;constraint:OnDelete:CASCADE"`
	Grade     *Grade           `json:"-" gorm:"foreignKey:GradeID;constraint:OnDelete:SET NULL"`
	Details   []PositionDetail `json:"-" gorm:"foreignKey:PositionID"`
}

// TableName задаёт имя таблицы для GORM
func (Position) TableName() string {
	return "positions"
}

// DetailKind различает виды записей PositionDetail
type DetailKind = string

// Допустимые значения дискриминатора kind
const (
	DetailKindTask       DetailKind = "task"
	DetailKindMission    DetailKind = "mission"
	DetailKindCompetence DetailKind = "competence"
)

// PositionDetail представляет запись-деталь должности: задачу, миссию или компетенцию.
// Конкретный вид определяется дискриминатором Kind (single-table вариант).
type PositionDetail struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	PositionID  int64     `json:"position_id" gorm:"not null;index"`
	Kind        string    `json:"kind" gorm:"type:varchar(20);not null;index"`
	Description string    `json:"description" gorm:"type:text;not null"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Position *Position `json:"-" gorm:"foreignKey:PositionID;constraint:OnDelete:CASCADE"`
}

// TableName задаёт имя таблицы для GORM
func (PositionDetail) TableName() string {
	return "position_details"
}

// OrganigramEdge представляет направленное ребро схемы; концы ребра задаются
// парой (тип, id) и могут указывать как на Structure, так и на Position
type OrganigramEdge struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	StructureID int64     `json:"structure_id" gorm:"not null;index;uniqueIndex:uq_edges_target,priority:1"`
	SourceType  NodeKind  `json:"source_type" gorm:"type:varchar(20);not null;index:idx_edges_source"`
	SourceID    int64     `json:"source_id" gorm:"not null;index:idx_edges_source"`
	TargetType  NodeKind  `json:"target_type" gorm:"type:varchar(20);not null;uniqueIndex:uq_edges_target,priority:2"`
	TargetID    int64     `json:"target_id" gorm:"not null;uniqueIndex:uq_edges_target,priority:3"`
	EdgeType    string    `json:"edge_type" gorm:"type:varchar(50);not null;default:smoothstep"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`

	Structure *Structure `json:"-" gorm:"foreignKey:StructureID;constraint:OnDelete:CASCADE"`
}

// TableName задаёт имя таблицы для GORM
func (OrganigramEdge) TableName() string {
	return "organigram_edges"
}

// Source возвращает ссылку на начало ребра
func (e *OrganigramEdge) Source() NodeRef {
	return NodeRef{Kind: e.SourceType, ID: e.SourceID}
}

// Target возвращает ссылку на конец ребра
func (e *OrganigramEdge) Target() NodeRef {
	return NodeRef{Kind: e.TargetType, ID: e.TargetID}
}

// DiagramPosition кеширует координаты узла в рамках конкретной главной схемы,
// поэтому один узел может иметь разные координаты в разных диаграммах
type DiagramPosition struct {
	ID              int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	NodeType        NodeKind  `json:"node_type" gorm:"type:varchar(20);not null;uniqueIndex:uq_diagram_node"`
	NodeID          int64     `json:"node_id" gorm:"not null;uniqueIndex:uq_diagram_node"`
	MainStructureID int64     `json:"main_structure_id" gorm:"not null;uniqueIndex:uq_diagram_node"`
	PositionX       float64   `json:"position_x" gorm:"not null;default:0"`
	PositionY       float64   `json:"position_y" gorm:"not null;default:0"`
	CreatedAt       time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	MainStructure *Structure `json:"-" gorm:"foreignKey:MainStructureID;constraint:OnDelete:CASCADE"`
}

// TableName задаёт имя таблицы для GORM
func (DiagramPosition) TableName() string {
	return "diagram_positions"
}

// Models возвращает все доменные модели; используется для авто-миграции в режиме sqlite
func Models() []any {
	return []any{
		&Grade{},
		&StructureType{},
		&Structure{},
		&Position{},
		&PositionDetail{},
		&OrganigramEdge{},
		&DiagramPosition{},
	}
}
