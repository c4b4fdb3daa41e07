package dto

// ListResponse - постраничный конверт списка любого ресурса
type ListResponse struct {
	Status      string           `json:"status"`
	Count       int64            `json:"count"`
	Next        *string          `json:"next"`
	Previous    *string          `json:"previous"`
	TotalPages  int64            `json:"total_pages"`
	CurrentPage int64            `json:"current_page"`
	Results     []map[string]any `json:"results"`
}

// DetailResponse - конверт одиночной записи
type DetailResponse struct {
	Status string         `json:"status"`
	Data   map[string]any `json:"data"`
}

// MutationResponse - конверт создания или обновления записи
type MutationResponse struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// MessageResponse - конверт операции без тела ответа
type MessageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// BulkDataResponse - конверт массовой операции, возвращающей записи
type BulkDataResponse struct {
	Status  string           `json:"status"`
	Message string           `json:"message"`
	Data    []map[string]any `json:"data,omitempty"`
}

// ErrorResponse - стандартный ответ с ошибкой
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// PageQuery - параметры пагинации списка
type PageQuery struct {
	Page     int64
	PageSize int64
	All      bool
}

// ListResult - результат постраничной выборки; ссылки next/previous
// достраивает обработчик по URL запроса
type ListResult struct {
	Count       int64
	TotalPages  int64
	CurrentPage int64
	HasNext     bool
	HasPrev     bool
	Results     []map[string]any
}

// BulkCreateRequest - массовое создание записей одного ресурса
type BulkCreateRequest struct {
	Items []map[string]any `json:"items" validate:"required,min=1"`
}

// BulkUpdateRequest - массовое обновление; каждая запись несёт свой id
type BulkUpdateRequest struct {
	Items []map[string]any `json:"items" validate:"required,min=1"`
}

// BulkDeleteRequest - массовое удаление по списку id
type BulkDeleteRequest struct {
	IDs []int64 `json:"ids" validate:"required,min=1"`
}

// GradeBulkItem - строка валидируемого массового создания грейдов
type GradeBulkItem struct {
	Name        string  `json:"name" validate:"required,min=1,max=255"`
	Level       *int    `json:"level" validate:"required"`
	Category    *string `json:"category" validate:"omitempty,max=100"`
	Color       *string `json:"color" validate:"omitempty,hexcolor"`
	Description *string `json:"description"`
}

// GradeBulkResponse - итог валидируемого массового создания: счётчики
// и ошибки по номерам строк
type GradeBulkResponse struct {
	Message      string   `json:"message"`
	CreatedCount int      `json:"created_count"`
	TotalRows    int      `json:"total_rows"`
	Errors       []string `json:"errors,omitempty"`
}

// DetailBulkRequest - массовое создание записей деталей одной должности;
// вид записей (missions или competences) определяет маршрут
type DetailBulkRequest struct {
	Position    int64    `json:"position" validate:"required,min=1"`
	Missions    []string `json:"missions"`
	Competences []string `json:"competences"`
}

// CoordinateItem - новые координаты одной должности
type CoordinateItem struct {
	ID int64   `json:"id" validate:"required,min=1"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// BulkCoordinatesRequest - массовое перемещение должностей на схеме
type BulkCoordinatesRequest struct {
	Updates []CoordinateItem `json:"updates" validate:"required,min=1,dive"`
}

// PositionCoordinate - вычисленные раскладкой координаты должности
type PositionCoordinate struct {
	ID        int64   `json:"id"`
	PositionX float64 `json:"position_x"`
	PositionY float64 `json:"position_y"`
}

// AutoOrganizeResponse - итог автоматической раскладки должностей
type AutoOrganizeResponse struct {
	Message string               `json:"message"`
	Updates []PositionCoordinate `json:"updates,omitempty"`
}

// StatusResponse - ответ, состоящий из одного статуса
type StatusResponse struct {
	Status string `json:"status"`
}

// UpdateEdgeSourceRequest - смена источника входящего ребра должности
type UpdateEdgeSourceRequest struct {
	SourceID int64 `json:"source_id" validate:"required,min=1"`
}

// GradeInfo - краткие сведения о грейде внутри дерева
type GradeInfo struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Level int    `json:"level"`
	Color string `json:"color"`
}

// TreePosition - должность внутри дерева структуры
type TreePosition struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	Level     *int       `json:"level"`
	IsManager bool       `json:"is_manager"`
	Color     string     `json:"color"`
	Grade     *GradeInfo `json:"grade"`
	PositionX float64    `json:"position_x"`
	PositionY float64    `json:"position_y"`
}

// StructureTypeInfo - тип организационной единицы внутри дерева
type StructureTypeInfo struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// StructureTreeNode - узел дерева структуры с вложенными детьми
type StructureTreeNode struct {
	ID          int64               `json:"id"`
	Name        string              `json:"name"`
	ParentID    *int64              `json:"parent_id"`
	IsMain      bool                `json:"is_main"`
	InitialNode bool                `json:"initial_node"`
	Type        *StructureTypeInfo  `json:"type"`
	Positions   []TreePosition      `json:"positions"`
	Children    []StructureTreeNode `json:"children"`
}

// TreeResponse - конверт дерева структуры
type TreeResponse struct {
	Status string             `json:"status"`
	Data   *StructureTreeNode `json:"data"`
}

// DashboardData - сводка для панели мониторинга
type DashboardData struct {
	TotalStructures  int64            `json:"total_structures"`
	TotalPositions   int64            `json:"total_positions"`
	TotalGrades      int64            `json:"total_grades"`
	RecentStructures []map[string]any `json:"recent_structures"`
}

// DashboardResponse - конверт сводки панели мониторинга
type DashboardResponse struct {
	Status string        `json:"status"`
	Data   DashboardData `json:"data"`
}
