package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/organigram-api/internal/domain"
)

// EdgeRepository определяет операции над рёбрами схемы, не покрываемые
// универсальным репозиторием: поиск по концам и выборки для раскладки
type EdgeRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.OrganigramEdge, error)
	Create(ctx context.Context, edge *domain.OrganigramEdge) error
	Update(ctx context.Context, edge *domain.OrganigramEdge) error
	Delete(ctx context.Context, id int64) error
	ListByStructure(ctx context.Context, structureID int64) ([]domain.OrganigramEdge, error)
	PositionEdges(ctx context.Context, structureID int64) ([]domain.OrganigramEdge, error)
	IncomingEdge(ctx context.Context, structureID int64, target domain.NodeRef) (*domain.OrganigramEdge, error)
	HasIncomingEdge(ctx context.Context, structureID int64, target domain.NodeRef, excludeEdgeID int64) (bool, error)
	DeleteForNode(ctx context.Context, node domain.NodeRef) (int64, error)
}

type edgeRepository struct {
	db *gorm.DB
}

// NewEdgeRepository создаёт новый экземпляр репозитория
func NewEdgeRepository(db *gorm.DB) EdgeRepository {
	return &edgeRepository{db: db}
}

func (r *edgeRepository) GetByID(ctx context.Context, id int64) (*domain.OrganigramEdge, error) {
	var edge domain.OrganigramEdge
	err := r.db.WithContext(ctx).First(&edge, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &domain.NotFoundError{Entity: "OrganigramEdge", ID: id}
		}
		return nil, err
	}
	return &edge, nil
}

func (r *edgeRepository) Create(ctx context.Context, edge *domain.OrganigramEdge) error {
	err := r.db.WithContext(ctx).Create(edge).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrAlreadyHasParent
	}
	return err
}

func (r *edgeRepository) Update(ctx context.Context, edge *domain.OrganigramEdge) error {
	err := r.db.WithContext(ctx).Save(edge).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrAlreadyHasParent
	}
	return err
}

func (r *edgeRepository) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Delete(&domain.OrganigramEdge{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &domain.NotFoundError{Entity: "OrganigramEdge", ID: id}
	}
	return nil
}

func (r *edgeRepository) ListByStructure(ctx context.Context, structureID int64) ([]domain.OrganigramEdge, error) {
	var edges []domain.OrganigramEdge
	err := r.db.WithContext(ctx).
		Where("structure_id = ?", structureID).
		Order("id ASC").
		Find(&edges).Error
	return edges, err
}

// PositionEdges возвращает рёбра между должностями внутри структуры;
// по ним строится раскладка должностей
func (r *edgeRepository) PositionEdges(ctx context.Context, structureID int64) ([]domain.OrganigramEdge, error) {
	var edges []domain.OrganigramEdge
	err := r.db.WithContext(ctx).
		Where("structure_id = ? AND source_type = ? AND target_type = ?",
			structureID, domain.NodeKindPosition, domain.NodeKindPosition).
		Order("id ASC").
		Find(&edges).Error
	return edges, err
}

// IncomingEdge возвращает входящее ребро узла внутри структуры;
// отсутствие ребра - это (nil, nil), а не ошибка
func (r *edgeRepository) IncomingEdge(ctx context.Context, structureID int64, target domain.NodeRef) (*domain.OrganigramEdge, error) {
	var edge domain.OrganigramEdge
	err := r.db.WithContext(ctx).
		Where("structure_id = ? AND target_type = ? AND target_id = ?", structureID, target.Kind, target.ID).
		First(&edge).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &edge, nil
}

// HasIncomingEdge проверяет правило единственного родителя; excludeEdgeID
// исключает само редактируемое ребро
func (r *edgeRepository) HasIncomingEdge(ctx context.Context, structureID int64, target domain.NodeRef, excludeEdgeID int64) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).
		Model(&domain.OrganigramEdge{}).
		Where("structure_id = ? AND target_type = ? AND target_id = ?", structureID, target.Kind, target.ID)
	if excludeEdgeID != 0 {
		query = query.Where("id != ?", excludeEdgeID)
	}
	err := query.Count(&count).Error
	return count > 0, err
}

// DeleteForNode удаляет все рёбра, один из концов которых указывает на узел;
// вызывается при удалении самого узла
func (r *edgeRepository) DeleteForNode(ctx context.Context, node domain.NodeRef) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("(source_type = ? AND source_id = ?) OR (target_type = ? AND target_id = ?)",
			node.Kind, node.ID, node.Kind, node.ID).
		Delete(&domain.OrganigramEdge{})
	return result.RowsAffected, result.Error
}
