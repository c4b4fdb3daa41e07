package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/organigram-api/internal/domain"
)

// DiagramRepository определяет операции над кешем координат диаграммы
type DiagramRepository interface {
	Find(ctx context.Context, node domain.NodeRef, mainStructureID int64) (*domain.DiagramPosition, error)
	Upsert(ctx context.Context, row *domain.DiagramPosition) (bool, error)
	UpsertMany(ctx context.Context, rows []domain.DiagramPosition) error
	DeleteForNode(ctx context.Context, node domain.NodeRef) (int64, error)
}

type diagramRepository struct {
	db *gorm.DB
}

// NewDiagramRepository создаёт новый экземпляр репозитория
func NewDiagramRepository(db *gorm.DB) DiagramRepository {
	return &diagramRepository{db: db}
}

func (r *diagramRepository) Find(ctx context.Context, node domain.NodeRef, mainStructureID int64) (*domain.DiagramPosition, error) {
	var row domain.DiagramPosition
	err := r.db.WithContext(ctx).
		Where("node_type = ? AND node_id = ? AND main_structure_id = ?", node.Kind, node.ID, mainStructureID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// Upsert создаёт запись координат или обновляет существующую по ключу
// (node_type, node_id, main_structure_id); true означает создание
func (r *diagramRepository) Upsert(ctx context.Context, row *domain.DiagramPosition) (bool, error) {
	existing, err := r.Find(ctx, domain.NodeRef{Kind: row.NodeType, ID: row.NodeID}, row.MainStructureID)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return true, r.db.WithContext(ctx).Create(row).Error
	}
	existing.PositionX = row.PositionX
	existing.PositionY = row.PositionY
	if err := r.db.WithContext(ctx).Save(existing).Error; err != nil {
		return false, err
	}
	*row = *existing
	return false, nil
}

// UpsertMany записывает координаты пачкой в одной транзакции
func (r *diagramRepository) UpsertMany(ctx context.Context, rows []domain.DiagramPosition) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range rows {
			row := &rows[i]
			var existing domain.DiagramPosition
			err := tx.Where("node_type = ? AND node_id = ? AND main_structure_id = ?",
				row.NodeType, row.NodeID, row.MainStructureID).
				First(&existing).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				if err := tx.Create(row).Error; err != nil {
					return err
				}
			case err != nil:
				return err
			default:
				existing.PositionX = row.PositionX
				existing.PositionY = row.PositionY
				if err := tx.Save(&existing).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// DeleteForNode удаляет кеш координат узла во всех диаграммах
func (r *diagramRepository) DeleteForNode(ctx context.Context, node domain.NodeRef) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("node_type = ? AND node_id = ?", node.Kind, node.ID).
		Delete(&domain.DiagramPosition{})
	return result.RowsAffected, result.Error
}
