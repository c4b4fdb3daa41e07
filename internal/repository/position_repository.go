package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/organigram-api/internal/domain"
)

// CoordinateUpdate - новые координаты одной должности
type CoordinateUpdate struct {
	ID int64
	X  float64
	Y  float64
}

// PositionRepository определяет операции над должностями, не покрываемые
// универсальным репозиторием
type PositionRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Position, error)
	GetByIDWithGrade(ctx context.Context, id int64) (*domain.Position, error)
	ListByStructure(ctx context.Context, structureID int64) ([]domain.Position, error)
	ListDetails(ctx context.Context, positionID int64) ([]domain.PositionDetail, error)
	BulkUpdateCoordinates(ctx context.Context, updates []CoordinateUpdate) (int64, error)
	Clone(ctx context.Context, source *domain.Position, details []domain.PositionDetail, incoming *domain.OrganigramEdge) (*domain.Position, error)
}

type positionRepository struct {
	db *gorm.DB
}

// NewPositionRepository создаёт новый экземпляр репозитория
func NewPositionRepository(db *gorm.DB) PositionRepository {
	return &positionRepository{db: db}
}

func (r *positionRepository) GetByID(ctx context.Context, id int64) (*domain.Position, error) {
	var p domain.Position
	err := r.db.WithContext(ctx).First(&p, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &domain.NotFoundError{Entity: "Position", ID: id}
		}
		return nil, err
	}
	return &p, nil
}

func (r *positionRepository) GetByIDWithGrade(ctx context.Context, id int64) (*domain.Position, error) {
	var p domain.Position
	err := r.db.WithContext(ctx).Preload("Grade").First(&p, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &domain.NotFoundError{Entity: "Position", ID: id}
		}
		return nil, err
	}
	return &p, nil
}

func (r *positionRepository) ListByStructure(ctx context.Context, structureID int64) ([]domain.Position, error) {
	var positions []domain.Position
	err := r.db.WithContext(ctx).
		Where("structure_id = ?", structureID).
		Order("id ASC").
		Find(&positions).Error
	return positions, err
}

func (r *positionRepository) ListDetails(ctx context.Context, positionID int64) ([]domain.PositionDetail, error) {
	var details []domain.PositionDetail
	err := r.db.WithContext(ctx).
		Where("position_id = ?", positionID).
		Order("created_at ASC, id ASC").
		Find(&details).Error
	return details, err
}

// BulkUpdateCoordinates записывает координаты пачкой в одной транзакции;
// отсутствующие id пропускаются, возвращается число обновлённых строк
func (r *positionRepository) BulkUpdateCoordinates(ctx context.Context, updates []CoordinateUpdate) (int64, error) {
	var updated int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			result := tx.Model(&domain.Position{}).
				Where("id = ?", u.ID).
				Updates(map[string]any{"position_x": u.X, "position_y": u.Y})
			if result.Error != nil {
				return result.Error
			}
			updated += result.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

// Clone создаёт копию должности вместе с её деталями и входящим ребром
// в одной транзакции
func (r *positionRepository) Clone(ctx context.Context, source *domain.Position, details []domain.PositionDetail, incoming *domain.OrganigramEdge) (*domain.Position, error) {
	clone := domain.Position{
		StructureID: source.StructureID,
		Title:       source.Title + " (Copie)",
		GradeID:     source.GradeID,
		Level:       source.Level,
		IsManager:   source.IsManager,
		Color:       source.Color,
		Mission:     source.Mission,
		Tasks:       source.Tasks,
		Formation:   source.Formation,
		PositionX:   source.PositionX,
		PositionY:   source.PositionY,
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&clone).Error; err != nil {
			return err
		}
		for _, d := range details {
			copy := domain.PositionDetail{
				PositionID:  clone.ID,
				Kind:        d.Kind,
				Description: d.Description,
			}
			if err := tx.Create(&copy).Error; err != nil {
				return err
			}
		}
		if incoming != nil {
			edge := domain.OrganigramEdge{
				StructureID: incoming.StructureID,
				SourceType:  incoming.SourceType,
				SourceID:    incoming.SourceID,
				TargetType:  domain.NodeKindPosition,
				TargetID:    clone.ID,
				EdgeType:    incoming.EdgeType,
			}
			if err := tx.Create(&edge).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &clone, nil
}
