package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/organigram-api/internal/domain"
)

// StructureRepository определяет операции над организационными единицами,
// не покрываемые универсальным репозиторием: обход иерархии и дерево
type StructureRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Structure, error)
	GetTree(ctx context.Context, id int64) (*domain.Structure, error)
	DescendantIDs(ctx context.Context, id int64) ([]int64, error)
	IsDescendant(ctx context.Context, ancestorID, descendantID int64) (bool, error)
	Subtree(ctx context.Context, rootID int64) ([]domain.Structure, error)
	RecentMain(ctx context.Context, limit int) ([]domain.Structure, error)
}

type structureRepository struct {
	db *gorm.DB
}

// NewStructureRepository создаёт новый экземпляр репозитория
func NewStructureRepository(db *gorm.DB) StructureRepository {
	return &structureRepository{db: db}
}

func (r *structureRepository) GetByID(ctx context.Context, id int64) (*domain.Structure, error) {
	var s domain.Structure
	err := r.db.WithContext(ctx).First(&s, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &domain.NotFoundError{Entity: "Structure", ID: id}
		}
		return nil, err
	}
	return &s, nil
}

// GetTree загружает структуру со всеми потомками, должностями и их грейдами.
// Потомки выбираются одним рекурсивным CTE, дерево собирается в памяти.
func (r *structureRepository) GetTree(ctx context.Context, id int64) (*domain.Structure, error) {
	ids, err := r.DescendantIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	all := append([]int64{id}, ids...)

	var nodes []domain.Structure
	err = r.db.WithContext(ctx).
		Preload("Type").
		Preload("Positions", func(db *gorm.DB) *gorm.DB {
			return db.Order("positions.level ASC, positions.title ASC")
		}).
		Preload("Positions.Grade").
		Where("id IN ?", all).
		Order("id ASC").
		Find(&nodes).Error
	if err != nil {
		return nil, err
	}

	byParent := make(map[int64][]*domain.Structure)
	var root *domain.Structure
	for i := range nodes {
		n := &nodes[i]
		if n.ID == id {
			root = n
			continue
		}
		if n.ParentID != nil {
			byParent[*n.ParentID] = append(byParent[*n.ParentID], n)
		}
	}
	if root == nil {
		return nil, &domain.NotFoundError{Entity: "Structure", ID: id}
	}

	var attach func(n *domain.Structure)
	attach = func(n *domain.Structure) {
		for _, child := range byParent[n.ID] {
			attach(child)
			n.Children = append(n.Children, *child)
		}
	}
	attach(root)
	return root, nil
}

func (r *structureRepository) DescendantIDs(ctx context.Context, id int64) ([]int64, error) {
	var result []int64

	// Рекурсивный CTE работает и в PostgreSQL, и в SQLite
	query := `
		WITH RECURSIVE descendants AS (
			SELECT id FROM structures WHERE parent_id = ?
			UNION ALL
			SELECT s.id FROM structures s
			INNER JOIN descendants d ON s.parent_id = d.id
		)
		SELECT id FROM descendants
	`

	rows, err := r.db.WithContext(ctx).Raw(query, id).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var descendantID int64
		if err := rows.Scan(&descendantID); err != nil {
			return nil, err
		}
		result = append(result, descendantID)
	}

	return result, rows.Err()
}

func (r *structureRepository) IsDescendant(ctx context.Context, ancestorID, descendantID int64) (bool, error) {
	descendants, err := r.DescendantIDs(ctx, ancestorID)
	if err != nil {
		return false, err
	}
	for _, id := range descendants {
		if id == descendantID {
			return true, nil
		}
	}
	return false, nil
}

// Subtree возвращает структуру и всех её потомков плоским списком
func (r *structureRepository) Subtree(ctx context.Context, rootID int64) ([]domain.Structure, error) {
	ids, err := r.DescendantIDs(ctx, rootID)
	if err != nil {
		return nil, err
	}
	all := append([]int64{rootID}, ids...)
	var nodes []domain.Structure
	err = r.db.WithContext(ctx).Where("id IN ?", all).Order("id ASC").Find(&nodes).Error
	return nodes, err
}

func (r *structureRepository) RecentMain(ctx context.Context, limit int) ([]domain.Structure, error) {
	var structures []domain.Structure
	err := r.db.WithContext(ctx).
		Where("is_main = ?", true).
		Order("created_at DESC").
		Limit(limit).
		Find(&structures).Error
	return structures, err
}
