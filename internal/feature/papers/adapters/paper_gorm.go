// Package adapters はpapersフィーチャーのリポジトリ実装を提供します。
package adapters

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"scholarly_library/internal/feature/papers/domain/entity"
	"scholarly_library/internal/feature/papers/usecase"
)

// paperGorm は PaperRepository の GORM 実装です。
// sqlite / postgres / mysql のいずれのドライバでも同じクエリで動作します。
type paperGorm struct {
	db *gorm.DB
}

// paperGormがPaperRepositoryを実装していることをコンパイル時に検証します。
var _ usecase.PaperRepository = (*paperGorm)(nil)

// NewPaperGorm は指定されたgorm.DB接続でpaperGormの新しいインスタンスを生成します。
func NewPaperGorm(db *gorm.DB) *paperGorm {
	return &paperGorm{db: db}
}

// List は論文を新しい順に返します。year が指定されていれば出版年で絞り込みます。
func (r *paperGorm) List(ctx context.Context, year *int) ([]entity.Paper, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC")
	if year != nil {
		q = q.Where("year = ?", *year)
	}

	var models []PaperModel
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	return toEntities(models), nil
}

// FindByID はIDで論文を取得します。
// 存在しない場合、usecase.ErrPaperNotFoundを返します。
func (r *paperGorm) FindByID(ctx context.Context, id uint) (*entity.Paper, error) {
	var m PaperModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, usecase.ErrPaperNotFound
		}
		return nil, err
	}
	p := m.ToEntity()
	return &p, nil
}

// Create は論文を追加し、採番されたIDとタイムスタンプを p に書き戻します。
func (r *paperGorm) Create(ctx context.Context, p *entity.Paper) error {
	m := PaperModelFromEntity(p)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	p.ID = m.ID
	p.CreatedAt = m.CreatedAt
	p.UpdatedAt = m.UpdatedAt
	return nil
}

// CreateBatch は複数の論文を1トランザクションで追加します。
func (r *paperGorm) CreateBatch(ctx context.Context, papers []entity.Paper) error {
	if len(papers) == 0 {
		return nil
	}

	models := make([]*PaperModel, len(papers))
	for i := range papers {
		models[i] = PaperModelFromEntity(&papers[i])
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 作成日時の順序が入力順と一致するよう1件ずつ挿入する
		for _, m := range models {
			if err := tx.Create(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for i, m := range models {
		papers[i].ID = m.ID
		papers[i].CreatedAt = m.CreatedAt
		papers[i].UpdatedAt = m.UpdatedAt
	}
	return nil
}

// Update は論文の全カラムを上書きします。created_at は変更しません。
func (r *paperGorm) Update(ctx context.Context, p *entity.Paper) error {
	m := PaperModelFromEntity(p)
	m.UpdatedAt = time.Now()
	result := r.db.WithContext(ctx).
		Model(&PaperModel{ID: p.ID}).
		Select("*").
		Omit("id", "created_at").
		Updates(m)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return usecase.ErrPaperNotFound
	}
	p.UpdatedAt = m.UpdatedAt
	return nil
}

// Delete は論文を削除します。
// 対象が存在しない場合、usecase.ErrPaperNotFoundを返します。
func (r *paperGorm) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&PaperModel{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return usecase.ErrPaperNotFound
	}
	return nil
}

// ListByOwner は指定ユーザーの論文を新しい順に返します。
func (r *paperGorm) ListByOwner(ctx context.Context, ownerID uint) ([]entity.Paper, error) {
	var models []PaperModel
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	return toEntities(models), nil
}

func toEntities(models []PaperModel) []entity.Paper {
	papers := make([]entity.Paper, len(models))
	for i := range models {
		papers[i] = models[i].ToEntity()
	}
	return papers
}
