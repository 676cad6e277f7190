// Package dto はpapersフィーチャーのHTTPトランスポート層のデータ転送オブジェクトを定義します。
package dto

import (
	"time"

	"scholarly_library/internal/feature/papers/domain/entity"
	"scholarly_library/internal/feature/papers/usecase"
)

// PaperRes is the JSON view of a paper. The storage key is not exposed.
type PaperRes struct {
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	Authors   []string  `json:"authors"`
	Journal   string    `json:"journal"`
	Year      int       `json:"year"`
	Abstract  string    `json:"abstract"`
	Citations int       `json:"citations"`
	Keywords  []string  `json:"keywords"`
	URL       string    `json:"url,omitempty"`
	OwnerID   uint      `json:"ownerId"`
	FileURL   string    `json:"fileUrl,omitempty"`
	FileHash  string    `json:"fileHash,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewPaperRes converts an entity to its JSON view.
func NewPaperRes(p *entity.Paper) PaperRes {
	return PaperRes{
		ID:        p.ID,
		Title:     p.Title,
		Authors:   nonNil(p.Authors),
		Journal:   p.Journal,
		Year:      p.Year,
		Abstract:  p.Abstract,
		Citations: p.Citations,
		Keywords:  nonNil(p.Keywords),
		URL:       p.URL,
		OwnerID:   p.OwnerID,
		FileURL:   p.FileURL,
		FileHash:  p.FileHash,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// NewPaperList converts a slice, always yielding a JSON array.
func NewPaperList(papers []entity.Paper) []PaperRes {
	out := make([]PaperRes, 0, len(papers))
	for i := range papers {
		out = append(out, NewPaperRes(&papers[i]))
	}
	return out
}

// CreatePaperReq は POST /papers のリクエストボディです。
// 必須項目の詳細な検証はusecase側で行います。
type CreatePaperReq struct {
	Title     string   `json:"title" binding:"required"`
	Authors   []string `json:"authors" binding:"required,min=1"`
	Journal   string   `json:"journal" binding:"required"`
	Year      int      `json:"year" binding:"required"`
	Abstract  string   `json:"abstract" binding:"required"`
	Citations int      `json:"citations" binding:"gte=0"`
	Keywords  []string `json:"keywords"`
	URL       string   `json:"url" binding:"omitempty,url"`
}

func (r CreatePaperReq) ToInput() usecase.CreatePaperInput {
	return usecase.CreatePaperInput{
		Title:     r.Title,
		Authors:   r.Authors,
		Journal:   r.Journal,
		Year:      r.Year,
		Abstract:  r.Abstract,
		Citations: r.Citations,
		Keywords:  r.Keywords,
		URL:       r.URL,
	}
}

// UpdatePaperReq は PUT /papers/:id のリクエストボディです。省略したフィールドは変更されません。
type UpdatePaperReq struct {
	Title     *string  `json:"title"`
	Authors   []string `json:"authors"`
	Journal   *string  `json:"journal"`
	Year      *int     `json:"year"`
	Abstract  *string  `json:"abstract"`
	Citations *int     `json:"citations"`
	Keywords  []string `json:"keywords"`
	URL       *string  `json:"url" binding:"omitempty,url"`
}

func (r UpdatePaperReq) ToInput() usecase.UpdatePaperInput {
	return usecase.UpdatePaperInput{
		Title:     r.Title,
		Authors:   r.Authors,
		Journal:   r.Journal,
		Year:      r.Year,
		Abstract:  r.Abstract,
		Citations: r.Citations,
		Keywords:  r.Keywords,
		URL:       r.URL,
	}
}

// SeedRes is returned by POST /admin/seed.
type SeedRes struct {
	Message  string `json:"message"`
	Inserted int    `json:"inserted"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
