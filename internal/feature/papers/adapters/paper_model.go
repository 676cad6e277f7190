package adapters

import (
	"time"

	"scholarly_library/internal/feature/papers/domain/entity"
)

// PaperModel is the GORM model for the papers table.
// List columns are stored as JSON text so the schema is portable across drivers.
type PaperModel struct {
	ID        uint     `gorm:"primaryKey"`
	Title     string   `gorm:"size:512;not null;index"`
	Authors   []string `gorm:"serializer:json;type:text;not null"`
	Journal   string   `gorm:"size:255;not null"`
	Year      int      `gorm:"not null;index"`
	Abstract  string   `gorm:"type:text;not null"`
	Citations int      `gorm:"not null;default:0"`
	Keywords  []string `gorm:"serializer:json;type:text"`
	URL       string   `gorm:"size:1024"`
	OwnerID   uint     `gorm:"index;not null;default:0"`
	FileURL   string   `gorm:"size:1024"`
	FileKey   string   `gorm:"size:255"`
	FileHash  string   `gorm:"size:64"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for GORM.
func (PaperModel) TableName() string {
	return "papers"
}

// ToEntity converts the GORM model to a domain entity.
func (m *PaperModel) ToEntity() entity.Paper {
	return entity.Paper{
		ID:        m.ID,
		Title:     m.Title,
		Authors:   nonNil(m.Authors),
		Journal:   m.Journal,
		Year:      m.Year,
		Abstract:  m.Abstract,
		Citations: m.Citations,
		Keywords:  nonNil(m.Keywords),
		URL:       m.URL,
		OwnerID:   m.OwnerID,
		FileURL:   m.FileURL,
		FileKey:   m.FileKey,
		FileHash:  m.FileHash,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// PaperModelFromEntity converts a domain entity to a GORM model.
func PaperModelFromEntity(p *entity.Paper) *PaperModel {
	return &PaperModel{
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
		FileKey:   p.FileKey,
		FileHash:  p.FileHash,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// nonNil keeps empty lists as [] rather than null in both JSON columns and API responses.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
