// Package entity defines the domain models for the papers feature.
package entity

import "time"

// Paper is one catalogued work.
type Paper struct {
	ID        uint
	Title     string
	Authors   []string // display order is significant
	Journal   string
	Year      int
	Abstract  string
	Citations int
	Keywords  []string
	URL       string

	// OwnerID is the user who created or uploaded the paper. Zero for seeded papers.
	OwnerID uint
	// FileURL is the public location of an uploaded PDF, empty when there is none.
	FileURL string
	// FileKey is the storage key of the uploaded PDF.
	FileKey string
	// FileHash is the hex BLAKE3 digest of the uploaded bytes.
	FileHash string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasFile reports whether an uploaded PDF is attached.
func (p *Paper) HasFile() bool {
	return p.FileKey != ""
}
