// Package usecase implements the business logic for the papers feature.
package usecase

import "errors"

var (
	// ErrPaperNotFound is returned when no paper has the requested ID.
	ErrPaperNotFound = errors.New("paper not found")

	// ErrInvalidPaper is returned when paper fields fail validation.
	ErrInvalidPaper = errors.New("invalid paper")

	// ErrInvalidQuery is returned when search parameters are malformed.
	ErrInvalidQuery = errors.New("invalid search parameters")

	// ErrForbidden is returned when the caller is neither the owner nor an admin.
	ErrForbidden = errors.New("not allowed to modify this paper")

	// ErrMissingFile is returned when an upload carries no file.
	ErrMissingFile = errors.New("no file uploaded")

	// ErrFileTooLarge is returned when an upload exceeds the size cap.
	ErrFileTooLarge = errors.New("file too large")

	// ErrNotPDF is returned when an upload is not a PDF document.
	ErrNotPDF = errors.New("only PDF files are allowed")
)
