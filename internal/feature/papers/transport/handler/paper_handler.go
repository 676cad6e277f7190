// Package handler はpapersフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"scholarly_library/internal/api"
	"scholarly_library/internal/feature/papers/domain/entity"
	"scholarly_library/internal/feature/papers/fixtures"
	"scholarly_library/internal/feature/papers/transport/http/dto"
	"scholarly_library/internal/feature/papers/usecase"
	jwtmw "scholarly_library/internal/platform/jwt"
)

// multipartOverhead はフォームフィールドとmultipart境界のために許容する余白です。
const multipartOverhead = 1 << 20

// PapersUsecase は論文操作のユースケースインターフェースを定義します。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type PapersUsecase interface {
	Search(ctx context.Context, params usecase.SearchParams) ([]entity.Paper, error)
	Get(ctx context.Context, id uint) (*entity.Paper, error)
	ListByOwner(ctx context.Context, ownerID uint) ([]entity.Paper, error)
	Related(ctx context.Context, id uint, limit int) ([]entity.Paper, error)
	Create(ctx context.Context, caller usecase.Identity, in usecase.CreatePaperInput) (*entity.Paper, error)
	Update(ctx context.Context, caller usecase.Identity, id uint, in usecase.UpdatePaperInput) (*entity.Paper, error)
	Delete(ctx context.Context, caller usecase.Identity, id uint) error
	Upload(ctx context.Context, caller usecase.Identity, in usecase.UploadInput) (*entity.Paper, error)
	Seed(ctx context.Context, papers []entity.Paper) (int, error)
}

// PapersHandler は論文カタログのHTTPリクエストを処理します。
type PapersHandler struct {
	uc             PapersUsecase
	maxUploadBytes int64
}

// NewPapersHandler は PapersHandler の新しいインスタンスを生成します。
func NewPapersHandler(uc PapersUsecase, maxUploadBytes int64) *PapersHandler {
	return &PapersHandler{uc: uc, maxUploadBytes: maxUploadBytes}
}

// Search はカタログを検索します。
//
// エンドポイント例:
// GET /papers?search=learning&year=2023&author=smith&journal=review&sortBy=citations
func (h *PapersHandler) Search(c *gin.Context) {
	year, err := usecase.ParseYear(c.Query("year"))
	if err != nil {
		writeError(c, err)
		return
	}

	params := usecase.SearchParams{
		Term:    c.Query("search"),
		Year:    year,
		Author:  c.Query("author"),
		Journal: c.Query("journal"),
		SortBy:  usecase.ParseSortKey(c.Query("sortBy")),
	}

	papers, err := h.uc.Search(c.Request.Context(), params)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPaperList(papers))
}

// Get は GET /papers/:id を処理します。
func (h *PapersHandler) Get(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	paper, err := h.uc.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPaperRes(paper))
}

// Related は GET /papers/:id/related?limit=4 を処理します。
func (h *PapersHandler) Related(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	// 不正な limit は既定値扱い
	limit, _ := strconv.Atoi(c.Query("limit"))

	papers, err := h.uc.Related(c.Request.Context(), id, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPaperList(papers))
}

// Mine は認証済みユーザーが登録した論文を返します。
func (h *PapersHandler) Mine(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}

	papers, err := h.uc.ListByOwner(c.Request.Context(), caller.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPaperList(papers))
}

func (h *PapersHandler) Create(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}

	var req dto.CreatePaperReq
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("create paper validation failed", "error", err, "remote_addr", c.ClientIP())
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Title, authors, journal, year and abstract are required"})
		return
	}

	paper, err := h.uc.Create(c.Request.Context(), caller, req.ToInput())
	if err != nil {
		writeError(c, err)
		return
	}
	slog.Info("paper created", "paper_id", paper.ID, "user_id", caller.UserID)
	c.JSON(http.StatusCreated, dto.NewPaperRes(paper))
}

func (h *PapersHandler) Update(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}

	var req dto.UpdatePaperReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid paper data"})
		return
	}

	paper, err := h.uc.Update(c.Request.Context(), caller, id, req.ToInput())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPaperRes(paper))
}

func (h *PapersHandler) Delete(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}

	if err := h.uc.Delete(c.Request.Context(), caller, id); err != nil {
		writeError(c, err)
		return
	}
	slog.Info("paper deleted", "paper_id", id, "user_id", caller.UserID)
	c.JSON(http.StatusOK, api.MessageResponse{Message: "Paper deleted successfully"})
}

// Upload は multipart/form-data のPDFアップロードを処理します。
// ファイルは "paper" フィールド、メタデータは任意のフォームフィールドで受け取ります。
func (h *PapersHandler) Upload(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}

	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)
	}

	fh, err := c.FormFile("paper")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(c, usecase.ErrFileTooLarge)
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			writeError(c, usecase.ErrMissingFile)
		default:
			slog.Warn("upload form parse failed", "error", err, "remote_addr", c.ClientIP())
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid upload form"})
		}
		return
	}

	year, err := usecase.ParseYear(c.PostForm("year"))
	if err != nil {
		writeError(c, err)
		return
	}

	f, err := fh.Open()
	if err != nil {
		writeError(c, err)
		return
	}
	defer f.Close()

	// 上限+1バイトまで読み、超過判定はusecaseに任せる
	limit := fh.Size
	if h.maxUploadBytes > 0 {
		limit = h.maxUploadBytes + 1
	}
	data, err := io.ReadAll(io.LimitReader(f, limit))
	if err != nil {
		writeError(c, err)
		return
	}

	paper, err := h.uc.Upload(c.Request.Context(), caller, usecase.UploadInput{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
		Title:       c.PostForm("title"),
		Authors:     splitList(c.PostForm("authors")),
		Abstract:    c.PostForm("abstract"),
		Journal:     c.PostForm("journal"),
		Year:        year,
		Keywords:    splitList(c.PostForm("keywords")),
	})
	if err != nil {
		slog.Warn("upload rejected", "error", err, "filename", fh.Filename, "remote_addr", c.ClientIP())
		writeError(c, err)
		return
	}

	slog.Info("paper uploaded", "paper_id", paper.ID, "user_id", caller.UserID, "size", len(data))
	c.JSON(http.StatusCreated, dto.NewPaperRes(paper))
}

// AdminSeed は同梱のサンプル論文を投入します（admin専用ルート）。
func (h *PapersHandler) AdminSeed(c *gin.Context) {
	papers, err := fixtures.SamplePapers()
	if err != nil {
		writeError(c, err)
		return
	}

	n, err := h.uc.Seed(c.Request.Context(), papers)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.SeedRes{Message: "Sample papers seeded", Inserted: n})
}

func identity(c *gin.Context) (usecase.Identity, bool) {
	userID, ok := jwtmw.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Authentication required"})
		return usecase.Identity{}, false
	}
	return usecase.Identity{UserID: userID, Admin: jwtmw.Role(c) == jwtmw.RoleAdmin}, true
}

func paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid paper id"})
		return 0, false
	}
	return uint(id), true
}

// splitList はカンマ区切りの値を分割し、空要素を取り除きます。
func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrInvalidPaper),
		errors.Is(err, usecase.ErrInvalidQuery),
		errors.Is(err, usecase.ErrMissingFile),
		errors.Is(err, usecase.ErrNotPDF):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, usecase.ErrForbidden):
		c.JSON(http.StatusForbidden, api.ErrorResponse{Error: "You are not allowed to modify this paper"})
	case errors.Is(err, usecase.ErrPaperNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Paper not found"})
	case errors.Is(err, usecase.ErrFileTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, api.ErrorResponse{Error: "File too large"})
	default:
		slog.Error("papers request failed", "error", err, "path", c.FullPath())
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Internal server error"})
	}
}
