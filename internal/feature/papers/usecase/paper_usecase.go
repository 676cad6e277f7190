package usecase

import (
	"cmp"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"scholarly_library/internal/feature/papers/domain/entity"
)

const (
	// DefaultRelatedLimit は関連論文の既定件数です。
	DefaultRelatedLimit = 4
	// MinYear は受け付ける出版年の下限です。
	MinYear = 1000

	defaultUploadAuthor   = "Unknown Author"
	defaultUploadAbstract = "No abstract provided"
	defaultUploadJournal  = "Unpublished"
	pdfContentType        = "application/pdf"
)

// PaperRepository は論文の永続化レイヤーを抽象化します。
// インターフェースは利用者（usecase）側で定義します。
type PaperRepository interface {
	// List は全論文を返します。year が nil でなければ出版年で絞り込みます。
	List(ctx context.Context, year *int) ([]entity.Paper, error)
	FindByID(ctx context.Context, id uint) (*entity.Paper, error)
	Create(ctx context.Context, paper *entity.Paper) error
	CreateBatch(ctx context.Context, papers []entity.Paper) error
	Update(ctx context.Context, paper *entity.Paper) error
	Delete(ctx context.Context, id uint) error
	ListByOwner(ctx context.Context, ownerID uint) ([]entity.Paper, error)
}

// FileStore はアップロードされたPDFの保存先です。
type FileStore interface {
	// Save stores data under key and returns its public URL.
	Save(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// Identity is the authenticated caller as seen by the papers feature.
type Identity struct {
	UserID uint
	Admin  bool
}

// CanModify reports whether the caller may update or delete paper.
func (id Identity) CanModify(paper *entity.Paper) bool {
	return id.Admin || (id.UserID != 0 && paper.OwnerID == id.UserID)
}

// CreatePaperInput carries the fields of a new paper.
type CreatePaperInput struct {
	Title     string
	Authors   []string
	Journal   string
	Year      int
	Abstract  string
	Citations int
	Keywords  []string
	URL       string
}

// UpdatePaperInput is a partial update; nil fields are left untouched.
type UpdatePaperInput struct {
	Title     *string
	Authors   []string
	Journal   *string
	Year      *int
	Abstract  *string
	Citations *int
	Keywords  []string
	URL       *string
}

// UploadInput is a PDF upload together with its optional metadata.
type UploadInput struct {
	Filename    string
	ContentType string
	Data        []byte

	Title    string
	Authors  []string
	Abstract string
	Journal  string
	Year     *int
	Keywords []string
}

type paperUsecase struct {
	repo           PaperRepository
	files          FileStore
	maxUploadBytes int64
	now            func() time.Time
}

// NewPaperUsecase は paperUsecase の新しいインスタンスを生成します。
func NewPaperUsecase(repo PaperRepository, files FileStore, maxUploadBytes int64) *paperUsecase {
	return &paperUsecase{
		repo:           repo,
		files:          files,
		maxUploadBytes: maxUploadBytes,
		now:            time.Now,
	}
}

// Search はカタログ検索を行います。
// 年の完全一致はリポジトリに委ね、文字列条件と並び替えはここで評価します。
func (u *paperUsecase) Search(ctx context.Context, params SearchParams) ([]entity.Paper, error) {
	candidates, err := u.repo.List(ctx, params.Year)
	if err != nil {
		return nil, err
	}

	result := FilterPapers(candidates, params)
	SortPapers(result, params.SortBy)
	return result, nil
}

func (u *paperUsecase) Get(ctx context.Context, id uint) (*entity.Paper, error) {
	return u.repo.FindByID(ctx, id)
}

// ListByOwner は指定ユーザーが登録した論文を新しい順に返します。
func (u *paperUsecase) ListByOwner(ctx context.Context, ownerID uint) ([]entity.Paper, error) {
	papers, err := u.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	SortPapers(papers, SortRecent)
	return papers, nil
}

func (u *paperUsecase) Create(ctx context.Context, caller Identity, in CreatePaperInput) (*entity.Paper, error) {
	paper := &entity.Paper{
		Title:     in.Title,
		Authors:   in.Authors,
		Journal:   in.Journal,
		Year:      in.Year,
		Abstract:  in.Abstract,
		Citations: in.Citations,
		Keywords:  in.Keywords,
		URL:       in.URL,
		OwnerID:   caller.UserID,
	}
	if err := u.normalizeAndValidate(paper); err != nil {
		return nil, err
	}

	if err := u.repo.Create(ctx, paper); err != nil {
		return nil, err
	}
	return paper, nil
}

func (u *paperUsecase) Update(ctx context.Context, caller Identity, id uint, in UpdatePaperInput) (*entity.Paper, error) {
	paper, err := u.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.CanModify(paper) {
		return nil, ErrForbidden
	}

	if in.Title != nil {
		paper.Title = *in.Title
	}
	if in.Authors != nil {
		paper.Authors = in.Authors
	}
	if in.Journal != nil {
		paper.Journal = *in.Journal
	}
	if in.Year != nil {
		paper.Year = *in.Year
	}
	if in.Abstract != nil {
		paper.Abstract = *in.Abstract
	}
	if in.Citations != nil {
		paper.Citations = *in.Citations
	}
	if in.Keywords != nil {
		paper.Keywords = in.Keywords
	}
	if in.URL != nil {
		paper.URL = *in.URL
	}

	if err := u.normalizeAndValidate(paper); err != nil {
		return nil, err
	}
	if err := u.repo.Update(ctx, paper); err != nil {
		return nil, err
	}
	return paper, nil
}

// Delete は論文を削除し、添付PDFがあればベストエフォートで削除します。
func (u *paperUsecase) Delete(ctx context.Context, caller Identity, id uint) error {
	paper, err := u.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !caller.CanModify(paper) {
		return ErrForbidden
	}

	if err := u.repo.Delete(ctx, id); err != nil {
		return err
	}

	if paper.HasFile() {
		if err := u.files.Delete(ctx, paper.FileKey); err != nil {
			slog.Warn("failed to delete stored file", "paper_id", id, "key", paper.FileKey, "error", err)
		}
	}
	return nil
}

// Related はキーワードを共有する他の論文を、共有数・新しさの順で最大 limit 件返します。
func (u *paperUsecase) Related(ctx context.Context, id uint, limit int) ([]entity.Paper, error) {
	if limit <= 0 {
		limit = DefaultRelatedLimit
	}

	target, err := u.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{}, len(target.Keywords))
	for _, k := range target.Keywords {
		wanted[strings.ToLower(k)] = struct{}{}
	}
	if len(wanted) == 0 {
		return []entity.Paper{}, nil
	}

	all, err := u.repo.List(ctx, nil)
	if err != nil {
		return nil, err
	}

	type scored struct {
		paper  entity.Paper
		shared int
	}
	var candidates []scored
	for _, p := range all {
		if p.ID == target.ID {
			continue
		}
		n := 0
		for _, k := range p.Keywords {
			if _, ok := wanted[strings.ToLower(k)]; ok {
				n++
			}
		}
		if n > 0 {
			candidates = append(candidates, scored{paper: p, shared: n})
		}
	}

	slices.SortStableFunc(candidates, func(a, b scored) int {
		if c := cmp.Compare(b.shared, a.shared); c != 0 {
			return c
		}
		if c := b.paper.CreatedAt.Compare(a.paper.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.paper.ID, a.paper.ID)
	})

	out := make([]entity.Paper, 0, min(limit, len(candidates)))
	for i := 0; i < len(candidates) && i < limit; i++ {
		out = append(out, candidates[i].paper)
	}
	return out, nil
}

// Upload はPDFを検証・保存し、論文レコードを作成します。
func (u *paperUsecase) Upload(ctx context.Context, caller Identity, in UploadInput) (*entity.Paper, error) {
	if len(in.Data) == 0 {
		return nil, ErrMissingFile
	}
	if u.maxUploadBytes > 0 && int64(len(in.Data)) > u.maxUploadBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, u.maxUploadBytes)
	}
	if !declaredPDF(in.ContentType) || !mimetype.Detect(in.Data).Is(pdfContentType) {
		return nil, ErrNotPDF
	}

	paper := &entity.Paper{
		Title:    strings.TrimSpace(in.Title),
		Authors:  in.Authors,
		Abstract: strings.TrimSpace(in.Abstract),
		Journal:  strings.TrimSpace(in.Journal),
		Keywords: in.Keywords,
		OwnerID:  caller.UserID,
	}
	if paper.Title == "" {
		paper.Title = titleFromFilename(in.Filename)
	}
	if len(trimAll(paper.Authors)) == 0 {
		paper.Authors = []string{defaultUploadAuthor}
	}
	if paper.Abstract == "" {
		paper.Abstract = defaultUploadAbstract
	}
	if paper.Journal == "" {
		paper.Journal = defaultUploadJournal
	}
	if in.Year != nil {
		paper.Year = *in.Year
	} else {
		paper.Year = u.now().Year()
	}
	if err := u.normalizeAndValidate(paper); err != nil {
		return nil, err
	}

	sum := blake3.Sum256(in.Data)
	paper.FileHash = hex.EncodeToString(sum[:])
	paper.FileKey = "paper-" + uuid.NewString() + ".pdf"

	url, err := u.files.Save(ctx, paper.FileKey, in.Data, pdfContentType)
	if err != nil {
		return nil, fmt.Errorf("store uploaded file: %w", err)
	}
	paper.FileURL = url
	paper.URL = url

	if err := u.repo.Create(ctx, paper); err != nil {
		// レコード作成に失敗した場合は保存済みファイルを片付ける
		if delErr := u.files.Delete(ctx, paper.FileKey); delErr != nil {
			slog.Warn("failed to remove orphaned upload", "key", paper.FileKey, "error", delErr)
		}
		return nil, err
	}
	return paper, nil
}

// Seed はタイトルが未登録の論文のみを挿入し、挿入件数を返します。
func (u *paperUsecase) Seed(ctx context.Context, papers []entity.Paper) (int, error) {
	existing, err := u.repo.List(ctx, nil)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]struct{}, len(existing))
	for _, p := range existing {
		seen[strings.ToLower(p.Title)] = struct{}{}
	}

	var batch []entity.Paper
	for _, p := range papers {
		key := strings.ToLower(strings.TrimSpace(p.Title))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		if err := u.normalizeAndValidate(&p); err != nil {
			return 0, fmt.Errorf("seed %q: %w", p.Title, err)
		}
		batch = append(batch, p)
	}

	if len(batch) == 0 {
		return 0, nil
	}
	if err := u.repo.CreateBatch(ctx, batch); err != nil {
		return 0, err
	}
	return len(batch), nil
}

func (u *paperUsecase) normalizeAndValidate(p *entity.Paper) error {
	p.Title = strings.TrimSpace(p.Title)
	p.Journal = strings.TrimSpace(p.Journal)
	p.Abstract = strings.TrimSpace(p.Abstract)
	p.URL = strings.TrimSpace(p.URL)
	p.Keywords = dedupeKeywords(p.Keywords)

	var problems []error
	if p.Title == "" {
		problems = append(problems, errors.New("title is required"))
	}
	if p.Journal == "" {
		problems = append(problems, errors.New("journal is required"))
	}
	if p.Abstract == "" {
		problems = append(problems, errors.New("abstract is required"))
	}
	if len(p.Authors) == 0 {
		problems = append(problems, errors.New("at least one author is required"))
	} else {
		authors := trimAll(p.Authors)
		if len(authors) != len(p.Authors) {
			problems = append(problems, errors.New("author names must not be blank"))
		}
		p.Authors = authors
	}
	if p.Citations < 0 {
		problems = append(problems, errors.New("citations must not be negative"))
	}
	if maxYear := u.now().Year() + 1; p.Year < MinYear || p.Year > maxYear {
		problems = append(problems, fmt.Errorf("year must be between %d and %d", MinYear, maxYear))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidPaper, errors.Join(problems...))
	}
	return nil
}

// titleFromFilename returns the base name of the uploaded file without its extension.
func titleFromFilename(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func declaredPDF(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == pdfContentType
}

// trimAll trims every entry and drops the blank ones.
func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// dedupeKeywords removes blank and case-insensitively repeated keywords,
// keeping the first spelling.
func dedupeKeywords(keywords []string) []string {
	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, k := range trimAll(keywords) {
		key := strings.ToLower(k)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, k)
	}
	return out
}
