// Package fixtures ships the sample catalogue used to seed an empty library.
package fixtures

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"scholarly_library/internal/feature/papers/domain/entity"
)

//go:embed sample_papers.yaml
var samplePapersYAML []byte

type samplePaper struct {
	Title     string   `yaml:"title"`
	Authors   []string `yaml:"authors"`
	Journal   string   `yaml:"journal"`
	Year      int      `yaml:"year"`
	Abstract  string   `yaml:"abstract"`
	Citations int      `yaml:"citations"`
	Keywords  []string `yaml:"keywords"`
	URL       string   `yaml:"url"`
}

type sampleFile struct {
	Papers []samplePaper `yaml:"papers"`
}

// SamplePapers decodes the embedded catalogue. The returned papers have no
// ID, owner or timestamps; those are assigned on insert.
func SamplePapers() ([]entity.Paper, error) {
	return Parse(samplePapersYAML)
}

// Parse decodes a catalogue document in the sample_papers.yaml layout.
func Parse(data []byte) ([]entity.Paper, error) {
	var f sampleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode sample papers: %w", err)
	}

	papers := make([]entity.Paper, 0, len(f.Papers))
	for i, p := range f.Papers {
		if p.Title == "" {
			return nil, fmt.Errorf("sample paper #%d has no title", i+1)
		}
		papers = append(papers, entity.Paper{
			Title:     p.Title,
			Authors:   p.Authors,
			Journal:   p.Journal,
			Year:      p.Year,
			Abstract:  p.Abstract,
			Citations: p.Citations,
			Keywords:  p.Keywords,
			URL:       p.URL,
		})
	}
	return papers, nil
}
