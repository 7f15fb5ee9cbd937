// Package manifest loads the corpus manifest that lists every reference PDF.
package manifest

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/student-tax-advisor/internal/core/domain"
)

type file struct {
	Documents []domain.SourceDocument `yaml:"documents"`
}

// Load reads a manifest from path.
func Load(path string) ([]domain.SourceDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse accepts either a mapping with a top-level "documents" list or a bare
// list of entries. String fields are trimmed.
func Parse(r io.Reader) ([]domain.SourceDocument, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse manifest", fmt.Errorf("manifest is empty"))
	}

	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse manifest", err)
	}

	var docs []domain.SourceDocument
	if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
		err = node.Content[0].Decode(&docs)
	} else {
		var f file
		err = node.Decode(&f)
		docs = f.Documents
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "decode manifest", err)
	}

	for i := range docs {
		normalize(&docs[i])
	}
	return docs, nil
}

func normalize(d *domain.SourceDocument) {
	d.DocID = strings.TrimSpace(d.DocID)
	d.Title = strings.TrimSpace(d.Title)
	d.SourceType = strings.TrimSpace(d.SourceType)
	d.Year = strings.TrimSpace(d.Year)
	d.Country = strings.TrimSpace(d.Country)
	d.Folder = strings.Trim(strings.TrimSpace(d.Folder), "/")
	d.Filename = strings.TrimSpace(d.Filename)
}
