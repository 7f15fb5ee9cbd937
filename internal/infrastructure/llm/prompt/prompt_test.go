package prompt

import (
	"strings"
	"testing"

	"github.com/kirillkom/student-tax-advisor/internal/core/domain"
)

func TestFormatContext(t *testing.T) {
	got := FormatContext([]domain.Chunk{
		{Text: "Form 8843 is required.", Metadata: domain.ChunkMetadata{Title: "Pub 519", PageNumber: 3}},
		{Text: " No title here. "},
	})
	want := "[Pub 519 - p.3]\nForm 8843 is required.\n\n---\n\n[Unknown - p.?]\nNo title here."
	if got != want {
		t.Fatalf("FormatContext() = %q, want %q", got, want)
	}
	if FormatContext(nil) != "" {
		t.Fatalf("expected empty context for no chunks")
	}
}

func TestBuildAnswerIncludesProfileAndCitations(t *testing.T) {
	profile := domain.DefaultProfile()
	profile.HasSSNOrITIN = true
	got := BuildAnswer(domain.AnswerRequest{
		Question: " Do I file 8843? ",
		Profile:  profile,
		Chunks: []domain.Chunk{{
			ID:       "pub519_p3_c1",
			Text:     "Form 8843 is required.",
			Metadata: domain.ChunkMetadata{Title: "Pub 519", PageNumber: 3, DocID: "pub519"},
		}},
	})

	for _, want := range []string{
		"- Visa: F-1",
		"- Has SSN/ITIN: Yes",
		"Use ONLY the provided reference documents",
		"[Pub 519 - p.3]\nForm 8843 is required.",
		"[Pub 519 - p.3] -> [pub519, 3]",
		"Student's question: Do I file 8843?",
		"general guidance, not professional tax advice",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("prompt missing %q:\n%s", want, got)
		}
	}
}
