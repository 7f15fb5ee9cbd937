package prompt

import (
	"fmt"
	"strings"

	"github.com/kirillkom/student-tax-advisor/internal/core/domain"
)

const contextSeparator = "\n\n---\n\n"

// FormatContext renders chunks as "[title - p.N]\ntext" blocks.
func FormatContext(chunks []domain.Chunk) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, c.Citation()+"\n"+strings.TrimSpace(c.Text))
	}
	return strings.Join(parts, contextSeparator)
}

func FormatProfile(p domain.StudentProfile) string {
	ssn := "No"
	if p.HasSSNOrITIN {
		ssn = "Yes"
	}
	return fmt.Sprintf(`- Visa: %s
- Home country: %s
- First U.S. entry: %s
- Tax year: %s
- Income types: %s
- State: %s
- Has SSN/ITIN: %s`,
		p.VisaType,
		p.HomeCountry,
		p.FirstEntryYear,
		p.TaxYear,
		strings.Join(p.IncomeTypes, ", "),
		p.State,
		ssn,
	)
}

// BuildAnswer is the grounded-answer prompt shared by every generator backend.
func BuildAnswer(req domain.AnswerRequest) string {
	return fmt.Sprintf(`You are a helpful tax advisor for international students in the U.S.

Student profile:
%s

Use ONLY the provided reference documents to answer. If the documents don't cover something,
say so clearly and do not speculate. Cite sources as [doc_id, page] after each claim.
Always remind the student this is general guidance, not professional tax advice.

--- REFERENCE DOCUMENTS ---
%s
--- END DOCUMENTS ---

Source ids:
%s

Student's question: %s

Provide a clear, helpful answer:`,
		FormatProfile(req.Profile),
		FormatContext(req.Chunks),
		sourceIndex(req.Chunks),
		strings.TrimSpace(req.Question),
	)
}

func sourceIndex(chunks []domain.Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		page := "?"
		if c.Metadata.PageNumber > 0 {
			page = fmt.Sprint(c.Metadata.PageNumber)
		}
		fmt.Fprintf(&b, "%s -> [%s, %s]\n", c.Citation(), c.Metadata.DocID, page)
	}
	return strings.TrimRight(b.String(), "\n")
}
