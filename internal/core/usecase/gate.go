package usecase

import (
	"errors"
	"strings"

	"github.com/kirillkom/student-tax-advisor/internal/core/domain"
)

const DefaultConfidenceThreshold = 0.70

// DefaultDomainKeywords is the stock in-domain vocabulary: tax terms, form
// numbers and visa/status terms.
func DefaultDomainKeywords() []string {
	return []string{
		"tax", "irs", "form", "1040", "8843", "w-2", "w-4", "1042-s", "1098-t",
		"treaty", "visa", "f-1", "j-1", "m-1", "opt", "cpt",
		"nonresident", "resident", "substantial presence", "itin", "ssn",
		"refund", "withholding", "income", "wage", "salary", "scholarship",
		"fellowship", "stipend", "deduction", "filing", "file", "return",
		"fica", "social security", "medicare", "federal", "exempt",
	}
}

// ConfidenceGate decides whether a question may be answered. Stage one is a
// keyword pre-filter on the raw question, stage two a floor on retrieval
// confidence.
type ConfidenceGate struct {
	keywords  []string
	threshold float64
}

func NewConfidenceGate(keywords []string, threshold float64) *ConfidenceGate {
	normalized := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			normalized = append(normalized, k)
		}
	}
	if len(normalized) == 0 {
		normalized = DefaultDomainKeywords()
	}
	if threshold < 0 || threshold > 1 {
		threshold = DefaultConfidenceThreshold
	}
	return &ConfidenceGate{keywords: normalized, threshold: threshold}
}

func (g *ConfidenceGate) Threshold() float64 {
	return g.threshold
}

func (g *ConfidenceGate) InDomain(question string) bool {
	q := strings.ToLower(question)
	for _, k := range g.keywords {
		if strings.Contains(q, k) {
			return true
		}
	}
	return false
}

// CheckDomain returns ErrOffTopic when no keyword occurs in question.
func (g *ConfidenceGate) CheckDomain(question string) error {
	if g.InDomain(question) {
		return nil
	}
	return domain.WrapError(domain.ErrOffTopic, "check domain", errors.New("no domain keyword in question"))
}

// CheckConfidence returns *domain.LowConfidenceError below the threshold or
// when the confidence is not a number.
func (g *ConfidenceGate) CheckConfidence(result *domain.RetrievalResult) error {
	confidence := 0.0
	if result != nil {
		confidence = result.Confidence
	}
	// Negated so a NaN confidence is refused too.
	if !(confidence >= g.threshold) {
		return &domain.LowConfidenceError{Confidence: confidence, Threshold: g.threshold}
	}
	return nil
}
