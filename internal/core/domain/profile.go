package domain

import (
	"strings"
	"time"
)

// StudentProfile is the intake answers used to personalize retrieval and prompts.
type StudentProfile struct {
	ID             string    `json:"id,omitempty"`
	VisaType       string    `json:"visa_type"`
	HomeCountry    string    `json:"home_country"`
	FirstEntryYear string    `json:"first_entry_year"`
	TaxYear        string    `json:"tax_year"`
	IncomeTypes    []string  `json:"income_types"`
	State          string    `json:"state"`
	HasSSNOrITIN   bool      `json:"has_ssn_or_itin"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`
}

// DefaultProfile mirrors the intake defaults offered when a field is left blank.
func DefaultProfile() StudentProfile {
	return StudentProfile{
		VisaType:       "F-1",
		HomeCountry:    "India",
		FirstEntryYear: "2023",
		TaxYear:        "2024",
		IncomeTypes:    []string{"None"},
		State:          "CA",
	}
}

// WithDefaults fills blank fields from DefaultProfile.
func (p StudentProfile) WithDefaults() StudentProfile {
	def := DefaultProfile()
	if strings.TrimSpace(p.VisaType) == "" {
		p.VisaType = def.VisaType
	}
	if strings.TrimSpace(p.HomeCountry) == "" {
		p.HomeCountry = def.HomeCountry
	}
	if strings.TrimSpace(p.FirstEntryYear) == "" {
		p.FirstEntryYear = def.FirstEntryYear
	}
	if strings.TrimSpace(p.TaxYear) == "" {
		p.TaxYear = def.TaxYear
	}
	if len(p.IncomeTypes) == 0 {
		p.IncomeTypes = def.IncomeTypes
	}
	if strings.TrimSpace(p.State) == "" {
		p.State = def.State
	}
	return p
}

// EnrichQuery appends profile context to the question for better retrieval.
func (p StudentProfile) EnrichQuery(question string) string {
	parts := []string{strings.TrimSpace(question)}
	if p.VisaType != "" {
		parts = append(parts, p.VisaType+" student")
	}
	if p.HomeCountry != "" {
		parts = append(parts, "from "+p.HomeCountry)
	}
	if p.TaxYear != "" {
		parts = append(parts, "tax year "+p.TaxYear)
	}
	if p.hasPracticalTraining() {
		parts = append(parts, "OPT CPT employment")
	}
	return strings.Join(parts, " ")
}

func (p StudentProfile) hasPracticalTraining() bool {
	for _, t := range p.IncomeTypes {
		if strings.Contains(t, "OPT") || strings.Contains(t, "CPT") {
			return true
		}
	}
	return false
}
