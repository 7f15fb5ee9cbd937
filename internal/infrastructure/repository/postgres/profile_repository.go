package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/student-tax-advisor/internal/core/domain"
)

type ProfileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) SaveProfile(ctx context.Context, p domain.StudentProfile) error {
	if strings.TrimSpace(p.ID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "save profile", errors.New("profile id is required"))
	}
	incomeJSON, err := json.Marshal(p.IncomeTypes)
	if err != nil {
		return fmt.Errorf("marshal income types: %w", err)
	}
	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO student_profiles (
	id, visa_type, home_country, first_entry_year, tax_year, income_types, state, has_ssn_or_itin, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
	visa_type = EXCLUDED.visa_type,
	home_country = EXCLUDED.home_country,
	first_entry_year = EXCLUDED.first_entry_year,
	tax_year = EXCLUDED.tax_year,
	income_types = EXCLUDED.income_types,
	state = EXCLUDED.state,
	has_ssn_or_itin = EXCLUDED.has_ssn_or_itin,
	updated_at = EXCLUDED.updated_at
`,
		p.ID, p.VisaType, p.HomeCountry, p.FirstEntryYear, p.TaxYear, incomeJSON, p.State, p.HasSSNOrITIN, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func (r *ProfileRepository) GetProfile(ctx context.Context, id string) (*domain.StudentProfile, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, visa_type, home_country, first_entry_year, tax_year, income_types, state, has_ssn_or_itin, updated_at
FROM student_profiles
WHERE id = $1
`, id)

	var p domain.StudentProfile
	var incomeRaw []byte
	err := row.Scan(
		&p.ID, &p.VisaType, &p.HomeCountry, &p.FirstEntryYear, &p.TaxYear,
		&incomeRaw, &p.State, &p.HasSSNOrITIN, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrProfileNotFound, "get profile", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	if err := json.Unmarshal(incomeRaw, &p.IncomeTypes); err != nil {
		return nil, fmt.Errorf("unmarshal income types: %w", err)
	}
	return &p, nil
}
