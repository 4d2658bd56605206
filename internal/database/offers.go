package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const offerColumns = `
	o.id, o.title, o.description, o.location, o.company_id, c.name, o.source, o.url,
	o.job_type, o.salary_min, o.salary_max, o.currency, o.date_posted, o.date_scraped,
	o.status, o.matching_score, o.created_at, o.updated_at`

const offerFrom = `FROM offers o LEFT JOIN companies c ON c.id = o.company_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOffer(row rowScanner) (*Offer, error) {
	o := &Offer{}
	var description, location, company, source, url, jobType, currency sql.NullString
	var companyID sql.NullInt64
	var salaryMin, salaryMax, score sql.NullFloat64
	var datePosted, dateScraped sql.NullTime

	err := row.Scan(
		&o.ID, &o.Title, &description, &location, &companyID, &company, &source, &url,
		&jobType, &salaryMin, &salaryMax, &currency, &datePosted, &dateScraped,
		&o.Status, &score, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Description = description.String
	o.Location = location.String
	o.CompanyID = Int64Ptr(companyID)
	o.Company = company.String
	o.Source = source.String
	o.URL = url.String
	o.JobType = jobType.String
	o.SalaryMin = Float64Ptr(salaryMin)
	o.SalaryMax = Float64Ptr(salaryMax)
	o.Currency = currency.String
	o.DatePosted = TimePtr(datePosted)
	o.DateScraped = TimePtr(dateScraped)
	o.MatchingScore = Float64Ptr(score)
	return o, nil
}

// EnsureCompany returns the id of the named company, creating it if needed
func (db *DB) EnsureCompany(ctx context.Context, name string) (int64, error) {
	_, err := db.ExecContext(ctx, `
		INSERT INTO companies (name) VALUES (?)
		ON CONFLICT(name) DO NOTHING
	`, name)
	if err != nil {
		return 0, err
	}

	var id int64
	err = db.QueryRowContext(ctx, `SELECT id FROM companies WHERE name = ?`, name).Scan(&id)
	return id, err
}

// CreateOffer inserts a new offer with its skills
func (db *DB) CreateOffer(ctx context.Context, o *Offer) error {
	if o.CompanyID == nil && o.Company != "" {
		id, err := db.EnsureCompany(ctx, o.Company)
		if err != nil {
			return fmt.Errorf("failed to ensure company: %w", err)
		}
		o.CompanyID = &id
	}
	if o.Status == "" {
		o.Status = StatusNew
	}
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt

	return db.Transaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO offers (
				title, description, location, company_id, source, url, job_type,
				salary_min, salary_max, currency, date_posted, date_scraped,
				status, matching_score, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			o.Title, NullString(o.Description), NullString(o.Location), NullInt64(o.CompanyID),
			NullString(o.Source), NullString(o.URL), NullString(o.JobType),
			NullFloat64(o.SalaryMin), NullFloat64(o.SalaryMax), NullString(o.Currency),
			NullTime(o.DatePosted), NullTime(o.DateScraped),
			o.Status, NullFloat64(o.MatchingScore), o.CreatedAt, o.UpdatedAt,
		)
		if err != nil {
			return err
		}

		o.ID, err = result.LastInsertId()
		if err != nil {
			return err
		}

		return insertSkills(ctx, tx, o.ID, o.Skills)
	})
}

func insertSkills(ctx context.Context, q querier, offerID int64, skills []string) error {
	for _, s := range skills {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO offer_skills (offer_id, skill_name) VALUES (?, ?)
			ON CONFLICT(offer_id, skill_name) DO NOTHING
		`, offerID, s)
		if err != nil {
			return fmt.Errorf("failed to insert skill %q: %w", s, err)
		}
	}
	return nil
}

// GetOffer retrieves an offer by ID, returning nil if it does not exist
func (db *DB) GetOffer(ctx context.Context, id int64) (*Offer, error) {
	return getOffer(ctx, db, id)
}

func getOffer(ctx context.Context, q querier, id int64) (*Offer, error) {
	row := q.QueryRowContext(ctx, `SELECT `+offerColumns+` `+offerFrom+` WHERE o.id = ?`, id)
	o, err := scanOffer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	o.Skills, err = offerSkills(ctx, q, id)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func offerSkills(ctx context.Context, q querier, offerID int64) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT skill_name FROM offer_skills WHERE offer_id = ? ORDER BY id
	`, offerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var skills []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		skills = append(skills, s)
	}
	return skills, rows.Err()
}

// ListOffers retrieves offers with their skills, ordered by id unless
// StalestFirst is set
func (db *DB) ListOffers(ctx context.Context, opts OfferListOptions) ([]Offer, error) {
	query := `SELECT ` + offerColumns + ` ` + offerFrom + ` WHERE 1=1`
	args := []any{}

	if opts.Unscored {
		query += " AND o.matching_score IS NULL"
	}

	if opts.StalestFirst {
		query += " ORDER BY o.matching_score IS NOT NULL, o.updated_at ASC, o.id ASC"
	} else {
		query += " ORDER BY o.id ASC"
	}

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	offers, err := db.queryOffers(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	if err := db.attachSkills(ctx, offers); err != nil {
		return nil, err
	}
	return offers, nil
}

func (db *DB) queryOffers(ctx context.Context, query string, args ...any) ([]Offer, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var offers []Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, *o)
	}
	return offers, rows.Err()
}

// attachSkills loads skills for all offers in one query
func (db *DB) attachSkills(ctx context.Context, offers []Offer) error {
	if len(offers) == 0 {
		return nil
	}

	index := make(map[int64]int, len(offers))
	for i, o := range offers {
		index[o.ID] = i
	}

	rows, err := db.QueryContext(ctx, `SELECT offer_id, skill_name FROM offer_skills ORDER BY id`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var offerID int64
		var name string
		if err := rows.Scan(&offerID, &name); err != nil {
			return err
		}
		if i, ok := index[offerID]; ok {
			offers[i].Skills = append(offers[i].Skills, name)
		}
	}
	return rows.Err()
}

// OfferExists reports whether an offer with the given id exists
func (db *DB) OfferExists(ctx context.Context, id int64) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM offers WHERE id = ?`, id).Scan(&n)
	return n > 0, err
}

// UpdateMatchingScore writes the final score of an offer
func (db *DB) UpdateMatchingScore(ctx context.Context, id int64, score float64) error {
	result, err := db.ExecContext(ctx, `
		UPDATE offers SET matching_score = ?, updated_at = ? WHERE id = ?
	`, score, time.Now(), id)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("offer %d: %w", id, ErrNotFound)
	}
	return nil
}

// CreateTransportInfo attaches a commute estimate to an offer
func (db *DB) CreateTransportInfo(ctx context.Context, t *TransportInfo) error {
	t.CreatedAt = time.Now()
	result, err := db.ExecContext(ctx, `
		INSERT INTO transport_info (offer_id, origin, mode, duration_minutes, distance_km, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, t.OfferID, NullString(t.Origin), NullString(t.Mode), NullInt64(t.DurationMinutes),
		NullFloat64(t.DistanceKm), t.CreatedAt)
	if err != nil {
		return err
	}
	t.ID, err = result.LastInsertId()
	return err
}

// CreateApplication records an application for an offer
func (db *DB) CreateApplication(ctx context.Context, a *Application) error {
	if a.Status == "" {
		a.Status = "draft"
	}
	a.CreatedAt = time.Now()
	result, err := db.ExecContext(ctx, `
		INSERT INTO applications (offer_id, status, applied_at, notes, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, a.OfferID, a.Status, NullTime(a.AppliedAt), NullString(a.Notes), a.CreatedAt)
	if err != nil {
		return err
	}
	a.ID, err = result.LastInsertId()
	return err
}

// CountOfferReferences returns how many transport, application and board rows point at an offer
func (db *DB) CountOfferReferences(ctx context.Context, offerID int64) (transport, applications, cards int, err error) {
	err = db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM transport_info WHERE offer_id = ?),
			(SELECT COUNT(*) FROM applications WHERE offer_id = ?),
			(SELECT COUNT(*) FROM board_cards WHERE offer_id = ?)
	`, offerID, offerID, offerID).Scan(&transport, &applications, &cards)
	return
}
