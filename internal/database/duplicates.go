package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateDuplicateLink records a duplicate pair. It reports false when the pair
// was already linked.
func (db *DB) CreateDuplicateLink(ctx context.Context, originalID, duplicateID int64, score float64) (bool, error) {
	result, err := db.ExecContext(ctx, `
		INSERT INTO duplicate_links (original_offer_id, duplicate_offer_id, similarity_score, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(original_offer_id, duplicate_offer_id) DO NOTHING
	`, originalID, duplicateID, score, time.Now())
	if err != nil {
		return false, err
	}

	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// ListDuplicateLinks returns links with both offer titles, most similar first
func (db *DB) ListDuplicateLinks(ctx context.Context, opts DuplicateListOptions) ([]DuplicateLink, error) {
	query := `
		SELECT d.id, d.original_offer_id, d.duplicate_offer_id, d.similarity_score,
		       o1.title, o2.title, d.created_at
		FROM duplicate_links d
		JOIN offers o1 ON o1.id = d.original_offer_id
		JOIN offers o2 ON o2.id = d.duplicate_offer_id
		WHERE d.similarity_score >= ?
	`
	args := []any{opts.MinScore}

	if opts.OfferID != nil {
		query += " AND (d.original_offer_id = ? OR d.duplicate_offer_id = ?)"
		args = append(args, *opts.OfferID, *opts.OfferID)
	}

	query += " ORDER BY d.similarity_score DESC, d.id ASC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []DuplicateLink
	for rows.Next() {
		var l DuplicateLink
		if err := rows.Scan(
			&l.ID, &l.OriginalOfferID, &l.DuplicateOfferID, &l.SimilarityScore,
			&l.OriginalTitle, &l.DuplicateTitle, &l.CreatedAt,
		); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// DeleteDuplicateLink dismisses a single link
func (db *DB) DeleteDuplicateLink(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM duplicate_links WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("duplicate link %d: %w", id, ErrNotFound)
	}
	return nil
}

// GetDuplicateStats aggregates links by similarity band and source pair
func (db *DB) GetDuplicateStats(ctx context.Context) (*DuplicateStats, error) {
	stats := &DuplicateStats{BySource: map[string]int{}}

	err := db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN similarity_score >= 0.9 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN similarity_score >= 0.7 AND similarity_score < 0.9 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN similarity_score < 0.7 THEN 1 ELSE 0 END), 0)
		FROM duplicate_links
	`).Scan(&stats.Total, &stats.HighSimilarity, &stats.MediumSimilar, &stats.LowSimilarity)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT COALESCE(o1.source, 'unknown'), COALESCE(o2.source, 'unknown'), COUNT(*)
		FROM duplicate_links d
		JOIN offers o1 ON o1.id = d.original_offer_id
		JOIN offers o2 ON o2.id = d.duplicate_offer_id
		GROUP BY 1, 2
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var s1, s2 string
		var n int
		if err := rows.Scan(&s1, &s2, &n); err != nil {
			return nil, err
		}
		stats.BySource[s1+"-"+s2] += n
	}
	return stats, rows.Err()
}

// MergeOffers folds duplicateID into originalID in a single transaction.
// Missing offers yield ErrNotFound and leave the store untouched.
func (db *DB) MergeOffers(ctx context.Context, originalID, duplicateID int64) (*MergeResult, error) {
	result := &MergeResult{OriginalID: originalID, DuplicateID: duplicateID}

	err := db.Transaction(ctx, func(tx *sql.Tx) error {
		original, err := getOffer(ctx, tx, originalID)
		if err != nil {
			return fmt.Errorf("failed to load original: %w", err)
		}
		if original == nil {
			return fmt.Errorf("offer %d: %w", originalID, ErrNotFound)
		}

		duplicate, err := getOffer(ctx, tx, duplicateID)
		if err != nil {
			return fmt.Errorf("failed to load duplicate: %w", err)
		}
		if duplicate == nil {
			return fmt.Errorf("offer %d: %w", duplicateID, ErrNotFound)
		}

		result.FieldsAdopted = UnionOffer(original, duplicate)
		if err := updateMergedOffer(ctx, tx, original); err != nil {
			return fmt.Errorf("failed to update original: %w", err)
		}

		if len(original.Skills) == 0 && len(duplicate.Skills) > 0 {
			n, err := execCount(ctx, tx, `UPDATE offer_skills SET offer_id = ? WHERE offer_id = ?`, originalID, duplicateID)
			if err != nil {
				return fmt.Errorf("failed to move skills: %w", err)
			}
			result.SkillsMoved = n
		}

		moves := []struct {
			table string
			count *int
		}{
			{"transport_info", &result.TransportMoved},
			{"applications", &result.ApplicationsMoved},
			{"board_cards", &result.CardsMoved},
		}
		for _, m := range moves {
			n, err := execCount(ctx, tx, `UPDATE `+m.table+` SET offer_id = ? WHERE offer_id = ?`, originalID, duplicateID)
			if err != nil {
				return fmt.Errorf("failed to re-point %s: %w", m.table, err)
			}
			*m.count = n
		}

		n, err := execCount(ctx, tx, `
			DELETE FROM duplicate_links
			WHERE original_offer_id = ? OR duplicate_offer_id = ?
		`, duplicateID, duplicateID)
		if err != nil {
			return fmt.Errorf("failed to delete links: %w", err)
		}
		result.LinksRemoved = n

		if _, err := tx.ExecContext(ctx, `DELETE FROM offers WHERE id = ?`, duplicateID); err != nil {
			return fmt.Errorf("failed to delete duplicate: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func execCount(ctx context.Context, tx *sql.Tx, query string, args ...any) (int, error) {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// UnionOffer fills empty fields of original from duplicate. Scrape date, salary
// bounds and matching score keep the larger value when both are set. It returns
// the number of fields that changed.
func UnionOffer(original, duplicate *Offer) int {
	changed := 0

	adopt := func(dst *string, src string) {
		if *dst == "" && src != "" {
			*dst = src
			changed++
		}
	}
	adopt(&original.Description, duplicate.Description)
	adopt(&original.Location, duplicate.Location)
	adopt(&original.Source, duplicate.Source)
	adopt(&original.URL, duplicate.URL)
	adopt(&original.JobType, duplicate.JobType)
	adopt(&original.Currency, duplicate.Currency)

	if original.CompanyID == nil && duplicate.CompanyID != nil {
		original.CompanyID = duplicate.CompanyID
		original.Company = duplicate.Company
		changed++
	}
	if original.DatePosted == nil && duplicate.DatePosted != nil {
		original.DatePosted = duplicate.DatePosted
		changed++
	}

	if original.DateScraped == nil || (duplicate.DateScraped != nil && duplicate.DateScraped.After(*original.DateScraped)) {
		if duplicate.DateScraped != nil {
			original.DateScraped = duplicate.DateScraped
			changed++
		}
	}

	maxFloat := func(dst **float64, src *float64) {
		if src == nil {
			return
		}
		if *dst == nil || *src > **dst {
			v := *src
			*dst = &v
			changed++
		}
	}
	maxFloat(&original.SalaryMin, duplicate.SalaryMin)
	maxFloat(&original.SalaryMax, duplicate.SalaryMax)
	maxFloat(&original.MatchingScore, duplicate.MatchingScore)

	return changed
}

func updateMergedOffer(ctx context.Context, tx *sql.Tx, o *Offer) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE offers SET
			description = ?, location = ?, company_id = ?, source = ?, url = ?,
			job_type = ?, salary_min = ?, salary_max = ?, currency = ?,
			date_posted = ?, date_scraped = ?, matching_score = ?, updated_at = ?
		WHERE id = ?
	`,
		NullString(o.Description), NullString(o.Location), NullInt64(o.CompanyID),
		NullString(o.Source), NullString(o.URL), NullString(o.JobType),
		NullFloat64(o.SalaryMin), NullFloat64(o.SalaryMax), NullString(o.Currency),
		NullTime(o.DatePosted), NullTime(o.DateScraped), NullFloat64(o.MatchingScore),
		time.Now(), o.ID,
	)
	return err
}
