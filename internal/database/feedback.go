package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// CreateBoardColumn inserts a board column
func (db *DB) CreateBoardColumn(ctx context.Context, c *BoardColumn) error {
	result, err := db.ExecContext(ctx, `
		INSERT INTO board_columns (name, position, description) VALUES (?, ?, ?)
	`, c.Name, c.Position, NullString(c.Description))
	if err != nil {
		return err
	}
	c.ID, err = result.LastInsertId()
	return err
}

// ListBoardColumns returns board columns in display order
func (db *DB) ListBoardColumns(ctx context.Context) ([]BoardColumn, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, position, description FROM board_columns ORDER BY position, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []BoardColumn
	for rows.Next() {
		var c BoardColumn
		var desc sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &c.Position, &desc); err != nil {
			return nil, err
		}
		c.Description = desc.String
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// CreateBoardCard places an offer on a board column
func (db *DB) CreateBoardCard(ctx context.Context, c *BoardCard) error {
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	result, err := db.ExecContext(ctx, `
		INSERT INTO board_cards (column_id, offer_id, position, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.ColumnID, c.OfferID, c.Position, NullString(c.Notes), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return err
	}
	c.ID, err = result.LastInsertId()
	return err
}

// ListColumnOffers returns the offers whose cards sit in the given column
func (db *DB) ListColumnOffers(ctx context.Context, columnID int64) ([]Offer, error) {
	return db.queryOffers(ctx, `
		SELECT `+offerColumns+` `+offerFrom+`
		JOIN board_cards b ON b.offer_id = o.id
		WHERE b.column_id = ?
		ORDER BY b.position, b.id
	`, columnID)
}

const feedbackConfigColumns = `id, column_id, column_name, feedback_type, weight, created_at, updated_at`

func scanFeedbackConfig(row rowScanner) (*FeedbackConfig, error) {
	c := &FeedbackConfig{}
	err := row.Scan(&c.ID, &c.ColumnID, &c.ColumnName, &c.FeedbackType, &c.Weight, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CreateFeedbackConfig inserts a config unless the column already has one
func (db *DB) CreateFeedbackConfig(ctx context.Context, c *FeedbackConfig) (bool, error) {
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	result, err := db.ExecContext(ctx, `
		INSERT INTO feedback_configs (column_id, column_name, feedback_type, weight, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(column_id) DO NOTHING
	`, c.ColumnID, c.ColumnName, c.FeedbackType, c.Weight, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return false, err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return false, nil
	}
	c.ID, err = result.LastInsertId()
	return true, err
}

// ListFeedbackConfigs returns all feedback configs ordered by column
func (db *DB) ListFeedbackConfigs(ctx context.Context) ([]FeedbackConfig, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+feedbackConfigColumns+` FROM feedback_configs ORDER BY column_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []FeedbackConfig
	for rows.Next() {
		c, err := scanFeedbackConfig(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, *c)
	}
	return configs, rows.Err()
}

// GetFeedbackConfigByColumn looks a config up by column name (case-insensitive)
func (db *DB) GetFeedbackConfigByColumn(ctx context.Context, columnName string) (*FeedbackConfig, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+feedbackConfigColumns+` FROM feedback_configs
		WHERE LOWER(column_name) = LOWER(?)
	`, strings.TrimSpace(columnName))
	c, err := scanFeedbackConfig(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// UpdateFeedbackConfig changes the polarity and weight of a config
func (db *DB) UpdateFeedbackConfig(ctx context.Context, id int64, t FeedbackType, weight float64) error {
	result, err := db.ExecContext(ctx, `
		UPDATE feedback_configs SET feedback_type = ?, weight = ?, updated_at = ? WHERE id = ?
	`, t, weight, time.Now(), id)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("feedback config %d: %w", id, ErrNotFound)
	}
	return nil
}

// AddKeywords folds keyword counts observed at weight into the stored running
// averages of a config, in one transaction. It returns the number of keywords touched.
func (db *DB) AddKeywords(ctx context.Context, configID int64, counts map[string]int, weight float64) (int, error) {
	saved := 0
	now := time.Now()

	err := db.Transaction(ctx, func(tx *sql.Tx) error {
		for keyword, count := range counts {
			if count <= 0 {
				continue
			}

			k := KeywordWeight{FeedbackConfigID: configID, Keyword: keyword}
			err := tx.QueryRowContext(ctx, `
				SELECT id, weight, occurrence FROM keyword_weights
				WHERE feedback_config_id = ? AND keyword = ?
			`, configID, keyword).Scan(&k.ID, &k.Weight, &k.Occurrence)
			if err != nil && err != sql.ErrNoRows {
				return err
			}

			k.Add(weight, count)

			if k.ID == 0 {
				_, err = tx.ExecContext(ctx, `
					INSERT INTO keyword_weights (feedback_config_id, keyword, weight, occurrence, updated_at)
					VALUES (?, ?, ?, ?, ?)
				`, configID, keyword, k.Weight, k.Occurrence, now)
			} else {
				_, err = tx.ExecContext(ctx, `
					UPDATE keyword_weights SET weight = ?, occurrence = ?, updated_at = ? WHERE id = ?
				`, k.Weight, k.Occurrence, now, k.ID)
			}
			if err != nil {
				return fmt.Errorf("failed to save keyword %q: %w", keyword, err)
			}
			saved++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return saved, nil
}

// ListKeywordWeights returns keywords with their column polarity, strongest first
func (db *DB) ListKeywordWeights(ctx context.Context, opts KeywordListOptions) ([]KeywordWeight, error) {
	query := `
		SELECT k.id, k.feedback_config_id, k.keyword, k.weight, k.occurrence, f.feedback_type, k.updated_at
		FROM keyword_weights k
		JOIN feedback_configs f ON f.id = k.feedback_config_id
		WHERE 1=1
	`
	args := []any{}

	if opts.FeedbackType != nil {
		query += " AND f.feedback_type = ?"
		args = append(args, *opts.FeedbackType)
	}

	query += " ORDER BY k.weight * k.occurrence DESC, k.keyword ASC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keywords []KeywordWeight
	for rows.Next() {
		var k KeywordWeight
		if err := rows.Scan(&k.ID, &k.FeedbackConfigID, &k.Keyword, &k.Weight, &k.Occurrence, &k.FeedbackType, &k.UpdatedAt); err != nil {
			return nil, err
		}
		keywords = append(keywords, k)
	}
	return keywords, rows.Err()
}

// UpsertSearchKeyword stores a keyword suggestion for the scraper. An existing
// keyword of the same polarity only ever gains weight.
func (db *DB) UpsertSearchKeyword(ctx context.Context, k *SearchKeyword) error {
	k.UpdatedAt = time.Now()
	_, err := db.ExecContext(ctx, `
		INSERT INTO search_keywords (keyword, weight, polarity, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(keyword) DO UPDATE SET
			weight = CASE
				WHEN search_keywords.polarity = excluded.polarity
				THEN MAX(search_keywords.weight, excluded.weight)
				ELSE excluded.weight
			END,
			polarity = excluded.polarity,
			updated_at = excluded.updated_at
	`, k.Keyword, k.Weight, k.Polarity, k.UpdatedAt)
	return err
}

// ListSearchKeywords returns stored suggestions, heaviest first
func (db *DB) ListSearchKeywords(ctx context.Context) ([]SearchKeyword, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, keyword, weight, polarity, updated_at FROM search_keywords
		ORDER BY polarity DESC, weight DESC, keyword ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keywords []SearchKeyword
	for rows.Next() {
		var k SearchKeyword
		if err := rows.Scan(&k.ID, &k.Keyword, &k.Weight, &k.Polarity, &k.UpdatedAt); err != nil {
			return nil, err
		}
		keywords = append(keywords, k)
	}
	return keywords, rows.Err()
}
