package database

import (
	"context"
	"database/sql"
	"time"
)

// CreateUserProfile inserts a profile with its skills, experiences and education
func (db *DB) CreateUserProfile(ctx context.Context, p *UserProfile) error {
	p.CreatedAt = time.Now()

	return db.Transaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO user_profiles (name, email, created_at) VALUES (?, ?, ?)
		`, p.Name, NullString(p.Email), p.CreatedAt)
		if err != nil {
			return err
		}
		p.ID, err = result.LastInsertId()
		if err != nil {
			return err
		}

		for _, s := range p.Skills {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO user_skills (profile_id, name, level) VALUES (?, ?, ?)
			`, p.ID, s.Name, NullString(s.Level)); err != nil {
				return err
			}
		}

		for _, e := range p.Experiences {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO user_experiences (profile_id, position, company, start_date, end_date, description)
				VALUES (?, ?, ?, ?, ?, ?)
			`, p.ID, e.Position, NullString(e.Company), NullString(e.StartDate),
				NullString(e.EndDate), NullString(e.Description)); err != nil {
				return err
			}
		}

		for _, e := range p.Education {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO user_education (profile_id, institution, degree, field, start_date, end_date)
				VALUES (?, ?, ?, ?, ?, ?)
			`, p.ID, e.Institution, NullString(e.Degree), NullString(e.Field),
				NullString(e.StartDate), NullString(e.EndDate)); err != nil {
				return err
			}
		}

		return nil
	})
}

// GetUserProfile loads the first profile, returning nil if none exists
func (db *DB) GetUserProfile(ctx context.Context) (*UserProfile, error) {
	p := &UserProfile{}
	var email sql.NullString

	err := db.QueryRowContext(ctx, `
		SELECT id, name, email, created_at FROM user_profiles ORDER BY id LIMIT 1
	`).Scan(&p.ID, &p.Name, &email, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Email = email.String

	if p.Skills, err = db.userSkills(ctx, p.ID); err != nil {
		return nil, err
	}
	if p.Experiences, err = db.userExperiences(ctx, p.ID); err != nil {
		return nil, err
	}
	if p.Education, err = db.userEducation(ctx, p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

func (db *DB) userSkills(ctx context.Context, profileID int64) ([]UserSkill, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT name, level FROM user_skills WHERE profile_id = ? ORDER BY id
	`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var skills []UserSkill
	for rows.Next() {
		var s UserSkill
		var level sql.NullString
		if err := rows.Scan(&s.Name, &level); err != nil {
			return nil, err
		}
		s.Level = level.String
		skills = append(skills, s)
	}
	return skills, rows.Err()
}

func (db *DB) userExperiences(ctx context.Context, profileID int64) ([]UserExperience, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT position, company, start_date, end_date, description
		FROM user_experiences WHERE profile_id = ? ORDER BY id
	`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exps []UserExperience
	for rows.Next() {
		var e UserExperience
		var company, start, end, desc sql.NullString
		if err := rows.Scan(&e.Position, &company, &start, &end, &desc); err != nil {
			return nil, err
		}
		e.Company = company.String
		e.StartDate = start.String
		e.EndDate = end.String
		e.Description = desc.String
		exps = append(exps, e)
	}
	return exps, rows.Err()
}

func (db *DB) userEducation(ctx context.Context, profileID int64) ([]UserEducation, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT institution, degree, field, start_date, end_date
		FROM user_education WHERE profile_id = ? ORDER BY id
	`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edu []UserEducation
	for rows.Next() {
		var e UserEducation
		var degree, field, start, end sql.NullString
		if err := rows.Scan(&e.Institution, &degree, &field, &start, &end); err != nil {
			return nil, err
		}
		e.Degree = degree.String
		e.Field = field.String
		e.StartDate = start.String
		e.EndDate = end.String
		edu = append(edu, e)
	}
	return edu, rows.Err()
}
