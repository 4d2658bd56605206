package database

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a referenced row does not exist
var ErrNotFound = errors.New("not found")

// OfferStatus is the triage state of an offer. It is owned by the scraping side
// and only read here.
type OfferStatus string

const (
	StatusNew               OfferStatus = "new"
	StatusReviewing         OfferStatus = "reviewing"
	StatusToApply           OfferStatus = "to_apply"
	StatusApplied           OfferStatus = "applied"
	StatusRejectedByMe      OfferStatus = "rejected_by_me"
	StatusRejectedByCompany OfferStatus = "rejected_by_company"
)

// Offer represents a scraped job posting
type Offer struct {
	ID            int64       `json:"id"`
	Title         string      `json:"title"`
	Description   string      `json:"description,omitempty"`
	Location      string      `json:"location,omitempty"`
	CompanyID     *int64      `json:"company_id,omitempty"`
	Company       string      `json:"company,omitempty"`
	Source        string      `json:"source,omitempty"`
	URL           string      `json:"url,omitempty"`
	JobType       string      `json:"job_type,omitempty"`
	SalaryMin     *float64    `json:"salary_min,omitempty"`
	SalaryMax     *float64    `json:"salary_max,omitempty"`
	Currency      string      `json:"currency,omitempty"`
	DatePosted    *time.Time  `json:"date_posted,omitempty"`
	DateScraped   *time.Time  `json:"date_scraped,omitempty"`
	Status        OfferStatus `json:"status"`
	MatchingScore *float64    `json:"matching_score,omitempty"`
	Skills        []string    `json:"skills,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// OfferListOptions contains options for listing offers
type OfferListOptions struct {
	Unscored bool
	// StalestFirst lists unscored offers first, then the least recently
	// scored, so a bounded batch works through the whole table over runs
	StalestFirst bool
	Limit        int
}

// TransportInfo is a commute estimate attached to an offer
type TransportInfo struct {
	ID              int64     `json:"id"`
	OfferID         int64     `json:"offer_id"`
	Origin          string    `json:"origin,omitempty"`
	Mode            string    `json:"mode,omitempty"`
	DurationMinutes *int64    `json:"duration_minutes,omitempty"`
	DistanceKm      *float64  `json:"distance_km,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Application tracks a submitted application for an offer
type Application struct {
	ID        int64      `json:"id"`
	OfferID   int64      `json:"offer_id"`
	Status    string     `json:"status"`
	AppliedAt *time.Time `json:"applied_at,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// BoardColumn is a triage stage on the user's board
type BoardColumn struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Position    int    `json:"position"`
	Description string `json:"description,omitempty"`
}

// BoardCard places an offer in a board column
type BoardCard struct {
	ID        int64     `json:"id"`
	ColumnID  int64     `json:"column_id"`
	OfferID   int64     `json:"offer_id"`
	Position  int       `json:"position"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DuplicateLink records that one offer is a re-post of another
type DuplicateLink struct {
	ID               int64     `json:"id"`
	OriginalOfferID  int64     `json:"original_offer_id"`
	DuplicateOfferID int64     `json:"duplicate_offer_id"`
	SimilarityScore  float64   `json:"similarity_score"`
	OriginalTitle    string    `json:"original_title,omitempty"`
	DuplicateTitle   string    `json:"duplicate_title,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// DuplicateListOptions filters duplicate links
type DuplicateListOptions struct {
	OfferID  *int64
	MinScore float64
}

// DuplicateStats summarizes the recorded duplicate links
type DuplicateStats struct {
	Total          int            `json:"total"`
	HighSimilarity int            `json:"high_similarity"`
	MediumSimilar  int            `json:"medium_similarity"`
	LowSimilarity  int            `json:"low_similarity"`
	BySource       map[string]int `json:"by_source"`
}

// MergeResult describes what a merge moved and removed
type MergeResult struct {
	OriginalID        int64 `json:"original_id"`
	DuplicateID       int64 `json:"duplicate_id"`
	FieldsAdopted     int   `json:"fields_adopted"`
	SkillsMoved       int   `json:"skills_moved"`
	TransportMoved    int   `json:"transport_moved"`
	ApplicationsMoved int   `json:"applications_moved"`
	CardsMoved        int   `json:"cards_moved"`
	LinksRemoved      int   `json:"links_removed"`
}

// FeedbackType is the polarity assigned to a board column
type FeedbackType string

const (
	FeedbackPositive FeedbackType = "positive"
	FeedbackNegative FeedbackType = "negative"
	FeedbackNeutral  FeedbackType = "neutral"
)

// Valid reports whether t is a known polarity
func (t FeedbackType) Valid() bool {
	switch t {
	case FeedbackPositive, FeedbackNegative, FeedbackNeutral:
		return true
	}
	return false
}

// FeedbackConfig maps a board column to a polarity and weight
type FeedbackConfig struct {
	ID           int64        `json:"id"`
	ColumnID     int64        `json:"column_id"`
	ColumnName   string       `json:"column_name"`
	FeedbackType FeedbackType `json:"feedback_type"`
	Weight       float64      `json:"weight"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// KeywordWeight is a keyword mined from the cards of one feedback column
type KeywordWeight struct {
	ID               int64        `json:"id"`
	FeedbackConfigID int64        `json:"feedback_config_id"`
	Keyword          string       `json:"keyword"`
	Weight           float64      `json:"weight"`
	Occurrence       int          `json:"occurrence"`
	FeedbackType     FeedbackType `json:"feedback_type,omitempty"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// Add folds count new observations at weight w into the running
// occurrence-weighted average.
func (k *KeywordWeight) Add(w float64, count int) {
	if count <= 0 {
		return
	}
	total := k.Occurrence + count
	k.Weight = (k.Weight*float64(k.Occurrence) + w*float64(count)) / float64(total)
	k.Occurrence = total
}

// KeywordListOptions filters keyword listings
type KeywordListOptions struct {
	FeedbackType *FeedbackType
	Limit        int
}

// SearchKeyword is a keyword suggested to the scraper
type SearchKeyword struct {
	ID        int64        `json:"id"`
	Keyword   string       `json:"keyword"`
	Weight    float64      `json:"weight"`
	Polarity  FeedbackType `json:"polarity"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// UserProfile is the candidate profile offers are scored against
type UserProfile struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	Email       string           `json:"email,omitempty"`
	Skills      []UserSkill      `json:"skills"`
	Experiences []UserExperience `json:"experiences"`
	Education   []UserEducation  `json:"education"`
	CreatedAt   time.Time        `json:"created_at"`
}

// UserSkill is a named skill with an optional level
type UserSkill struct {
	Name  string `json:"name"`
	Level string `json:"level,omitempty"`
}

// UserExperience is a past position
type UserExperience struct {
	Position    string `json:"position"`
	Company     string `json:"company,omitempty"`
	StartDate   string `json:"start_date,omitempty"`
	EndDate     string `json:"end_date,omitempty"`
	Description string `json:"description,omitempty"`
}

// UserEducation is a degree or course
type UserEducation struct {
	Institution string `json:"institution"`
	Degree      string `json:"degree,omitempty"`
	Field       string `json:"field,omitempty"`
	StartDate   string `json:"start_date,omitempty"`
	EndDate     string `json:"end_date,omitempty"`
}

// RunStatus is the outcome of a pipeline run
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunCanceled  RunStatus = "canceled"
)

// PipelineRun records one execution of the pipeline
type PipelineRun struct {
	ID            string     `json:"id"`
	Status        RunStatus  `json:"status"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	LinksFound    int        `json:"links_found"`
	Merged        int        `json:"merged"`
	CardsAnalyzed int        `json:"cards_analyzed"`
	KeywordsSaved int        `json:"keywords_saved"`
	Scored        int        `json:"scored"`
	Failed        int        `json:"failed"`
	Error         string     `json:"error,omitempty"`
}

// NullString converts an empty string to NULL
func NullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// NullFloat64 is a helper to convert *float64 to sql.NullFloat64
func NullFloat64(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// NullInt64 is a helper to convert *int64 to sql.NullInt64
func NullInt64(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}

// NullTime is a helper to convert *time.Time to sql.NullTime
func NullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// Float64Ptr converts sql.NullFloat64 to *float64
func Float64Ptr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	return &nf.Float64
}

// Int64Ptr converts sql.NullInt64 to *int64
func Int64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	return &ni.Int64
}

// TimePtr converts sql.NullTime to *time.Time
func TimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	return &nt.Time
}
