// Package dedupe finds offers that are re-posts of one another and folds them
// into a single canonical record.
package dedupe

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/vijay-prabhu/jobrank/internal/apperr"
	"github.com/vijay-prabhu/jobrank/internal/database"
	"github.com/vijay-prabhu/jobrank/internal/logger"
	"github.com/vijay-prabhu/jobrank/internal/textnorm"
)

const (
	DefaultThreshold          = 0.8
	DefaultAutoMergeThreshold = 0.9

	titleWeight       = 0.7
	descriptionWeight = 0.3
)

// DetectResult summarizes one detection pass
type DetectResult struct {
	Offers   int `json:"offers"`
	Buckets  int `json:"buckets"`
	Compared int `json:"compared"`
	Created  int `json:"created"`
	Existing int `json:"existing"`
}

// AutoMergeResult summarizes an automatic merge pass
type AutoMergeResult struct {
	Merged  int                    `json:"merged"`
	Skipped int                    `json:"skipped"`
	Failed  int                    `json:"failed"`
	Errors  []string               `json:"errors,omitempty"`
	Merges  []database.MergeResult `json:"merges,omitempty"`
}

// Detector detects, lists and merges duplicate offers
type Detector struct {
	db  *database.DB
	log *zap.Logger
}

// New creates a Detector over db
func New(db *database.DB, log *zap.Logger) *Detector {
	return &Detector{db: db, log: logger.OrNop(log)}
}

// Similarity compares two offers. Titles weigh 0.7 and descriptions 0.3; when
// either description is empty only the titles count.
func Similarity(a, b *database.Offer) float64 {
	title := textnorm.Similarity(textnorm.Normalize(a.Title), textnorm.Normalize(b.Title))

	descA := textnorm.Normalize(a.Description)
	descB := textnorm.Normalize(b.Description)
	if descA == "" || descB == "" {
		return title
	}

	return titleWeight*title + descriptionWeight*textnorm.Similarity(descA, descB)
}

// Detect groups offers by normalized (title, company, location) and links every
// bucket member whose similarity to the bucket's lowest-id offer reaches threshold.
// Running it again creates no new links.
func (d *Detector) Detect(ctx context.Context, threshold float64) (*DetectResult, error) {
	const op = "dedupe.Detect"

	if threshold < 0 || math.IsNaN(threshold) {
		return nil, apperr.Validation(op, "threshold must be a non-negative number, got %v", threshold)
	}

	offers, err := d.db.ListOffers(ctx, database.OfferListOptions{})
	if err != nil {
		return nil, apperr.Storage(op, err)
	}

	// offers arrive ordered by id so the first member of a bucket is canonical
	buckets := map[string][]*database.Offer{}
	var keys []string
	for i := range offers {
		o := &offers[i]
		key := textnorm.IdentityKey(o.Title, o.Company, o.Location)
		if _, ok := buckets[key]; !ok {
			keys = append(keys, key)
		}
		buckets[key] = append(buckets[key], o)
	}

	result := &DetectResult{Offers: len(offers)}
	for _, key := range keys {
		members := buckets[key]
		if len(members) < 2 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Buckets++

		canonical := members[0]
		for _, candidate := range members[1:] {
			result.Compared++
			score := Similarity(canonical, candidate)
			if score < threshold {
				continue
			}
			if err := d.link(ctx, result, canonical.ID, candidate.ID, score); err != nil {
				return result, apperr.Storage(op, err)
			}
		}
	}

	d.log.Info("duplicate detection complete",
		zap.Int("offers", result.Offers),
		zap.Int("buckets", result.Buckets),
		zap.Int("compared", result.Compared),
		zap.Int("created", result.Created),
		zap.Float64("threshold", threshold),
	)
	return result, nil
}

// DetectByURL links offers whose URLs match once the query string is dropped.
// Later offers link to the lowest-id offer with similarity 1.
func (d *Detector) DetectByURL(ctx context.Context) (*DetectResult, error) {
	const op = "dedupe.DetectByURL"

	offers, err := d.db.ListOffers(ctx, database.OfferListOptions{})
	if err != nil {
		return nil, apperr.Storage(op, err)
	}

	result := &DetectResult{Offers: len(offers)}
	first := map[string]int64{}
	for _, o := range offers {
		url := textnorm.StripQuery(o.URL)
		if url == "" {
			continue
		}

		originalID, ok := first[url]
		if !ok {
			first[url] = o.ID
			continue
		}

		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Compared++
		if err := d.link(ctx, result, originalID, o.ID, 1.0); err != nil {
			return result, apperr.Storage(op, err)
		}
	}

	d.log.Info("url duplicate detection complete",
		zap.Int("offers", result.Offers),
		zap.Int("created", result.Created),
	)
	return result, nil
}

func (d *Detector) link(ctx context.Context, result *DetectResult, originalID, duplicateID int64, score float64) error {
	created, err := d.db.CreateDuplicateLink(ctx, originalID, duplicateID, score)
	if err != nil {
		return fmt.Errorf("failed to link %d -> %d: %w", originalID, duplicateID, err)
	}
	if !created {
		result.Existing++
		return nil
	}

	result.Created++
	d.log.Debug("duplicate linked",
		zap.Int64("original_id", originalID),
		zap.Int64("duplicate_id", duplicateID),
		zap.Float64("similarity", score),
	)
	return nil
}

// Merge folds duplicateID into originalID atomically
func (d *Detector) Merge(ctx context.Context, originalID, duplicateID int64) (*database.MergeResult, error) {
	const op = "dedupe.Merge"

	if originalID == duplicateID {
		return nil, apperr.Validation(op, "cannot merge offer %d into itself", originalID)
	}

	result, err := d.db.MergeOffers(ctx, originalID, duplicateID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, apperr.NotFound(op, "%v", err)
		}
		return nil, apperr.Storage(op, err)
	}

	d.log.Info("offers merged",
		zap.Int64("original_id", originalID),
		zap.Int64("duplicate_id", duplicateID),
		zap.Int("fields_adopted", result.FieldsAdopted),
		zap.Int("links_removed", result.LinksRemoved),
	)
	return result, nil
}

// AutoMerge merges every linked pair at or above threshold, most similar first.
// Pairs whose offers are gone are skipped and failed merges are counted without
// stopping the pass.
func (d *Detector) AutoMerge(ctx context.Context, threshold float64) (*AutoMergeResult, error) {
	const op = "dedupe.AutoMerge"

	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return nil, apperr.Validation(op, "threshold must be between 0 and 1, got %v", threshold)
	}

	links, err := d.db.ListDuplicateLinks(ctx, database.DuplicateListOptions{MinScore: threshold})
	if err != nil {
		return nil, apperr.Storage(op, err)
	}

	result := &AutoMergeResult{}
	for _, l := range links {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		present, err := d.bothExist(ctx, l.OriginalOfferID, l.DuplicateOfferID)
		if err != nil {
			return result, apperr.Storage(op, err)
		}
		if !present {
			result.Skipped++
			continue
		}

		merged, err := d.Merge(ctx, l.OriginalOfferID, l.DuplicateOfferID)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, err.Error())
			d.log.Warn("auto-merge failed",
				zap.Int64("original_id", l.OriginalOfferID),
				zap.Int64("duplicate_id", l.DuplicateOfferID),
				zap.Error(err),
			)
			continue
		}
		result.Merged++
		result.Merges = append(result.Merges, *merged)
	}

	d.log.Info("auto-merge complete",
		zap.Int("merged", result.Merged),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (d *Detector) bothExist(ctx context.Context, ids ...int64) (bool, error) {
	for _, id := range ids {
		ok, err := d.db.OfferExists(ctx, id)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// Ignore dismisses a link without merging
func (d *Detector) Ignore(ctx context.Context, linkID int64) error {
	if err := d.db.DeleteDuplicateLink(ctx, linkID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return apperr.NotFound("dedupe.Ignore", "%v", err)
		}
		return apperr.Storage("dedupe.Ignore", err)
	}
	d.log.Info("duplicate link ignored", zap.Int64("link_id", linkID))
	return nil
}

// List returns links, optionally only those involving offerID
func (d *Detector) List(ctx context.Context, offerID *int64) ([]database.DuplicateLink, error) {
	links, err := d.db.ListDuplicateLinks(ctx, database.DuplicateListOptions{OfferID: offerID})
	if err != nil {
		return nil, apperr.Storage("dedupe.List", err)
	}
	return links, nil
}

// Stats aggregates links by similarity band and source pair
func (d *Detector) Stats(ctx context.Context) (*database.DuplicateStats, error) {
	stats, err := d.db.GetDuplicateStats(ctx)
	if err != nil {
		return nil, apperr.Storage("dedupe.Stats", err)
	}
	return stats, nil
}
