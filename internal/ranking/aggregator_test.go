package ranking

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/vijay-prabhu/jobrank/internal/apperr"
	"github.com/vijay-prabhu/jobrank/internal/config"
	"github.com/vijay-prabhu/jobrank/internal/database"
	"github.com/vijay-prabhu/jobrank/internal/matching"
)

func setupTestDB(t *testing.T) (*database.DB, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "jobrank-ranking-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	db, err := database.Open(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("failed to open database: %v", err)
	}

	return db, func() {
		db.Close()
		os.RemoveAll(tmpDir)
	}
}

type stubBase struct {
	score float64
	calls int
}

func (s *stubBase) Score(ctx context.Context, offer *database.Offer) matching.Signals {
	s.calls++
	return matching.Signals{OfferID: offer.ID, Base: s.score}
}

type stubFeedback struct {
	score float64
	err   error
}

func (s stubFeedback) Score(ctx context.Context, text string) (float64, error) {
	return s.score, s.err
}

func floatPtr(f float64) *float64 { return &f }

func createOffer(t *testing.T, db *database.DB, o database.Offer) *database.Offer {
	t.Helper()
	if err := db.CreateOffer(context.Background(), &o); err != nil {
		t.Fatalf("CreateOffer failed: %v", err)
	}
	return &o
}

func storedScore(t *testing.T, db *database.DB, id int64) float64 {
	t.Helper()
	o, err := db.GetOffer(context.Background(), id)
	if err != nil || o == nil || o.MatchingScore == nil {
		t.Fatalf("failed to read score of offer %d: %v", id, err)
	}
	return *o.MatchingScore
}

func TestBlend(t *testing.T) {
	w := config.DefaultBlendWeights()

	tests := []struct {
		name     string
		current  float64
		feedback float64
		want     float64
	}{
		{"fixed point", 60, 0.6, 60},
		{"neutral feedback", 80, 0.5, 71},
		{"all zero", 0, 0, 0},
		{"upper bound", 100, 1, 100},
		{"clamped above", 150, 1, 100},
		{"clamped below", -50, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Blend(w, tt.current, tt.feedback)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Blend(%v, %v) = %v, want %v", tt.current, tt.feedback, got, tt.want)
			}
		})
	}
}

func TestNewRejectsInvalidBlend(t *testing.T) {
	_, err := New(nil, nil, nil, config.BlendWeights{Base: 0.5, Feedback: 0.6}, nil)
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestUpdateUsesStoredScore(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	o := createOffer(t, db, database.Offer{Title: "Go Developer", MatchingScore: floatPtr(60)})
	base := &stubBase{score: 10}
	a, err := New(db, base, stubFeedback{score: 0.6}, config.DefaultBlendWeights(), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	res, err := a.Update(ctx, o, Options{})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if base.calls != 0 {
		t.Error("stored score should be used without calling the base scorer")
	}
	if math.Abs(res.Final-60) > 1e-9 {
		t.Errorf("expected fixed point 60, got %v", res.Final)
	}
	if got := storedScore(t, db, o.ID); math.Abs(got-60) > 1e-9 {
		t.Errorf("expected stored 60, got %v", got)
	}
}

func TestUpdateRecompute(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	o := createOffer(t, db, database.Offer{Title: "Go Developer", MatchingScore: floatPtr(60)})
	base := &stubBase{score: 90}
	a, _ := New(db, base, stubFeedback{score: 0.5}, config.DefaultBlendWeights(), nil)

	res, err := a.Update(ctx, o, Options{Recompute: true})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if base.calls != 1 || res.Signals == nil {
		t.Fatal("recompute should call the base scorer")
	}
	want := 0.7*90 + 0.3*50
	if math.Abs(res.Final-want) > 1e-9 {
		t.Errorf("expected %v, got %v", want, res.Final)
	}
}

func TestUpdateFeedbackFailureIsNeutral(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	o := createOffer(t, db, database.Offer{Title: "Go Developer", MatchingScore: floatPtr(40)})
	fb := stubFeedback{score: 0.5, err: errors.New("database is locked")}
	a, _ := New(db, nil, fb, config.DefaultBlendWeights(), nil)

	res, err := a.Update(ctx, o, Options{})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("expected a feedback warning, got %v", res.Warnings)
	}
	if want := 0.7*40 + 0.3*50; math.Abs(res.Final-want) > 1e-9 {
		t.Errorf("expected %v, got %v", want, res.Final)
	}
}

func TestUpdateWithoutBaseScore(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	o := createOffer(t, db, database.Offer{Title: "Go Developer"})
	a, _ := New(db, nil, nil, config.DefaultBlendWeights(), nil)

	_, err := a.Update(context.Background(), o, Options{})
	if !errors.Is(err, ErrNoBaseScore) {
		t.Errorf("expected ErrNoBaseScore, got %v", err)
	}
}

func TestUpdateAll(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	createOffer(t, db, database.Offer{Title: "Scored", MatchingScore: floatPtr(50)})
	fresh := createOffer(t, db, database.Offer{Title: "Fresh"})

	a, _ := New(db, &stubBase{score: 80}, stubFeedback{score: 0.8}, config.DefaultBlendWeights(), nil)

	var progress []int
	result, err := a.UpdateAll(ctx, Options{
		Unscored: true,
		Progress: func(current, total int) { progress = append(progress, current) },
	})
	if err != nil {
		t.Fatalf("UpdateAll failed: %v", err)
	}
	if result.Total != 1 || result.Scored != 1 {
		t.Errorf("expected only the unscored offer, got %+v", result)
	}
	if len(progress) != 1 {
		t.Errorf("expected one progress callback, got %v", progress)
	}
	if got := storedScore(t, db, fresh.ID); math.Abs(got-80) > 1e-9 {
		t.Errorf("expected 80, got %v", got)
	}
}

func TestUpdateAllSkipsOffersWithoutBase(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	createOffer(t, db, database.Offer{Title: "Scored", MatchingScore: floatPtr(50)})
	createOffer(t, db, database.Offer{Title: "Fresh"})

	a, _ := New(db, nil, stubFeedback{score: 0.5}, config.DefaultBlendWeights(), nil)
	result, err := a.UpdateAll(context.Background(), Options{})
	if err != nil {
		t.Fatalf("UpdateAll failed: %v", err)
	}
	if result.Scored != 1 || result.Skipped != 1 || result.Failed != 0 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestUpdateAllCanceled(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	createOffer(t, db, database.Offer{Title: "Scored", MatchingScore: floatPtr(50)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a, _ := New(db, nil, nil, config.DefaultBlendWeights(), nil)
	_, err := a.UpdateAll(ctx, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := storedScore(t, db, 1); got != 50 {
		t.Errorf("canceled batch should not rescore, got %v", got)
	}
}
