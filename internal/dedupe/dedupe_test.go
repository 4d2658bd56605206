package dedupe

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/vijay-prabhu/jobrank/internal/apperr"
	"github.com/vijay-prabhu/jobrank/internal/database"
)

func setupTestDB(t *testing.T) (*database.DB, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "jobrank-dedupe-*")
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

func createOffer(t *testing.T, db *database.DB, o database.Offer) int64 {
	t.Helper()
	if err := db.CreateOffer(context.Background(), &o); err != nil {
		t.Fatalf("CreateOffer failed: %v", err)
	}
	return o.ID
}

func floatPtr(f float64) *float64 { return &f }

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b database.Offer
		want float64
	}{
		{
			name: "identical titles without descriptions",
			a:    database.Offer{Title: "Backend Dev"},
			b:    database.Offer{Title: "backend dev!"},
			want: 1,
		},
		{
			name: "one description missing uses title only",
			a:    database.Offer{Title: "Backend Dev", Description: "Go and SQL"},
			b:    database.Offer{Title: "Backend Dev"},
			want: 1,
		},
		{
			name: "weighted title and description",
			a:    database.Offer{Title: "Backend Dev", Description: "abcd"},
			b:    database.Offer{Title: "Backend Dev", Description: "wxyz"},
			want: 0.7,
		},
		{
			name: "empty titles",
			a:    database.Offer{},
			b:    database.Offer{},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(&tt.a, &tt.b)
			if got < tt.want-1e-9 || got > tt.want+1e-9 {
				t.Errorf("Similarity() = %v, want %v", got, tt.want)
			}
			if back := Similarity(&tt.b, &tt.a); back != got {
				t.Errorf("Similarity is not symmetric: %v vs %v", got, back)
			}
		})
	}
}

func TestDetectLinksBucketToLowestID(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	first := createOffer(t, db, database.Offer{
		Title: "Backend Dev", Company: "Acme", Location: "Paris",
		Description: "Build Go services for our payments platform",
	})
	second := createOffer(t, db, database.Offer{
		Title: "Backend Dev", Company: "Acme", Location: "Paris",
		Description: "Build Go services for our payment platform",
	})
	createOffer(t, db, database.Offer{Title: "Backend Dev", Company: "Other", Location: "Paris"})

	d := New(db, nil)
	result, err := d.Detect(ctx, 0.8)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if result.Buckets != 1 || result.Compared != 1 || result.Created != 1 {
		t.Errorf("unexpected result: %+v", result)
	}

	links, err := d.List(ctx, nil)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(links))
	}
	if links[0].OriginalOfferID != first || links[0].DuplicateOfferID != second {
		t.Errorf("expected link %d -> %d, got %d -> %d",
			first, second, links[0].OriginalOfferID, links[0].DuplicateOfferID)
	}
	if links[0].SimilarityScore < 0.95 {
		t.Errorf("expected high similarity, got %v", links[0].SimilarityScore)
	}

	again, err := d.Detect(ctx, 0.8)
	if err != nil {
		t.Fatalf("second Detect failed: %v", err)
	}
	if again.Created != 0 || again.Existing != 1 {
		t.Errorf("second run should create nothing, got %+v", again)
	}
}

func TestDetectThresholds(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		want      int
	}{
		{"above one flags nothing", 1.1, 0},
		{"zero flags every pair", 0.0, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, cleanup := setupTestDB(t)
			defer cleanup()
			ctx := context.Background()

			for _, desc := range []string{"alpha", "bravo", "charlie delta"} {
				createOffer(t, db, database.Offer{Title: "Data Engineer", Company: "Acme", Description: desc})
			}

			result, err := New(db, nil).Detect(ctx, tt.threshold)
			if err != nil {
				t.Fatalf("Detect failed: %v", err)
			}
			if result.Created != tt.want {
				t.Errorf("expected %d links, got %d", tt.want, result.Created)
			}
		})
	}
}

func TestInvalidThresholds(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	a := createOffer(t, db, database.Offer{Title: "Backend Dev", Company: "Acme"})
	b := createOffer(t, db, database.Offer{Title: "Backend Dev", Company: "Acme"})
	if _, err := db.CreateDuplicateLink(ctx, a, b, 0.99); err != nil {
		t.Fatalf("CreateDuplicateLink failed: %v", err)
	}
	d := New(db, nil)

	tests := []struct {
		name      string
		threshold float64
		autoMerge bool
	}{
		{"detect negative", -0.1, false},
		{"detect NaN", math.NaN(), false},
		{"auto-merge above one", 1.5, true},
		{"auto-merge negative", -0.1, true},
		{"auto-merge NaN", math.NaN(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.autoMerge {
				_, err = d.AutoMerge(ctx, tt.threshold)
			} else {
				_, err = d.Detect(ctx, tt.threshold)
			}
			if !apperr.IsKind(err, apperr.KindValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}

	links, err := db.ListDuplicateLinks(ctx, database.DuplicateListOptions{})
	if err != nil {
		t.Fatalf("ListDuplicateLinks failed: %v", err)
	}
	if len(links) != 1 {
		t.Errorf("rejected calls must not touch links, got %d", len(links))
	}
	if ok, _ := db.OfferExists(ctx, b); !ok {
		t.Error("rejected auto-merge must not merge")
	}
}

func TestDetectByURL(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	first := createOffer(t, db, database.Offer{Title: "SRE", URL: "https://jobs.example.com/42?utm=a"})
	second := createOffer(t, db, database.Offer{Title: "Site Reliability", URL: "https://jobs.example.com/42?utm=b"})
	createOffer(t, db, database.Offer{Title: "SRE", URL: "https://jobs.example.com/43"})
	createOffer(t, db, database.Offer{Title: "No URL"})

	d := New(db, nil)
	result, err := d.DetectByURL(ctx)
	if err != nil {
		t.Fatalf("DetectByURL failed: %v", err)
	}
	if result.Created != 1 {
		t.Fatalf("expected 1 link, got %+v", result)
	}

	links, _ := d.List(ctx, &second)
	if len(links) != 1 || links[0].OriginalOfferID != first || links[0].SimilarityScore != 1.0 {
		t.Errorf("unexpected links: %+v", links)
	}
}

func TestMerge(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	original := createOffer(t, db, database.Offer{Title: "Backend Dev", Company: "Acme"})
	duplicate := createOffer(t, db, database.Offer{
		Title: "Backend Dev", Company: "Acme", SalaryMin: floatPtr(50000), Location: "Paris",
	})
	if _, err := db.CreateDuplicateLink(ctx, original, duplicate, 0.95); err != nil {
		t.Fatalf("CreateDuplicateLink failed: %v", err)
	}

	d := New(db, nil)
	result, err := d.Merge(ctx, original, duplicate)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if result.LinksRemoved != 1 {
		t.Errorf("expected 1 link removed, got %d", result.LinksRemoved)
	}

	merged, err := db.GetOffer(ctx, original)
	if err != nil {
		t.Fatalf("GetOffer failed: %v", err)
	}
	if merged.SalaryMin == nil || *merged.SalaryMin != 50000 {
		t.Errorf("expected salary_min 50000, got %v", merged.SalaryMin)
	}
	if merged.Location != "Paris" {
		t.Errorf("expected location adopted, got %q", merged.Location)
	}

	_, err = d.Merge(ctx, original, duplicate)
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("second merge should be not found, got %v", err)
	}
}

func TestMergeErrors(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	id := createOffer(t, db, database.Offer{Title: "Backend Dev"})
	d := New(db, nil)

	tests := []struct {
		name      string
		original  int64
		duplicate int64
		wantKind  apperr.Kind
	}{
		{"same offer", id, id, apperr.KindValidation},
		{"missing duplicate", id, 9999, apperr.KindNotFound},
		{"missing original", 9999, id, apperr.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Merge(ctx, tt.original, tt.duplicate)
			if !apperr.IsKind(err, tt.wantKind) {
				t.Errorf("expected %s error, got %v", tt.wantKind, err)
			}
		})
	}

	if ok, _ := db.OfferExists(ctx, id); !ok {
		t.Error("failed merges must leave the offer in place")
	}
}

func TestAutoMerge(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	a := createOffer(t, db, database.Offer{Title: "Backend Dev"})
	b := createOffer(t, db, database.Offer{Title: "Backend Dev"})
	c := createOffer(t, db, database.Offer{Title: "Backend Dev"})
	e := createOffer(t, db, database.Offer{Title: "Frontend Dev"})
	f := createOffer(t, db, database.Offer{Title: "Frontend Developer"})

	for _, l := range []struct {
		orig, dup int64
		score     float64
	}{
		{a, b, 0.99},
		{b, c, 0.95}, // removed when b is merged into a
		{a, c, 0.92},
		{e, f, 0.5},
	} {
		if _, err := db.CreateDuplicateLink(ctx, l.orig, l.dup, l.score); err != nil {
			t.Fatalf("CreateDuplicateLink failed: %v", err)
		}
	}

	d := New(db, nil)
	result, err := d.AutoMerge(ctx, DefaultAutoMergeThreshold)
	if err != nil {
		t.Fatalf("AutoMerge failed: %v", err)
	}
	if result.Merged != 2 || result.Failed != 0 {
		t.Errorf("expected 2 merges and no failures, got %+v", result)
	}
	if result.Skipped != 1 {
		t.Errorf("expected the stale b -> c link to be skipped, got %d", result.Skipped)
	}

	for id, want := range map[int64]bool{a: true, b: false, c: false, e: true, f: true} {
		ok, err := db.OfferExists(ctx, id)
		if err != nil {
			t.Fatalf("OfferExists failed: %v", err)
		}
		if ok != want {
			t.Errorf("offer %d exists = %v, want %v", id, ok, want)
		}
	}

	_, err = d.AutoMerge(ctx, 1.5)
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestAutoMergeCanceled(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	a := createOffer(t, db, database.Offer{Title: "Backend Dev"})
	b := createOffer(t, db, database.Offer{Title: "Backend Dev"})
	if _, err := db.CreateDuplicateLink(context.Background(), a, b, 1); err != nil {
		t.Fatalf("CreateDuplicateLink failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(db, nil).AutoMerge(ctx, 0.9)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if ok, _ := db.OfferExists(context.Background(), b); !ok {
		t.Error("canceled pass must not merge")
	}
}

func TestIgnoreAndStats(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	a := createOffer(t, db, database.Offer{Title: "Backend Dev", Source: "indeed"})
	b := createOffer(t, db, database.Offer{Title: "Backend Dev", Source: "linkedin"})
	c := createOffer(t, db, database.Offer{Title: "Backend Dev", Source: "indeed"})
	if _, err := db.CreateDuplicateLink(ctx, a, b, 0.95); err != nil {
		t.Fatalf("CreateDuplicateLink failed: %v", err)
	}
	if _, err := db.CreateDuplicateLink(ctx, a, c, 0.75); err != nil {
		t.Fatalf("CreateDuplicateLink failed: %v", err)
	}

	d := New(db, nil)
	stats, err := d.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 2 || stats.HighSimilarity != 1 || stats.MediumSimilar != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.BySource["indeed-linkedin"] != 1 || stats.BySource["indeed-indeed"] != 1 {
		t.Errorf("unexpected source pairs: %v", stats.BySource)
	}

	links, _ := d.List(ctx, nil)
	if err := d.Ignore(ctx, links[0].ID); err != nil {
		t.Fatalf("Ignore failed: %v", err)
	}
	if err := d.Ignore(ctx, links[0].ID); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("expected not found on second ignore, got %v", err)
	}
	if ok, _ := db.OfferExists(ctx, b); !ok {
		t.Error("ignoring a link must keep both offers")
	}
}
