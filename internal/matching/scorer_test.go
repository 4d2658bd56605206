package matching

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/vijay-prabhu/jobrank/internal/apperr"
	"github.com/vijay-prabhu/jobrank/internal/config"
	"github.com/vijay-prabhu/jobrank/internal/database"
)

type stubEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	for prefix, v := range s.vectors {
		if strings.HasPrefix(text, prefix) {
			return v, nil
		}
	}
	return []float32{1, 0}, nil
}

type stubGenerator struct {
	response   string
	err        error
	lastPrompt string
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	s.lastPrompt = prompt
	return s.response, s.err
}

func testProfile() *database.UserProfile {
	return &database.UserProfile{
		Name:        "Sam",
		Skills:      []database.UserSkill{{Name: "python", Level: "expert"}},
		Experiences: []database.UserExperience{{Position: "Backend Developer", Company: "Initech", StartDate: "2020"}},
		Education:   []database.UserEducation{{Institution: "INSA", Degree: "MSc", Field: "Computer Science"}},
	}
}

func TestSkillSignal(t *testing.T) {
	tests := []struct {
		name   string
		user   []string
		offer  []string
		expect float64
	}{
		{"half matched", []string{"python"}, []string{"Python", "Django"}, 0.5},
		{"no offer skills", []string{"python"}, nil, 0},
		{"user skill contains offer skill", []string{"postgresql"}, []string{"SQL"}, 1},
		{"offer skill contains user skill", []string{"go"}, []string{"Golang"}, 1},
		{"no user skills", nil, []string{"Go"}, 0},
		{"empty user skill ignored", []string{""}, []string{"Rust"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &database.UserProfile{}
			for _, s := range tt.user {
				p.Skills = append(p.Skills, database.UserSkill{Name: s})
			}
			if got := SkillSignal(p, tt.offer); math.Abs(got-tt.expect) > 1e-9 {
				t.Errorf("SkillSignal() = %v, want %v", got, tt.expect)
			}
		})
	}
}

func TestExperienceSignal(t *testing.T) {
	p := testProfile()

	tests := []struct {
		title  string
		expect float64
	}{
		{"Senior Backend Developer", 1},
		{"backend", 1},
		{"Data Scientist", 0},
		{"", 0},
	}

	for _, tt := range tests {
		if got := ExperienceSignal(p, tt.title); got != tt.expect {
			t.Errorf("ExperienceSignal(%q) = %v, want %v", tt.title, got, tt.expect)
		}
	}
}

func TestParseJudgeScore(t *testing.T) {
	tests := []struct {
		response string
		expect   float64
		ok       bool
	}{
		{"Score: 85/100, strong fit", 0.85, true},
		{"72", 0.72, true},
		{"I would say 40.", 0.40, true},
		{"150", 1, true},
		{"no idea", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseJudgeScore(tt.response)
		if ok != tt.ok || math.Abs(got-tt.expect) > 1e-9 {
			t.Errorf("ParseJudgeScore(%q) = %v, %v; want %v, %v", tt.response, got, ok, tt.expect, tt.ok)
		}
	}
}

func TestCosine(t *testing.T) {
	sim, err := Cosine([]float32{1, 0}, []float32{1, 0})
	if err != nil || math.Abs(sim-1) > 1e-9 {
		t.Errorf("expected 1, got %v (%v)", sim, err)
	}

	sim, _ = Cosine([]float32{1, 0}, []float32{0, 1})
	if sim != 0 {
		t.Errorf("expected 0 for orthogonal vectors, got %v", sim)
	}

	sim, _ = Cosine([]float32{0, 0}, []float32{1, 1})
	if sim != 0 {
		t.Errorf("expected 0 for zero vector, got %v", sim)
	}

	if _, err := Cosine([]float32{1}, []float32{1, 2}); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestScore(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"Name:":  {1, 0},
		"Title:": {1, 0},
	}}
	judge := &stubGenerator{response: "Score: 85/100, strong fit"}

	scorer, err := NewScorer(embedder, judge, config.DefaultSignalWeights(), nil)
	if err != nil {
		t.Fatalf("NewScorer failed: %v", err)
	}

	offer := &database.Offer{ID: 7, Title: "Backend Developer", Company: "Acme", Skills: []string{"Python", "Django"}}
	sig := scorer.ForProfile(context.Background(), testProfile()).Score(context.Background(), offer)

	if len(sig.Errors) != 0 {
		t.Fatalf("unexpected signal errors: %v", sig.Errors)
	}
	if sig.Embedding != 1 || sig.Skill != 0.5 || sig.Experience != 1 || math.Abs(sig.Judge-0.85) > 1e-9 {
		t.Errorf("unexpected signals: %+v", sig)
	}

	want := 100 * (0.4*1 + 0.3*0.5 + 0.2*1 + 0.1*0.85)
	if math.Abs(sig.Base-want) > 1e-9 {
		t.Errorf("Base = %v, want %v", sig.Base, want)
	}

	if !strings.Contains(judge.lastPrompt, "Title: Backend Developer") || !strings.Contains(judge.lastPrompt, "python (expert)") {
		t.Errorf("prompt missing profile or offer text:\n%s", judge.lastPrompt)
	}
}

func TestScoreFailingSignalsContributeZero(t *testing.T) {
	embedder := &stubEmbedder{err: errors.New("connection refused")}
	judge := &stubGenerator{err: errors.New("timeout")}

	scorer, _ := NewScorer(embedder, judge, config.DefaultSignalWeights(), nil)
	offer := &database.Offer{ID: 1, Title: "Backend Developer", Skills: []string{"Python"}}
	sig := scorer.ForProfile(context.Background(), testProfile()).Score(context.Background(), offer)

	if sig.Embedding != 0 || sig.Judge != 0 {
		t.Errorf("failed signals must be 0: %+v", sig)
	}
	if _, ok := sig.Errors[SignalEmbedding]; !ok {
		t.Error("expected embedding error to be recorded")
	}
	if _, ok := sig.Errors[SignalJudge]; !ok {
		t.Error("expected judge error to be recorded")
	}
	if want := 100 * (0.3*1 + 0.2*1); math.Abs(sig.Base-want) > 1e-9 {
		t.Errorf("Base = %v, want %v", sig.Base, want)
	}
}

func TestScoreUnparseableJudge(t *testing.T) {
	scorer, _ := NewScorer(nil, &stubGenerator{response: "great fit!"}, config.DefaultSignalWeights(), nil)
	sig := scorer.ForProfile(context.Background(), testProfile()).Score(context.Background(), &database.Offer{Title: "x"})

	if sig.Judge != 0 {
		t.Errorf("expected judge 0, got %v", sig.Judge)
	}
	if sig.Errors[SignalJudge] == "" {
		t.Error("expected judge error")
	}
}

func TestBaseScoreBounds(t *testing.T) {
	w := config.DefaultSignalWeights()
	for _, v := range []float64{0, 0.25, 0.5, 1} {
		s := Signals{Embedding: v, Skill: v, Experience: v, Judge: v}
		got := BaseScore(w, s)
		if got < 0 || got > 100 {
			t.Errorf("BaseScore out of range for %v: %v", v, got)
		}
		if math.Abs(got-100*v) > 1e-9 {
			t.Errorf("BaseScore(%v) = %v, want %v", v, got, 100*v)
		}
	}
}

func TestNewScorerRejectsInvalidWeights(t *testing.T) {
	_, err := NewScorer(nil, nil, config.SignalWeights{Embedding: 1, Skill: 1}, nil)
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestOfferText(t *testing.T) {
	lo, hi := 45000.0, 60000.0
	text := OfferText(&database.Offer{
		Title:       "Backend Dev",
		Company:     "Acme",
		Location:    "Paris",
		SalaryMin:   &lo,
		SalaryMax:   &hi,
		Currency:    "EUR",
		Description: "Build APIs",
		Skills:      []string{"Go", "SQL"},
	})

	for _, want := range []string{"Title: Backend Dev", "Company: Acme", "Salary: 45000 - 60000 EUR", "Required skills: Go, SQL"} {
		if !strings.Contains(text, want) {
			t.Errorf("OfferText missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "Job type") {
		t.Error("empty fields should be omitted")
	}
}

func TestProfileText(t *testing.T) {
	text := ProfileText(testProfile())

	for _, want := range []string{"Name: Sam", "- python (expert)", "- Backend Developer at Initech (2020 - present)", "- MSc in Computer Science, INSA"} {
		if !strings.Contains(text, want) {
			t.Errorf("ProfileText missing %q:\n%s", want, text)
		}
	}
}
