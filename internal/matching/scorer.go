// Package matching computes the match signals of an offer against the user profile.
package matching

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/vijay-prabhu/jobrank/internal/apperr"
	"github.com/vijay-prabhu/jobrank/internal/config"
	"github.com/vijay-prabhu/jobrank/internal/database"
	"github.com/vijay-prabhu/jobrank/internal/llm"
	"github.com/vijay-prabhu/jobrank/internal/logger"
)

//go:embed prompt.md
var promptTemplate string

const (
	SignalEmbedding  = "embedding"
	SignalSkill      = "skill"
	SignalExperience = "experience"
	SignalJudge      = "judge"
)

var (
	errNotConfigured = errors.New("service not configured")
	firstInteger     = regexp.MustCompile(`\b(\d+)\b`)
)

// Signals holds the four match signals of one offer and the resulting base score
type Signals struct {
	OfferID    int64             `json:"offer_id"`
	Embedding  float64           `json:"embedding"`
	Skill      float64           `json:"skill"`
	Experience float64           `json:"experience"`
	Judge      float64           `json:"judge"`
	Base       float64           `json:"base_score"`
	Errors     map[string]string `json:"errors,omitempty"`
}

func (s *Signals) fail(signal string, err error) {
	if s.Errors == nil {
		s.Errors = map[string]string{}
	}
	s.Errors[signal] = err.Error()
}

// Scorer computes signals using an embedder and a generative judge.
// Either collaborator may be nil, in which case its signal is 0.
type Scorer struct {
	embedder llm.Embedder
	judge    llm.Generator
	weights  config.SignalWeights
	log      *zap.Logger
}

// NewScorer validates the weights and builds a Scorer
func NewScorer(embedder llm.Embedder, judge llm.Generator, weights config.SignalWeights, log *zap.Logger) (*Scorer, error) {
	if err := weights.Validate(); err != nil {
		return nil, apperr.Validation("matching.NewScorer", "%v", err)
	}
	return &Scorer{embedder: embedder, judge: judge, weights: weights, log: logger.OrNop(log)}, nil
}

// ProfileScorer scores offers against one profile. The profile embedding is
// computed once when it is created.
type ProfileScorer struct {
	scorer      *Scorer
	profile     *database.UserProfile
	profileText string
	profileVec  []float32
	profileErr  error
}

// ForProfile prepares scoring against profile
func (s *Scorer) ForProfile(ctx context.Context, profile *database.UserProfile) *ProfileScorer {
	ps := &ProfileScorer{
		scorer:      s,
		profile:     profile,
		profileText: ProfileText(profile),
	}

	ps.profileVec, ps.profileErr = s.embed(ctx, ps.profileText)
	if ps.profileErr != nil {
		s.log.Warn("profile embedding unavailable, embedding signal disabled", zap.Error(ps.profileErr))
	}
	return ps
}

// Score computes every signal for offer. It never fails: a signal whose
// computation fails contributes 0 and its error is recorded in Signals.Errors.
func (ps *ProfileScorer) Score(ctx context.Context, offer *database.Offer) Signals {
	s := ps.scorer
	sig := Signals{OfferID: offer.ID}
	offerText := OfferText(offer)
	log := s.log.With(logger.Offer(offer.ID))

	if v, err := ps.embeddingSignal(ctx, offerText); err != nil {
		sig.fail(SignalEmbedding, err)
		log.Warn("embedding signal failed", zap.String(logger.FieldSignal, SignalEmbedding), zap.Error(err))
	} else {
		sig.Embedding = v
	}

	sig.Skill = SkillSignal(ps.profile, offer.Skills)
	sig.Experience = ExperienceSignal(ps.profile, offer.Title)

	if v, err := ps.judgeSignal(ctx, offerText); err != nil {
		sig.fail(SignalJudge, err)
		log.Warn("judge signal failed", zap.String(logger.FieldSignal, SignalJudge), zap.Error(err))
	} else {
		sig.Judge = v
	}

	sig.Base = BaseScore(s.weights, sig)
	log.Debug("offer scored",
		zap.Float64("embedding", sig.Embedding),
		zap.Float64("skill", sig.Skill),
		zap.Float64("experience", sig.Experience),
		zap.Float64("judge", sig.Judge),
		zap.Float64("base", sig.Base),
	)
	return sig
}

func (s *Scorer) embed(ctx context.Context, text string) ([]float32, error) {
	if s.embedder == nil {
		return nil, apperr.External("embed", errNotConfigured)
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, apperr.External("embed", err)
	}
	return vec, nil
}

func (ps *ProfileScorer) embeddingSignal(ctx context.Context, offerText string) (float64, error) {
	if ps.profileErr != nil {
		return 0, ps.profileErr
	}

	offerVec, err := ps.scorer.embed(ctx, offerText)
	if err != nil {
		return 0, err
	}

	sim, err := Cosine(ps.profileVec, offerVec)
	if err != nil {
		return 0, apperr.External("embed", err)
	}
	return clamp01(sim), nil
}

func (ps *ProfileScorer) judgeSignal(ctx context.Context, offerText string) (float64, error) {
	if ps.scorer.judge == nil {
		return 0, apperr.External("judge", errNotConfigured)
	}

	prompt := BuildPrompt(ps.profileText, offerText)
	response, err := ps.scorer.judge.Generate(ctx, prompt)
	if err != nil {
		return 0, apperr.External("judge", err)
	}

	v, ok := ParseJudgeScore(response)
	if !ok {
		return 0, apperr.External("judge", fmt.Errorf("no score in response %q", logger.Truncate(response, 80)))
	}
	return v, nil
}

// BuildPrompt fills the judge prompt template
func BuildPrompt(profileText, offerText string) string {
	return strings.NewReplacer(
		"{{PROFILE}}", profileText,
		"{{OFFER}}", offerText,
	).Replace(promptTemplate)
}

// ParseJudgeScore reads the first integer of a judge response as a 0-100
// rating and returns it on the [0,1] scale
func ParseJudgeScore(response string) (float64, bool) {
	m := firstInteger.FindStringSubmatch(response)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return clamp01(float64(n) / 100), true
}

// SkillSignal is the fraction of required skills matched by a profile skill.
// Matching is a case-insensitive substring test in either direction.
func SkillSignal(profile *database.UserProfile, offerSkills []string) float64 {
	if len(offerSkills) == 0 || profile == nil {
		return 0
	}

	userSkills := make([]string, 0, len(profile.Skills))
	for _, s := range profile.Skills {
		if name := strings.ToLower(strings.TrimSpace(s.Name)); name != "" {
			userSkills = append(userSkills, name)
		}
	}

	matched := 0
	for _, required := range offerSkills {
		if containsEither(strings.ToLower(strings.TrimSpace(required)), userSkills) {
			matched++
		}
	}
	return float64(matched) / float64(len(offerSkills))
}

// ExperienceSignal is 1 when the offer title and a past position contain one another
func ExperienceSignal(profile *database.UserProfile, title string) float64 {
	if profile == nil {
		return 0
	}
	title = strings.ToLower(strings.TrimSpace(title))
	if title == "" {
		return 0
	}

	positions := make([]string, 0, len(profile.Experiences))
	for _, e := range profile.Experiences {
		if p := strings.ToLower(strings.TrimSpace(e.Position)); p != "" {
			positions = append(positions, p)
		}
	}

	if containsEither(title, positions) {
		return 1
	}
	return 0
}

func containsEither(s string, candidates []string) bool {
	if s == "" {
		return false
	}
	for _, c := range candidates {
		if strings.Contains(s, c) || strings.Contains(c, s) {
			return true
		}
	}
	return false
}

// BaseScore combines the signals into a score in [0,100]
func BaseScore(w config.SignalWeights, s Signals) float64 {
	score := w.Embedding*s.Embedding + w.Skill*s.Skill + w.Experience*s.Experience + w.Judge*s.Judge
	return math.Max(0, math.Min(100, 100*score))
}

// Cosine returns the cosine similarity of two vectors of equal length
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimensions differ: %d vs %d", len(a), len(b))
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
