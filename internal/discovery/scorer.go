package discovery

import (
	"context"
	"strings"

	"github.com/scenariq/scenariq/internal/core"
	"github.com/scenariq/scenariq/internal/embeddings"
	"github.com/scenariq/scenariq/internal/logging"
)

// Scoring weights. Fixed policy; they sum to 1.0.
const (
	weightCapability  = 0.40
	weightPerformance = 0.25
	weightExpertise   = 0.15
	weightRisk        = 0.10
	weightSemantic    = 0.10
)

// historyLimit bounds how many learning records one selection reads
const historyLimit = 50

// History supplies past execution records for the past-performance factor
type History interface {
	Query(ctx context.Context, actionNamePattern string, simType core.SimulationType, limit int) ([]*core.LearningRecord, error)
}

// Embedder turns text into a vector. It may fail or time out; scoring
// degrades to a neutral similarity instead of aborting.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ProfileIndex serves precomputed executor profile vectors so selection does
// not re-embed every executor on every pass
type ProfileIndex interface {
	Vector(ctx context.Context, executorID string) ([]float32, error)
}

// Factors holds the raw per-factor scores before weighting
type Factors struct {
	CapabilityMatch    float64 `json:"capability_match"`    // 0-100
	PastPerformance    float64 `json:"past_performance"`    // 0-50
	DomainExpertise    float64 `json:"domain_expertise"`    // 10 or 30
	RiskHandling       float64 `json:"risk_handling"`       // 5-20
	SemanticSimilarity float64 `json:"semantic_similarity"` // 0-20
}

// Weighted collapses the factors into the final score
func (f Factors) Weighted() float64 {
	return weightCapability*f.CapabilityMatch +
		weightPerformance*f.PastPerformance +
		weightExpertise*f.DomainExpertise +
		weightRisk*f.RiskHandling +
		weightSemantic*f.SemanticSimilarity
}

// Selection is the outcome of one executor selection pass
type Selection struct {
	Executor *core.Executor `json:"executor"`
	Score    float64        `json:"score"`
	Factors  Factors        `json:"factors"`
	Required []string       `json:"required_capabilities"`
	// Fallback is set when no executor matched the required capabilities
	// and a coordination executor or synthesized stub was used instead.
	// Downstream consumers should treat the match as degraded confidence.
	Fallback bool `json:"fallback"`
}

// Scorer ranks registered executors for an action via a weighted
// multi-factor score. It never fails to select: when nothing matches it
// falls back to a coordination-capable executor, and past that it
// synthesizes a minimal stub so the pipeline is never blocked.
type Scorer struct {
	registry *Registry
	history  History
	embedder Embedder
	profiles ProfileIndex // optional, may be nil
	log      *logging.Logger
}

// NewScorer creates a scorer. profiles may be nil, in which case executor
// profiles are embedded directly on each pass.
func NewScorer(registry *Registry, history History, embedder Embedder, profiles ProfileIndex, log *logging.Logger) *Scorer {
	if log == nil {
		log = logging.New(logging.INFO, nil)
	}
	return &Scorer{
		registry: registry,
		history:  history,
		embedder: embedder,
		profiles: profiles,
		log:      log,
	}
}

// SelectExecutor returns the best executor for the action, never nil.
// Candidates are executors whose capabilities intersect the required set
// derived from keyword rules; ties break toward the earliest registration.
func (s *Scorer) SelectExecutor(ctx context.Context, action core.RecommendedAction, simType core.SimulationType) *Selection {
	required := RequiredCapabilities(action, simType)
	all := s.registry.GetAll()

	candidates := filterByCapabilities(all, required)
	fallback := false
	if len(candidates) == 0 {
		candidates = s.fallbackCandidates(all)
		fallback = true
	}

	if len(candidates) == 1 && fallback {
		// Nothing to rank; score the fallback for the audit trail only
		sel := s.score(ctx, candidates[0], action, simType, required, nil, false)
		sel.Fallback = true
		s.log.Warn("no executor matched capabilities %v for action %q, using %s", required, action.Name, sel.Executor.ID)
		return sel
	}

	perExecutor, anyHistory := s.pastPerformance(ctx, action, simType)
	actionVec := s.embedText(ctx, actionText(action))

	var best *Selection
	for _, e := range candidates {
		sel := s.scoreWithVector(ctx, e, action, simType, required, perExecutor, anyHistory, actionVec)
		sel.Fallback = fallback
		if best == nil || sel.Score > best.Score {
			best = sel
		}
	}

	s.log.Debug("selected executor %s for action %q (score %.2f, fallback=%v)",
		best.Executor.ID, action.Name, best.Score, fallback)
	return best
}

// score is the single-candidate path used when only the fallback exists
func (s *Scorer) score(ctx context.Context, e *core.Executor, action core.RecommendedAction, simType core.SimulationType, required []string, perExecutor map[string]float64, anyHistory bool) *Selection {
	return s.scoreWithVector(ctx, e, action, simType, required, perExecutor, anyHistory, s.embedText(ctx, actionText(action)))
}

func (s *Scorer) scoreWithVector(ctx context.Context, e *core.Executor, action core.RecommendedAction, simType core.SimulationType, required []string, perExecutor map[string]float64, anyHistory bool, actionVec []float32) *Selection {
	f := Factors{
		CapabilityMatch:    capabilityMatch(e, required),
		PastPerformance:    performanceScore(e.ID, perExecutor, anyHistory),
		DomainExpertise:    expertiseScore(e, simType),
		RiskHandling:       riskScore(e, action.RiskLevel),
		SemanticSimilarity: s.semanticScore(ctx, e, actionVec),
	}

	return &Selection{
		Executor: e,
		Score:    f.Weighted(),
		Factors:  f,
		Required: required,
	}
}

// pastPerformance groups matching learning records into a mean success
// probability per executor. A store error degrades to "no history".
func (s *Scorer) pastPerformance(ctx context.Context, action core.RecommendedAction, simType core.SimulationType) (map[string]float64, bool) {
	if s.history == nil {
		return nil, false
	}

	records, err := s.history.Query(ctx, action.Name, simType, historyLimit)
	if err != nil {
		s.log.Warn("learning store query failed, scoring without history: %v", err)
		return nil, false
	}
	if len(records) == 0 {
		return nil, false
	}

	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, r := range records {
		sums[r.ExecutorID] += r.SuccessProbability
		counts[r.ExecutorID]++
	}

	means := make(map[string]float64, len(sums))
	for id, sum := range sums {
		means[id] = sum / float64(counts[id])
	}
	return means, true
}

func (s *Scorer) embedText(ctx context.Context, text string) []float32 {
	if s.embedder == nil {
		return nil
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		s.log.Warn("embedding failed, semantic factor will be neutral: %v", err)
		return nil
	}
	return vec
}

// semanticScore maps cosine similarity [-1, 1] onto 0-20. Any failure along
// the way yields the neutral 10.
func (s *Scorer) semanticScore(ctx context.Context, e *core.Executor, actionVec []float32) float64 {
	if actionVec == nil {
		return 10
	}

	profileVec := s.profileVector(ctx, e)
	if profileVec == nil {
		return 10
	}

	sim := embeddings.Cosine(actionVec, profileVec)
	return (sim + 1) / 2 * 20
}

// profileVector prefers the precomputed index and falls back to embedding
// the profile text directly
func (s *Scorer) profileVector(ctx context.Context, e *core.Executor) []float32 {
	if s.profiles != nil {
		if vec, err := s.profiles.Vector(ctx, e.ID); err == nil && vec != nil {
			return vec
		}
	}
	return s.embedText(ctx, ProfileText(e))
}

// fallbackCandidates returns coordination-capable executors, or a synthesized
// stub when none exist. The stub is never persisted.
func (s *Scorer) fallbackCandidates(all []*core.Executor) []*core.Executor {
	var coord []*core.Executor
	for _, e := range all {
		if e.HasCapability(CapCoordination) || e.HasCapability(CapBasicTask) {
			coord = append(coord, e)
		}
	}
	if len(coord) > 0 {
		return coord
	}

	return []*core.Executor{{
		ID:           "fallback-stub",
		Name:         "Fallback Task Processor",
		Description:  "Synthesized minimal executor used when no registered executor matches",
		Capabilities: []string{CapBasicTask},
	}}
}

// capabilityMatch is the matched fraction of required capabilities on a
// 0-100 scale, or the neutral 50 when nothing is required
func capabilityMatch(e *core.Executor, required []string) float64 {
	if len(required) == 0 {
		return 50
	}
	matched := 0
	for _, c := range required {
		if e.HasCapability(c) {
			matched++
		}
	}
	return float64(matched) / float64(len(required)) * 100
}

// performanceScore is the mean success probability on a 0-50 scale; 25 when
// no history exists at all, 15 when history exists only for other executors
func performanceScore(executorID string, perExecutor map[string]float64, anyHistory bool) float64 {
	if !anyHistory {
		return 25
	}
	mean, ok := perExecutor[executorID]
	if !ok {
		return 15
	}
	return mean * 50
}

func expertiseScore(e *core.Executor, simType core.SimulationType) float64 {
	if MatchesDomain(e, simType) {
		return 30
	}
	return 10
}

// riskScore rewards executors that declare a capability matching the
// action's risk level. Low-risk actions need no special handling, so every
// executor scores the same there.
func riskScore(e *core.Executor, risk core.RiskLevel) float64 {
	switch risk {
	case core.RiskHigh:
		if e.HasCapability(CapHighRiskExecution) {
			return 20
		}
		return 5
	case core.RiskMedium:
		if e.HasCapability(CapRiskMitigation) {
			return 15
		}
		return 10
	default:
		return 15
	}
}

// filterByCapabilities keeps executors whose capability set intersects the
// required set. An empty required set keeps everyone.
func filterByCapabilities(all []*core.Executor, required []string) []*core.Executor {
	if len(required) == 0 {
		return all
	}
	var out []*core.Executor
	for _, e := range all {
		for _, c := range required {
			if e.HasCapability(c) {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// ProfileText is the text embedded to represent an executor for semantic
// matching
func ProfileText(e *core.Executor) string {
	return strings.TrimSpace(e.Description + " " + strings.Join(e.Capabilities, " "))
}

func actionText(a core.RecommendedAction) string {
	return strings.TrimSpace(a.Name + " " + a.Description + " " + a.ExpectedOutcome)
}
