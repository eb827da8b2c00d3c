// Package validate implements cross-layer validation: given retrieval
// results from all four granularities, it finds, for each primary candidate,
// the best corroborating chunk at every other level and computes a
// confidence score from how much of that evidence lines up.
package validate

import (
	"math"
	"sort"
	"strings"

	"github.com/garry00107/sheetrag/internal/chunk"
)

// DefaultLayerWeights is the default per-level contribution to confidence.
func DefaultLayerWeights() map[chunk.Level]float64 {
	return map[chunk.Level]float64{
		chunk.Sentence:  0.30,
		chunk.Paragraph: 0.30,
		chunk.Section:   0.25,
		chunk.Summary:   0.15,
	}
}

const (
	DefaultSupportThreshold = 0.5
	DefaultMinLayers        = 2

	parentChildBoost = 0.2
)

// Validator finds supporting evidence for retrieval candidates across
// granularities and scores the resulting confidence.
type Validator struct {
	LayerWeights     map[chunk.Level]float64
	SupportThreshold float64
	MinLayers        int
}

// New builds a Validator with the given parameters, falling back to the
// documented defaults for zero values.
func New(weights map[chunk.Level]float64, supportThreshold float64, minLayers int) *Validator {
	if weights == nil {
		weights = DefaultLayerWeights()
	}
	if supportThreshold == 0 {
		supportThreshold = DefaultSupportThreshold
	}
	if minLayers == 0 {
		minLayers = DefaultMinLayers
	}
	return &Validator{LayerWeights: weights, SupportThreshold: supportThreshold, MinLayers: minLayers}
}

// Embeddings optionally supplies chunk-id -> vector lookups used in place of
// Jaccard similarity when both sides of a comparison are present.
type Embeddings map[string][]float64

// Validate runs the single-primary-level validation pass described in the
// cross-layer validator: every result at primaryLevel is checked against
// every other level present in layerResults for corroborating evidence.
func (v *Validator) Validate(layerResults map[chunk.Level][]chunk.Scored, primaryLevel chunk.Level, embeddings Embeddings) []chunk.ValidatedResult {
	primaries := layerResults[primaryLevel]
	if len(primaries) == 0 {
		return nil
	}

	results := make([]chunk.ValidatedResult, 0, len(primaries))
	for _, p := range primaries {
		supporting, sims, details := v.findSupportingChunks(p, primaryLevel, layerResults, embeddings)
		layerCoverage := 1 + len(supporting)
		if layerCoverage < v.MinLayers {
			continue
		}
		confidence := v.computeConfidence(p, primaryLevel, supporting, sims)
		details["support_threshold"] = v.SupportThreshold
		details["layer_weights"] = v.LayerWeights
		results = append(results, chunk.ValidatedResult{
			Primary:           p,
			SupportingChunks:  supporting,
			ConfidenceScore:   confidence,
			LayerCoverage:     layerCoverage,
			ValidationDetails: details,
		})
	}

	sortResults(results)
	return results
}

// ValidateBidirectional runs Validate three times, using sentence, paragraph,
// and section in turn as the primary level, merges the results keeping only
// the first occurrence of each primary chunk id (in that iteration order),
// and re-sorts by confidence.
func (v *Validator) ValidateBidirectional(layerResults map[chunk.Level][]chunk.Scored, embeddings Embeddings) []chunk.ValidatedResult {
	primaryLevels := []chunk.Level{chunk.Sentence, chunk.Paragraph, chunk.Section}

	seen := make(map[string]bool)
	var combined []chunk.ValidatedResult
	for _, level := range primaryLevels {
		for _, res := range v.Validate(layerResults, level, embeddings) {
			id := res.Primary.Chunk.ID
			if seen[id] {
				continue
			}
			seen[id] = true
			combined = append(combined, res)
		}
	}

	sortResults(combined)
	return combined
}

func sortResults(results []chunk.ValidatedResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.ConfidenceScore != b.ConfidenceScore {
			return a.ConfidenceScore > b.ConfidenceScore
		}
		if a.Primary.Score != b.Primary.Score {
			return a.Primary.Score > b.Primary.Score
		}
		return a.Primary.Chunk.ID < b.Primary.Chunk.ID
	})
}

func (v *Validator) findSupportingChunks(p chunk.Scored, primaryLevel chunk.Level, layerResults map[chunk.Level][]chunk.Scored, embeddings Embeddings) (map[chunk.Level]chunk.Scored, map[chunk.Level]float64, map[string]any) {
	supporting := make(map[chunk.Level]chunk.Scored)
	adjustedSim := make(map[chunk.Level]float64)
	perLevelSim := make(map[string]float64)

	for _, level := range chunk.Levels {
		if level == primaryLevel {
			continue
		}
		candidates := layerResults[level]
		if len(candidates) == 0 {
			continue
		}

		var best chunk.Scored
		bestSim := -1.0
		found := false
		for _, q := range candidates {
			sim := v.similarity(p.Chunk, q.Chunk, embeddings)
			if isStructurallyRelated(p.Chunk, q.Chunk) {
				sim = math.Min(1.0, sim+parentChildBoost)
			}
			if sim > bestSim {
				bestSim = sim
				best = q
				found = true
			}
		}
		if found && bestSim >= v.SupportThreshold {
			supporting[level] = best
			adjustedSim[level] = bestSim
			perLevelSim[string(level)] = bestSim
		}
	}

	return supporting, adjustedSim, map[string]any{"similarities": perLevelSim}
}

func (v *Validator) similarity(p, q *chunk.Node, embeddings Embeddings) float64 {
	if embeddings != nil {
		pv, pok := embeddings[p.ID]
		qv, qok := embeddings[q.ID]
		if pok && qok {
			return cosineSimilarity(pv, qv)
		}
	}
	return jaccardSimilarity(p.Text, q.Text)
}

func isStructurallyRelated(p, q *chunk.Node) bool {
	if q.ID == p.ParentID {
		return true
	}
	for _, childID := range q.ChildrenIDs {
		if childID == p.ID {
			return true
		}
	}
	return false
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func jaccardSimilarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(text string) map[string]bool {
	tokens := strings.Fields(strings.ToLower(text))
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

func (v *Validator) computeConfidence(p chunk.Scored, primaryLevel chunk.Level, supporting map[chunk.Level]chunk.Scored, adjustedSim map[chunk.Level]float64) float64 {
	weight := v.LayerWeights[primaryLevel]
	weighted := weight * p.Score
	totalWeight := weight

	for level, q := range supporting {
		w := v.LayerWeights[level]
		weighted += w * (0.6*q.Score + 0.4*adjustedSim[level])
		totalWeight += w
	}

	base := 0.0
	if totalWeight > 0 {
		base = weighted / totalWeight
	}
	bonus := math.Min(0.2, float64(len(supporting))*0.1)
	return math.Min(1.0, base+bonus)
}
