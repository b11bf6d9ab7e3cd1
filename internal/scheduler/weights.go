package scheduler

import (
	"sort"

	"ugi-arena/internal/models"
	"ugi-arena/internal/store"
)

// Weight blend coefficients: uncertainty dominates, then rating
// proximity, then a mild preference for high-rated pairs, then a
// penalty on over-played pairs.
const (
	weightUncertainty = 0.4
	weightProximity   = 0.3
	weightPreference  = 0.2
	weightFrequency   = 0.1

	// shortlistSize bounds the weighted-random selection pool
	shortlistSize = 5
)

// Candidate is one unordered engine pair with its pairing weight
type Candidate struct {
	Engine1 store.EngineStats
	Engine2 store.EngineStats
	Weight  float64
}

// engineUncertainty estimates how little we know about an engine's
// strength: high for engines with few games, bumped by recent rating
// swings.
func engineUncertainty(e store.EngineStats, recent []models.Game) float64 {
	u := 1.0 - float64(e.GamesPlayed)/100.0
	if u < 0.1 {
		u = 0.1
	}

	// Collect the engine's rating trajectory from its recent games,
	// oldest first; recent is already ordered by played_at.
	var ratings []int
	for _, g := range recent {
		switch e.ID {
		case g.Engine1ID:
			ratings = append(ratings, g.Engine1RatingBefore)
		case g.Engine2ID:
			ratings = append(ratings, g.Engine2RatingBefore)
		}
	}
	if len(ratings) < 2 {
		return u
	}
	if len(ratings) > 10 {
		ratings = ratings[len(ratings)-10:]
	}

	var sum float64
	for i := 1; i < len(ratings); i++ {
		d := ratings[i] - ratings[i-1]
		if d < 0 {
			d = -d
		}
		sum += float64(d)
	}
	volatility := sum / float64(len(ratings)-1) / 100.0
	if volatility > 0.5 {
		volatility = 0.5
	}
	return u + volatility
}

// pairWeight computes the full weight for one unordered pair
func pairWeight(e1, e2 store.EngineStats, gamesBetween int, recent []models.Game) float64 {
	uncertainty := (engineUncertainty(e1, recent) + engineUncertainty(e2, recent)) / 2

	ratingDiff := e1.Rating - e2.Rating
	if ratingDiff < 0 {
		ratingDiff = -ratingDiff
	}
	proximity := 1.0 / (1.0 + float64(ratingDiff)/200.0)

	preference := (float64(e1.Rating+e2.Rating) / 2.0) / 2000.0
	if preference > 1 {
		preference = 1
	}

	frequency := 1.0 - float64(gamesBetween)/50.0
	if frequency < 0.1 {
		frequency = 0.1
	}

	return weightUncertainty*uncertainty +
		weightProximity*proximity +
		weightPreference*preference +
		weightFrequency*frequency
}

// rankPairs builds every unordered pair with positive weight, sorted by
// weight descending with ties broken by lower pair index (the order the
// pairs are enumerated in).
func rankPairs(engines []store.EngineStats, pairCounts map[store.PairKey]int, recent []models.Game) []Candidate {
	type indexed struct {
		Candidate
		index int
	}
	var pairs []indexed
	for i := 0; i < len(engines); i++ {
		for j := i + 1; j < len(engines); j++ {
			between := pairCounts[store.NewPairKey(engines[i].ID, engines[j].ID)]
			w := pairWeight(engines[i], engines[j], between, recent)
			if w <= 0 {
				continue
			}
			pairs = append(pairs, indexed{
				Candidate: Candidate{Engine1: engines[i], Engine2: engines[j], Weight: w},
				index:     len(pairs),
			})
		}
	}
	sort.SliceStable(pairs, func(a, b int) bool {
		if pairs[a].Weight != pairs[b].Weight {
			return pairs[a].Weight > pairs[b].Weight
		}
		return pairs[a].index < pairs[b].index
	})

	out := make([]Candidate, len(pairs))
	for i, p := range pairs {
		out[i] = p.Candidate
	}
	return out
}

// shortlist truncates ranked candidates to the selection pool
func shortlist(ranked []Candidate) []Candidate {
	if len(ranked) > shortlistSize {
		return ranked[:shortlistSize]
	}
	return ranked
}
