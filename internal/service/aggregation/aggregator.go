// Package aggregation reduces one sampling report's rows to per-silo statistics.
package aggregation

import (
	"fmt"
	"strings"

	"github.com/mamadbah2/grainloss/internal/domain/models"
)

type group struct {
	agg        models.SiloAggregate
	grainTypes map[string]struct{}
}

// Aggregate groups samples by silo label and reduces each group to averages of
// live weevils and mites plus the maximum observed tonnage. Samples without a
// silo label are ignored. Output order follows the first appearance of each silo.
func Aggregate(samples []models.Sample) ([]models.SiloAggregate, []models.Warning) {
	var (
		order    []string
		groups   = make(map[string]*group)
		warnings []models.Warning
	)

	for i, sample := range samples {
		label := models.NormalizeSiloLabel(sample.Silo)
		if label == "" {
			continue
		}

		g, ok := groups[label]
		if !ok {
			g = &group{agg: models.SiloAggregate{Silo: label}, grainTypes: make(map[string]struct{})}
			groups[label] = g
			order = append(order, label)
		}

		live, mites, tons, clamped := sanitize(sample)
		if clamped {
			warnings = append(warnings, models.Warning{
				Code:    models.WarnInvalidSample,
				Silo:    label,
				Message: fmt.Sprintf("sample %d carries negative counts or tonnage; clamped to zero", i+1),
			})
		}

		g.agg.LiveTotal += live
		g.agg.MiteTotal += mites
		if g.agg.SampleCount == 0 || tons > g.agg.MaxTons {
			g.agg.MaxTons = tons
		}
		g.agg.SampleCount++

		if grain := strings.TrimSpace(sample.GrainType); grain != "" {
			if g.agg.GrainType == "" {
				g.agg.GrainType = grain
			}
			g.grainTypes[strings.ToLower(grain)] = struct{}{}
		}
	}

	out := make([]models.SiloAggregate, 0, len(order))
	for _, label := range order {
		g := groups[label]
		n := float64(g.agg.SampleCount)
		g.agg.AvgLiveWeevils = float64(g.agg.LiveTotal) / n
		g.agg.AvgMites = float64(g.agg.MiteTotal) / n

		switch {
		case g.agg.GrainType == "":
			warnings = append(warnings, models.Warning{
				Code:    models.WarnMissingGrainType,
				Silo:    label,
				Message: "no sample in this silo names a grain type",
			})
		case len(g.grainTypes) > 1:
			warnings = append(warnings, models.Warning{
				Code:    models.WarnMixedGrainType,
				Silo:    label,
				Message: fmt.Sprintf("samples disagree on grain type; using %q", g.agg.GrainType),
			})
		}

		out = append(out, g.agg)
	}

	return out, warnings
}

// sanitize clamps each species count, the mite count and the tonnage at zero
// before summing, so a negative entry cannot cancel real insects.
func sanitize(sample models.Sample) (live, mites int, tons float64, clamped bool) {
	p := sample.Pests
	for _, c := range []int{p.Sitophilus.Live, p.Rhyzopertha.Live, p.Prostephanus.Live, p.Tribolium.Live, p.Cryptolestes.Live} {
		if c < 0 {
			clamped = true
			continue
		}
		live += c
	}
	mites, tons = sample.Mites, sample.ObservedTons
	if mites < 0 {
		mites, clamped = 0, true
	}
	if tons < 0 {
		tons, clamped = 0, true
	}
	return live, mites, tons, clamped
}
