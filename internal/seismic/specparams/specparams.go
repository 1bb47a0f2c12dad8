// Package specparams reduces a response spectrum to scalar summaries: peak
// ordinates and their periods, energy-weighted periods, 95th-percentile
// amplitudes and moment-based shape factors.
package specparams

import (
	"math"
	"sort"

	"github.com/joelefrain/gura-forge/internal/errors"
	"github.com/joelefrain/gura-forge/internal/seismic/response"
)

// Parameters holds the scalar summaries for one spectrum at one damping.
type Parameters struct {
	Damping float64

	PeakSa       float64
	PeakSaPeriod float64
	PeakSv       float64
	PeakSvPeriod float64
	PeakSd       float64
	PeakSdPeriod float64

	// PredominantPeriod is the period of the spectral-acceleration peak;
	// MeanPeriod weights periods by squared spectral acceleration.
	PredominantPeriod float64
	MeanPeriod        float64

	// A95/V95/D95: smallest ordinate below which 95% of the cumulative
	// sum of squared ordinates lies, scanning ordinates sorted ascending.
	A95 float64
	V95 float64
	D95 float64

	// Moment-based shape of Sa² treated as a distribution over period.
	Bandwidth   float64 // spread around the centroid period, in seconds
	ShapeFactor float64 // bandwidth normalized by the centroid period
	Regularity  float64 // λ1/√(λ0·λ2), 1 for a single spike
}

// Extract reduces one fixed-damping spectrum. The three ordinate slices are
// indexed by period.
func Extract(periods, sa, sv, sd []float64, damping float64) (*Parameters, error) {
	if len(periods) == 0 {
		return nil, errors.Newf("empty response spectrum").
			Component("specparams").
			Category(errors.CategoryDataIntegrity).
			Build()
	}
	if len(sa) != len(periods) || len(sv) != len(periods) || len(sd) != len(periods) {
		return nil, errors.Newf("ordinate length mismatch: %d periods, %d/%d/%d ordinates",
			len(periods), len(sa), len(sv), len(sd)).
			Component("specparams").
			Category(errors.CategoryDataIntegrity).
			Build()
	}

	p := &Parameters{Damping: damping}
	p.PeakSaPeriod, p.PeakSa = argmax(periods, sa)
	p.PeakSvPeriod, p.PeakSv = argmax(periods, sv)
	p.PeakSdPeriod, p.PeakSd = argmax(periods, sd)
	p.PredominantPeriod = p.PeakSaPeriod

	var sumW, sumWT, sumWT2 float64
	for i, t := range periods {
		w := sa[i] * sa[i]
		sumW += w
		sumWT += w * t
		sumWT2 += w * t * t
	}
	if sumW > 0 {
		p.MeanPeriod = sumWT / sumW
		variance := sumWT2/sumW - p.MeanPeriod*p.MeanPeriod
		if variance > 0 {
			p.Bandwidth = math.Sqrt(variance)
		}
		if p.MeanPeriod > 0 {
			p.ShapeFactor = p.Bandwidth / p.MeanPeriod
		}
		if sumWT2 > 0 {
			p.Regularity = sumWT / math.Sqrt(sumW*sumWT2)
		}
	}

	p.A95 = percentileEnergy(sa, 0.95)
	p.V95 = percentileEnergy(sv, 0.95)
	p.D95 = percentileEnergy(sd, 0.95)

	return p, nil
}

// FromPoints groups an oscillator grid by damping and extracts one parameter
// row per damping, in ascending damping order.
func FromPoints(pts []response.Point) ([]*Parameters, error) {
	if len(pts) == 0 {
		return nil, errors.Newf("empty response spectrum").
			Component("specparams").
			Category(errors.CategoryDataIntegrity).
			Build()
	}

	byDamping := make(map[float64][]response.Point)
	for _, pt := range pts {
		byDamping[pt.Damping] = append(byDamping[pt.Damping], pt)
	}
	dampings := make([]float64, 0, len(byDamping))
	for d := range byDamping {
		dampings = append(dampings, d)
	}
	sort.Float64s(dampings)

	out := make([]*Parameters, 0, len(dampings))
	for _, d := range dampings {
		group := byDamping[d]
		periods := make([]float64, len(group))
		sa := make([]float64, len(group))
		sv := make([]float64, len(group))
		sd := make([]float64, len(group))
		for i, pt := range group {
			periods[i] = pt.Period
			sa[i] = pt.Sa
			sv[i] = pt.Sv
			sd[i] = pt.Sd
		}
		params, err := Extract(periods, sa, sv, sd, d)
		if err != nil {
			return nil, err
		}
		out = append(out, params)
	}
	return out, nil
}

func argmax(x, y []float64) (atX, maxY float64) {
	atX, maxY = x[0], y[0]
	for i := 1; i < len(y); i++ {
		if y[i] > maxY {
			atX, maxY = x[i], y[i]
		}
	}
	return atX, maxY
}

// percentileEnergy returns the smallest ordinate such that the given
// fraction of the total sum of squared ordinates lies at or below it.
func percentileEnergy(vals []float64, frac float64) float64 {
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	var total float64
	for _, v := range sorted {
		total += v * v
	}
	if total == 0 {
		return 0
	}

	target := frac * total
	var cum float64
	for _, v := range sorted {
		cum += v * v
		if cum >= target {
			return v
		}
	}
	return sorted[len(sorted)-1]
}
