package pipeline

import (
	"math"

	"github.com/joelefrain/gura-forge/internal/datastore"
	"github.com/joelefrain/gura-forge/internal/seismic"
	"github.com/joelefrain/gura-forge/internal/seismic/coherence"
	"github.com/joelefrain/gura-forge/internal/seismic/response"
	"github.com/joelefrain/gura-forge/internal/seismic/specparams"
	"github.com/joelefrain/gura-forge/internal/seismic/spectral"
	"github.com/joelefrain/gura-forge/internal/seismic/stability"
)

// fourierFamily computes and persists the Fourier amplitude spectra, the
// velocity/displacement spectra and the H/V spectral ratio of one series.
func (p *Pipeline) fourierFamily(recordID uint, rt seismic.RecordType,
	ts *seismic.TriaxialSeries) (map[seismic.Component]*spectral.Spectrum, error) {

	cfg := spectral.Config{
		Window: windowType(p.settings.Processing.Spectral.Window),
		NFFT:   p.settings.Processing.Spectral.NFFT,
	}
	spectra, err := spectral.ComputeTriaxial(ts, cfg, p.settings.Processing.Spectral.WithResultant)
	if err != nil {
		return nil, err
	}

	for c, s := range spectra {
		scope := datastore.SpectrumScope{RecordID: recordID, RecordType: rt, Component: c}

		rows := make([]datastore.FourierSpectrum, s.NumBins())
		for i := range rows {
			rows[i] = datastore.FourierSpectrum{
				RecordID:           recordID,
				RecordType:         rt,
				Component:          c,
				Frequency:          s.Frequencies[i],
				Amplitude:          s.Amplitude[i],
				Phase:              s.Phase[i],
				AmplitudeDB:        s.AmplitudeDB[i],
				PSD:                s.PSD[i],
				CumulativePower:    s.CumulativePower[i],
				CumulativePowerPct: s.CumulativePowerPct[i],
			}
		}
		if err := p.store.ReplaceFourierSpectra(scope, rows); err != nil {
			return nil, err
		}

		vel, disp := response.VelDispFromFourier(s)
		vdRows := make([]datastore.VelocityDisplacementSpectrum, s.NumBins())
		for i := range vdRows {
			vdRows[i] = datastore.VelocityDisplacementSpectrum{
				RecordID:     recordID,
				RecordType:   rt,
				Component:    c,
				Frequency:    s.Frequencies[i],
				Velocity:     vel[i],
				Displacement: disp[i],
			}
		}
		if err := p.store.ReplaceVelocityDisplacementSpectra(scope, vdRows); err != nil {
			return nil, err
		}
	}

	if err := p.spectralRatio(recordID, rt, spectra); err != nil {
		return nil, err
	}
	return spectra, nil
}

// spectralRatio persists the H/V ratio: the vector magnitude of the two
// horizontal amplitude spectra over the vertical one.
func (p *Pipeline) spectralRatio(recordID uint, rt seismic.RecordType,
	spectra map[seismic.Component]*spectral.Spectrum) error {

	v := spectra[seismic.ComponentVertical]
	n := spectra[seismic.ComponentNorth]
	e := spectra[seismic.ComponentEast]

	rows := make([]datastore.SpectralRatio, v.NumBins())
	for i := range rows {
		ratio := 0.0
		if v.Amplitude[i] > 0 {
			ratio = math.Hypot(n.Amplitude[i], e.Amplitude[i]) / v.Amplitude[i]
		}
		rows[i] = datastore.SpectralRatio{
			RecordID:   recordID,
			RecordType: rt,
			Frequency:  v.Frequencies[i],
			Ratio:      ratio,
		}
	}
	return p.store.ReplaceSpectralRatios(recordID, rt, rows)
}

// responseFamily solves the oscillator grid per component through both
// routes, derives the resultant spectra and reduces each response spectrum
// to its scalar parameters.
func (p *Pipeline) responseFamily(recordID uint, rt seismic.RecordType, ts *seismic.TriaxialSeries) error {
	cfg := response.Config{
		Periods:  p.settings.Processing.Response.Periods(),
		Dampings: p.settings.Processing.Response.Dampings,
	}

	timePts := make(map[seismic.Component][]response.Point)
	fourierPts := make(map[seismic.Component][]response.Point)
	for _, c := range seismic.Orthogonal() {
		pts, err := response.Compute(ts.Component(c), ts.SamplingFreq, cfg)
		if err != nil {
			return err
		}
		timePts[c] = pts

		fpts, err := response.ComputeFromFourier(ts.Component(c), ts.SamplingFreq, cfg)
		if err != nil {
			return err
		}
		fourierPts[c] = fpts
	}
	timePts[seismic.ComponentResultant] = resultantPoints(
		timePts[seismic.ComponentVertical], timePts[seismic.ComponentNorth], timePts[seismic.ComponentEast])
	fourierPts[seismic.ComponentResultant] = resultantPoints(
		fourierPts[seismic.ComponentVertical], fourierPts[seismic.ComponentNorth], fourierPts[seismic.ComponentEast])

	for c, pts := range timePts {
		scope := datastore.SpectrumScope{RecordID: recordID, RecordType: rt, Component: c}

		rows := make([]datastore.ResponseSpectrum, len(pts))
		for i, pt := range pts {
			rows[i] = datastore.ResponseSpectrum{
				RecordID: recordID, RecordType: rt, Component: c,
				Damping: pt.Damping, Period: pt.Period,
				Sd: pt.Sd, Sv: pt.Sv, Sa: pt.Sa, PSv: pt.PSv, PSa: pt.PSa,
			}
		}
		if err := p.store.ReplaceResponseSpectra(scope, rows); err != nil {
			return err
		}

		params, err := specparams.FromPoints(pts)
		if err != nil {
			return err
		}
		paramRows := make([]datastore.SpectralParameters, len(params))
		for i, prm := range params {
			paramRows[i] = datastore.SpectralParameters{
				RecordID: recordID, RecordType: rt, Component: c,
				Damping:           prm.Damping,
				PeakSa:            prm.PeakSa,
				PeakSaPeriod:      prm.PeakSaPeriod,
				PeakSv:            prm.PeakSv,
				PeakSvPeriod:      prm.PeakSvPeriod,
				PeakSd:            prm.PeakSd,
				PeakSdPeriod:      prm.PeakSdPeriod,
				PredominantPeriod: prm.PredominantPeriod,
				MeanPeriod:        prm.MeanPeriod,
				A95:               prm.A95,
				V95:               prm.V95,
				D95:               prm.D95,
				Bandwidth:         prm.Bandwidth,
				ShapeFactor:       prm.ShapeFactor,
				Regularity:        prm.Regularity,
			}
		}
		if err := p.store.ReplaceSpectralParameters(scope, paramRows); err != nil {
			return err
		}
	}

	for c, pts := range fourierPts {
		scope := datastore.SpectrumScope{RecordID: recordID, RecordType: rt, Component: c}
		rows := make([]datastore.FourierResponseSpectrum, len(pts))
		for i, pt := range pts {
			rows[i] = datastore.FourierResponseSpectrum{
				RecordID: recordID, RecordType: rt, Component: c,
				Damping: pt.Damping, Period: pt.Period,
				Sd: pt.Sd, Sv: pt.Sv, Sa: pt.Sa, PSv: pt.PSv, PSa: pt.PSa,
			}
		}
		if err := p.store.ReplaceFourierResponseSpectra(scope, rows); err != nil {
			return err
		}
	}
	return nil
}

// resultantPoints combines three per-component grids into the resultant:
// the vector magnitude of each spectral quantity per grid point.
func resultantPoints(v, n, e []response.Point) []response.Point {
	out := make([]response.Point, len(v))
	mag := func(a, b, c float64) float64 {
		return math.Sqrt(a*a + b*b + c*c)
	}
	for i := range v {
		out[i] = response.Point{
			Period:  v[i].Period,
			Damping: v[i].Damping,
			Sd:      mag(v[i].Sd, n[i].Sd, e[i].Sd),
			Sv:      mag(v[i].Sv, n[i].Sv, e[i].Sv),
			Sa:      mag(v[i].Sa, n[i].Sa, e[i].Sa),
			PSv:     mag(v[i].PSv, n[i].PSv, e[i].PSv),
			PSa:     mag(v[i].PSa, n[i].PSa, e[i].PSa),
		}
	}
	return out
}

// stabilityFamily runs the segment-wise spectral variability analysis per
// component.
func (p *Pipeline) stabilityFamily(recordID uint, rt seismic.RecordType, ts *seismic.TriaxialSeries) error {
	cfg := stability.Config{
		Window:   windowType(p.settings.Processing.Stability.Window),
		Segments: p.settings.Processing.Stability.Segments,
		Overlap:  p.settings.Processing.Stability.Overlap,
	}

	for _, c := range seismic.Orthogonal() {
		res, err := stability.Analyze(ts.Component(c), ts.SamplingFreq, cfg)
		if err != nil {
			return err
		}

		scope := datastore.SpectrumScope{RecordID: recordID, RecordType: rt, Component: c}
		rows := make([]datastore.SpectralStability, 0, len(res.Segments)*len(res.Frequencies))
		for _, seg := range res.Segments {
			for k, f := range res.Frequencies {
				rows = append(rows, datastore.SpectralStability{
					RecordID:       recordID,
					RecordType:     rt,
					Component:      c,
					SegmentNumber:  seg.Number,
					SegmentsTotal:  cfg.Segments,
					Frequency:      f,
					Amplitude:      seg.Amplitude[k],
					Phase:          seg.Phase[k],
					MeanAmplitude:  res.MeanAmplitude[k],
					StdAmplitude:   res.StdAmplitude[k],
					CoV:            res.CoV[k],
					MeanPhase:      res.MeanPhase[k],
					StdPhase:       res.StdPhase[k],
					StabilityIndex: res.StabilityIndex[k],
				})
			}
		}
		if err := p.store.ReplaceSpectralStability(scope, cfg.Segments, rows); err != nil {
			return err
		}
	}
	return nil
}

// coherenceFamily estimates the pairwise coherence between the record's
// orthogonal components.
func (p *Pipeline) coherenceFamily(recordID uint, ts *seismic.TriaxialSeries) error {
	cfg := coherence.Config{
		Window:        windowType(p.settings.Processing.Coherence.Window),
		SegmentLength: p.settings.Processing.Coherence.SegmentLength,
		Overlap:       p.settings.Processing.Coherence.Overlap,
	}

	comps := seismic.Orthogonal()
	for i := 0; i < len(comps); i++ {
		for j := i + 1; j < len(comps); j++ {
			x := &coherence.Series{SamplingFreq: ts.SamplingFreq, Data: ts.Component(comps[i])}
			y := &coherence.Series{SamplingFreq: ts.SamplingFreq, Data: ts.Component(comps[j])}

			res, err := coherence.Compute(x, y, cfg)
			if err != nil {
				return err
			}

			key := datastore.CoherenceKey{
				Record1ID: recordID, Record2ID: recordID,
				Component1: comps[i], Component2: comps[j],
			}
			rows := make([]datastore.CoherenceSpectrum, len(res.Frequencies))
			for k := range rows {
				rows[k] = datastore.CoherenceSpectrum{
					Frequency: res.Frequencies[k],
					Coherence: res.Coherence[k],
					Phase:     res.Phase[k],
				}
			}
			if err := p.store.ReplaceCoherenceSpectra(key, rows); err != nil {
				return err
			}
		}
	}
	return nil
}
