package dwifit

import (
	"math"

	"github.com/mberks/madym/internal/errtrack"
	"github.com/mberks/madym/internal/madymerr"
	"github.com/mberks/madym/internal/optimize"
)

const (
	adcMinInputs = 3
	adcMaxInputs = 10
	adcMaxIters  = 500
)

type adcFitter struct {
	bValues    []float64
	linearOnly bool
	signals    []float64
}

func newADC(bValues []float64, linearOnly bool) (Fitter, error) {
	if len(bValues) < adcMinInputs {
		return nil, madymerr.New(madymerr.MissingMetadata, "dwifit.newADC", "fewer b-values than minimum required")
	}
	return &adcFitter{bValues: bValues, linearOnly: linearOnly}, nil
}

func (f *adcFitter) MinimumInputs() int { return adcMinInputs }
func (f *adcFitter) MaximumInputs() int { return adcMaxInputs }

func (f *adcFitter) SetInputs(signals []float64) error {
	if len(signals) != len(f.bValues) {
		return madymerr.New(madymerr.DimensionMismatch, "adcFitter.SetInputs", "signal count does not match b-value count")
	}
	f.signals = append([]float64(nil), signals...)
	return nil
}

// modelToSignal implements S(b) = S0 * exp(-ADC*b).
func modelToSignal(s0, adc, b float64) float64 { return s0 * math.Exp(-adc*b) }

func (f *adcFitter) FitModel() Result {
	for _, s := range f.signals {
		if s <= 0 {
			// No DWI-specific bit exists in the stable ErrorTracker layout
			//; DCEInvalidInput is the generic "bad input signal"
			// code reused across families.
			return Result{S0: math.NaN(), D: math.NaN(), SSR: math.NaN(), Code: errtrack.DCEInvalidInput}
		}
	}

	s0, adc, ssr := adcLinearFit(f.bValues, f.signals)
	if f.linearOnly {
		return Result{S0: s0, D: adc, SSR: ssr, Code: errtrack.OK}
	}

	prob := &adcProblem{bValues: f.bValues, signals: f.signals}
	opts := optimize.DefaultOptions(2, adcMaxIters)
	opts.Lower = []float64{0, 1e-4}
	opts.Upper = []float64{1e6, 1e6}

	res := optimize.BoundedLM(prob, []float64{s0, adc}, opts)
	if !res.Converged {
		return Result{Code: errtrack.T1MaxIter}
	}
	return Result{S0: res.Params[0], D: res.Params[1], SSR: res.SSR, Code: errtrack.OK}
}

// adcLinearFit fits ln(S) = ln(S0) - ADC*b by ordinary least squares.
func adcLinearFit(bValues, signals []float64) (s0, adc, ssr float64) {
	n := len(bValues)
	y := make([]float64, n)
	for i, s := range signals {
		y[i] = math.Log(s)
	}

	var sumB, sumY, sumBB, sumBY float64
	for i := 0; i < n; i++ {
		sumB += bValues[i]
		sumY += y[i]
		sumBB += bValues[i] * bValues[i]
		sumBY += bValues[i] * y[i]
	}
	nf := float64(n)
	slope := (nf*sumBY - sumB*sumY) / (nf*sumBB - sumB*sumB)
	intercept := (sumY - slope*sumB) / nf

	s0 = math.Exp(intercept)
	adc = -slope

	for i := range bValues {
		diff := modelToSignal(s0, adc, bValues[i]) - signals[i]
		ssr += diff * diff
	}
	return
}

type adcProblem struct {
	bValues, signals []float64
}

func (p *adcProblem) NumParams() int    { return 2 }
func (p *adcProblem) NumResiduals() int { return len(p.signals) }

func (p *adcProblem) Evaluate(params []float64, residuals []float64, jac [][]float64) {
	s0, adc := params[0], params[1]
	for i, b := range p.bValues {
		ed := math.Exp(-adc * b)
		s := s0 * ed
		residuals[i] = s - p.signals[i]
		jac[i][0] = ed
		jac[i][1] = -b * s
	}
}
