package dwifit

import (
	"math"

	"github.com/mberks/madym/internal/errtrack"
	"github.com/mberks/madym/internal/optimize"
)

const ivimMaxIters = 500

// defaultBThresholds are the candidate high/low b-value split points tried
// when seeding the multi-threshold initialisation strategy.
var defaultBThresholds = []float64{100, 150, 200}

type ivimFitter struct {
	bValues []float64
	signals []float64
}

func newIVIM(bValues []float64) (Fitter, error) {
	return &ivimFitter{bValues: bValues}, nil
}

func (f *ivimFitter) MinimumInputs() int { return adcMinInputs }
func (f *ivimFitter) MaximumInputs() int { return adcMaxInputs }

func (f *ivimFitter) SetInputs(signals []float64) error {
	f.signals = append([]float64(nil), signals...)
	return nil
}

// modelToSignalIVIM implements S(b) = S0*((1-f)*exp(-D*b) + f*exp(-D* *b)).
func modelToSignalIVIM(s0, d, f, dstar, b float64) float64 {
	return s0 * ((1-f)*math.Exp(-d*b) + f*math.Exp(-dstar*b))
}

// FitModel implements fitMultipleThresholds: for each candidate b-value
// threshold, seed (S0,D) from an ADC fit on b>=threshold and (S0,D*) from
// an ADC fit on b<threshold, derive f from the ratio of the two S0
// estimates, then refine all four parameters jointly; keep the threshold
// with lowest SSR.
func (f *ivimFitter) FitModel() Result {
	for _, s := range f.signals {
		if s <= 0 {
			return Result{S0: math.NaN(), D: math.NaN(), F: math.NaN(), DStar: math.NaN(), SSR: math.NaN(), Code: errtrack.DCEInvalidInput}
		}
	}

	best := Result{SSR: math.Inf(1), Code: errtrack.T1MaxIter}
	anySucceeded := false

	for _, thresh := range defaultBThresholds {
		var bHi, sHi, bLo, sLo []float64
		for i, b := range f.bValues {
			if b >= thresh {
				bHi = append(bHi, b)
				sHi = append(sHi, f.signals[i])
			} else {
				bLo = append(bLo, b)
				sLo = append(sLo, f.signals[i])
			}
		}
		if len(bHi) < adcMinInputs || len(bLo) < adcMinInputs {
			continue
		}

		s0Hi, dHi, _ := adcLinearFit(bHi, sHi)
		s0Lo, dStarLo, _ := adcLinearFit(bLo, sLo)

		fStart := 0.0
		if s0Lo > s0Hi {
			fStart = 1 - s0Hi/s0Lo
		}

		init := []float64{s0Lo, dHi, fStart, dStarLo}
		prob := &ivimProblem{bValues: f.bValues, signals: f.signals}
		opts := optimize.Options{
			MaxIterations: ivimMaxIters,
			GradTol:       1e-8,
			StepTol:       1e-4,
			Lower:         []float64{0, 1e-4, 0, 0},
			Upper:         []float64{1e6, 1e6, 1, 1e6},
		}
		res := optimize.BoundedLM(prob, init, opts)
		if !res.Converged {
			continue
		}

		anySucceeded = true
		if res.SSR < best.SSR {
			best = Result{
				S0:    res.Params[0],
				D:     res.Params[1],
				F:     res.Params[2],
				DStar: res.Params[3],
				SSR:   res.SSR,
				Code:  errtrack.OK,
			}
		}
	}

	if !anySucceeded {
		return Result{Code: errtrack.T1MaxIter}
	}
	return best
}

type ivimProblem struct {
	bValues, signals []float64
}

func (p *ivimProblem) NumParams() int    { return 4 }
func (p *ivimProblem) NumResiduals() int { return len(p.signals) }

func (p *ivimProblem) Evaluate(params []float64, residuals []float64, jac [][]float64) {
	s0, d, f, dstar := params[0], params[1], params[2], params[3]
	for i, b := range p.bValues {
		ed := math.Exp(-d * b)
		edstar := math.Exp(-dstar * b)

		dS0 := (1-f)*ed + f*edstar
		s := s0 * dS0
		dD := s0 * (f - 1) * b * ed
		dF := s0 * (edstar - ed)
		dDstar := -s0 * f * b * edstar

		residuals[i] = s - p.signals[i]
		jac[i][0] = dS0
		jac[i][1] = dD
		jac[i][2] = dF
		jac[i][3] = dDstar
	}
}
