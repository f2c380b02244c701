// Package fincalc implements decimal-precision financial calculations:
// compound interest, present value, net present value, and internal rate
// of return. All functions are stateless and safe for concurrent use.
package fincalc

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	// calcPrecision is the number of significant digits kept through
	// division and exponentiation before final quantization.
	calcPrecision = 28

	// currencyScale quantizes monetary results, rateScale quantizes rates.
	currencyScale = 2
	rateScale     = 4

	maxIterations = 100

	// maxExponent caps compounding exponents before Pow to keep the
	// coefficient bounded.
	maxExponent = 100000
)

var (
	one = decimal.NewFromInt(1)

	// irrTolerance is the NPV magnitude below which the IRR iteration
	// is considered converged.
	irrTolerance = decimal.NewFromFloat(0.0001)

	// DefaultIRRGuess is the starting rate for CalculateIRR when the
	// caller has no better estimate.
	DefaultIRRGuess = decimal.NewFromFloat(0.1)
)

// CalculationError reports invalid numeric input or overflow in a
// financial calculation. It is surfaced directly and never retried.
type CalculationError struct {
	Op     string
	Reason string
}

func (e *CalculationError) Error() string {
	return fmt.Sprintf("calculation %q failed: %s", e.Op, e.Reason)
}

// ConvergenceError reports that the Newton-Raphson IRR iteration did not
// converge within the iteration limit, or hit a zero derivative.
type ConvergenceError struct {
	Iterations int
	Reason     string
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("IRR did not converge after %d iterations: %s", e.Iterations, e.Reason)
}

// CalculateInterest returns the compound interest earned on principal at the
// given annual rate over the given number of periods (years), compounded
// compoundFrequency times per period:
//
//	principal * (1 + rate/frequency)^(frequency*periods) - principal
//
// The result is quantized to 2 decimal places, rounded half up.
func CalculateInterest(principal, annualRate, periods decimal.Decimal, compoundFrequency int64) (decimal.Decimal, error) {
	if periods.IsNegative() {
		return decimal.Zero, &CalculationError{Op: "interest", Reason: "periods must be non-negative"}
	}
	if compoundFrequency <= 0 {
		return decimal.Zero, &CalculationError{Op: "interest", Reason: "compound frequency must be positive"}
	}

	freq := decimal.NewFromInt(compoundFrequency)
	exponent := freq.Mul(periods)
	if exponent.Abs().GreaterThan(decimal.NewFromInt(maxExponent)) {
		return decimal.Zero, &CalculationError{Op: "interest", Reason: "compounding exponent overflow"}
	}

	base := one.Add(annualRate.DivRound(freq, calcPrecision))
	factor, err := base.PowWithPrecision(exponent, calcPrecision)
	if err != nil {
		return decimal.Zero, &CalculationError{Op: "interest", Reason: err.Error()}
	}

	interest := principal.Mul(factor).Sub(principal)
	return interest.Round(currencyScale), nil
}

// CalculatePresentValue discounts futureValue back over the given number of
// periods at discountRate: futureValue / (1 + rate)^periods. The result is
// quantized to 2 decimal places.
func CalculatePresentValue(futureValue, discountRate, periods decimal.Decimal) (decimal.Decimal, error) {
	if periods.IsNegative() {
		return decimal.Zero, &CalculationError{Op: "present_value", Reason: "periods must be non-negative"}
	}

	denominator, err := one.Add(discountRate).PowWithPrecision(periods, calcPrecision)
	if err != nil {
		return decimal.Zero, &CalculationError{Op: "present_value", Reason: err.Error()}
	}
	if denominator.IsZero() {
		return decimal.Zero, &CalculationError{Op: "present_value", Reason: "division by zero discount factor"}
	}

	return futureValue.DivRound(denominator, calcPrecision).Round(currencyScale), nil
}

// CalculateNetPresentValue sums the cash flows discounted by their
// zero-indexed period position. The flow at index 0 is undiscounted.
func CalculateNetPresentValue(cashFlows []decimal.Decimal, discountRate decimal.Decimal) (decimal.Decimal, error) {
	onePlusRate := one.Add(discountRate)
	npv := decimal.Zero

	for i, flow := range cashFlows {
		if i == 0 {
			npv = npv.Add(flow)
			continue
		}
		denominator, err := onePlusRate.PowInt32(int32(i))
		if err != nil {
			return decimal.Zero, &CalculationError{Op: "npv", Reason: err.Error()}
		}
		if denominator.IsZero() {
			return decimal.Zero, &CalculationError{Op: "npv", Reason: "division by zero discount factor"}
		}
		npv = npv.Add(flow.DivRound(denominator, calcPrecision))
	}

	return npv.Round(currencyScale), nil
}

// CalculateIRR finds the discount rate at which the cash flows' net present
// value is zero, using Newton-Raphson iteration from initialGuess. The
// iteration converges when |NPV| drops below 0.0001 and the resulting rate
// is quantized to 4 decimal places. A zero derivative or an exhausted
// iteration limit yields a ConvergenceError.
func CalculateIRR(cashFlows []decimal.Decimal, initialGuess decimal.Decimal) (decimal.Decimal, error) {
	rate := initialGuess

	for iteration := 0; iteration < maxIterations; iteration++ {
		npv, derivative, err := npvAndDerivative(cashFlows, rate)
		if err != nil {
			return decimal.Zero, &ConvergenceError{Iterations: iteration, Reason: err.Error()}
		}

		if npv.Abs().LessThan(irrTolerance) {
			return rate.Round(rateScale), nil
		}
		if derivative.IsZero() {
			return decimal.Zero, &ConvergenceError{Iterations: iteration, Reason: "zero derivative"}
		}

		rate = rate.Sub(npv.DivRound(derivative, calcPrecision))
	}

	return decimal.Zero, &ConvergenceError{Iterations: maxIterations, Reason: "iteration limit exhausted"}
}

// npvAndDerivative evaluates NPV(rate) and dNPV/dRate in a single pass.
func npvAndDerivative(cashFlows []decimal.Decimal, rate decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	onePlusRate := one.Add(rate)
	npv := decimal.Zero
	derivative := decimal.Zero

	for i, flow := range cashFlows {
		if i == 0 {
			npv = npv.Add(flow)
			continue
		}

		denominator, err := onePlusRate.PowInt32(int32(i))
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		if denominator.IsZero() {
			return decimal.Zero, decimal.Zero, fmt.Errorf("discount factor is zero at period %d", i)
		}
		npv = npv.Add(flow.DivRound(denominator, calcPrecision))

		derivDenominator, err := onePlusRate.PowInt32(int32(i + 1))
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		if derivDenominator.IsZero() {
			return decimal.Zero, decimal.Zero, fmt.Errorf("derivative discount factor is zero at period %d", i)
		}
		term := flow.Mul(decimal.NewFromInt(int64(i))).DivRound(derivDenominator, calcPrecision)
		derivative = derivative.Sub(term)
	}

	return npv, derivative, nil
}
