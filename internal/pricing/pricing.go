package pricing

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Factor type tags attached to breakdown rows.
const (
	FactorRecipePercent = "Recipe %"
	FactorYieldDivisor  = "Yield divisor"
	FactorAdder         = "Adder"
	FactorDeduction     = "Deduction"
	FactorRate          = "Rate"
	FactorCalc          = "CALC"
)

// Fixed component labels used for the non-ingredient breakdown rows.
const (
	ComponentPreYieldSubtotal  = "Pre-yield subtotal"
	ComponentYield             = "Yield"
	ComponentPostYieldSubtotal = "Post-yield subtotal"
	ComponentPackaging         = "Packaging"
	ComponentFreight           = "Freight"
	ComponentConversion        = "Conversion"
	ComponentRebates           = "Rebates"
	ComponentFOBPreTerms       = "FOB Price (pre terms)"
	ComponentPaymentTerms      = "Payment Terms"
	ComponentFOBFinal          = "FOB Price (final)"
)

const (
	noReference         = "-"
	defaultPaymentTerms = "NET30"
	recipeTolerance     = 0.01
)

// Ingredient is one recipe line of a formula.
type Ingredient struct {
	Name            string  `json:"name"`
	RecipePercent   float64 `json:"recipePercent"`
	MarketPrice     float64 `json:"marketPrice"`
	MarketReference string  `json:"marketReference,omitempty"`
}

// Input holds every parameter of a single price calculation.
// Nil adders are treated as not supplied.
type Input struct {
	Ingredients      []Ingredient `json:"ingredients"`
	YieldPercent     float64      `json:"yieldPercent"`
	Packaging        *float64     `json:"packaging,omitempty"`
	Freight          *float64     `json:"freight,omitempty"`
	Conversion       *float64     `json:"conversion,omitempty"`
	Rebates          *float64     `json:"rebates,omitempty"`
	PaymentTermsRate float64      `json:"paymentTermsRate"`
	PaymentTerms     string       `json:"paymentTerms,omitempty"`
	Plant            string       `json:"plant,omitempty"`
}

// BreakdownRow is one itemized line of the calculation audit trail.
type BreakdownRow struct {
	Component       string   `json:"component"`
	FactorType      string   `json:"factorType"`
	FactorValue     *float64 `json:"factorValue"`
	MarketReference string   `json:"marketReference"`
	CalculatedCost  *float64 `json:"calculatedCost"`
}

// Validation reports derived checks on an accepted input.
type Validation struct {
	RecipePercentTotal     float64 `json:"recipePercentTotal"`
	RecipePercentValid     bool    `json:"recipePercentValid"`
	AllMarketPricesPresent bool    `json:"allMarketPricesPresent"`
	YieldValid             bool    `json:"yieldValid"`
}

// Output is the full result of a price calculation.
type Output struct {
	PreYieldSubtotal  float64        `json:"preYieldSubtotal"`
	PostYieldSubtotal float64        `json:"postYieldSubtotal"`
	FOBPreTerms       float64        `json:"fobPreTerms"`
	FOBFinal          float64        `json:"fobFinal"`
	PaymentTermsAdder float64        `json:"paymentTermsAdder"`
	Breakdown         []BreakdownRow `json:"breakdown"`
	Validation        Validation     `json:"validation"`
}

// ValidationError describes the first constraint an Input violates.
type ValidationError struct {
	Message string
}

// ErrNonFinite is returned when valid inputs overflow to an infinite or NaN
// result, for example extreme prices divided by a tiny yield.
var ErrNonFinite = errors.New("calculation result is not a finite number")

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Float returns a pointer to v, for populating optional Input fields.
func Float(v float64) *float64 {
	return &v
}

// Validate checks in against the pricing constraints and returns an error for
// the first one that fails. Checks run in a fixed order so that callers always
// see the same message for a given input.
func Validate(in Input) error {
	if len(in.Ingredients) == 0 {
		return invalid("at least one ingredient is required")
	}

	if !(in.YieldPercent > 0 && in.YieldPercent <= 100) {
		return invalid("yield must be between 0 and 100")
	}

	for i, ing := range in.Ingredients {
		if strings.TrimSpace(ing.Name) == "" {
			return invalid("ingredient %d: name is required", i+1)
		}
		if !(ing.RecipePercent >= 0 && ing.RecipePercent <= 100) {
			return invalid("ingredient %s: recipe %% must be between 0 and 100", ing.Name)
		}
		if !(ing.MarketPrice >= 0) {
			return invalid("ingredient %s: market price cannot be negative", ing.Name)
		}
	}

	if total := recipeTotal(in.Ingredients); total > 100 {
		return invalid("total recipe percentage (%.2f%%) exceeds 100%%", total)
	}

	adders := []struct {
		value *float64
		label string
	}{
		{in.Packaging, "packaging cost"},
		{in.Freight, "freight cost"},
		{in.Conversion, "conversion cost"},
		{in.Rebates, "rebates"},
	}
	for _, a := range adders {
		if a.value != nil && !(*a.value >= 0) {
			return invalid("%s cannot be negative", a.label)
		}
	}

	if !(in.PaymentTermsRate >= 0) {
		return invalid("payment terms rate cannot be negative")
	}

	return nil
}

// Calculate validates in and computes the itemized FOB price breakdown.
// No output is produced when validation fails.
func Calculate(in Input) (Output, error) {
	if err := Validate(in); err != nil {
		return Output{}, err
	}

	breakdown := make([]BreakdownRow, 0, len(in.Ingredients)+10)

	preYield := 0.0
	for _, ing := range in.Ingredients {
		share := ing.RecipePercent / 100
		cost := share * ing.MarketPrice
		preYield += cost

		breakdown = append(breakdown, BreakdownRow{
			Component:       ing.Name,
			FactorType:      FactorRecipePercent,
			FactorValue:     Float(share),
			MarketReference: orDefault(ing.MarketReference, noReference),
			CalculatedCost:  Float(cost),
		})
	}
	breakdown = append(breakdown, calcRow(ComponentPreYieldSubtotal, preYield))

	yieldDivisor := in.YieldPercent / 100
	breakdown = append(breakdown, BreakdownRow{
		Component:       ComponentYield,
		FactorType:      FactorYieldDivisor,
		FactorValue:     Float(yieldDivisor),
		MarketReference: noReference,
	})

	postYield := preYield / yieldDivisor
	breakdown = append(breakdown, calcRow(ComponentPostYieldSubtotal, postYield))

	fobPreTerms := postYield

	// Zero-valued adders leave the total unchanged and get no row.
	if v, ok := nonZero(in.Packaging); ok {
		fobPreTerms += v
		breakdown = append(breakdown, adderRow(ComponentPackaging, v, noReference))
	}
	if v, ok := nonZero(in.Freight); ok {
		fobPreTerms += v
		breakdown = append(breakdown, adderRow(ComponentFreight, v, orDefault(in.Plant, noReference)))
	}
	if v, ok := nonZero(in.Conversion); ok {
		fobPreTerms += v
		breakdown = append(breakdown, adderRow(ComponentConversion, v, noReference))
	}
	if v, ok := nonZero(in.Rebates); ok {
		fobPreTerms -= v
		breakdown = append(breakdown, BreakdownRow{
			Component:       ComponentRebates,
			FactorType:      FactorDeduction,
			FactorValue:     Float(v),
			MarketReference: noReference,
			CalculatedCost:  Float(-v),
		})
	}
	breakdown = append(breakdown, calcRow(ComponentFOBPreTerms, fobPreTerms))

	termsRate := in.PaymentTermsRate / 100
	termsAdder := fobPreTerms * termsRate
	breakdown = append(breakdown, BreakdownRow{
		Component:       ComponentPaymentTerms,
		FactorType:      FactorRate,
		FactorValue:     Float(termsRate),
		MarketReference: orDefault(in.PaymentTerms, defaultPaymentTerms),
		CalculatedCost:  Float(termsAdder),
	})

	fobFinal := fobPreTerms + termsAdder
	breakdown = append(breakdown, calcRow(ComponentFOBFinal, fobFinal))

	for _, v := range []float64{preYield, postYield, fobPreTerms, termsAdder, fobFinal} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Output{}, ErrNonFinite
		}
	}

	total := recipeTotal(in.Ingredients)

	return Output{
		PreYieldSubtotal:  preYield,
		PostYieldSubtotal: postYield,
		FOBPreTerms:       fobPreTerms,
		FOBFinal:          fobFinal,
		PaymentTermsAdder: termsAdder,
		Breakdown:         breakdown,
		Validation: Validation{
			RecipePercentTotal:     total,
			RecipePercentValid:     math.Abs(total-100) < recipeTolerance,
			AllMarketPricesPresent: allPricesPositive(in.Ingredients),
			YieldValid:             in.YieldPercent > 0 && in.YieldPercent <= 100,
		},
	}, nil
}

func recipeTotal(ingredients []Ingredient) float64 {
	total := 0.0
	for _, ing := range ingredients {
		total += ing.RecipePercent
	}
	return total
}

func allPricesPositive(ingredients []Ingredient) bool {
	for _, ing := range ingredients {
		if !(ing.MarketPrice > 0) {
			return false
		}
	}
	return true
}

func nonZero(v *float64) (float64, bool) {
	if v == nil || *v == 0 {
		return 0, false
	}
	return *v, true
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func calcRow(component string, cost float64) BreakdownRow {
	return BreakdownRow{
		Component:       component,
		FactorType:      FactorCalc,
		MarketReference: noReference,
		CalculatedCost:  Float(cost),
	}
}

func adderRow(component string, value float64, reference string) BreakdownRow {
	return BreakdownRow{
		Component:       component,
		FactorType:      FactorAdder,
		FactorValue:     Float(value),
		MarketReference: reference,
		CalculatedCost:  Float(value),
	}
}
