package cart

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kozaktomas/diacritics"
	"github.com/shopspring/decimal"

	"github.com/kotrzina/flower-cart/pkg/price"
)

var (
	ErrCountMismatch  = errors.New("cart item count mismatch")
	ErrProductMissing = errors.New("product missing in cart")
	ErrPriceMismatch  = errors.New("product price mismatch")
)

// DefaultTolerance is the largest difference still considered equal.
var DefaultTolerance = decimal.New(1, -2)

// Line is a single cart row.
type Line struct {
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// Subtotal returns unit price multiplied by quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// ExpectedTotal sums subtotals of all lines.
func ExpectedTotal(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

// Reconciliation compares the sum of lines with the total displayed by the shop.
type Reconciliation struct {
	Expected   decimal.Decimal `json:"expected"`
	Displayed  decimal.Decimal `json:"displayed"`
	Difference decimal.Decimal `json:"difference"`
	Matches    bool            `json:"matches"`
}

// Reconcile never fails; a mismatch is reported through Matches.
func Reconcile(lines []Line, displayed, tolerance decimal.Decimal) Reconciliation {
	expected := ExpectedTotal(lines)
	difference := expected.Sub(displayed).Abs()

	return Reconciliation{
		Expected:   expected,
		Displayed:  displayed,
		Difference: difference,
		Matches:    difference.LessThanOrEqual(tolerance),
	}
}

func (r Reconciliation) String() string {
	if r.Matches {
		return fmt.Sprintf("totals match: %s", price.Format(r.Expected))
	}

	return fmt.Sprintf("totals do not match: expected %s, displayed %s (difference %s)",
		price.Format(r.Expected), price.Format(r.Displayed), price.Format(r.Difference))
}

// VerifyProductsMatch checks that every added product is in the cart.
// Names match case and diacritic insensitively by substring; a zero
// unit price of an added line skips the price comparison.
func VerifyProductsMatch(added, inCart []Line, tolerance decimal.Decimal) error {
	if len(added) != len(inCart) {
		return fmt.Errorf("%w: added %d, cart has %d", ErrCountMismatch, len(added), len(inCart))
	}

	for _, want := range added {
		found, ok := FindLine(inCart, want.Name)
		if !ok {
			return fmt.Errorf("%w: %s", ErrProductMissing, want.Name)
		}

		if want.UnitPrice.IsZero() {
			continue
		}

		if found.UnitPrice.Sub(want.UnitPrice).Abs().GreaterThan(tolerance) {
			return fmt.Errorf("%w: %s costs %s in cart, expected %s", ErrPriceMismatch,
				want.Name, price.Format(found.UnitPrice), price.Format(want.UnitPrice))
		}
	}

	return nil
}

// FindLine returns the first line whose name contains name.
func FindLine(lines []Line, name string) (Line, bool) {
	needle := fold(name)
	for _, line := range lines {
		if strings.Contains(fold(line.Name), needle) {
			return line, true
		}
	}

	return Line{}, false
}

func fold(s string) string {
	normalized, err := diacritics.Remove(s)
	if err != nil {
		// fallback to original string if diacritics removal fails
		normalized = s
	}

	return strings.ToLower(strings.TrimSpace(normalized))
}
