package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/kotrzina/flower-cart/pkg/price"
)

func lines() []Line {
	return []Line{
		{Name: "Ramo de Rosas Rojas", UnitPrice: price.MustParse("10.00"), Quantity: 2},
		{Name: "Orquídea Blanca", UnitPrice: price.MustParse("5,50"), Quantity: 1},
	}
}

func TestExpectedTotal(t *testing.T) {
	assert.Equal(t, "25.50", price.Format(ExpectedTotal(lines())))
	assert.True(t, ExpectedTotal(nil).IsZero())
}

func TestExpectedTotalIsExact(t *testing.T) {
	var items []Line
	for i := 0; i < 10; i++ {
		items = append(items, Line{Name: "Clavel", UnitPrice: price.MustParse("0.10"), Quantity: 1})
	}

	assert.True(t, decimal.NewFromInt(1).Equal(ExpectedTotal(items)))
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name       string
		displayed  string
		matches    bool
		difference string
	}{
		{"exact", "25.50", true, "0.00"},
		{"within_tolerance", "25.51", true, "0.01"},
		{"over", "25.60", false, "0.10"},
		{"under", "$ 20,00", false, "5.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Reconcile(lines(), price.MustParse(tt.displayed), DefaultTolerance)
			assert.Equal(t, tt.matches, r.Matches)
			assert.Equal(t, tt.difference, price.Format(r.Difference))
			assert.Equal(t, "25.50", price.Format(r.Expected))
		})
	}
}

func TestReconciliationString(t *testing.T) {
	r := Reconcile(lines(), price.MustParse("25.60"), DefaultTolerance)
	assert.Equal(t, "totals do not match: expected 25.50, displayed 25.60 (difference 0.10)", r.String())

	r = Reconcile(lines(), price.MustParse("25.50"), DefaultTolerance)
	assert.Equal(t, "totals match: 25.50", r.String())
}

func TestVerifyProductsMatch(t *testing.T) {
	added := []Line{
		{Name: "rosas rojas", UnitPrice: price.MustParse("10")},
		{Name: "orquidea", UnitPrice: decimal.Zero},
	}

	assert.NoError(t, VerifyProductsMatch(added, lines(), DefaultTolerance))
}

func TestVerifyProductsMatchErrors(t *testing.T) {
	err := VerifyProductsMatch(lines()[:1], lines(), DefaultTolerance)
	assert.ErrorIs(t, err, ErrCountMismatch)

	err = VerifyProductsMatch([]Line{
		{Name: "Girasoles"},
		{Name: "Orquídea"},
	}, lines(), DefaultTolerance)
	assert.ErrorIs(t, err, ErrProductMissing)
	assert.Contains(t, err.Error(), "Girasoles")

	err = VerifyProductsMatch([]Line{
		{Name: "Rosas", UnitPrice: price.MustParse("12.00")},
		{Name: "Orquídea"},
	}, lines(), DefaultTolerance)
	assert.ErrorIs(t, err, ErrPriceMismatch)
	assert.Contains(t, err.Error(), "costs 10.00 in cart, expected 12.00")
}

func TestFindLine(t *testing.T) {
	line, ok := FindLine(lines(), "ORQUÍDEA")
	assert.True(t, ok)
	assert.Equal(t, "Orquídea Blanca", line.Name)

	_, ok = FindLine(lines(), "tulipanes")
	assert.False(t, ok)
}
