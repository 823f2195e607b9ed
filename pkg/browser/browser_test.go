package browser

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kotrzina/flower-cart/pkg/price"
	"github.com/kotrzina/flower-cart/pkg/shop"
)

func TestResponseRecorder(t *testing.T) {
	r := NewResponseRecorder("add_to_cart")

	r.record("https://shop.test/producto/rosas/", 200)
	r.record("https://shop.test/?wc-ajax=add_to_cart", 200)
	r.record("https://shop.test/?wc-ajax=add_to_cart", 500)

	responses := r.Responses()
	require.Len(t, responses, 2)
	assert.Equal(t, 2, r.Len())
	assert.True(t, responses[0].OK())

	failed := r.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, 500, failed[0].Status)
}

func TestCheckResponses(t *testing.T) {
	r := NewResponseRecorder("add_to_cart")
	r.record("https://shop.test/?wc-ajax=add_to_cart", 200)
	assert.NoError(t, checkResponses(r))

	r.record("https://shop.test/?wc-ajax=add_to_cart", 503)
	err := checkResponses(r)
	require.ErrorIs(t, err, ErrAddToCartFailed)
	assert.Contains(t, err.Error(), "returned 503")

	r.Reset()
	assert.Equal(t, 0, r.Len())
	assert.NoError(t, checkResponses(r))
}

func TestResponseRecorderWithoutMarker(t *testing.T) {
	r := NewResponseRecorder("")
	r.record("https://shop.test/?wc-ajax=add_to_cart", 200)
	assert.Empty(t, r.Responses())
}

func TestXPath(t *testing.T) {
	assert.Equal(t, "xpath=//h1", xpath("//h1"))
	assert.Equal(t, "xpath=//h1", xpath("xpath=//h1"))
}

func TestScreenshotName(t *testing.T) {
	at := time.Date(2024, 2, 14, 9, 5, 3, 0, time.UTC)
	assert.Equal(t, "cumpleanos-20240214-090503.png", screenshotName("Cumpleaños", at))
	assert.Equal(t, "page-20240214-090503.png", screenshotName("", at))
}

func TestSelectCandidates(t *testing.T) {
	products := []shop.Product{
		{Name: "Rosas", Link: "/producto/rosas/", Price: decimal.NewFromInt(120000)},
		{Name: "Girasoles", Link: "/producto/girasoles/", Err: price.ErrInvalidAmount},
		{Name: "Sin enlace", Price: decimal.NewFromInt(50000)},
		{Name: "Gratis", Link: "/producto/gratis/", Price: decimal.Zero},
		{Name: "Tulipanes", Link: "/producto/tulipanes/", Price: decimal.NewFromInt(89900)},
	}

	candidates := selectCandidates(products)
	require.Len(t, candidates, 2)
	assert.Equal(t, "Rosas", candidates[0].Name)
	assert.Equal(t, "Tulipanes", candidates[1].Name)
}

func TestAddedLine(t *testing.T) {
	product := shop.Product{Name: "Rosas", Price: decimal.NewFromInt(120000)}

	line := addedLine(product, &shop.ProductPage{
		Title: "Ramo de Rosas Rojas",
		Price: decimal.NewFromInt(99000),
	})
	assert.Equal(t, "Ramo de Rosas Rojas", line.Name)
	assert.True(t, decimal.NewFromInt(99000).Equal(line.UnitPrice))
	assert.Equal(t, 1, line.Quantity)

	line = addedLine(product, &shop.ProductPage{Err: price.ErrInvalidAmount})
	assert.Equal(t, "Rosas", line.Name)
	assert.True(t, decimal.NewFromInt(120000).Equal(line.UnitPrice))
}

func TestVerifyEmpty(t *testing.T) {
	assert.NoError(t, verifyEmpty(&shop.Cart{Empty: true}))

	err := verifyEmpty(&shop.Cart{Items: []shop.CartItem{{Name: "Rosas"}}})
	assert.True(t, errors.Is(err, ErrCartNotEmpty))

	err = verifyEmpty(&shop.Cart{})
	assert.ErrorIs(t, err, ErrCartNotEmpty)
}
