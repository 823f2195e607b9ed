package shop

import (
	"regexp"
	"strings"

	"github.com/kozaktomas/diacritics"
	"github.com/shopspring/decimal"

	"github.com/kotrzina/flower-cart/pkg/cart"
	"github.com/kotrzina/flower-cart/pkg/price"
)

type StockType string

const (
	StockTypeAvailable  StockType = "available"
	StockTypeOutOfStock StockType = "out_of_stock"
	StockTypeUnknown    StockType = "unknown"
)

// Product is a product card of a category page.
type Product struct {
	Name       string           `json:"name"`
	Slug       string           `json:"slug"`
	Link       string           `json:"url"`
	PriceText  string           `json:"price_text"`
	Price      decimal.Decimal  `json:"price"`
	Convention price.Convention `json:"convention"`
	Err        error            `json:"-"` // price could not be parsed
}

type CategoryPage struct {
	Title    string    `json:"title"`
	Products []Product `json:"products"`
}

type ProductPage struct {
	Title        string          `json:"title"`
	PriceText    string          `json:"price_text"`
	Price        decimal.Decimal `json:"price"`
	Err          error           `json:"-"`
	Stock        StockType       `json:"stock"`
	CanAddToCart bool            `json:"can_add_to_cart"`
}

type CartItem struct {
	Name      string          `json:"name"`
	PriceText string          `json:"price_text"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Err       error           `json:"-"`
}

type Cart struct {
	Items        []CartItem      `json:"items"`
	TotalText    string          `json:"total_text"`
	Total        decimal.Decimal `json:"total"`
	TotalErr     error           `json:"-"`
	SubtotalText string          `json:"subtotal_text"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Empty        bool            `json:"empty"`
}

// Lines converts cart items for reconciliation.
func (c *Cart) Lines() []cart.Line {
	lines := make([]cart.Line, 0, len(c.Items))
	for _, item := range c.Items {
		lines = append(lines, cart.Line{
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		})
	}
	return lines
}

// Invalid returns items whose price could not be parsed.
func (c *Cart) Invalid() []CartItem {
	var items []CartItem
	for _, item := range c.Items {
		if item.Err != nil {
			items = append(items, item)
		}
	}
	return items
}

var (
	reSpaces  = regexp.MustCompile(`\s+`)
	reNonSlug = regexp.MustCompile(`[^a-z0-9]+`)
)

// cleanText collapses whitespace including non-breaking spaces
func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// title sanitization
func sanitizeTitle(s string, noise []string) string {
	s = cleanText(s)
	for _, word := range noise {
		s = strings.ReplaceAll(s, word, "")
	}

	return cleanText(s)
}

// Slug is used as a stable product key in storage and metrics.
func Slug(name string) string {
	s := reNonSlug.ReplaceAllString(fold(name), "-")
	return strings.Trim(s, "-")
}

// ContainsName reports whether haystack contains needle ignoring case and diacritics.
func ContainsName(haystack, needle string) bool {
	return strings.Contains(fold(haystack), fold(needle))
}

func fold(s string) string {
	normalized, err := diacritics.Remove(s)
	if err != nil {
		normalized = s
	}
	return strings.ToLower(cleanText(normalized))
}
