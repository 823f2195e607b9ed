package shop

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/kotrzina/flower-cart/pkg/config"
	"github.com/kotrzina/flower-cart/pkg/price"
)

// Extractor reads shop pages using the selector chains of a profile.
type Extractor struct {
	profile *config.Profile
	parser  price.Parser
}

func NewExtractor(profile *config.Profile) *Extractor {
	return &Extractor{
		profile: profile,
		parser:  profile.Parser(),
	}
}

func ParseHTML(body string) (*html.Node, error) {
	return html.Parse(strings.NewReader(body))
}

// Category extracts the title and product cards of a category page.
// A product with unparsable price is kept with Err set.
func (e *Extractor) Category(doc *html.Node) (*CategoryPage, error) {
	sel := e.profile.Selectors

	title, err := e.text(doc, sel.PageTitle)
	if err != nil {
		return nil, fmt.Errorf("could not parse title: %w", err)
	}

	cards, err := queryAll(doc, sel.ProductCard)
	if err != nil {
		return nil, fmt.Errorf("could not parse product cards: %w", err)
	}

	page := &CategoryPage{
		Title:    title,
		Products: make([]Product, 0, len(cards)),
	}

	for i, card := range cards {
		product, err := e.product(card)
		if err != nil {
			return nil, fmt.Errorf("could not parse product card %d: %w", i, err)
		}
		page.Products = append(page.Products, product)
	}

	return page, nil
}

func (e *Extractor) product(card *html.Node) (Product, error) {
	sel := e.profile.Selectors

	name, err := e.text(card, sel.CardName)
	if err != nil {
		return Product{}, err
	}

	link, err := queryFirst(card, sel.CardLink)
	if err != nil {
		return Product{}, err
	}

	name = sanitizeTitle(name, e.profile.TitleNoise)
	if name == "" {
		name = e.nameFromAttributes(card, link)
	}

	priceText, err := e.text(card, sel.CardPrice)
	if err != nil {
		return Product{}, err
	}

	p := Product{
		Name:      name,
		Slug:      Slug(name),
		PriceText: priceText,
	}
	if link != nil {
		p.Link = e.resolve(htmlquery.SelectAttr(link, "href"))
	}
	p.Price, p.Convention, p.Err = e.parser.ParseWithConvention(priceText)

	return p, nil
}

// nameFromAttributes falls back to title and alt attributes when a card has no heading
func (e *Extractor) nameFromAttributes(card, link *html.Node) string {
	if link != nil {
		if title := htmlquery.SelectAttr(link, "title"); title != "" {
			return sanitizeTitle(title, e.profile.TitleNoise)
		}
	}

	for _, expr := range []string{".//*[@title]", ".//img[@alt]"} {
		nodes, err := htmlquery.QueryAll(card, expr)
		if err != nil || len(nodes) == 0 {
			continue
		}
		attr := "title"
		if nodes[0].Data == "img" && !htmlquery.ExistsAttr(nodes[0], "title") {
			attr = "alt"
		}
		if v := htmlquery.SelectAttr(nodes[0], attr); v != "" {
			return sanitizeTitle(v, e.profile.TitleNoise)
		}
	}

	return ""
}

// Product extracts a product detail page.
func (e *Extractor) Product(doc *html.Node) (*ProductPage, error) {
	sel := e.profile.Selectors

	title, err := e.text(doc, sel.ProductTitle)
	if err != nil {
		return nil, fmt.Errorf("could not parse title: %w", err)
	}

	priceText, err := e.text(doc, sel.ProductPrice)
	if err != nil {
		return nil, fmt.Errorf("could not parse price: %w", err)
	}

	stockText, err := e.text(doc, sel.ProductStock)
	if err != nil {
		return nil, fmt.Errorf("could not parse stock: %w", err)
	}

	button, err := queryFirst(doc, sel.AddToCart)
	if err != nil {
		return nil, fmt.Errorf("could not parse add to cart button: %w", err)
	}

	page := &ProductPage{
		Title:        sanitizeTitle(title, e.profile.TitleNoise),
		PriceText:    priceText,
		Stock:        parseStock(stockText),
		CanAddToCart: button != nil,
	}
	page.Price, page.Err = e.parser.Parse(priceText)

	return page, nil
}

func parseStock(s string) StockType {
	s = fold(s)
	switch {
	case s == "":
		return StockTypeUnknown
	case strings.Contains(s, "agotado"), strings.Contains(s, "out of stock"), strings.Contains(s, "sin existencias"):
		return StockTypeOutOfStock
	case strings.Contains(s, "disponible"), strings.Contains(s, "in stock"), strings.Contains(s, "hay existencias"):
		return StockTypeAvailable
	}

	return StockTypeUnknown
}

// Cart extracts cart items and totals.
func (e *Extractor) Cart(doc *html.Node) (*Cart, error) {
	sel := e.profile.Selectors

	rows, err := queryAll(doc, sel.CartItem)
	if err != nil {
		return nil, fmt.Errorf("could not parse cart items: %w", err)
	}

	c := &Cart{
		Items: make([]CartItem, 0, len(rows)),
	}

	for i, row := range rows {
		item, err := e.cartItem(row)
		if err != nil {
			return nil, fmt.Errorf("could not parse cart item %d: %w", i, err)
		}
		c.Items = append(c.Items, item)
	}

	empty, err := queryFirst(doc, sel.CartEmpty)
	if err != nil {
		return nil, fmt.Errorf("could not parse empty cart message: %w", err)
	}
	c.Empty = len(c.Items) == 0 && empty != nil

	if len(c.Items) == 0 {
		return c, nil
	}

	c.TotalText, err = e.text(doc, sel.CartTotal)
	if err != nil {
		return nil, fmt.Errorf("could not parse cart total: %w", err)
	}
	c.Total, c.TotalErr = e.parser.Parse(c.TotalText)

	c.SubtotalText, err = e.text(doc, sel.CartSubtotal)
	if err != nil {
		return nil, fmt.Errorf("could not parse cart subtotal: %w", err)
	}
	if c.SubtotalText != "" {
		// subtotal is informative only
		c.Subtotal, _ = e.parser.Parse(c.SubtotalText)
	}

	return c, nil
}

func (e *Extractor) cartItem(row *html.Node) (CartItem, error) {
	sel := e.profile.Selectors

	name, err := e.text(row, sel.CartItemName)
	if err != nil {
		return CartItem{}, err
	}

	priceText, err := e.text(row, sel.CartItemPrice)
	if err != nil {
		return CartItem{}, err
	}

	input, err := queryFirst(row, sel.CartItemQuantity)
	if err != nil {
		return CartItem{}, err
	}

	item := CartItem{
		Name:      sanitizeTitle(name, e.profile.TitleNoise),
		PriceText: priceText,
		Quantity:  1,
	}
	if input != nil {
		item.Quantity = ParseQuantity(htmlquery.SelectAttr(input, "value"))
	}
	item.UnitPrice, item.Err = e.parser.Parse(priceText)

	return item, nil
}

// ParseQuantity reads a quantity input value, anything below one counts as one.
func ParseQuantity(s string) int {
	q, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || q < 1 {
		return 1
	}
	return q
}

// CategoryLink returns the url of the first link whose text matches the
// category name, or the profile path of the category.
func (e *Extractor) CategoryLink(doc *html.Node, category config.Category) string {
	links, err := htmlquery.QueryAll(doc, "//a[@href]")
	if err == nil {
		for _, link := range links {
			if ContainsName(htmlquery.InnerText(link), category.Name) {
				return e.resolve(htmlquery.SelectAttr(link, "href"))
			}
		}
	}

	return e.profile.URL(category.Path)
}

func (e *Extractor) resolve(href string) string {
	base, err := url.Parse(e.profile.BaseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// text returns whitespace collapsed inner text of the first node matched by chain or empty string.
func (e *Extractor) text(node *html.Node, chain []string) (string, error) {
	n, err := queryFirst(node, chain)
	if err != nil || n == nil {
		return "", err
	}

	return cleanText(htmlquery.InnerText(n)), nil
}

// queryAll returns all nodes matched by the first expression of chain with any match.
func queryAll(node *html.Node, chain []string) ([]*html.Node, error) {
	for _, expr := range chain {
		els, err := htmlquery.QueryAll(node, expr)
		if err != nil {
			return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
		}
		if len(els) > 0 {
			return els, nil
		}
	}

	return nil, nil
}

func queryFirst(node *html.Node, chain []string) (*html.Node, error) {
	els, err := queryAll(node, chain)
	if err != nil || len(els) == 0 {
		return nil, err
	}
	return els[0], nil
}
