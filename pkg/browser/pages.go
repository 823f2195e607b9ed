package browser

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kotrzina/flower-cart/pkg/config"
	"github.com/kotrzina/flower-cart/pkg/shop"
)

var ErrCartNotEmpty = errors.New("cart is not empty")

// removal attempts per cart item before giving up
const removeAttempts = 2

type HomePage struct {
	s *Session
}

func (s *Session) Home() *HomePage {
	return &HomePage{s: s}
}

func (p *HomePage) Open() error {
	return p.s.goTo(p.s.profile.URL("/"))
}

// GoToCategory follows the menu link of the category,
// or opens the category path directly when the menu has none.
func (p *HomePage) GoToCategory(category config.Category) (*CategoryPage, error) {
	doc, err := p.s.content()
	if err != nil {
		return nil, err
	}

	if err := p.s.goTo(p.s.extractor.CategoryLink(doc, category)); err != nil {
		return nil, err
	}

	return &CategoryPage{s: p.s, category: category}, nil
}

type CategoryPage struct {
	s        *Session
	category config.Category
}

func (s *Session) Category(category config.Category) (*CategoryPage, error) {
	if err := s.goTo(s.profile.URL(category.Path)); err != nil {
		return nil, err
	}
	return &CategoryPage{s: s, category: category}, nil
}

// Products waits for product cards and extracts them.
func (p *CategoryPage) Products() (*shop.CategoryPage, error) {
	if _, err := p.s.find(p.s.profile.Selectors.ProductCard, p.s.profile.Timeouts.Long); err != nil {
		return nil, fmt.Errorf("category %s has no products: %w", p.category.Name, err)
	}

	doc, err := p.s.content()
	if err != nil {
		return nil, err
	}

	return p.s.extractor.Category(doc)
}

func (p *CategoryPage) OpenProduct(product shop.Product) (*ProductPage, error) {
	if product.Link == "" {
		return nil, fmt.Errorf("product %s has no link", product.Name)
	}

	if err := p.s.goTo(product.Link); err != nil {
		return nil, err
	}

	return &ProductPage{s: p.s}, nil
}

type ProductPage struct {
	s *Session
}

func (p *ProductPage) Info() (*shop.ProductPage, error) {
	if _, err := p.s.find(p.s.profile.Selectors.ProductTitle, p.s.profile.Timeouts.Medium); err != nil {
		return nil, fmt.Errorf("product page has no title: %w", err)
	}

	doc, err := p.s.content()
	if err != nil {
		return nil, err
	}

	return p.s.extractor.Product(doc)
}

// SetQuantity fills the quantity input, pages without the input are left alone.
func (p *ProductPage) SetQuantity(quantity int) error {
	input, err := p.s.find(p.s.profile.Selectors.QuantityInput, p.s.profile.Timeouts.Short)
	if err != nil {
		return nil
	}

	if err := input.First().Fill(strconv.Itoa(quantity)); err != nil {
		return fmt.Errorf("could not set quantity: %w", err)
	}

	return nil
}

// AddToCart clicks the add to cart button and waits for the shop to confirm it.
func (p *ProductPage) AddToCart() error {
	sel := p.s.profile.Selectors
	before := p.s.Recorder.Len()

	button, err := p.s.find(sel.AddToCart, p.s.profile.Timeouts.Medium)
	if err != nil {
		button, err = p.s.find(sel.AddToCartFallback, p.s.profile.Timeouts.Short)
		if err != nil {
			return fmt.Errorf("could not find add to cart button: %w", err)
		}
	}

	if err := button.First().Click(); err != nil {
		return fmt.Errorf("could not click add to cart: %w", err)
	}

	if err := p.s.waitForLoad(); err != nil {
		return fmt.Errorf("page did not load after add to cart: %w", err)
	}

	// AJAX themes answer asynchronously
	deadline := time.Now().Add(p.s.profile.Timeouts.Short)
	for p.s.Recorder.Len() == before && time.Now().Before(deadline) {
		p.s.Page.WaitForTimeout(100)
	}

	for _, response := range p.s.Recorder.Responses()[before:] {
		if !response.OK() {
			return fmt.Errorf("add to cart request failed with status %d", response.Status)
		}
	}

	return nil
}

type CartPage struct {
	s *Session
}

func (s *Session) Cart() *CartPage {
	return &CartPage{s: s}
}

func (p *CartPage) Open() error {
	return p.s.goTo(p.s.profile.CartURL())
}

// Read waits for cart items or the empty cart message and extracts the cart.
func (p *CartPage) Read() (*shop.Cart, error) {
	sel := p.s.profile.Selectors
	if _, err := p.s.find(append(append([]string{}, sel.CartItem...), sel.CartEmpty...), p.s.profile.Timeouts.Long); err != nil {
		return nil, fmt.Errorf("cart page did not load: %w", err)
	}

	doc, err := p.s.content()
	if err != nil {
		return nil, err
	}

	return p.s.extractor.Cart(doc)
}

// RemoveItem removes the first cart item, trying fallback selectors when the regular button fails.
func (p *CartPage) RemoveItem() error {
	sel := p.s.profile.Selectors

	var lastErr error
	for _, chain := range [][]string{sel.RemoveItem, sel.RemoveItemFallback} {
		button, err := p.s.find(chain, p.s.profile.Timeouts.Short)
		if err != nil {
			lastErr = err
			continue
		}

		if err := button.First().Click(); err != nil {
			lastErr = err
			continue
		}

		return p.s.waitForLoad()
	}

	return fmt.Errorf("could not remove cart item: %w", lastErr)
}

// RemoveAll removes items until the cart is empty.
func (p *CartPage) RemoveAll() error {
	c, err := p.Read()
	if err != nil {
		return err
	}

	attempts := len(c.Items) * removeAttempts
	for i := 0; i < attempts && len(c.Items) > 0; i++ {
		if err := p.RemoveItem(); err != nil {
			return err
		}

		// reload, some themes only update the fragment
		if err := p.Open(); err != nil {
			return err
		}

		c, err = p.Read()
		if err != nil {
			return err
		}
	}

	return verifyEmpty(c)
}

func (p *CartPage) VerifyEmpty() error {
	c, err := p.Read()
	if err != nil {
		return err
	}
	return verifyEmpty(c)
}

func verifyEmpty(c *shop.Cart) error {
	if len(c.Items) > 0 {
		return fmt.Errorf("%w: %d items left", ErrCartNotEmpty, len(c.Items))
	}
	if !c.Empty {
		return fmt.Errorf("%w: empty cart message is missing", ErrCartNotEmpty)
	}
	return nil
}
