package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kotrzina/flower-cart/pkg/cart"
	"github.com/kotrzina/flower-cart/pkg/config"
	"github.com/kotrzina/flower-cart/pkg/shop"
)

var (
	ErrNotEnoughProducts = errors.New("not enough products")
	ErrAddToCartFailed   = errors.New("add to cart request failed")
)

type ScenarioResult struct {
	Category       string               `json:"category"`
	Added          []cart.Line          `json:"added"`
	Cart           *shop.Cart           `json:"cart"`
	Reconciliation *cart.Reconciliation `json:"reconciliation"`
	Responses      []RecordedResponse   `json:"responses"`
	Screenshot     string               `json:"screenshot,omitempty"`
	Duration       time.Duration        `json:"duration"`
}

// RunCartScenario adds count products of the category to the cart, checks the cart
// against what was added, reconciles totals and empties the cart again.
// A total mismatch is reported but does not fail the scenario.
func RunCartScenario(ctx context.Context, s *Session, category config.Category, count int) (*ScenarioResult, error) {
	started := time.Now()
	result := &ScenarioResult{
		Category: category.Name,
		Added:    []cart.Line{},
	}

	s.Recorder.Reset()
	err := runCartScenario(ctx, s, category, count, result)
	result.Responses = s.Recorder.Responses()
	result.Duration = time.Since(started)

	outcome := "ok"
	if err != nil {
		outcome = "failed"
		path, serr := s.Screenshot(category.Name)
		if serr != nil {
			s.options.Logger.Warnf("could not take screenshot: %v", serr)
		}
		result.Screenshot = path
	}
	if s.options.Monitor != nil {
		s.options.Monitor.ScenarioRunsTotal.WithLabelValues(outcome).Inc()
	}

	s.options.Logger.WithFields(logrus.Fields{
		"category":   category.Name,
		"added":      len(result.Added),
		"outcome":    outcome,
		"durationMs": result.Duration.Milliseconds(),
	}).Info("Cart scenario finished")

	return result, err
}

func runCartScenario(ctx context.Context, s *Session, category config.Category, count int, result *ScenarioResult) error {
	logger := s.options.Logger.WithField("category", category.Name)
	tolerance := s.profile.ToleranceAmount()

	// start from an empty cart
	cartPage := s.Cart()
	if err := cartPage.Open(); err != nil {
		return err
	}
	if err := cartPage.RemoveAll(); err != nil {
		return fmt.Errorf("could not empty cart before the scenario: %w", err)
	}

	home := s.Home()
	if err := home.Open(); err != nil {
		return err
	}
	categoryPage, err := home.GoToCategory(category)
	if err != nil {
		return err
	}

	page, err := categoryPage.Products()
	if err != nil {
		logger.Warnf("menu link did not lead to products, opening category path: %v", err)
		if categoryPage, err = s.Category(category); err != nil {
			return err
		}
		if page, err = categoryPage.Products(); err != nil {
			return err
		}
	}

	candidates := selectCandidates(page.Products)
	if len(candidates) < count {
		return fmt.Errorf("%w: category %s has %d products with price, need %d",
			ErrNotEnoughProducts, category.Name, len(candidates), count)
	}

	for _, product := range candidates {
		if len(result.Added) == count {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := addProduct(categoryPage, product)
		if err != nil {
			logger.Warnf("could not add %s to cart: %v", product.Name, err)
			continue
		}
		result.Added = append(result.Added, line)
		logger.Debugf("Added %s (%s) to cart", line.Name, product.PriceText)
	}

	if err := checkResponses(s.Recorder); err != nil {
		return err
	}

	if len(result.Added) < count {
		return fmt.Errorf("%w: only %d of %d products could be added", ErrNotEnoughProducts, len(result.Added), count)
	}

	if err := cartPage.Open(); err != nil {
		return err
	}
	c, err := cartPage.Read()
	if err != nil {
		return err
	}
	result.Cart = c

	if invalid := c.Invalid(); len(invalid) > 0 {
		return fmt.Errorf("cart item %s has invalid price: %w", invalid[0].Name, invalid[0].Err)
	}

	if err := cart.VerifyProductsMatch(result.Added, c.Lines(), tolerance); err != nil {
		return err
	}

	if c.TotalErr != nil {
		return fmt.Errorf("could not read cart total: %w", c.TotalErr)
	}

	reconciliation := cart.Reconcile(c.Lines(), c.Total, tolerance)
	result.Reconciliation = &reconciliation
	if !reconciliation.Matches {
		logger.Warn(reconciliation.String())
		if s.options.Monitor != nil {
			s.options.Monitor.CartMismatches.WithLabelValues().Inc()
		}
		if s.options.Discord != nil {
			if err := s.options.Discord.SendMismatch(category.Name, reconciliation); err != nil {
				logger.Warnf("could not send mismatch notification: %v", err)
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := cartPage.RemoveAll(); err != nil {
		return err
	}

	// reload, the cart has to stay empty on the server too
	if err := cartPage.Open(); err != nil {
		return err
	}
	return cartPage.VerifyEmpty()
}

// checkResponses fails when any recorded add to cart request was rejected by the shop.
func checkResponses(recorder *ResponseRecorder) error {
	failed := recorder.Failed()
	if len(failed) == 0 {
		return nil
	}

	return fmt.Errorf("%w: %d requests, first %s returned %d",
		ErrAddToCartFailed, len(failed), failed[0].URL, failed[0].Status)
}

func addProduct(categoryPage *CategoryPage, product shop.Product) (cart.Line, error) {
	productPage, err := categoryPage.OpenProduct(product)
	if err != nil {
		return cart.Line{}, err
	}

	info, err := productPage.Info()
	if err != nil {
		return cart.Line{}, err
	}

	if info.Stock == shop.StockTypeOutOfStock || !info.CanAddToCart {
		return cart.Line{}, fmt.Errorf("product is not available")
	}

	if err := productPage.SetQuantity(1); err != nil {
		return cart.Line{}, err
	}

	if err := productPage.AddToCart(); err != nil {
		return cart.Line{}, err
	}

	return addedLine(product, info), nil
}

// addedLine prefers the product detail over the category card,
// the detail page shows the price actually charged.
func addedLine(product shop.Product, info *shop.ProductPage) cart.Line {
	line := cart.Line{
		Name:      product.Name,
		UnitPrice: product.Price,
		Quantity:  1,
	}

	if info.Title != "" {
		line.Name = info.Title
	}
	if info.Err == nil && !info.Price.IsZero() {
		line.UnitPrice = info.Price
	}

	return line
}

// selectCandidates returns products which can be opened and have a valid price.
func selectCandidates(products []shop.Product) []shop.Product {
	candidates := make([]shop.Product, 0, len(products))
	for _, product := range products {
		if product.Err != nil || product.Link == "" || product.Price.IsZero() {
			continue
		}
		candidates = append(candidates, product)
	}
	return candidates
}
