package check

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hako/durafmt"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/kotrzina/flower-cart/pkg/config"
	"github.com/kotrzina/flower-cart/pkg/hook"
	"github.com/kotrzina/flower-cart/pkg/prometheus"
	"github.com/kotrzina/flower-cart/pkg/shop"
	"github.com/kotrzina/flower-cart/pkg/store"
)

// parallel category downloads
const concurrency = 4

// Checker periodically walks the catalog, records prices
// and reports what looks broken.
type Checker struct {
	mux        sync.RWMutex
	lastReport *Report

	client    *shop.Client
	extractor *shop.Extractor
	profile   *config.Profile
	store     store.Storage
	monitor   *prometheus.Monitor
	discord   *hook.Discord
	logger    *logrus.Logger
}

// PriceChange is a product whose price differs from its previous observation.
type PriceChange struct {
	Category string          `json:"category"`
	Slug     string          `json:"slug"`
	Name     string          `json:"name"`
	Previous decimal.Decimal `json:"previous"`
	Current  decimal.Decimal `json:"current"`
}

// CategoryResult is the outcome of a single category check.
type CategoryResult struct {
	Category     string         `json:"category"`
	URL          string         `json:"url"`
	Title        string         `json:"title"`
	Products     []shop.Product `json:"products"`
	PriceChanges []PriceChange  `json:"price_changes"`
	Problems     []string       `json:"problems"`
}

type Report struct {
	StartedAt    time.Time        `json:"started_at"`
	Duration     time.Duration    `json:"duration"`
	DurationText string           `json:"duration_text"`
	Products     int              `json:"products"`
	Categories   []CategoryResult `json:"categories"`
	PriceChanges []PriceChange    `json:"price_changes"`
	Problems     []string         `json:"problems"`
}

func (r *Report) OK() bool {
	return len(r.Problems) == 0
}

func New(
	client *shop.Client,
	profile *config.Profile,
	storage store.Storage,
	monitor *prometheus.Monitor,
	discord *hook.Discord,
	logger *logrus.Logger,
) *Checker {
	return &Checker{
		client:    client,
		extractor: shop.NewExtractor(profile),
		profile:   profile,
		store:     storage,
		monitor:   monitor,
		discord:   discord,
		logger:    logger,
	}
}

// CheckCategory downloads one category page and records prices of its products.
// Problems of the page end up in the result, an error means the check itself failed.
func (c *Checker) CheckCategory(ctx context.Context, category config.Category) (*CategoryResult, error) {
	result := &CategoryResult{
		Category:     category.Name,
		URL:          c.profile.URL(category.Path),
		Products:     []shop.Product{},
		PriceChanges: []PriceChange{},
		Problems:     []string{},
	}

	doc, err := c.client.Fetch(ctx, result.URL)
	if err != nil {
		result.Problems = append(result.Problems, fmt.Sprintf("%s: page could not be downloaded: %v", category.Name, err))
		return result, nil
	}

	page, err := c.extractor.Category(doc)
	if err != nil {
		result.Problems = append(result.Problems, fmt.Sprintf("%s: page could not be parsed: %v", category.Name, err))
		return result, nil
	}

	result.Title = page.Title
	result.Products = page.Products
	c.monitor.CategoryProducts.WithLabelValues(category.Name).Set(float64(len(page.Products)))

	if len(page.Products) < c.profile.MinProducts {
		result.Problems = append(result.Problems, fmt.Sprintf("%s: found %d products, expected at least %d",
			category.Name, len(page.Products), c.profile.MinProducts))
	}

	now := time.Now()
	for _, product := range page.Products {
		c.monitor.ObserveParse(string(product.Convention), product.Err)

		if product.Name == "" {
			result.Problems = append(result.Problems, fmt.Sprintf("%s: product without name (%s)", category.Name, product.Link))
		}

		if product.Err != nil {
			result.Problems = append(result.Problems, fmt.Sprintf("%s: %s has invalid price %q", category.Name, product.Name, product.PriceText))
			continue
		}

		if product.Price.IsZero() {
			result.Problems = append(result.Problems, fmt.Sprintf("%s: %s has zero price", category.Name, product.Name))
			continue
		}

		if product.Slug == "" {
			continue
		}

		previous, err := c.store.GetLatestObservation(product.Slug)
		switch {
		case errors.Is(err, store.ErrNotFound):
			// first observation of the product
		case err != nil:
			return nil, fmt.Errorf("could not get last observation of %s: %w", product.Slug, err)
		case !previous.Price.Equal(product.Price):
			result.PriceChanges = append(result.PriceChanges, PriceChange{
				Category: category.Name,
				Slug:     product.Slug,
				Name:     product.Name,
				Previous: previous.Price,
				Current:  product.Price,
			})
			c.monitor.PriceChanges.WithLabelValues(category.Name).Inc()
			c.logger.WithFields(logrus.Fields{
				"slug":     product.Slug,
				"previous": previous.Price.String(),
				"current":  product.Price.String(),
			}).Info("Product price changed")
		}

		err = c.store.AddObservation(store.Observation{
			Slug:      product.Slug,
			Name:      product.Name,
			Category:  category.Name,
			PriceText: product.PriceText,
			Price:     product.Price,
			At:        now,
		})
		if err != nil {
			return nil, fmt.Errorf("could not store observation of %s: %w", product.Slug, err)
		}

		c.monitor.ProductPrice.WithLabelValues(category.Name, product.Slug).Set(product.Price.InexactFloat64())
	}

	return result, nil
}

// Run checks all profile categories concurrently and keeps the report as the last one.
func (c *Checker) Run(ctx context.Context) (*Report, error) {
	started := time.Now()
	categories := c.profile.Categories
	results := make([]*CategoryResult, len(categories))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, category := range categories {
		i, category := i, category
		g.Go(func() error {
			result, err := c.CheckCategory(gctx, category)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("could not check categories: %w", err)
	}

	duration := time.Since(started)
	report := &Report{
		StartedAt:    started,
		Duration:     duration,
		DurationText: durafmt.Parse(duration.Round(time.Millisecond)).LimitFirstN(2).String(),
		Categories:   make([]CategoryResult, 0, len(results)),
		PriceChanges: []PriceChange{},
		Problems:     []string{},
	}

	for _, result := range results {
		report.Categories = append(report.Categories, *result)
		report.Products += len(result.Products)
		report.PriceChanges = append(report.PriceChanges, result.PriceChanges...)
		report.Problems = append(report.Problems, result.Problems...)
	}
	sort.Strings(report.Problems)

	c.monitor.CheckDuration.WithLabelValues().Set(duration.Seconds())
	c.monitor.CheckProblems.WithLabelValues().Set(float64(len(report.Problems)))
	c.monitor.LastCheck.WithLabelValues().Set(float64(started.Unix()))

	err := c.store.AddCheckRun(store.CheckRun{
		StartedAt: started,
		Duration:  duration,
		Products:  report.Products,
		Problems:  report.Problems,
	})
	if err != nil {
		c.logger.Warnf("could not store check run: %v", err)
	}

	if !report.OK() {
		if err := c.discord.SendProblems(started, report.Problems); err != nil {
			c.logger.Warnf("could not send check problems: %v", err)
		}
	}

	c.mux.Lock()
	c.lastReport = report
	c.mux.Unlock()

	c.logger.WithFields(logrus.Fields{
		"products": report.Products,
		"problems": len(report.Problems),
		"duration": report.DurationText,
	}).Info("Catalog check finished")

	return report, nil
}

// LastReport returns the report of the last finished run, nil before the first one.
func (c *Checker) LastReport() *Report {
	c.mux.RLock()
	defer c.mux.RUnlock()

	return c.lastReport
}

// Start runs the check immediately and then periodically until ctx is done.
func (c *Checker) Start(ctx context.Context, interval time.Duration) {
	go func() {
		tick := time.NewTicker(interval)
		defer tick.Stop()

		for {
			if _, err := c.Run(ctx); err != nil {
				c.logger.Warnf("catalog check failed: %v", err)
			}

			select {
			case <-ctx.Done():
				c.logger.Debug("Catalog checker stopped")
				return
			case <-tick.C:
			}
		}
	}()
}
