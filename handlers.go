package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/kotrzina/flower-cart/pkg/cart"
	"github.com/kotrzina/flower-cart/pkg/check"
	"github.com/kotrzina/flower-cart/pkg/config"
	"github.com/kotrzina/flower-cart/pkg/price"
	"github.com/kotrzina/flower-cart/pkg/promector"
	"github.com/kotrzina/flower-cart/pkg/prometheus"
	"github.com/kotrzina/flower-cart/pkg/store"
)

const (
	defaultChartPeriod = 7 * 24 * time.Hour
	defaultChartStep   = time.Hour
)

type HandlerRepository struct {
	checker   *check.Checker
	promector *promector.Promector
	storage   store.Storage
	profile   *config.Profile
	config    *config.Config
	monitor   *prometheus.Monitor
	logger    *logrus.Logger
}

// metricsHandler returns HTTP handler for metrics endpoint
func (hr *HandlerRepository) metricsHandler() http.Handler {
	return promhttp.HandlerFor(
		hr.monitor.Registry,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			Registry:          hr.monitor.Registry,
		},
	)
}

func (hr *HandlerRepository) parsePriceHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		parser, err := parserFromRequest(query.Get("strict"), query.Get("decimal"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		text := query.Get("text")
		amount, convention, err := parser.ParseWithConvention(text)
		hr.monitor.ObserveParse(string(convention), err)
		if err != nil {
			hr.writeJSON(w, http.StatusUnprocessableEntity, errorOutput{Error: errorCode(err)})
			return
		}

		type output struct {
			Text       string           `json:"text"`
			Amount     decimal.Decimal  `json:"amount"`
			Formatted  string           `json:"formatted"`
			Convention price.Convention `json:"convention"`
		}

		hr.writeJSON(w, http.StatusOK, output{
			Text:       text,
			Amount:     amount,
			Formatted:  price.Format(amount),
			Convention: convention,
		})
	}
}

func (hr *HandlerRepository) reconcileHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		type line struct {
			Name     string `json:"name"`
			Price    string `json:"price"`
			Quantity int    `json:"quantity"`
		}

		type input struct {
			Lines   []line `json:"lines"`
			Total   string `json:"total"`
			Strict  bool   `json:"strict"`
			Decimal string `json:"decimal"`
		}

		var data input
		if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
			http.Error(w, "Could not read post body", http.StatusBadRequest)
			return
		}

		separator, err := price.ParseSeparator(data.Decimal)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		parser := price.Parser{Strict: data.Strict, Decimal: separator}

		lines := make([]cart.Line, 0, len(data.Lines))
		for i, l := range data.Lines {
			amount, err := parser.Parse(l.Price)
			if err != nil {
				hr.writeJSON(w, http.StatusUnprocessableEntity, errorOutput{
					Error: errorCode(err),
					Field: fmt.Sprintf("lines[%d].price", i),
				})
				return
			}

			quantity := l.Quantity
			if quantity < 1 {
				quantity = 1
			}

			lines = append(lines, cart.Line{Name: l.Name, UnitPrice: amount, Quantity: quantity})
		}

		total, err := parser.Parse(data.Total)
		if err != nil {
			hr.writeJSON(w, http.StatusUnprocessableEntity, errorOutput{Error: errorCode(err), Field: "total"})
			return
		}

		reconciliation := cart.Reconcile(lines, total, hr.profile.ToleranceAmount())
		if !reconciliation.Matches {
			hr.monitor.CartMismatches.WithLabelValues().Inc()
			hr.logger.Warn(reconciliation.String())
		}

		hr.writeJSON(w, http.StatusOK, reconciliation)
	}
}

func (hr *HandlerRepository) checkReportHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		report := hr.checker.LastReport()
		if report == nil {
			http.Error(w, "No check finished yet", http.StatusNotFound)
			return
		}

		hr.writeJSON(w, http.StatusOK, report)
	}
}

func (hr *HandlerRepository) checkRunsHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		runs, err := hr.storage.GetCheckRuns()
		if err != nil {
			hr.logger.Warnf("Could not get check runs: %v", err)
			http.Error(w, "Could not get check runs", http.StatusInternalServerError)
			return
		}

		if runs == nil {
			runs = []store.CheckRun{}
		}

		// newest first
		slices.Reverse(runs)
		hr.writeJSON(w, http.StatusOK, runs)
	}
}

func (hr *HandlerRepository) checkRunHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth != hr.config.AuthToken {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		report, err := hr.checker.Run(r.Context())
		if err != nil {
			hr.logger.Warnf("Could not run catalog check: %v", err)
			http.Error(w, "Could not run catalog check", http.StatusInternalServerError)
			return
		}

		hr.writeJSON(w, http.StatusOK, report)
	}
}

func (hr *HandlerRepository) priceHistoryHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := mux.Vars(r)["slug"]

		observations, err := hr.storage.GetObservations(slug)
		if err != nil {
			hr.logger.Warnf("Could not get observations of %s: %v", slug, err)
			http.Error(w, "Could not get price history", http.StatusInternalServerError)
			return
		}

		if len(observations) == 0 {
			http.Error(w, "Unknown product", http.StatusNotFound)
			return
		}

		hr.writeJSON(w, http.StatusOK, observations)
	}
}

func (hr *HandlerRepository) priceChartHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := mux.Vars(r)["slug"]

		period, err := durationParam(r, "period", defaultChartPeriod)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		step, err := durationParam(r, "step", defaultChartStep)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		records, err := hr.promector.PriceHistory(slug, period, step)
		if err != nil {
			hr.logger.Warnf("Could not get price chart of %s: %v", slug, err)
			http.Error(w, "Could not get price chart", http.StatusBadGateway)
			return
		}

		hr.writeJSON(w, http.StatusOK, records)
	}
}

type errorOutput struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func (hr *HandlerRepository) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	res, err := json.Marshal(data)
	if err != nil {
		http.Error(w, "Could not marshal data to JSON", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err = w.Write(res); err != nil {
		hr.logger.Errorf("Could not write response: %v", err)
	}
}

func parserFromRequest(strict, decimalSeparator string) (price.Parser, error) {
	parser := price.Parser{}

	if strict != "" {
		v, err := strconv.ParseBool(strict)
		if err != nil {
			return parser, errors.New("strict has to be a boolean")
		}
		parser.Strict = v
	}

	separator, err := price.ParseSeparator(decimalSeparator)
	if err != nil {
		return parser, err
	}
	parser.Decimal = separator

	return parser, nil
}

func durationParam(r *http.Request, name string, defaultValue time.Duration) (time.Duration, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return defaultValue, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return d, nil
}
