package prometheus

import "github.com/prometheus/client_golang/prometheus"

// Monitor represents a Prometheus monitor
// It contains Prometheus registry and all available metrics
type Monitor struct {
	Registry *prometheus.Registry

	PriceParses       *prometheus.CounterVec
	ProductPrice      *prometheus.GaugeVec
	PriceChanges      *prometheus.CounterVec
	CategoryProducts  *prometheus.GaugeVec
	CartMismatches    *prometheus.CounterVec
	CheckDuration     *prometheus.GaugeVec
	CheckProblems     *prometheus.GaugeVec
	LastCheck         *prometheus.GaugeVec
	ScenarioRunsTotal *prometheus.CounterVec
}

// New creates a new Monitor
func New() *Monitor {
	reg := prometheus.NewRegistry()
	monitor := &Monitor{
		Registry: reg,

		PriceParses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flower_price_parses_total",
			Help: "Number of parsed price texts by convention and outcome",
		}, []string{"convention", "outcome"}),

		ProductPrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "flower_product_price",
			Help: "Last observed price of a product",
		}, []string{"category", "slug"}),

		PriceChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flower_price_changes_total",
			Help: "Number of product price changes between catalog checks",
		}, []string{"category"}),

		CategoryProducts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "flower_category_products",
			Help: "Number of products found on a category page",
		}, []string{"category"}),

		CartMismatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flower_cart_mismatches_total",
			Help: "Number of carts whose displayed total did not match the sum of lines",
		}, []string{}),

		CheckDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "flower_check_duration_seconds",
			Help: "Duration of the last catalog check",
		}, []string{}),

		CheckProblems: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "flower_check_problems",
			Help: "Number of problems found by the last catalog check",
		}, []string{}),

		LastCheck: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "flower_last_check",
			Help: "Last catalog check time",
		}, []string{}),

		ScenarioRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flower_scenario_runs_total",
			Help: "Number of browser cart scenario runs by outcome",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		monitor.PriceParses,
		monitor.ProductPrice,
		monitor.PriceChanges,
		monitor.CategoryProducts,
		monitor.CartMismatches,
		monitor.CheckDuration,
		monitor.CheckProblems,
		monitor.LastCheck,
		monitor.ScenarioRunsTotal,
	)

	return monitor
}

// ObserveParse counts one parse attempt, rejected texts are counted under convention "none".
func (m *Monitor) ObserveParse(convention string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		convention = "none"
	}
	m.PriceParses.WithLabelValues(convention, outcome).Inc()
}
