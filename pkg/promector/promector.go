package promector

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/kotrzina/flower-cart/pkg/config"
	"github.com/kotrzina/flower-cart/pkg/utils"
)

var slugRegex = regexp.MustCompile(`^[a-z0-9-]+$`)

// Promector reads price history back from Prometheus
type Promector struct {
	config *config.Config
	client *http.Client

	logger *logrus.Logger
	ctx    context.Context
}

type Response struct {
	Status string `json:"status"`
	Data   struct {
		ResultType string `json:"resultType"`
		Result     []struct {
			Values [][]interface{} `json:"values"`
		} `json:"result"`
	} `json:"data"`
}

type RangeRecord struct {
	Label string          `json:"label"`
	Value decimal.Decimal `json:"value"`
}

func NewPromector(ctx context.Context, c *config.Config, logger *logrus.Logger) *Promector {
	return &Promector{
		ctx: ctx,

		config: c,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger,
	}
}

// PriceHistory returns the product price over the last period with the given step
func (p *Promector) PriceHistory(slug string, period, step time.Duration) ([]RangeRecord, error) {
	if !slugRegex.MatchString(slug) {
		return nil, fmt.Errorf("invalid product slug %q", slug)
	}

	query := fmt.Sprintf(`max(flower_product_price{slug="%s"})`, slug)
	end := time.Now()
	return p.GetRangeData(query, end.Add(-period), end, step)
}

func (p *Promector) GetRangeData(query string, start, end time.Time, step time.Duration) ([]RangeRecord, error) {
	url := fmt.Sprintf("%s/api/v1/query_range", p.config.PrometheusURL)
	req, err := http.NewRequestWithContext(p.ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}

	q := req.URL.Query()
	q.Add("query", query)
	q.Add("step", formatStep(step))
	q.Add("start", fmt.Sprintf("%d", start.Unix()))
	q.Add("end", fmt.Sprintf("%d", end.Unix()))
	req.URL.RawQuery = q.Encode()

	req.Header.Add("Authorization", getBaseAuth(p.config.PrometheusUser, p.config.PrometheusPassword))
	req.Header.Add("X-Scope-OrgID", p.config.PrometheusOrg)

	response, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not get value from prometheus: %w", err)
	}

	defer response.Body.Close() //nolint: errcheck

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", response.StatusCode)
	}

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read response body: %w", err)
	}

	var prometheusResponse Response
	err = json.Unmarshal(data, &prometheusResponse)
	if err != nil {
		return nil, fmt.Errorf("could not unmarshal response body: %w", err)
	}

	if prometheusResponse.Status != "success" {
		return nil, fmt.Errorf("prometheus query failed: %s", prometheusResponse.Status)
	}

	// product never observed
	if len(prometheusResponse.Data.Result) == 0 {
		p.logger.Debugf("no price history for query %s", query)
		return []RangeRecord{}, nil
	}

	if len(prometheusResponse.Data.Result) != 1 {
		return nil, fmt.Errorf("unexpected number of results: %d", len(prometheusResponse.Data.Result))
	}

	labelFunc := utils.FormatTime
	if step >= 1*time.Hour {
		labelFunc = utils.FormatDateShort
	}

	values := prometheusResponse.Data.Result[0].Values
	records := make([]RangeRecord, 0, len(values))
	for _, record := range values {
		if len(record) != 2 {
			return nil, fmt.Errorf("unexpected number of values: %d", len(record))
		}

		tf, ok := record[0].(float64)
		if !ok {
			return nil, fmt.Errorf("unexpected time format: %T", record[0])
		}
		t := time.Unix(int64(tf), 0)

		vs, ok := record[1].(string)
		if !ok {
			return nil, fmt.Errorf("unexpected value format: %T", record[1])
		}
		v, err := decimal.NewFromString(vs)
		if err != nil {
			return nil, fmt.Errorf("could not convert value to decimal: %w", err)
		}

		records = append(records, RangeRecord{
			Label: labelFunc(t),
			Value: v,
		})
	}

	return records, nil
}

func getBaseAuth(username, password string) string {
	auth := username + ":" + password
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(auth))
}

func formatStep(step time.Duration) string {
	f := step.String()

	if strings.Contains(f, "m0s") {
		f = strings.TrimSuffix(f, "0s")
	}

	if strings.Contains(f, "h0m") {
		f = strings.TrimSuffix(f, "0m")
	}

	return f
}
