package store

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("not found")

const (
	historyLimit   = 100 // observations kept per product
	checkRunsLimit = 50
)

// Observation is a price seen on a category page at a given time.
type Observation struct {
	Slug      string          `json:"slug"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	PriceText string          `json:"price_text"`
	Price     decimal.Decimal `json:"price"`
	At        time.Time       `json:"at"`
}

// CheckRun summarizes one catalog check.
type CheckRun struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Products  int           `json:"products"`
	Problems  []string      `json:"problems"`
}

type Storage interface {
	AddObservation(o Observation) error                 // add price observation
	GetObservations(slug string) ([]Observation, error) // get observations from oldest to newest
	GetLatestObservation(slug string) (Observation, error)

	AddCheckRun(run CheckRun) error    // add check run
	GetCheckRuns() ([]CheckRun, error) // get check runs from oldest to newest
}
