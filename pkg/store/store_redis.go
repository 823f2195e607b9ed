package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/kotrzina/flower-cart/pkg/config"
)

const (
	ObservationsKeyPrefix = "observations:"
	CheckRunsKey          = "check_runs"
)

type RedisStore struct {
	Client *redis.Client
	ctx    context.Context
}

func NewRedisStore(ctx context.Context, config *config.Config) *RedisStore {
	return &RedisStore{
		Client: redis.NewClient(&redis.Options{
			Addr: config.RedisAddr,
			DB:   config.RedisDB,
		}),
		ctx: ctx,
	}
}

func (s *RedisStore) AddObservation(o Observation) error {
	return s.push(ObservationsKeyPrefix+o.Slug, o, historyLimit)
}

func (s *RedisStore) GetObservations(slug string) ([]Observation, error) {
	res, err := s.Client.LRange(s.ctx, ObservationsKeyPrefix+slug, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	observations := make([]Observation, 0, len(res))
	for _, item := range res {
		var o Observation
		if err := json.Unmarshal([]byte(item), &o); err != nil {
			return nil, fmt.Errorf("invalid observation format in the storage: %w", err)
		}
		observations = append(observations, o)
	}

	return observations, nil
}

func (s *RedisStore) GetLatestObservation(slug string) (Observation, error) {
	res, err := s.Client.LIndex(s.ctx, ObservationsKeyPrefix+slug, -1).Result()
	if errors.Is(err, redis.Nil) {
		return Observation{}, ErrNotFound
	}
	if err != nil {
		return Observation{}, err
	}

	var o Observation
	if err := json.Unmarshal([]byte(res), &o); err != nil {
		return Observation{}, fmt.Errorf("invalid observation format in the storage: %w", err)
	}

	return o, nil
}

func (s *RedisStore) AddCheckRun(run CheckRun) error {
	return s.push(CheckRunsKey, run, checkRunsLimit)
}

func (s *RedisStore) GetCheckRuns() ([]CheckRun, error) {
	res, err := s.Client.LRange(s.ctx, CheckRunsKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	runs := make([]CheckRun, 0, len(res))
	for _, item := range res {
		var run CheckRun
		if err := json.Unmarshal([]byte(item), &run); err != nil {
			return nil, fmt.Errorf("invalid check run format in the storage: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, nil
}

// push appends value to the list and keeps only last limit items
func (s *RedisStore) push(key string, value interface{}, limit int64) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("could not marshal value: %w", err)
	}

	pipe := s.Client.TxPipeline()
	pipe.RPush(s.ctx, key, data)
	pipe.LTrim(s.ctx, key, -limit, -1)
	_, err = pipe.Exec(s.ctx)

	return err
}

func (s *RedisStore) Close() error {
	return s.Client.Close()
}
