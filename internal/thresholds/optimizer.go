package thresholds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coastle/coastle/internal/metrics"
	"github.com/coastle/coastle/internal/types"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// ErrOptimizer wraps every failure to obtain optimized thresholds
var ErrOptimizer = errors.New("threshold optimizer failed")

// DefaultRefreshTimeout bounds an optimizer fetch when none is configured
const DefaultRefreshTimeout = 5 * time.Second

// Optimizer produces tuned thresholds
type Optimizer interface {
	Fetch(ctx context.Context) (types.ThresholdSet, error)
}

// StaticOptimizer returns a fixed set of tuned thresholds
type StaticOptimizer struct {
	Values types.ThresholdSet
}

// NewStaticOptimizer returns the mock model output used when no model
// service is configured
func NewStaticOptimizer() *StaticOptimizer {
	return &StaticOptimizer{Values: types.ThresholdSet{
		types.HighTide:        2.3,
		types.StormSurge:      2.8,
		types.CoastalFlooding: 3.2,
		types.WindSpeed:       13.5,
		types.Rainfall:        8.5,
		types.Turbidity:       22.5,
	}}
}

// Fetch returns a copy of the static values
func (o *StaticOptimizer) Fetch(ctx context.Context) (types.ThresholdSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOptimizer, err)
	}
	return o.Values.Clone(), nil
}

// HTTPOptimizer asks a model service for thresholds. The service answers
// GET <url> with a JSON object of hazard key to limit.
type HTTPOptimizer struct {
	client *resty.Client
	url    string
}

// NewHTTPOptimizer creates an optimizer backed by the model service at url
func NewHTTPOptimizer(url string, timeout time.Duration) *HTTPOptimizer {
	if timeout <= 0 {
		timeout = DefaultRefreshTimeout
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &HTTPOptimizer{client: client, url: url}
}

// Fetch calls the model service
func (o *HTTPOptimizer) Fetch(ctx context.Context) (types.ThresholdSet, error) {
	var body map[string]float64
	resp, err := o.client.R().
		SetContext(ctx).
		SetResult(&body).
		Get(o.url)
	if err != nil {
		return nil, fmt.Errorf("%w: request: %v", ErrOptimizer, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: model service returned %d", ErrOptimizer, resp.StatusCode())
	}
	set, err := types.ThresholdSetFromMap(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOptimizer, err)
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("%w: empty threshold set", ErrOptimizer)
	}
	return set, nil
}

// Refresh runs the optimizer under timeout and merges its result into store.
// On failure the prior thresholds stay in place; the current set is returned
// together with the error so startup callers can log and carry on.
func Refresh(ctx context.Context, store *Store, opt Optimizer, timeout time.Duration, logger zerolog.Logger) (types.ThresholdSet, error) {
	if timeout <= 0 {
		timeout = DefaultRefreshTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	optimized, err := opt.Fetch(ctx)
	if err != nil {
		if !errors.Is(err, ErrOptimizer) {
			err = fmt.Errorf("%w: %v", ErrOptimizer, err)
		}
		metrics.ThresholdRefreshTotal.WithLabelValues("failed").Inc()
		logger.Error().
			Err(err).
			Dur("timeout", timeout).
			Msg("Threshold optimization failed, keeping current thresholds")
		return store.Get(), err
	}

	merged := store.Replace(optimized)
	metrics.ThresholdRefreshTotal.WithLabelValues("success").Inc()

	event := logger.Info().Int("updated_keys", len(optimized))
	for _, k := range types.HazardKeys {
		if v, ok := merged[k]; ok {
			event = event.Float64(string(k), v)
		}
	}
	event.Msg("Using optimized alert thresholds")

	return merged, nil
}
