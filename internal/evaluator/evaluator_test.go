package evaluator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/coastle/coastle/internal/storage"
	"github.com/coastle/coastle/internal/thresholds"
	"github.com/coastle/coastle/internal/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu    sync.Mutex
	saved []*types.Alert
	err   error
}

func (f *fakeStore) Save(ctx context.Context, alert *types.Alert) (*types.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	stored := *alert
	stored.ID = "alert-1"
	f.saved = append(f.saved, &stored)
	return &stored, nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

type fakeDispatcher struct {
	mu     sync.Mutex
	alerts []*types.Alert
}

func (f *fakeDispatcher) Dispatch(alert *types.Alert) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alert)
}

func (f *fakeDispatcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.alerts)
}

var testPier = types.Station{
	ID:    "test-pier",
	Name:  "Test Pier",
	Kind:  types.StationTide,
	Point: types.Point{Lat: 10, Lng: 20},
}

var readingTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEvaluator(overrides types.ThresholdSet) (*Evaluator, *fakeStore, *fakeDispatcher) {
	store := thresholds.NewStore(thresholds.Defaults())
	store.Replace(overrides)
	alerts := &fakeStore{}
	dispatcher := &fakeDispatcher{}
	return NewEvaluator(store, alerts, dispatcher, zerolog.Nop()), alerts, dispatcher
}

func reading(tide, wind, rain, turbidity *float64) *types.Reading {
	return &types.Reading{
		StationID: testPier.ID,
		Timestamp: readingTime,
		Metrics: types.Metrics{
			TideM:        tide,
			WindMPS:      wind,
			RainMM:       rain,
			TurbidityNTU: turbidity,
		},
	}
}

func TestEvaluate_SurgeLowAtTestPier(t *testing.T) {
	eval, store, dispatcher := newTestEvaluator(types.ThresholdSet{types.HighTide: 2.5, types.StormSurge: 3.0})

	alert, err := eval.Evaluate(context.Background(), testPier,
		reading(types.Float(2.6), types.Float(5), types.Float(0), types.Float(0)))

	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, types.KindSurge, alert.Kind)
	assert.Equal(t, types.SeverityLow, alert.Severity)
	assert.Equal(t, "Test Pier", alert.Area)
	assert.Equal(t, types.Point{Lat: 10, Lng: 20}, alert.Center)
	assert.Equal(t, readingTime, alert.Timestamp)
	assert.False(t, alert.Acknowledged)
	assert.Contains(t, alert.Summary, "Test Pier")
	assert.Equal(t, 2.6, alert.Details["tide_m"])
	assert.Equal(t, 2.5, alert.Details["threshold"])
	assert.Equal(t, 1, store.count())
	assert.Equal(t, 1, dispatcher.count())
}

func TestEvaluate_StormHighAtTestPier(t *testing.T) {
	eval, _, _ := newTestEvaluator(types.ThresholdSet{types.WindSpeed: 15, types.Rainfall: 10})

	alert, err := eval.Evaluate(context.Background(), testPier,
		reading(types.Float(0), types.Float(26), types.Float(26), types.Float(0)))

	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, types.KindStorm, alert.Kind)
	assert.Equal(t, types.SeverityHigh, alert.Severity)
	assert.Equal(t, 26.0, alert.Details["wind_mps"])
	assert.Equal(t, 26.0, alert.Details["rain_mm"])
	assert.Equal(t, 15.0, alert.Details["wind_threshold"])
	assert.Equal(t, 10.0, alert.Details["rain_threshold"])
}

func TestEvaluate_NoMetricsProducesNothing(t *testing.T) {
	eval, store, dispatcher := newTestEvaluator(nil)

	for i := 0; i < 2; i++ {
		alert, err := eval.Evaluate(context.Background(), testPier, reading(nil, nil, nil, nil))
		require.NoError(t, err)
		assert.Nil(t, alert)
	}

	assert.Equal(t, 0, store.count())
	assert.Equal(t, 0, dispatcher.count())
}

func TestEvaluate_BelowThresholdsIsNoOp(t *testing.T) {
	eval, store, dispatcher := newTestEvaluator(nil)
	r := reading(types.Float(2.5), types.Float(15), types.Float(10), types.Float(25))

	for i := 0; i < 2; i++ {
		alert, err := eval.Evaluate(context.Background(), testPier, r)
		require.NoError(t, err)
		assert.Nil(t, alert)
	}

	assert.Equal(t, 0, store.count())
	assert.Equal(t, 0, dispatcher.count())
}

func TestEvaluate_PriorityShortCircuit(t *testing.T) {
	tests := []struct {
		name    string
		reading *types.Reading
		want    types.Kind
	}{
		{
			name:    "surge wins over storm and pollution",
			reading: reading(types.Float(2.6), types.Float(30), types.Float(30), types.Float(100)),
			want:    types.KindSurge,
		},
		{
			name:    "storm wins over pollution",
			reading: reading(types.Float(1.0), types.Float(16), types.Float(11), types.Float(100)),
			want:    types.KindStorm,
		},
		{
			name:    "storm needs both wind and rain",
			reading: reading(nil, types.Float(40), nil, types.Float(30)),
			want:    types.KindPollution,
		},
		{
			name:    "pollution alone",
			reading: reading(nil, nil, nil, types.Float(26)),
			want:    types.KindPollution,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval, store, _ := newTestEvaluator(nil)

			alert, err := eval.Evaluate(context.Background(), testPier, tt.reading)

			require.NoError(t, err)
			require.NotNil(t, alert)
			assert.Equal(t, tt.want, alert.Kind)
			assert.Equal(t, 1, store.count())
		})
	}
}

func TestEvaluate_SeverityBanding(t *testing.T) {
	tests := []struct {
		name    string
		reading *types.Reading
		want    types.Severity
	}{
		// defaults: HIGH_TIDE 2.5, STORM_SURGE 3.0, midpoint 2.75
		{"surge low", reading(types.Float(2.75), nil, nil, nil), types.SeverityLow},
		{"surge med", reading(types.Float(2.8), nil, nil, nil), types.SeverityMed},
		{"surge med at storm surge", reading(types.Float(3.0), nil, nil, nil), types.SeverityMed},
		{"surge high", reading(types.Float(3.1), nil, nil, nil), types.SeverityHigh},

		// defaults: WIND_SPEED 15, RAINFALL 10
		{"storm low", reading(nil, types.Float(16), types.Float(11), nil), types.SeverityLow},
		{"storm med", reading(nil, types.Float(20), types.Float(16), nil), types.SeverityMed},
		{"storm high wind only is med", reading(nil, types.Float(26), types.Float(16), nil), types.SeverityMed},
		{"storm high rain only is low", reading(nil, types.Float(16), types.Float(26), nil), types.SeverityLow},
		{"storm high", reading(nil, types.Float(26), types.Float(26), nil), types.SeverityHigh},

		// defaults: TURBIDITY 25
		{"pollution low", reading(nil, nil, nil, types.Float(30)), types.SeverityLow},
		{"pollution med", reading(nil, nil, nil, types.Float(36)), types.SeverityMed},
		{"pollution high", reading(nil, nil, nil, types.Float(51)), types.SeverityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval, _, _ := newTestEvaluator(nil)

			alert, err := eval.Evaluate(context.Background(), testPier, tt.reading)

			require.NoError(t, err)
			require.NotNil(t, alert)
			assert.Equal(t, tt.want, alert.Severity)
		})
	}
}

func TestEvaluate_StorageFailureSkipsNotification(t *testing.T) {
	eval, store, dispatcher := newTestEvaluator(nil)
	store.err = errors.New("connection refused")

	alert, err := eval.Evaluate(context.Background(), testPier, reading(types.Float(3.5), nil, nil, nil))

	require.Error(t, err)
	assert.Nil(t, alert)
	assert.ErrorIs(t, err, storage.ErrStorage)
	assert.Equal(t, 0, dispatcher.count())
}

func TestEvaluate_UsesCurrentThresholds(t *testing.T) {
	ts := thresholds.NewStore(thresholds.Defaults())
	eval := NewEvaluator(ts, &fakeStore{}, &fakeDispatcher{}, zerolog.Nop())
	r := reading(types.Float(2.4), nil, nil, nil)

	alert, err := eval.Evaluate(context.Background(), testPier, r)
	require.NoError(t, err)
	assert.Nil(t, alert)

	ts.Replace(types.ThresholdSet{types.HighTide: 2.3})

	alert, err = eval.Evaluate(context.Background(), testPier, r)
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, types.KindSurge, alert.Kind)
}

func TestEvaluate_CustomRuleOrder(t *testing.T) {
	eval, _, _ := newTestEvaluator(nil)
	eval.WithRules([]Rule{pollutionRule, surgeRule})

	alert, err := eval.Evaluate(context.Background(), testPier, reading(types.Float(3.5), nil, nil, types.Float(60)))

	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, types.KindPollution, alert.Kind)
}

func TestEvaluateBatch_ContinuesPastFailures(t *testing.T) {
	eval, _, _ := newTestEvaluator(nil)
	other := types.Station{ID: "north", Name: "North Buoy", Point: types.Point{Lat: 1, Lng: 2}}

	results := eval.EvaluateBatch(context.Background(), []Item{
		{Station: testPier, Reading: reading(types.Float(3.5), nil, nil, nil)},
		{Station: other, Reading: reading(nil, nil, nil, nil)},
		{Station: other, Reading: reading(nil, nil, nil, types.Float(60))},
	})

	require.Len(t, results, 3)
	require.NotNil(t, results[0].Alert)
	assert.Equal(t, "Test Pier", results[0].Alert.Area)
	assert.Nil(t, results[1].Alert)
	assert.NoError(t, results[1].Err)
	require.NotNil(t, results[2].Alert)
	assert.Equal(t, types.KindPollution, results[2].Alert.Kind)
	assert.Equal(t, "North Buoy", results[2].Station)
}
