package alerter

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/coastle/coastle/internal/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestEscalationManager_Fires(t *testing.T) {
	var fired atomic.Int32
	m := NewEscalationManager(zerolog.Nop(), map[types.Severity]EscalationRule{
		types.SeverityHigh: {Channels: []string{"pager"}, Delay: 10 * time.Millisecond},
	}, func(alert *types.Alert, channels []string) bool {
		fired.Add(1)
		return true
	})
	defer m.Stop()

	m.StartEscalation(&types.Alert{ID: "a-1", Severity: types.SeverityHigh})
	m.StartEscalation(&types.Alert{ID: "a-2", Severity: types.SeverityLow})

	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return m.Pending() == 0 }, time.Second, 5*time.Millisecond)
}

func TestEscalationManager_Cancel(t *testing.T) {
	var fired atomic.Int32
	m := NewEscalationManager(zerolog.Nop(), map[types.Severity]EscalationRule{
		types.SeverityHigh: {Channels: []string{"pager"}, Delay: 50 * time.Millisecond},
	}, func(alert *types.Alert, channels []string) bool {
		fired.Add(1)
		return true
	})

	m.StartEscalation(&types.Alert{ID: "a-1", Severity: types.SeverityHigh})
	assert.Equal(t, 1, m.Pending())

	m.CancelEscalation("a-1")
	assert.Equal(t, 0, m.Pending())

	time.Sleep(100 * time.Millisecond)
	m.Stop()
	assert.Equal(t, int32(0), fired.Load())
}
