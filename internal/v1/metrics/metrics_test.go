package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRegistration(t *testing.T) {
	t.Run("RoomPhaseTransitions", func(t *testing.T) {
		RoomPhaseTransitions.WithLabelValues("lobby", "promptSelection").Inc()
		val := testutil.ToFloat64(RoomPhaseTransitions.WithLabelValues("lobby", "promptSelection"))
		if val < 1 {
			t.Errorf("expected RoomPhaseTransitions to be at least 1, got %v", val)
		}
	})

	t.Run("DisconnectionEvents", func(t *testing.T) {
		DisconnectionEvents.WithLabelValues("resumed").Inc()
		val := testutil.ToFloat64(DisconnectionEvents.WithLabelValues("resumed"))
		if val < 1 {
			t.Errorf("expected DisconnectionEvents to be at least 1, got %v", val)
		}
	})

	t.Run("WebsocketEvents", func(t *testing.T) {
		WebsocketEvents.WithLabelValues("submitGuess", "ok").Inc()
		val := testutil.ToFloat64(WebsocketEvents.WithLabelValues("submitGuess", "ok"))
		if val < 1 {
			t.Errorf("expected WebsocketEvents to be at least 1, got %v", val)
		}
	})

	t.Run("TimerExpirations", func(t *testing.T) {
		TimerExpirations.WithLabelValues("promptSelection").Inc()
		val := testutil.ToFloat64(TimerExpirations.WithLabelValues("promptSelection"))
		if val < 1 {
			t.Errorf("expected TimerExpirations to be at least 1, got %v", val)
		}
	})

	t.Run("CatalogSampleDuration", func(t *testing.T) {
		CatalogSampleDuration.WithLabelValues("prompts").Observe(0.01)
	})

	t.Run("RateLimitRequests", func(t *testing.T) {
		RateLimitRequests.WithLabelValues("ready").Inc()
		val := testutil.ToFloat64(RateLimitRequests.WithLabelValues("ready"))
		if val < 1 {
			t.Errorf("expected RateLimitRequests to be at least 1, got %v", val)
		}
	})

	t.Run("ActiveConnectionsGauge", func(t *testing.T) {
		IncConnection()
		DecConnection()
	})
}
