package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/eclipse/paho.golang/paho"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/temperature-monitor/internal/domain/alert"
	"github.com/oshokin/temperature-monitor/internal/notifier"
	"github.com/oshokin/temperature-monitor/internal/repository/readings"
	"github.com/oshokin/temperature-monitor/internal/sensor"
	"github.com/oshokin/temperature-monitor/internal/service/poller"
)

// TestPipeline_MQTTToPushover feeds the reference sequence through a real broker,
// the memory store and the Pushover transport.
func TestPipeline_MQTTToPushover(t *testing.T) {
	t.Parallel()

	const topic = "lab/temper"

	ctx := context.Background()
	address := startBroker(t)
	push := startPushover(t)

	s, err := sensor.DialMQTT(ctx, sensor.MQTTOptions{Broker: address, Topic: topic, Source: sensor.SourceExternal})
	require.NoError(t, err)

	t.Cleanup(func() { _ = s.Close() })

	transport, err := notifier.NewPushover("user", "token", notifier.WithPushoverEndpoint(push.URL))
	require.NoError(t, err)

	start := time.Now().UTC()
	tick := 0
	clock := func() time.Time { return start.Add(time.Duration(tick) * time.Minute) }

	repo := readings.NewMemoryRepository(readings.WithClock(clock))
	engine := alert.NewEngine(alert.Thresholds{High: 23.5, NormalMargin: 1, Cooldown: time.Hour})
	p := poller.New(s, repo, engine, notifier.NewDispatcher([]notifier.Transport{transport}), poller.WithClock(clock))

	device := newPublisher(t, address)

	want := []alert.Kind{alert.NoAlert, alert.AlertHigh, alert.NoAlert, alert.AlertNormal}

	for i, value := range []float64{20.0, 24.0, 22.6, 21.0} {
		payload := fmt.Sprintf(`{"internal temperature": 30.0, "external temperature": %v}`, value)
		_, err = device.Publish(ctx, &paho.Publish{Topic: topic, QoS: 1, Payload: []byte(payload)})
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			got, readErr := s.Read(ctx)

			return readErr == nil && got == value
		}, 5*time.Second, 20*time.Millisecond)

		tick = i

		result := p.Tick(ctx)
		require.Equal(t, poller.StatusEvaluated, result.Status, "tick %d", i)
		require.Equal(t, want[i], result.Alert, "tick %d", i)
		require.Equal(t, want[i] != alert.NoAlert, result.Delivered, "tick %d", i)
	}

	require.Equal(t, []pushMessage{
		{Title: "Temperature Alert", Message: "Temperature has exceeded threshold: 24°C (threshold: 23.5°C)"},
		{Title: "Temperature Normal", Message: "Temperature has returned to normal: 21°C (threshold: 23.5°C)"},
	}, push.received())

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, count)
	require.False(t, engine.State().InAlert)
}
