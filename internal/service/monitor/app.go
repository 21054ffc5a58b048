package monitor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/go-telegram/bot"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/oshokin/temperature-monitor/internal/api/grpc/health"
	"github.com/oshokin/temperature-monitor/internal/api/rest"
	"github.com/oshokin/temperature-monitor/internal/config"
	"github.com/oshokin/temperature-monitor/internal/domain/alert"
	"github.com/oshokin/temperature-monitor/internal/logger"
	"github.com/oshokin/temperature-monitor/internal/metrics"
	"github.com/oshokin/temperature-monitor/internal/notifier"
	"github.com/oshokin/temperature-monitor/internal/repository/readings"
	"github.com/oshokin/temperature-monitor/internal/sensor"
	"github.com/oshokin/temperature-monitor/internal/service/poller"
	"github.com/oshokin/temperature-monitor/internal/service/query"
)

// app holds the wired collaborators of one monitor process.
type app struct {
	// cfg is the validated configuration.
	cfg *config.Config
	// repo stores readings.
	repo readings.Repository
	// poller drives the ticks.
	poller *poller.Poller
	// router serves the query API and /metrics.
	router http.Handler
	// health serves grpc.health.v1.
	health *health.Server
	// closers release resources in reverse order.
	closers []func()
}

// newApp builds every collaborator from cfg.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	a.repo = repo
	a.closers = append(a.closers, closeRepo)

	s, closeSensor, err := openSensor(ctx, cfg)
	if err != nil {
		a.close()

		return nil, fmt.Errorf("open sensor: %w", err)
	}

	a.closers = append(a.closers, closeSensor)

	dispatcher, err := newDispatcher(ctx, cfg)
	if err != nil {
		a.close()

		return nil, fmt.Errorf("configure notifications: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	recorder := metrics.New(registry)
	recorder.RegisterRetainedReadings(func() float64 {
		n, err := repo.Count(context.WithoutCancel(ctx))
		if err != nil {
			logger.WarnKV(ctx, "Failed to count readings", "error", err)

			return 0
		}

		return float64(n)
	})

	a.health = health.NewServer()
	a.poller = poller.New(
		s,
		repo,
		newEngine(cfg),
		dispatcher,
		poller.WithRecorder(recorder),
		poller.WithHealthReporter(a.health),
	)

	a.router = rest.NewRouter(
		query.New(repo, cfg.Thresholds(), cfg.RetentionPeriod()),
		rest.WithMetricsHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})),
	)

	return a, nil
}

// serve runs the poller and the listeners until ctx is canceled or one of
// them fails. A nil listener disables that server.
func (a *app) serve(ctx context.Context, httpListener, grpcListener net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.poller.Run(ctx, a.cfg.PollInterval())
	})

	if httpListener != nil {
		g.Go(func() error {
			return rest.Serve(ctx, httpListener, a.router)
		})
	}

	if grpcListener != nil {
		g.Go(func() error {
			return a.health.Serve(ctx, grpcListener)
		})
	}

	return g.Wait()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}

	a.closers = nil
}

func newEngine(cfg *config.Config) *alert.Engine {
	var opts []alert.Option
	if cfg.Alert.RearmAfterCooldown {
		opts = append(opts, alert.WithRearmAfterCooldown())
	}

	return alert.NewEngine(cfg.Thresholds(), opts...)
}

func openRepository(ctx context.Context, cfg *config.Config) (readings.Repository, func(), error) {
	opts := []readings.Option{readings.WithRetention(cfg.RetentionPeriod())}

	switch cfg.StorageDriver() {
	case config.StoragePostgres:
		repo, err := readings.NewPostgresRepository(ctx, cfg.Storage.DSN, opts...)
		if err != nil {
			return nil, nil, err
		}

		logger.Info(ctx, "Storing readings in PostgreSQL")

		return repo, repo.Close, nil
	default:
		logger.Info(ctx, "Storing readings in memory, history is lost on restart")

		return readings.NewMemoryRepository(opts...), func() {}, nil
	}
}

func openSensor(ctx context.Context, cfg *config.Config) (sensor.Sensor, func(), error) {
	source := cfg.SensorSource()

	switch cfg.Sensor.Driver {
	case config.SensorMQTT:
		s, err := sensor.DialMQTT(ctx, sensor.MQTTOptions{
			Broker: cfg.Sensor.MQTTBroker,
			Topic:  cfg.Sensor.MQTTTopic,
			Source: source,
		})
		if err != nil {
			return nil, nil, err
		}

		logger.InfoKV(ctx, "Reading temperature from MQTT",
			"broker", cfg.Sensor.MQTTBroker, "topic", cfg.Sensor.MQTTTopic, "source", source)

		return s, func() {
			if err := s.Close(); err != nil {
				logger.WarnKV(ctx, "Failed to close MQTT sensor", "error", err)
			}
		}, nil
	default:
		logger.InfoKV(ctx, "Reading temperature from sensor files", "source", source)

		return sensor.NewFileSensor(source, cfg.Sensor.InternalPath, cfg.Sensor.ExternalPath), func() {}, nil
	}
}

// errNoTransport is logged when alerts cannot reach anyone.
var errNoTransport = errors.New("no notification transport configured")

func newDispatcher(ctx context.Context, cfg *config.Config) (*notifier.Dispatcher, error) {
	var transports []notifier.Transport

	n := cfg.Notify

	if n.PushoverUserKey != "" || n.PushoverAPIToken != "" {
		p, err := notifier.NewPushover(n.PushoverUserKey, n.PushoverAPIToken,
			notifier.WithPushoverEndpoint(n.PushoverEndpoint))
		if err != nil {
			return nil, err
		}

		transports = append(transports, p)
	}

	if n.TelegramBotToken != "" || n.TelegramChatID != 0 {
		var opts []bot.Option
		if n.TelegramAPIURL != "" {
			opts = append(opts, bot.WithServerURL(n.TelegramAPIURL))
		}

		tg, err := notifier.NewTelegram(n.TelegramBotToken, n.TelegramChatID, opts...)
		if err != nil {
			return nil, err
		}

		transports = append(transports, tg)
	}

	d := notifier.NewDispatcher(transports)

	if len(transports) == 0 {
		logger.WarnKV(ctx, "Alerts will only be logged", "reason", errNoTransport)
	} else {
		logger.InfoKV(ctx, "Notifications enabled", "transports", d.Transports())
	}

	return d, nil
}
