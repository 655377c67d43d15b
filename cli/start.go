package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/absmach/flparticipant/coordinator"
	coordhttp "github.com/absmach/flparticipant/coordinator/http"
	coordmqtt "github.com/absmach/flparticipant/coordinator/mqtt"
	"github.com/absmach/flparticipant/coordinator/standalone"
	"github.com/absmach/flparticipant/participant"
	"github.com/absmach/flparticipant/participant/api"
	"github.com/absmach/flparticipant/participant/middleware"
	"github.com/absmach/flparticipant/pkg/fl"
	"github.com/absmach/flparticipant/pkg/mqtt"
	"github.com/absmach/flparticipant/pkg/state"
	"github.com/absmach/flparticipant/pkg/tracing"
	"github.com/absmach/flparticipant/trainer/wasm"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
)

const (
	svcName           = "fl-participant"
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// StartParticipant wires the configured coordinator transport, trainer and
// state store into a participant loop and serves the status API until the
// loop ends or the process is signalled.
func StartParticipant(ctx context.Context, cfg Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return fmt.Errorf("failed to parse log level: %s", err.Error())
	}
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		return errors.Join(errors.New("invalid configuration"), err)
	}

	store, err := state.New(cfg.State)
	if err != nil {
		return errors.Join(errors.New("failed to open state store"), err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close state store", slog.Any("error", err))
		}
	}()

	prior, err := store.Load(ctx, cfg.Participant.ID)
	switch {
	case errors.Is(err, state.ErrNotFound):
	case err != nil:
		return errors.Join(errors.New("failed to load participant state"), err)
	default:
		logger.Info("resuming saved session", slog.String("participant_id", cfg.Participant.ID))
	}

	var tp trace.TracerProvider
	switch {
	case cfg.OTELURL == (url.URL{}):
		tp = noop.NewTracerProvider()
	default:
		sdktp, err := tracing.NewProvider(ctx, svcName, cfg.OTELURL, cfg.InstanceID, cfg.TraceRatio)
		if err != nil {
			return fmt.Errorf("failed to initialize opentelemetry: %s", err.Error())
		}
		defer func() {
			if err := sdktp.Shutdown(context.WithoutCancel(ctx)); err != nil {
				logger.Error("error shutting down tracer provider", slog.Any("error", err))
			}
		}()
		tp = sdktp
	}
	tracer := tp.Tracer(svcName)

	transport, closeTransport, err := newTransport(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeTransport()

	session, err := coordinator.New(transport, cfg.Participant.ID, cfg.Coordinator.Scalar, prior, logger)
	if err != nil {
		return errors.Join(errors.New("failed to start coordinator session"), err)
	}
	defer saveSession(store, session, cfg.Participant.ID, logger)

	var coord participant.Coordinator = session
	coord = middleware.Logging(logger, coord)
	coord = middleware.Tracing(tracer, coord)
	counter, latency := makeMetrics(svcName, "coordinator")
	coord = middleware.Metrics(counter, latency, coord)

	bin, err := loadTrainer(ctx, cfg)
	if err != nil {
		return err
	}
	trainer, err := wasm.New(ctx, bin, cfg.Trainer, logger)
	if err != nil {
		return errors.Join(errors.New("failed to initialize trainer"), err)
	}

	p, err := participant.New[fl.GlobalModel](cfg.Participant, coord, trainer, logger)
	if err != nil {
		trainer.OnStop()

		return errors.Join(errors.New("failed to initialize participant"), err)
	}

	hs := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           api.MakeHandler(p, logger, cfg.InstanceID),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()

		return p.Run(ctx)
	})

	g.Go(func() error {
		logger.Info(fmt.Sprintf("%s service http server listening at %s", svcName, cfg.HTTPAddress))
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s service http server error: %w", svcName, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		return hs.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return stopSignalHandler(ctx, cancel, logger, p)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service exited with error: %s", svcName, err))

		return err
	}

	return nil
}

func newTransport(ctx context.Context, cfg Config, logger *slog.Logger) (coordinator.Transport, func(), error) {
	nop := func() {}

	if cfg.Coordinator.Standalone {
		sc, err := standalone.New(cfg.Standalone, nil, logger)
		if err != nil {
			return nil, nop, errors.Join(errors.New("failed to initialize standalone coordinator"), err)
		}
		logger.Info("running with an in-process coordinator")

		return sc, nop, nil
	}

	switch cfg.Coordinator.Transport {
	case coordinator.TransportMQTT:
		pubsub, err := mqtt.NewPubSub(cfg.MQTT, cfg.Participant.ID, logger)
		if err != nil {
			return nil, nop, errors.Join(errors.New("failed to initialize mqtt pubsub"), err)
		}
		t, err := coordmqtt.New(ctx, pubsub, cfg.MQTT.DomainID, cfg.MQTT.Channel, cfg.Participant.ID, logger)
		if err != nil {
			_ = pubsub.Disconnect(ctx)

			return nil, nop, errors.Join(errors.New("failed to initialize mqtt transport"), err)
		}
		closer := func() {
			ctx := context.WithoutCancel(ctx)
			if err := t.Close(ctx); err != nil {
				logger.Warn("failed to close mqtt transport", slog.Any("error", err))
			}
			if err := pubsub.Disconnect(ctx); err != nil {
				logger.Warn("failed to disconnect from mqtt broker", slog.Any("error", err))
			}
		}

		return t, closer, nil
	default:
		t, err := coordhttp.New(cfg.Coordinator.Address, cfg.Participant.ID, cfg.Coordinator.Timeout)
		if err != nil {
			return nil, nop, errors.Join(errors.New("failed to initialize http transport"), err)
		}

		return t, nop, nil
	}
}

func loadTrainer(ctx context.Context, cfg Config) ([]byte, error) {
	switch {
	case cfg.Trainer.File != "":
		bin, err := os.ReadFile(cfg.Trainer.File)
		if err != nil {
			return nil, fmt.Errorf("failed to read trainer module: %w", err)
		}

		return bin, nil
	case cfg.Trainer.Image != "":
		bin, err := cfg.Registry.FetchWasm(ctx, cfg.Trainer.Image)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch trainer image %s: %w", cfg.Trainer.Image, err)
		}

		return bin, nil
	default:
		return nil, errMissingTrainer
	}
}

func saveSession(store state.Store, session *coordinator.Client, key string, logger *slog.Logger) {
	data, err := session.Save()
	if err != nil {
		logger.Error("failed to serialise session", slog.Any("error", err))

		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := store.Save(ctx, key, data); err != nil {
		logger.Error("failed to save session", slog.Any("error", err))

		return
	}
	logger.Info("session saved", slog.String("participant_id", key))
}

func makeMetrics(namespace, subsystem string) (*kitprometheus.Counter, *kitprometheus.Summary) {
	counter := kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_count",
		Help:      "Number of requests received.",
	}, []string{"method"})
	latency := kitprometheus.NewSummaryFrom(stdprometheus.SummaryOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_latency_microseconds",
		Help:      "Total duration of requests in microseconds.",
	}, []string{"method"})

	return counter, latency
}

type stopper interface {
	Stop()
}

func stopSignalHandler(ctx context.Context, cancel context.CancelFunc, logger *slog.Logger, p stopper) error {
	c := make(chan os.Signal, 2)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM, syscall.SIGABRT)
	defer signal.Stop(c)

	select {
	case sig := <-c:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		p.Stop()
		cancel()

		return nil
	case <-ctx.Done():
		return nil
	}
}
