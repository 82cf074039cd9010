package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ash2k/stager/wait"
	"github.com/cenkalti/backoff"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/tilinna/clock"

	"github.com/atlassian/gossipmember"
	"github.com/atlassian/gossipmember/pkg/clocks"
	"github.com/atlassian/gossipmember/pkg/cluster/nodes"
	"github.com/atlassian/gossipmember/pkg/engine"
	"github.com/atlassian/gossipmember/pkg/sinks"
	"github.com/atlassian/gossipmember/pkg/transport"
	"github.com/atlassian/gossipmember/pkg/util"
	"github.com/atlassian/gossipmember/pkg/web"
)

const (
	// ParamVerbose enables verbose logging.
	ParamVerbose = "verbose"
	// ParamJSON makes logger log in JSON format.
	ParamJSON = "json"
	// ParamConfigPath provides file with configuration.
	ParamConfigPath = "config-path"
	// ParamVersion makes program output its version.
	ParamVersion = "version"
)

// joinAttemptTicks is how many ticks a single join attempt waits for a response.
const joinAttemptTicks = 5

var (
	// BuildDate is the date when the binary was built.
	BuildDate string
	// GitCommit is the commit hash that built the binary.
	GitCommit string
	// Version is the version.
	Version string
)

func main() {
	v, version, err := setupConfiguration()
	if err != nil {
		if err == pflag.ErrHelp {
			return
		}
		logrus.Fatalf("Error while parsing configuration: %v", err)
	}
	if version {
		fmt.Printf("Version: %s - Commit: %s - Date: %s\n", Version, GitCommit, BuildDate)
		return
	}
	if err := run(v); err != nil {
		logrus.Fatalf("%v", err)
	}
}

func run(v *viper.Viper) error {
	logger := logrus.StandardLogger()

	cfg, err := engine.NewConfigFromViper(v)
	if err != nil {
		return err
	}
	retry, err := util.GetRetryFromViper(v)
	if err != nil {
		return err
	}

	ctx, cancelFunc := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancelFunc()

	redisClient := redis.NewClient(transport.NewRedisOptionsFromViper(v))
	defer redisClient.Close()

	tr := transport.NewRedis(logger, redisClient, v.GetString(gossipmember.ParamNamespace), v.GetInt(gossipmember.ParamInboundBuffer))
	defer func() {
		if err := tr.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close transport")
		}
	}()
	if err := tr.Listen(ctx, cfg.Self); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	promSink, err := sinks.NewPrometheus(registry)
	if err != nil {
		return err
	}
	picker := nodes.NewConsistentNodePicker(cfg.Self.String(), nodes.DefaultReplicas)
	sink := sinks.Multi{
		sinks.NewLogging(logger),
		promSink,
		sinks.NewPicker(cfg.Self, picker),
	}

	// Every process counts ticks from the same epoch, so ticks agree across the group as far as wall clocks do.
	tickClock := clocks.NewWallFromEpoch(clock.FromContext(ctx), clocks.Epoch, cfg.TickPeriod)

	e, err := engine.New(logger, cfg, tickClock, tr, sink)
	if err != nil {
		return err
	}

	hs, err := web.NewHttpServerFromViper(v, logger, e, picker, registry)
	if err != nil {
		return err
	}

	runnables := []gossipmember.Runnable{e.Run}
	if hs != nil {
		runnables = gossipmember.MaybeAppendRunnable(runnables, hs)
	}

	var wg wait.Group
	defer wg.Wait()
	ctxRun, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	for _, runnable := range runnables {
		wg.StartWithContext(ctxRun, runnable)
	}

	if err := e.Start(ctx); err != nil {
		logger.WithError(err).Warn("Initial join request failed")
	}
	if err := join(ctx, logger, e, retry, v.GetDuration(gossipmember.ParamJoinTimeout), cfg.TickPeriod*joinAttemptTicks); err != nil {
		return err
	}

	<-ctx.Done()
	return nil
}

// join waits for e to become Active, resending the join request as dictated
// by retry.  Giving up is fatal for the node.
func join(
	ctx context.Context,
	logger logrus.FieldLogger,
	e *engine.Engine,
	retry util.BackoffFactory,
	timeout, attemptTimeout time.Duration,
) error {
	ctxJoin, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	attempt := 0
	err := util.Retry(ctxJoin, retry, func() error {
		if attempt > 0 {
			if err := e.Rejoin(ctxJoin); err != nil {
				return err
			}
		}
		attempt++

		ctxAttempt, cancelAttempt := context.WithTimeout(ctxJoin, attemptTimeout)
		defer cancelAttempt()
		err := e.AwaitJoin(ctxAttempt)
		if errors.Is(err, engine.ErrStopped) {
			return backoff.Permanent(err)
		}
		return err
	}, func(err error, next time.Duration) {
		logger.WithError(err).WithField("retry-in", next).Warn("Join attempt failed")
	})
	if err != nil {
		return fmt.Errorf("failed to join group after %d attempts: %w", attempt, err)
	}
	return nil
}

func setupConfiguration() (*viper.Viper, bool, error) {
	v := viper.New()
	defer setupLogger(v) // Apply logging configuration in case of early exit
	util.InitViper(v, "")

	var version bool

	cmd := pflag.NewFlagSet(os.Args[0], pflag.ContinueOnError)

	cmd.BoolVar(&version, ParamVersion, false, "Print the version and exit")
	cmd.Bool(ParamVerbose, false, "Verbose")
	cmd.Bool(ParamJSON, false, "Log in JSON format")
	cmd.String(ParamConfigPath, "", "Path to the configuration file")

	gossipmember.AddFlags(cmd)
	util.AddRetryFlags(cmd)

	cmd.VisitAll(func(flag *pflag.Flag) {
		if err := v.BindPFlag(flag.Name, flag); err != nil {
			panic(err) // Should never happen
		}
	})

	if err := cmd.Parse(os.Args[1:]); err != nil {
		return nil, false, err
	}

	configPath := v.GetString(ParamConfigPath)
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, false, err
		}
	}

	return v, version, nil
}

func setupLogger(v *viper.Viper) {
	if v.GetBool(ParamVerbose) {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if v.GetBool(ParamJSON) {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
}
