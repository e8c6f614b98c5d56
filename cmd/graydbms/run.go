package main

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-dbms/internal/dbms"
	"github.com/nerrad567/gray-logic-dbms/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-dbms/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-dbms/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-dbms/internal/infrastructure/mqtt"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Open every database and serve until interrupted",
		Long: `run opens every configured database, publishes failed recovery attempts
to MQTT and InfluxDB when enabled, answers recover commands on
graydb/{instance}/command/recover/{database} and writes pool statistics
to InfluxDB. It stops on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, log)
		},
	}
}

// serve is the body of the run command, separated for testability.
func serve(ctx context.Context, cfg *config.Config, log *logging.Logger) error {
	log.Info("starting graydbms",
		"version", version,
		"commit", commit,
		"build_date", date,
		"databases", len(cfg.Databases),
	)

	reg, err := openRegistry(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing databases")
		if closeErr := reg.Close(); closeErr != nil {
			log.Error("error closing databases", logging.Err(closeErr))
		}
	}()

	if cfg.MQTT.Enabled {
		mqttClient, err := startMQTT(ctx, cfg, reg, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", logging.Err(closeErr))
			}
		}()
	} else {
		log.Info("MQTT disabled")
	}

	if cfg.InfluxDB.Enabled {
		influxClient, err := influxdb.Connect(cfg.InfluxDB, cfg.Service.ID)
		if err != nil {
			return errors.Wrap(err, "connecting to InfluxDB")
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", logging.Err(closeErr))
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", logging.Err(err))
		})
		for _, db := range reg.Databases() {
			db.AddFailRecoveryHandler(influxClient.RecoveryHandler())
		}

		if cfg.InfluxDB.StatsInterval > 0 {
			statsCtx, stopStats := context.WithCancel(ctx)
			done := make(chan struct{})
			go func() {
				defer close(done)
				influxClient.RunStatsReporter(statsCtx, reg, time.Duration(cfg.InfluxDB.StatsInterval)*time.Second)
			}()
			defer func() {
				stopStats()
				<-done
			}()
		}
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")
	return nil
}

// startMQTT connects to the broker, registers the recovery notifier on
// every database and starts answering recover commands.
func startMQTT(ctx context.Context, cfg *config.Config, reg *dbms.Registry, log *logging.Logger) (*mqtt.Client, error) {
	client, err := mqtt.Connect(cfg.MQTT, cfg.Service.ID)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to MQTT")
	}
	client.SetLogger(log.With("component", "mqtt"))
	client.SetOnConnect(func() {
		if n := client.Connects(); n > 1 {
			log.Info("MQTT reconnected", "connects", n)
		}
	})

	qos := byte(cfg.MQTT.QoS) // #nosec G115 -- validated to 0..2
	notifier := mqtt.NewRecoveryNotifier(client, client.Topics(), qos)
	for _, db := range reg.Databases() {
		db.AddFailRecoveryHandler(notifier)
	}

	commands := mqtt.NewCommandHandler(reg, client, client.Topics(), qos)
	if err := commands.Start(ctx, client); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "subscribing to recover commands")
	}

	log.Info("MQTT connected",
		"broker", cfg.MQTT.Broker.Host,
		"port", cfg.MQTT.Broker.Port,
		"commands", client.Topics().AllRecoverCommands(),
	)
	return client, nil
}
