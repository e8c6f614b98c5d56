// Package influxdb records gray-logic-dbms pool metrics in InfluxDB v2.
//
// It wraps the official influxdb-client-go v2 library and writes:
//   - dbms_recovery: one point per failed recovery attempt, via the
//     dbms.FailRecoveryHandler returned by Client.RecoveryHandler
//   - dbms_pool and dbms_connection: periodic snapshots of dbms.Stats,
//     via Client.RunStatsReporter
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB, cfg.Service.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	db.AddFailRecoveryHandler(client.RecoveryHandler())
//	go client.RunStatsReporter(ctx, registry, time.Minute)
//
// # Error Handling
//
// Writes are non-blocking and batched (batch_size, flush_interval).
// Asynchronous write failures are delivered to the SetOnError callback.
package influxdb
