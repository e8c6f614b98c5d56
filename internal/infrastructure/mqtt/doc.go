// Package mqtt connects gray-logic-dbms to an MQTT broker for operations.
//
// This package manages:
//   - Connection to the broker with auto-reconnect and restored subscriptions
//   - A retained status topic with Last Will and Testament
//   - Recovery alerts: RecoveryNotifier is a dbms.FailRecoveryHandler that
//     publishes every failed recovery attempt
//   - Operator commands: CommandHandler forces recovery of a database's
//     connections on request
//
// # Topics
//
//	graydb/{instance}/status                     retained online/offline
//	graydb/{instance}/recovery/{database}        RecoveryAlert
//	graydb/{instance}/command/recover/{database} RecoverCommand (operator)
//	graydb/{instance}/command/result/{database}  CommandResult
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, cfg.Service.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	notifier := mqtt.NewRecoveryNotifier(client, client.Topics(), 1)
//	db.AddFailRecoveryHandler(notifier)
//
//	commands := mqtt.NewCommandHandler(registry, client, client.Topics(), 1)
//	err = commands.Start(ctx, client)
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS) outside local development
//   - The recover command topic must be write-restricted by broker ACL
package mqtt
