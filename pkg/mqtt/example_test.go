package mqtt_test

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetpeer-io/fleetpeer/pkg/log"
	"github.com/fleetpeer-io/fleetpeer/pkg/mqtt"
)

// ExampleClient shows the usual lifecycle: configure, start, subscribe to
// driver telemetry, wait for the broker and publish a command.
func ExampleClient() {
	cfg := &mqtt.ClientConfig{
		BrokerURL:            "tcp://localhost:1883",
		ClientID:             "fpeer-tracker-example",
		KeepAlive:            60,
		ConnectTimeout:       5 * time.Second,
		ReconnectBackoff:     5 * time.Second,
		MaxReconnectAttempts: 5,
		OnGiveUp: func(err error) {
			log.Error(err, "Broker unreachable")
		},
	}

	client, err := mqtt.NewClient(cfg)
	if err != nil {
		log.Error(err, "Failed to create MQTT client")
		return
	}

	ctx := context.Background()
	if err := client.Start(ctx); err != nil {
		log.Error(err, "Failed to start MQTT client")
		return
	}
	defer client.Disconnect(ctx)

	// Restored automatically after a reconnect.
	if err := client.Subscribe(ctx, "fleet/v1/location/+", 0, func(_ context.Context, topic string, payload []byte) {
		fmt.Printf("telemetry on %s: %s\n", topic, payload)
	}); err != nil {
		log.Error(err, "Failed to subscribe")
	}

	if err := client.AwaitConnection(ctx); err != nil {
		log.Error(err, "Connection not established")
		return
	}

	payload := []byte(`{"type":"request_location","driverId":"123","timestamp":1700000000000}`)
	if err := client.Publish(ctx, "fleet/v1/command/123", 1, false, payload); err != nil {
		log.Error(err, "Failed to publish command")
	}
}
