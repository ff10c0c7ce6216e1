package verify

import (
	"fmt"
	"log"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// envOr returns the environment variable when set, else fallback.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewMQTTOptions builds client options from config with MQTT_BROKER,
// MQTT_CLIENT_ID, MQTT_USERNAME and MQTT_PASSWORD taking precedence.
// It returns nil when no broker is configured.
func NewMQTTOptions(cfg MQTTConfig) *mqtt.ClientOptions {
	broker := envOr("MQTT_BROKER", cfg.Broker)
	if broker == "" {
		return nil
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	clientID := envOr("MQTT_CLIENT_ID", cfg.ClientID)
	if clientID == "" {
		clientID = "pathverify"
	}
	opts.SetClientID(clientID)

	if username := envOr("MQTT_USERNAME", cfg.Username); username != "" {
		opts.SetUsername(username)
		opts.SetPassword(envOr("MQTT_PASSWORD", cfg.Password))
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Printf("[MQTT] Connected to %s", broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Printf("[MQTT] Connection lost: %v", err)
	})
	return opts
}

// ConnectMQTT connects a client for publishing results. A nil client and nil
// error mean MQTT is disabled.
func ConnectMQTT(cfg MQTTConfig) (mqtt.Client, error) {
	opts := NewMQTTOptions(cfg)
	if opts == nil {
		log.Println("[MQTT] disabled: no broker configured")
		return nil, nil
	}
	client := mqtt.NewClient(opts)
	if err := connect(client, 15*time.Second); err != nil {
		return nil, err
	}
	return client, nil
}

func connect(client mqtt.Client, timeout time.Duration) error {
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("connecting to MQTT broker: timed out after %s", timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connecting to MQTT broker: %w", err)
	}
	return nil
}
