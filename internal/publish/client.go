package publish

import (
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/MrWong99/audiosession/internal/config"
)

// publishTimeout bounds the wait for a broker acknowledgement.
const publishTimeout = 5 * time.Second

// Client is a connected MQTT client.
type Client struct {
	client mqtt.Client
	broker string
}

var _ Publisher = (*Client)(nil)

// Connect opens a connection to the broker named in cfg. The client
// reconnects on its own after the connection is lost.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		slog.Info("publish: connected", "broker", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		slog.Warn("publish: connection lost", "broker", cfg.Broker, "err", err)
	})

	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("publish: connect %s: %w", cfg.Broker, token.Error())
	}
	return &Client{client: c, broker: cfg.Broker}, nil
}

// Publish implements [Publisher].
func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish: %s: timed out after %s", topic, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %s: %w", topic, err)
	}
	return nil
}

// IsConnected reports whether the client currently has a broker connection.
func (c *Client) IsConnected() bool { return c.client.IsConnected() }

// Close disconnects, allowing in-flight work 250ms to finish.
func (c *Client) Close() {
	c.client.Disconnect(250)
	slog.Info("publish: disconnected", "broker", c.broker)
}
