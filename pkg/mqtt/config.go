package mqtt

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

const (
	defaultConnectTimeout   = 5 * time.Second
	defaultKeepAlive        = 60
	defaultReconnectBackoff = 5 * time.Second
)

// ClientConfig holds the configuration for creating a new MQTT Client.
type ClientConfig struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string

	// KeepAlive in seconds. Default is 60.
	KeepAlive uint16

	// SessionExpiry is the session expiry interval in seconds.
	SessionExpiry uint32

	// ConnectTimeout for each connection attempt. Default is 5s.
	ConnectTimeout time.Duration

	// CleanStart indicates whether to start a clean session.
	CleanStart bool

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool

	// ReconnectBackoff is the constant delay between connection attempts. Default is 5s.
	ReconnectBackoff time.Duration

	// MaxReconnectAttempts is the number of reconnects after the first failed
	// connection attempt. Zero gives up on the first failure.
	MaxReconnectAttempts int

	// ReconnectForever ignores MaxReconnectAttempts and never gives up.
	ReconnectForever bool

	// Will message published by the broker if the client drops unexpectedly.
	WillTopic   string
	WillPayload []byte
	WillQoS     byte
	WillRetain  bool

	// OnConnected is called every time a connection is established.
	OnConnected func()

	// OnDisconnected is called when an established connection is lost.
	OnDisconnected func(err error)

	// OnConnectError is called for every failed connection attempt.
	OnConnectError func(err error)

	// OnGiveUp is called once when MaxReconnectAttempts is exhausted.
	// The client stops reconnecting afterwards.
	OnGiveUp func(err error)
}

func setDefaultConfig(cfg *ClientConfig) {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = defaultKeepAlive
	}
	if cfg.ReconnectBackoff == 0 {
		cfg.ReconnectBackoff = defaultReconnectBackoff
	}
}

// Validate checks if the configuration is valid.
func (c *ClientConfig) Validate() error {
	if c.BrokerURL == "" {
		return errors.New("broker url is required")
	}
	u, err := url.Parse(c.BrokerURL)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("broker url %q must include scheme and host", c.BrokerURL)
	}
	if c.MaxReconnectAttempts < 0 {
		return errors.New("max reconnect attempts must not be negative")
	}
	if c.WillQoS > 2 {
		return fmt.Errorf("will qos %d is out of range", c.WillQoS)
	}
	return nil
}
