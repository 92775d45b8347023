package options

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*WebSocketOptions)(nil)

// WebSocketOptions configures the websocket endpoint the tracker dials.
type WebSocketOptions struct {
	URL              string        `json:"url" mapstructure:"url"`
	HandshakeTimeout time.Duration `json:"handshake-timeout" mapstructure:"handshake-timeout"`
	WriteTimeout     time.Duration `json:"write-timeout" mapstructure:"write-timeout"`
}

func NewWebSocketOptions() *WebSocketOptions {
	return &WebSocketOptions{
		URL:              "ws://localhost:8090/ws",
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
	}
}

func (o *WebSocketOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	u, err := url.Parse(o.URL)
	switch {
	case err != nil:
		errors = append(errors, fmt.Errorf("--websocket.url: %w", err))
	case u.Scheme != "ws" && u.Scheme != "wss":
		errors = append(errors, fmt.Errorf("--websocket.url must use ws or wss, got %q", o.URL))
	}

	return errors
}

func (o *WebSocketOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.URL, "websocket.url", o.URL, "Websocket endpoint that streams driver telemetry.")
	fs.DurationVar(&o.HandshakeTimeout, "websocket.handshake-timeout", o.HandshakeTimeout, "Timeout for the websocket handshake.")
	fs.DurationVar(&o.WriteTimeout, "websocket.write-timeout", o.WriteTimeout, "Deadline for writing one frame.")
}
