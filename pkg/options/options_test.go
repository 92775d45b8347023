package options

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		addr    string
		wantErr bool
	}{
		{"0.0.0.0:8080", false},
		{":9090", false},
		{"localhost:65535", false},
		{"localhost", true},
		{"localhost:http", true},
		{"localhost:70000", true},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			err := ValidateAddress(tt.addr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDefaultsAreValid(t *testing.T) {
	all := map[string]IOptions{
		"http":       NewHttpOptions(),
		"mqtt":       NewMqttOptions(),
		"s3":         NewS3Options(),
		"transport":  NewTransportOptions(),
		"websocket":  NewWebSocketOptions(),
		"simulation": NewSimulationOptions(),
		"map":        NewMapOptions(),
		"jobs":       NewJobsOptions(),
		"gateway":    NewGatewayOptions(),
	}
	for name, o := range all {
		t.Run(name, func(t *testing.T) {
			assert.Empty(t, o.Validate())
		})
	}
}

func TestTransportOptions(t *testing.T) {
	o := NewTransportOptions()
	assert.Equal(t, 5*time.Second, o.ReconnectInterval)
	assert.Equal(t, 5, o.MaxReconnectAttempts)
	assert.Equal(t, time.Second, o.StartDelay)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--transport.kind=carrier-pigeon", "--transport.max-reconnect-attempts=-1"}))
	assert.Len(t, o.Validate(), 2)
}

func TestSimulationOptionsTickInterval(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		steps    int
		errs     int
	}{
		{"defaults", 5 * time.Second, 2, 0},
		{"one millisecond per step", 4 * time.Millisecond, 4, 0},
		{"rounds to zero", time.Nanosecond, 2, 1},
		{"below a millisecond per step", time.Millisecond, 2, 1},
		{"no steps", time.Second, 0, 1},
		{"no interval", 0, 2, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewSimulationOptions()
			o.UpdateInterval = tt.interval
			o.InterpolationSteps = tt.steps
			assert.Len(t, o.Validate(), tt.errs)
		})
	}
}

func TestMapOptionsPosition(t *testing.T) {
	tests := []struct {
		position string
		ok       bool
		errs     int
	}{
		{"", false, 0},
		{"47.48,-52.99", true, 0},
		{" 47.48 , -52.99 ", true, 0},
		{"47.48", false, 1},
		{"north,-52.99", false, 1},
		{"91,0", true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.position, func(t *testing.T) {
			o := NewMapOptions()
			o.Position = tt.position
			_, _, ok, _ := o.ParsePosition()
			assert.Equal(t, tt.ok, ok)
			assert.Len(t, o.Validate(), tt.errs)
		})
	}
}

func TestS3OptionsDisabledWithoutEndpoint(t *testing.T) {
	o := NewS3Options()
	assert.False(t, o.Enabled())
	assert.Empty(t, o.Validate())

	o.Endpoint = "minio.local:9000"
	assert.True(t, o.Enabled())
	assert.Len(t, o.Validate(), 1)
}

func TestWebSocketOptionsScheme(t *testing.T) {
	o := NewWebSocketOptions()
	o.URL = "http://localhost:8090/ws"
	assert.Len(t, o.Validate(), 1)
}

func TestJobsOptionsRejectsBadSchedule(t *testing.T) {
	o := NewJobsOptions()
	o.StaleSchedule = "every now and then"
	assert.Len(t, o.Validate(), 1)

	o.Enabled = false
	assert.Empty(t, o.Validate())
}

func TestMqttOptionsToClientConfig(t *testing.T) {
	o := NewMqttOptions()
	o.ClientID = "fpeer-tracker-1"
	cfg := o.ToClientConfig()

	assert.Equal(t, "tcp://localhost:1883", cfg.BrokerURL)
	assert.Equal(t, uint16(60), cfg.KeepAlive)
	assert.Equal(t, "fpeer-tracker-1", cfg.ClientID)
}

func TestGatewayOptions(t *testing.T) {
	o := NewGatewayOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--gateway.drivers=a,b,a", "--gateway.send-buffer=0"}))

	assert.Equal(t, []string{"a", "b", "a"}, o.Drivers)
	assert.Len(t, o.Validate(), 2)
}
