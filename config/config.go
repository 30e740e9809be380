// Package config loads publisher settings from the environment.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/xrtools/messagebroker"
)

type (
	Config struct {
		Broker  BrokerConfig  `json:"broker"`
		TLS     TLSConfig     `json:"tls"`
		Logging LoggingConfig `json:"logging"`
	}

	BrokerConfig struct {
		URL            string        `envconfig:"BROKER_URL" json:"url,omitempty"`
		Host           string        `envconfig:"BROKER_HOST" json:"host"`
		Port           int           `envconfig:"BROKER_PORT" json:"port"`
		User           string        `envconfig:"BROKER_USER" json:"user"`
		Password       string        `envconfig:"BROKER_PASSWORD" json:"password,omitempty"`
		Vhost          string        `envconfig:"BROKER_VHOST" json:"vhost"`
		FanoutExchange string        `envconfig:"BROKER_FANOUT_EXCHANGE" default:"amq.fanout" json:"fanout_exchange"`
		ConnectionName string        `envconfig:"BROKER_CONNECTION_NAME" default:"messagebroker" json:"connection_name"`
		Heartbeat      time.Duration `envconfig:"BROKER_HEARTBEAT" default:"10s" json:"heartbeat"`
		Debug          bool          `envconfig:"BROKER_DEBUG" default:"false" json:"debug"`
	}

	TLSConfig struct {
		Enabled            bool   `envconfig:"BROKER_TLS_ENABLED" default:"false" json:"enabled"`
		CAPath             string `envconfig:"BROKER_TLS_CA_PATH" json:"ca_path"`
		CAFile             string `envconfig:"BROKER_TLS_CA_FILE" json:"ca_file"`
		CertFile           string `envconfig:"BROKER_TLS_CERT_FILE" json:"cert_file"`
		KeyFile            string `envconfig:"BROKER_TLS_KEY_FILE" json:"key_file"`
		ServerName         string `envconfig:"BROKER_TLS_SERVER_NAME" json:"server_name"`
		InsecureSkipVerify bool   `envconfig:"BROKER_TLS_INSECURE_SKIP_VERIFY" default:"false" json:"insecure_skip_verify"`
	}

	LoggingConfig struct {
		Level  string `envconfig:"LOGGING_LEVEL" default:"info" json:"level"`
		Format string `envconfig:"LOGGING_FORMAT" default:"text" json:"format"`
	}
)

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("unable to parse broker configuration: %w", err)
	}

	return cfg, nil
}

// Params converts the configuration into publisher connection parameters.
// TLS options are attached when TLS is enabled or any TLS setting is given.
func (c *Config) Params() messagebroker.Params {
	params := messagebroker.Params{
		URL:      c.Broker.URL,
		Host:     c.Broker.Host,
		Port:     c.Broker.Port,
		User:     c.Broker.User,
		Password: c.Broker.Password,
		Vhost:    c.Broker.Vhost,
	}

	t := c.TLS
	if t.Enabled || t.CAPath != "" || t.CAFile != "" || t.CertFile != "" || t.KeyFile != "" || t.ServerName != "" || t.InsecureSkipVerify {
		params.TLS = &messagebroker.TLSOptions{
			CAPath:             t.CAPath,
			CAFile:             t.CAFile,
			CertFile:           t.CertFile,
			KeyFile:            t.KeyFile,
			ServerName:         t.ServerName,
			InsecureSkipVerify: t.InsecureSkipVerify,
		}
	}

	return params
}

// Options returns the publisher options described by the configuration.
func (c *Config) Options(logger *slog.Logger) []messagebroker.Option {
	return []messagebroker.Option{
		messagebroker.WithLogger(logger),
		messagebroker.WithDebugLogging(c.Broker.Debug),
		messagebroker.WithFanoutExchange(c.Broker.FanoutExchange),
		messagebroker.WithConnectionName(c.Broker.ConnectionName),
		messagebroker.WithHeartbeat(c.Broker.Heartbeat),
	}
}

// NewLogger builds a slog logger writing to w.
func (c LoggingConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return nil, fmt.Errorf("invalid logging level %q: %w", c.Level, err)
	}

	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(c.Format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid logging format %q", c.Format)
	}
}
