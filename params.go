package messagebroker

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xrtools/messagebroker/internal/rabbitmq"
)

const (
	// DefaultPort is the plaintext AMQP port.
	DefaultPort = 5672
	// DefaultTLSPort is the AMQP over TLS port.
	DefaultTLSPort = 5671
	// DefaultVhost is the broker's default virtual host.
	DefaultVhost = "/"

	schemeAMQP  = "amqp"
	schemeAMQPS = "amqps"
)

// TLSOptions configures certificate verification for amqps connections.
type TLSOptions = rabbitmq.TLSOptions

// Params is the connection configuration supplied by the caller, either as
// individual fields or as a broker URL of the form
// amqp[s]://user:password@host:port/vhost. Components present in URL take
// precedence; the other fields are used for components the URL omits.
type Params struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	Vhost    string
	TLS      *TLSOptions
}

// ConnectionParams is the canonical connection descriptor. It is computed
// once by NormalizeParams and never changes afterwards.
type ConnectionParams struct {
	Host     string
	Port     int
	User     string
	Password string
	Vhost    string
	// TLS is non-nil when the connection must use TLS.
	TLS *TLSOptions
}

// NormalizeParams validates p and fills in defaults. Host, user and password
// are required; the port defaults to 5672 (5671 with TLS) and the vhost to
// "/". Failures wrap ErrInvalidConfiguration.
func NormalizeParams(p Params) (ConnectionParams, error) {
	cp := ConnectionParams{
		Host:     p.Host,
		Port:     p.Port,
		User:     p.User,
		Password: p.Password,
		Vhost:    p.Vhost,
		TLS:      p.TLS,
	}

	if p.URL != "" {
		if err := cp.applyURL(p.URL); err != nil {
			return ConnectionParams{}, &Error{Kind: ErrInvalidConfiguration, Op: "params", Err: err}
		}
	}

	var missing []string
	if cp.Host == "" {
		missing = append(missing, "host")
	}
	if cp.User == "" {
		missing = append(missing, "user")
	}
	if cp.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return ConnectionParams{}, &Error{
			Kind: ErrInvalidConfiguration,
			Op:   "params",
			Err:  fmt.Errorf("missing %s", strings.Join(missing, ", ")),
		}
	}

	if cp.Port == 0 {
		cp.Port = DefaultPort
		if cp.TLS != nil {
			cp.Port = DefaultTLSPort
		}
	}
	if cp.Port < 0 || cp.Port > 65535 {
		return ConnectionParams{}, &Error{
			Kind: ErrInvalidConfiguration,
			Op:   "params",
			Err:  fmt.Errorf("port %d out of range", cp.Port),
		}
	}

	if cp.Vhost == "" {
		cp.Vhost = DefaultVhost
	}

	return cp, nil
}

// ParseURL normalizes a broker URL.
func ParseURL(raw string) (ConnectionParams, error) {
	return NormalizeParams(Params{URL: raw})
}

func (cp *ConnectionParams) applyURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}

	switch u.Scheme {
	case schemeAMQPS:
		if cp.TLS == nil {
			cp.TLS = rabbitmq.DefaultTLSOptions()
		}
		if cp.Port == 0 {
			cp.Port = DefaultTLSPort
		}
	case schemeAMQP:
		cp.TLS = nil
		if cp.Port == 0 {
			cp.Port = DefaultPort
		}
	default:
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	if host := u.Hostname(); host != "" {
		cp.Host = host
	}

	if port := u.Port(); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid port %q", port)
		}
		cp.Port = n
	}

	if u.User != nil {
		if user := u.User.Username(); user != "" {
			cp.User = user
		}
		if password, ok := u.User.Password(); ok && password != "" {
			cp.Password = password
		}
	}

	if vhost := strings.TrimPrefix(u.Path, "/"); vhost != "" {
		cp.Vhost = vhost
	}

	return nil
}

// Scheme returns "amqps" for TLS connections and "amqp" otherwise.
func (cp ConnectionParams) Scheme() string {
	if cp.TLS != nil {
		return schemeAMQPS
	}
	return schemeAMQP
}

// URI renders the descriptor as a dial URL.
func (cp ConnectionParams) URI() string {
	return amqp.URI{
		Scheme:   cp.Scheme(),
		Host:     cp.Host,
		Port:     cp.Port,
		Username: cp.User,
		Password: cp.Password,
		Vhost:    cp.Vhost,
	}.String()
}

// String renders the descriptor with the password redacted.
func (cp ConnectionParams) String() string {
	return rabbitmq.SanitizeURL(cp.URI())
}
