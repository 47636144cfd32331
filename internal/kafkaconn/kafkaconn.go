// Package kafkaconn builds kafka-go dialers and transports from config.
package kafkaconn

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"

	"firestige.xyz/vlanswitch/internal/config"
)

// Mechanism returns the SASL mechanism for cfg, or nil when SASL is off.
func Mechanism(cfg config.SASLConfig) (sasl.Mechanism, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch strings.ToUpper(cfg.Mechanism) {
	case "", "PLAIN":
		return plain.Mechanism{Username: cfg.Username, Password: cfg.Password}, nil
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, cfg.Username, cfg.Password)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, cfg.Username, cfg.Password)
	default:
		return nil, fmt.Errorf("unsupported sasl mechanism %q", cfg.Mechanism)
	}
}

// TLS returns the client TLS config for cfg, or nil when TLS is off.
func TLS(cfg config.TLSConfig) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	tc := &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify} //nolint:gosec // operator choice

	if cfg.CACert != "" {
		pem, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return nil, fmt.Errorf("read ca_cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("ca_cert %s contains no certificates", cfg.CACert)
		}
		tc.RootCAs = pool
	}

	if cfg.ClientCert != "" || cfg.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tc.Certificates = []tls.Certificate{cert}
	}

	return tc, nil
}

// Dialer returns a reader dialer carrying the SASL and TLS settings.
func Dialer(s config.SASLConfig, t config.TLSConfig) (*kafka.Dialer, error) {
	mech, err := Mechanism(s)
	if err != nil {
		return nil, err
	}
	tc, err := TLS(t)
	if err != nil {
		return nil, err
	}
	return &kafka.Dialer{
		Timeout:       10 * time.Second,
		DualStack:     true,
		SASLMechanism: mech,
		TLS:           tc,
	}, nil
}

// Transport returns a writer transport carrying the SASL and TLS settings.
func Transport(s config.SASLConfig, t config.TLSConfig) (*kafka.Transport, error) {
	mech, err := Mechanism(s)
	if err != nil {
		return nil, err
	}
	tc, err := TLS(t)
	if err != nil {
		return nil, err
	}
	return &kafka.Transport{
		DialTimeout: 10 * time.Second,
		SASL:        mech,
		TLS:         tc,
	}, nil
}

// Compression maps a config name to a kafka-go codec. Empty and "none"
// disable compression.
func Compression(name string) (kafka.Compression, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return 0, nil
	case "gzip":
		return kafka.Gzip, nil
	case "snappy":
		return kafka.Snappy, nil
	case "lz4":
		return kafka.Lz4, nil
	case "zstd":
		return kafka.Zstd, nil
	default:
		return 0, fmt.Errorf("unsupported compression %q", name)
	}
}

// StartOffset maps auto_offset_reset to a reader start offset.
func StartOffset(reset string) int64 {
	if reset == "earliest" {
		return kafka.FirstOffset
	}
	return kafka.LastOffset
}
