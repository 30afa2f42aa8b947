package tls

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

type TLSConfig struct {
	Enabled      bool          `envconfig:"TLS_ENABLED" default:"false"`
	Port         string        `envconfig:"TLS_PORT" default:"8443"`
	CertFile     string        `envconfig:"TLS_CERT_FILE" default:"/etc/tls/tls.crt"`
	KeyFile      string        `envconfig:"TLS_KEY_FILE" default:"/etc/tls/tls.key"`
	CAFile       string        `envconfig:"TLS_CA_FILE" default:"/etc/tls/ca.crt"`
	PollInterval time.Duration `envconfig:"TLS_POLL_INTERVAL" default:"30s"`
}

// Certificates holds the serving key pair and swaps it on reload.
type Certificates struct {
	current atomic.Pointer[tls.Certificate]
	// modified is the newest file mtime seen before the current pair was read.
	modified time.Time
}

func (c *Certificates) load(cfg *TLSConfig) error {
	mt := modTime(cfg.CertFile, cfg.KeyFile)
	pair, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return fmt.Errorf("failed to load key pair: %w", err)
	}
	c.current.Store(&pair)
	c.modified = mt
	return nil
}

func (c *Certificates) getCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	pair := c.current.Load()
	if pair == nil {
		return nil, errors.New("no certificate loaded")
	}
	return pair, nil
}

// LoadTLSConfig builds a server config that requires client certificates
// signed by the configured CA.
func LoadTLSConfig(cfg *TLSConfig, logger *zap.Logger) (*tls.Config, *Certificates, error) {
	certs := &Certificates{}
	if err := certs.load(cfg); err != nil {
		return nil, nil, err
	}

	pem, err := os.ReadFile(cfg.CAFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, nil, fmt.Errorf("no certificates found in %s", cfg.CAFile)
	}

	logger.Info("TLS configuration loaded",
		zap.String("cert_file", cfg.CertFile),
		zap.String("ca_file", cfg.CAFile))

	return &tls.Config{
		MinVersion:     tls.VersionTLS12,
		ClientAuth:     tls.RequireAndVerifyClientCert,
		ClientCAs:      pool,
		GetCertificate: certs.getCertificate,
	}, certs, nil
}

// WatchCertificates polls the key pair files and reloads certs when either
// is newer than the pair last loaded. It must be the only caller of reloads
// after LoadTLSConfig returns. It returns when ctx is done.
func WatchCertificates(ctx context.Context, cfg *TLSConfig, certs *Certificates, onReload func(), logger *zap.Logger) error {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if !modTime(cfg.CertFile, cfg.KeyFile).After(certs.modified) {
			continue
		}
		if err := certs.load(cfg); err != nil {
			logger.Warn("Certificate reload failed, keeping previous pair", zap.Error(err))
			continue
		}
		logger.Info("TLS certificates reloaded", zap.Time("modified_at", certs.modified))
		if onReload != nil {
			onReload()
		}
	}
}

func modTime(paths ...string) time.Time {
	var latest time.Time
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
	}
	return latest
}
