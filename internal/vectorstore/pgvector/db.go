package pgvector

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strings"
	"time"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

// ConnConfig names either a plain DSN or a Cloud SQL instance
// (project:region:instance) plus database credentials.
type ConnConfig struct {
	DSN                    string
	InstanceConnectionName string
	Database               string
	User                   string
	Password               string
	ConnectTimeout         time.Duration
}

// Connector opens a fresh single-connection *sql.DB per call. The Cloud SQL
// dialer, when used, is shared across calls and closed by Close.
type Connector struct {
	cfg    ConnConfig
	dialer *cloudsqlconn.Dialer
}

func NewConnector(ctx context.Context, cfg ConnConfig) (*Connector, error) {
	cfg.InstanceConnectionName = strings.TrimSpace(cfg.InstanceConnectionName)
	cfg.DSN = strings.TrimSpace(cfg.DSN)
	if cfg.InstanceConnectionName == "" && cfg.DSN == "" {
		return nil, fmt.Errorf("postgres dsn or cloud sql instance is required")
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	connector := &Connector{cfg: cfg}
	if cfg.InstanceConnectionName != "" {
		if cfg.Database == "" || cfg.User == "" {
			return nil, fmt.Errorf("cloud sql database and user are required")
		}
		dialer, err := cloudsqlconn.NewDialer(ctx)
		if err != nil {
			return nil, fmt.Errorf("create cloud sql dialer: %w", err)
		}
		connector.dialer = dialer
	}
	return connector, nil
}

func (c *Connector) Open(ctx context.Context) (*sql.DB, error) {
	connConfig, err := c.connConfig()
	if err != nil {
		return nil, err
	}

	db := stdlib.OpenDB(*connConfig)
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping vector store db: %w", err)
	}
	return db, nil
}

func (c *Connector) Close() error {
	if c.dialer == nil {
		return nil
	}
	return c.dialer.Close()
}

func (c *Connector) connConfig() (*pgx.ConnConfig, error) {
	if c.dialer == nil {
		connConfig, err := pgx.ParseConfig(c.cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("parse postgres dsn: %w", err)
		}
		connConfig.ConnectTimeout = c.cfg.ConnectTimeout
		return connConfig, nil
	}

	// The connector handles TLS itself, so the driver talks plaintext over the
	// dialed tunnel.
	connConfig, err := pgx.ParseConfig("sslmode=disable")
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	connConfig.User = c.cfg.User
	connConfig.Password = c.cfg.Password
	connConfig.Database = c.cfg.Database
	connConfig.ConnectTimeout = c.cfg.ConnectTimeout
	instance := c.cfg.InstanceConnectionName
	dialer := c.dialer
	connConfig.DialFunc = func(ctx context.Context, _, _ string) (net.Conn, error) {
		return dialer.Dial(ctx, instance)
	}
	return connConfig, nil
}
