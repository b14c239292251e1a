// Package clickhouse wraps the vendor driver behind a small client used
// by the fetcher, the contract store and the warehouse writer. The driver
// owns the connection pool; the client pins its size and timeouts and
// scopes per-query session settings.
package clickhouse

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultPoolSize = 8
	DefaultTimeout  = 30 * time.Second
)

type ClientConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Database string
	Secure   bool
	// PoolSize caps concurrent native connections; zero means
	// DefaultPoolSize.
	PoolSize int
}

type Client struct {
	conn   driver.Conn
	config *ClientConfig
	logger *zap.Logger
}

func NewClient(cfg *ClientConfig, l *zap.Logger) (*Client, error) {
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}

	options := &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout:  DefaultTimeout,
		ReadTimeout:  DefaultTimeout,
		MaxOpenConns: poolSize,
		MaxIdleConns: poolSize,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	}
	if cfg.Secure {
		options.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open clickhouse connection")
	}

	return &Client{
		conn:   conn,
		config: cfg,
		logger: l,
	}, nil
}

// TestConnection pings the server; used as the pre-flight check before
// streaming starts.
func (c *Client) TestConnection(ctx context.Context) error {
	if err := c.conn.Ping(ctx); err != nil {
		return errors.Wrap(err, "clickhouse connection test failed")
	}
	return nil
}

func (c *Client) ConnectionInfo() string {
	return fmt.Sprintf("%s:%d/%s as %s", c.config.Host, c.config.Port, c.config.Database, c.config.Username)
}

// Query runs a SELECT and returns the driver row iterator.
func (c *Client) Query(ctx context.Context, query string) (driver.Rows, error) {
	return c.conn.Query(ctx, query)
}

// PrepareBatch starts a native-protocol batch insert with the given
// session settings applied for the insert's duration.
func (c *Client) PrepareBatch(ctx context.Context, insertQuery string, settings map[string]any) (driver.Batch, error) {
	if len(settings) > 0 {
		ctx = clickhouse.Context(ctx, clickhouse.WithSettings(clickhouse.Settings(settings)))
	}
	return c.conn.PrepareBatch(ctx, insertQuery)
}

func (c *Client) Close() error {
	return c.conn.Close()
}
