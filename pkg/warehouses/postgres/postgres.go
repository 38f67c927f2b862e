// Package postgres provides a PostgreSQL warehouse for LeapReport.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/leapstack-labs/leapreport/pkg/warehouse"
)

const (
	defaultHost = "localhost"
	defaultPort = 5432
)

// Warehouse implements warehouse.Warehouse for PostgreSQL.
type Warehouse struct {
	warehouse.BaseSQLWarehouse
}

// New creates a new PostgreSQL warehouse.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Warehouse {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Warehouse{
		BaseSQLWarehouse: warehouse.BaseSQLWarehouse{Logger: logger},
	}
}

// Connect establishes a connection to PostgreSQL.
func (w *Warehouse) Connect(ctx context.Context, cfg warehouse.Config) error {
	connConfig, err := pgx.ParseConfig(connString(cfg))
	if err != nil {
		return fmt.Errorf("invalid postgres settings: %w", err)
	}

	w.Logger.Debug("connecting to postgres",
		slog.String("host", connConfig.Host),
		slog.String("database", connConfig.Database))

	db := stdlib.OpenDB(*connConfig)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	w.DB = db
	w.Cfg = cfg
	return nil
}

// connString builds a postgres:// URL. Options become query parameters, so
// any libpq setting or runtime parameter can be passed through the config.
func connString(cfg warehouse.Config) string {
	host := cfg.Host
	if host == "" {
		host = defaultHost
	}
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}

	q := url.Values{}
	q.Set("sslmode", "disable")
	for k, v := range cfg.Options {
		q.Set(k, v)
	}
	if cfg.Schema != "" {
		q.Set("search_path", cfg.Schema)
	}

	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(host, strconv.Itoa(port)),
		Path:     "/" + cfg.Database,
		RawQuery: q.Encode(),
	}
	switch {
	case cfg.Username != "" && cfg.Password != "":
		u.User = url.UserPassword(cfg.Username, cfg.Password)
	case cfg.Username != "":
		u.User = url.User(cfg.Username)
	}
	return u.String()
}

var _ warehouse.Warehouse = (*Warehouse)(nil)
