package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver

	"github.com/Rohith-Pavan/Dare-Exchange/internal/config"
)

// Pinger is the subset of *sql.DB used for health checks.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// DriverName returns the database/sql driver used for the descriptor.
func (d Descriptor) DriverName() string {
	switch d.Engine {
	case EngineSQLite:
		return "sqlite3"
	case EnginePostgreSQL:
		return "pgx"
	case EngineRedshift:
		return "postgres"
	case EngineMySQL:
		return "mysql"
	default:
		return ""
	}
}

// DSN renders the driver-specific data source name.
func (d Descriptor) DSN() (string, error) {
	switch d.Engine {
	case EngineSQLite:
		if len(d.Options) == 0 {
			return d.Name, nil
		}
		return "file:" + d.Name + "?" + encodeOptions(d.Options), nil
	case EnginePostgreSQL:
		return d.url("postgres").String(), nil
	case EngineRedshift:
		// lib/pq wants key/value pairs for anything beyond the basics.
		conninfo, err := pq.ParseURL(d.url("postgres").String())
		if err != nil {
			return "", &config.ConfigurationError{Key: urlKey, Value: d.URL(), Err: err}
		}
		return conninfo, nil
	case EngineMySQL:
		cfg := mysql.NewConfig()
		cfg.User = d.User
		cfg.Passwd = d.Password
		cfg.DBName = d.Name
		cfg.Net = "tcp"
		port := d.Port
		if port == 0 {
			port = defaultPorts[EngineMySQL]
		}
		host := d.Host
		if host == "" {
			host = "localhost"
		}
		cfg.Addr = net.JoinHostPort(host, strconv.Itoa(port))
		cfg.ParseTime = true
		if len(d.Options) > 0 {
			cfg.Params = make(map[string]string, len(d.Options))
			for k, v := range d.Options {
				cfg.Params[k] = v
			}
		}
		return cfg.FormatDSN(), nil
	default:
		return "", &config.ConfigurationError{Key: urlKey, Reason: fmt.Sprintf("unsupported engine %q", d.Engine)}
	}
}

// Validate checks the descriptor against its driver's own DSN parser
// without opening a connection.
func (d Descriptor) Validate() error {
	dsn, err := d.DSN()
	if err != nil {
		return err
	}
	switch d.Engine {
	case EnginePostgreSQL:
		if _, err := pgx.ParseConfig(dsn); err != nil {
			return &config.ConfigurationError{Key: urlKey, Value: d.URL(), Reason: "rejected by driver", Err: err}
		}
	case EngineMySQL:
		if _, err := mysql.ParseDSN(dsn); err != nil {
			return &config.ConfigurationError{Key: urlKey, Value: d.URL(), Reason: "rejected by driver", Err: err}
		}
	case EngineSQLite:
		if d.Name == "" {
			return &config.ConfigurationError{Key: urlKey, Reason: "sqlite database name is empty"}
		}
	}
	return nil
}

// Open validates the descriptor, opens a pool with the matching driver and
// pings it once.
func Open(ctx context.Context, d Descriptor) (*sql.DB, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	dsn, err := d.DSN()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", d.Engine, err)
	}

	if d.Engine == EngineSQLite && d.Name == MemoryName {
		// every new connection would see a fresh empty database
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}
