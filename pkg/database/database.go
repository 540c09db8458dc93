package database

import (
	"database/sql"
	"fmt"
	"time"
)

type Options struct {
	Driver        string
	DataSource    string
	MaxOpenConns  int
	MaxIdleConns  int
	RetryAttempts int
	RetryDelay    time.Duration
}

type Option func(*Options)

func WithDriver(driver string) Option {
	return func(o *Options) { o.Driver = driver }
}

func WithDataSource(dsn string) Option {
	return func(o *Options) { o.DataSource = dsn }
}

func WithMaxOpenConns(count int) Option {
	return func(o *Options) { o.MaxOpenConns = count }
}

func WithMaxIdleConns(count int) Option {
	return func(o *Options) { o.MaxIdleConns = count }
}

func WithRetry(attempts int, delay time.Duration) Option {
	return func(o *Options) { o.RetryAttempts = attempts; o.RetryDelay = delay }
}

// New opens a connection pool. Defaults suit the sqlite store: a single
// open connection, since ingestion is single-writer and sqlite
// serializes writes anyway.
func New(opts ...Option) (*sql.DB, error) {
	options := &Options{
		Driver:        "sqlite3",
		DataSource:    ":memory:",
		MaxOpenConns:  1,
		MaxIdleConns:  1,
		RetryAttempts: 3,
		RetryDelay:    time.Second,
	}

	for _, opt := range opts {
		opt(options)
	}

	if options.Driver == "" {
		return nil, fmt.Errorf("database driver cannot be empty")
	}
	if options.DataSource == "" {
		return nil, fmt.Errorf("database data source cannot be empty")
	}

	var db *sql.DB
	var err error

	for i := 0; i < options.RetryAttempts; i++ {
		db, err = sql.Open(options.Driver, options.DataSource)
		if err == nil {
			db.SetMaxOpenConns(options.MaxOpenConns)
			db.SetMaxIdleConns(options.MaxIdleConns)

			if err = db.Ping(); err == nil {
				return db, nil
			}
			db.Close()
		}

		if i < options.RetryAttempts-1 {
			time.Sleep(time.Duration(i+1) * options.RetryDelay)
		}
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", options.RetryAttempts, err)
}
