package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/astrapersonal/astra-api/pkg/store"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Client holds the database client
type Client struct {
	DB *gorm.DB
}

// PoolConfig holds connection pool settings
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultPoolConfig returns the pool settings used in production
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

// SSLConfig holds TLS settings appended to the connection string
type SSLConfig struct {
	Mode         string
	CertPath     string
	KeyPath      string
	RootCertPath string
}

// BuildConnectionString applies sslCfg to baseURL
func BuildConnectionString(baseURL string, sslCfg *SSLConfig) (string, error) {
	if sslCfg == nil || sslCfg.Mode == "" {
		return baseURL, nil
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid database URL: %w", err)
	}

	q := u.Query()
	q.Set("sslmode", sslCfg.Mode)
	if sslCfg.CertPath != "" {
		q.Set("sslcert", sslCfg.CertPath)
	}
	if sslCfg.KeyPath != "" {
		q.Set("sslkey", sslCfg.KeyPath)
	}
	if sslCfg.RootCertPath != "" {
		q.Set("sslrootcert", sslCfg.RootCertPath)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// NewClient opens Postgres through lib/pq, applies the pool settings and runs migrations
func NewClient(databaseURL string, poolCfg PoolConfig) (*Client, error) {
	sqlDB, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed opening connection to postgres: %w", err)
	}
	applyPool(sqlDB, poolCfg)

	client, err := NewClientFromDialector(postgres.New(postgres.Config{Conn: sqlDB}))
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	log.Println("✅ Database connected and migrations applied")

	return client, nil
}

// NewClientFromDialector opens gorm on an arbitrary dialector and migrates the schema
func NewClientFromDialector(dialector gorm.Dialector) (*Client, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed opening gorm: %w", err)
	}

	if err := store.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed creating schema resources: %w", err)
	}

	return &Client{DB: db}, nil
}

func applyPool(sqlDB *sql.DB, cfg PoolConfig) {
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
}

// Close closes the database connection
func (c *Client) Close() error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks if the database is reachable
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
