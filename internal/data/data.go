package data

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"time"

	"go-shortlinks/internal/conf"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewData,
	NewLinkRepo,
	NewAnalyticsRepo,
	NewQuotaRepo,
	NewBlacklistRepo,
	NewMappingStore,
	NewCounterStore,
	NewCountryResolver,
)

const defaultSQLiteSource = "file:shortlinks?mode=memory&cache=shared&_fk=1"

// Data holds the relational driver and the key-value client.
type Data struct {
	db  *entsql.Driver
	rdb *redis.Client
}

// NewData opens both stores and migrates the relational schema.
func NewData(c *conf.Data, logger log.Logger) (*Data, func(), error) {
	helper := log.NewHelper(logger)

	drv, err := openDriver(c.GetDatabase())
	if err != nil {
		return nil, nil, err
	}
	if db := c.GetDatabase(); db == nil || db.AutoMigrate {
		if err := Migrate(context.Background(), drv); err != nil {
			drv.Close()
			return nil, nil, fmt.Errorf("failed creating schema resources: %w", err)
		}
	}

	rdb := newRedisClient(c.GetRedis())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		drv.Close()
		rdb.Close()
		return nil, nil, fmt.Errorf("failed connecting to redis: %w", err)
	}

	d := &Data{db: drv, rdb: rdb}

	cleanup := func() {
		helper.Info("message", "closing the data resources")
		if err := d.db.Close(); err != nil {
			helper.Error(err)
		}
		if err := d.rdb.Close(); err != nil {
			helper.Error(err)
		}
	}

	return d, cleanup, nil
}

// NewDataFromClients wires already opened stores, used by tests.
func NewDataFromClients(db *entsql.Driver, rdb *redis.Client) *Data {
	return &Data{db: db, rdb: rdb}
}

func openDriver(c *conf.Data_Database) (*entsql.Driver, error) {
	driver, source := dialect.SQLite, defaultSQLiteSource
	maxOpen := 0
	if c != nil {
		if c.Driver != "" {
			driver = c.Driver
		}
		if c.Source != "" {
			source = c.Source
		}
		maxOpen = c.MaxOpenConns
	}
	switch driver {
	case dialect.Postgres, dialect.SQLite:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := stdsql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("failed opening connection to %s: %w", driver, err)
	}
	if driver == dialect.SQLite {
		// one writer at a time; concurrent sqlite writers fail with SQLITE_BUSY
		maxOpen = 1
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	return entsql.OpenDB(driver, db), nil
}

func newRedisClient(c *conf.Data_Redis) *redis.Client {
	opts := &redis.Options{Addr: "127.0.0.1:6379"}
	if c != nil {
		if c.Network != "" {
			opts.Network = c.Network
		}
		if c.Addr != "" {
			opts.Addr = c.Addr
		}
		opts.Password = c.Password
		opts.DB = c.Db
		opts.ReadTimeout = c.ReadTimeout.AsDuration()
		opts.WriteTimeout = c.WriteTimeout.AsDuration()
	}
	return redis.NewClient(opts)
}

// Ping checks both stores for readiness probes.
func (d *Data) Ping(ctx context.Context) error {
	if err := d.db.DB().PingContext(ctx); err != nil {
		return fmt.Errorf("relational store: %w", err)
	}
	if err := d.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("key-value store: %w", err)
	}
	return nil
}

func (d *Data) builder() *entsql.DialectBuilder {
	return entsql.Dialect(d.db.Dialect())
}

type txKey struct{}

// conn returns the transaction stored in ctx, or the driver.
func (d *Data) conn(ctx context.Context) dialect.ExecQuerier {
	if tx, ok := ctx.Value(txKey{}).(dialect.Tx); ok {
		return tx
	}
	return d.db
}

// InTx runs fn inside one relational transaction.
func (d *Data) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(dialect.Tx); ok {
		return fn(ctx)
	}

	tx, err := d.db.Tx(ctx)
	if err != nil {
		return err
	}
	txCtx := context.WithValue(ctx, txKey{}, tx)

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

// exec runs a built statement and returns the affected row count.
func (d *Data) exec(ctx context.Context, query string, args []any) (int64, error) {
	var res stdsql.Result
	if err := d.conn(ctx).Exec(ctx, query, args, &res); err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// query runs a built select; the caller closes the rows.
func (d *Data) query(ctx context.Context, query string, args []any) (*entsql.Rows, error) {
	rows := &entsql.Rows{}
	if err := d.conn(ctx).Query(ctx, query, args, rows); err != nil {
		return nil, err
	}
	return rows, nil
}
