package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"harvestlink/internal/config"
	"harvestlink/internal/models"
	"harvestlink/internal/repositories"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type stores struct {
	orders   repositories.OrderRepository
	products repositories.ProductRepository
	users    repositories.UserRepository
	carts    repositories.CartRepository
}

// gormWriter sends GORM's slow-query and error lines to zerolog.
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...interface{}) {
	log.Warn().Str("component", "gorm").Msgf(format, args...)
}

// openStores builds the repositories for the configured driver. db is nil for
// the json driver.
func openStores(cfg *config.Config) (stores, *gorm.DB, error) {
	switch cfg.StorageDriver {
	case config.DriverJSON:
		s, err := openJSONStores(cfg.DataDir)
		return s, nil, err
	case config.DriverSQLite, config.DriverPostgres:
		db, err := openDatabase(cfg.StorageDriver, cfg.DatabaseDSN)
		if err != nil {
			return stores{}, nil, err
		}
		return stores{
			orders:   repositories.NewGORMOrderRepository(db),
			products: repositories.NewGORMProductRepository(db),
			users:    repositories.NewGORMUserRepository(db),
			carts:    repositories.NewGORMCartRepository(db),
		}, db, nil
	default:
		return stores{}, nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

func openJSONStores(dir string) (stores, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return stores{}, fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}
	orders, err := repositories.NewJSONOrderRepository(filepath.Join(dir, "orders.json"))
	if err != nil {
		return stores{}, err
	}
	products, err := repositories.NewJSONProductRepository(filepath.Join(dir, "products.json"))
	if err != nil {
		return stores{}, err
	}
	users, err := repositories.NewJSONUserRepository(filepath.Join(dir, "users.json"))
	if err != nil {
		return stores{}, err
	}
	carts, err := repositories.NewJSONCartRepository(filepath.Join(dir, "carts.json"))
	if err != nil {
		return stores{}, err
	}
	log.Info().Str("dir", dir).Msg("using JSON file storage")
	return stores{orders: orders, products: products, users: users, carts: carts}, nil
}

func openDatabase(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if driver == config.DriverPostgres {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(gormWriter{}, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}

	if err := db.AutoMigrate(&models.User{}, &models.Product{}, &models.Order{}, &models.CartItem{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	log.Info().Str("driver", driver).Msg("database connected and migrated")
	return db, nil
}
