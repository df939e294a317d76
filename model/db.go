package model

import (
	"fmt"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store is the central model type. All database access goes through it.
type Store struct {
	db     *gorm.DB
	Config *Config
}

// Config is loaded once at startup from config.toml and is read-only
// afterwards. Handlers receive it by reference through the Store.
type Config struct {
	Basedir             string
	BaseURL             string
	CookieSecret        string
	MailAPIKey          string
	MailSecret          string
	MailFrom            string
	Mode                string
	Port                int
	RegistrationAllowed bool
	MaxUploadBytes      int64
	Servers             map[string]server
}

type server struct {
	Database   string
	DBName     string
	DBUser     string
	DBPassword string
	DBHost     string
	DBLogger   string
}

// gormLoggerFor picks the GORM log level from config, defaulting by mode.
func gormLoggerFor(cfg *Config, svr server) *gorm.Config {
	gormConfig := &gorm.Config{}
	switch svr.DBLogger {
	case "info":
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	case "silent":
		gormConfig.Logger = logger.Default.LogMode(logger.Silent)
	default:
		if cfg.Mode == "development" {
			gormConfig.Logger = logger.Default.LogMode(logger.Info)
		} else {
			gormConfig.Logger = logger.Default.LogMode(logger.Silent)
		}
	}
	return gormConfig
}

func (s *Store) autoMigrate() error {
	var err error
	if err = s.db.AutoMigrate(&User{}); err != nil {
		return err
	}
	if err = s.db.AutoMigrate(&SignupToken{}); err != nil {
		return err
	}
	if err = s.db.AutoMigrate(&Follow{}); err != nil {
		return err
	}
	if err = s.db.AutoMigrate(&Post{}); err != nil {
		return err
	}
	if err = s.db.AutoMigrate(&Media{}); err != nil {
		return err
	}
	if err = s.db.AutoMigrate(&APIToken{}); err != nil {
		return err
	}
	s.db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_follows_owner_actor
         ON follows(owner_id, actor_uri)`)
	s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_posts_owner_published
         ON posts(owner_id, published_at DESC)`)
	return nil
}

// InitDatabase opens the configured database and applies the schema.
func InitDatabase(cfg *Config) (*Store, error) {
	var err error

	s := &Store{Config: cfg}
	svr := cfg.Servers[cfg.Mode]
	gormConfig := gormLoggerFor(cfg, svr)

	switch svr.Database {
	case "sqlite3":
		filename := filepath.Join("db", svr.DBName)
		fmt.Println("Use server sqlite3 and database", filename)
		s.db, err = gorm.Open(sqlite.Open(filename), gormConfig)
		if err != nil {
			return nil, err
		}
	case "postgresql":
		fmt.Println("Use server postgresql and database", svr.DBName)
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=5432 sslmode=disable TimeZone=UTC",
			svr.DBHost, svr.DBUser, svr.DBPassword, svr.DBName)
		s.db, err = gorm.Open(postgres.Open(dsn), gormConfig)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown database %q", svr.Database)
	}
	if err = s.autoMigrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewStoreWithDB wraps an already opened gorm DB. The fixtures package
// uses this to build in-memory test stores.
func NewStoreWithDB(db *gorm.DB, cfg *Config) (*Store, error) {
	s := &Store{db: db, Config: cfg}
	if err := s.autoMigrate(); err != nil {
		return nil, err
	}
	return s, nil
}
