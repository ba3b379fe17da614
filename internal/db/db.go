package db

import (
	"errors"
	"fmt"
	"ideafeed/internal/config"
	"ideafeed/internal/models"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Init 连接 PostgreSQL、配置连接池并迁移表结构
func Init(cfg *config.Config) (*gorm.DB, error) {
	gdb, err := Open(postgres.Open(cfg.DatabaseURL), cfg.IsDev())
	if err != nil {
		return nil, err
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.DBConnMaxLifetime)

	zap.L().Info("Database connection established")

	if err := Migrate(gdb); err != nil {
		return nil, err
	}
	zap.L().Info("Database migration completed")

	DB = gdb
	return gdb, nil
}

// Open 按方言打开连接，统一时间为 UTC 并开启错误翻译
func Open(dialector gorm.Dialector, verbose bool) (*gorm.DB, error) {
	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newLogger(log.New(os.Stdout, "\r\n", log.LstdFlags), verbose),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return gdb, nil
}

// newLogger 查不到记录是正常分支（发布前查重、按 ID 读取），不记为错误
func newLogger(w logger.Writer, verbose bool) logger.Interface {
	level := logger.Error
	if verbose {
		level = logger.Info
	}
	return logger.New(w, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  verbose,
	})
}

// Migrate 自动迁移所有模型
func Migrate(gdb *gorm.DB) error {
	err := gdb.AutoMigrate(
		&models.Pillar{},
		&models.Cluster{},
		&models.Note{},
		&models.Post{},
		&models.Tag{},
		&models.PostTag{},
		&models.Reaction{},
	)
	if err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	return nil
}

// IsDuplicateKey 判断是否违反唯一约束（postgres 23505 / sqlite UNIQUE）
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
