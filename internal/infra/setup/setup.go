package setup

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"roomhub/internal/domain"
)

// InitDB opens the MySQL connection pool.
func InitDB(user, password, host, port, name string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		user, password, host, port, name)
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("setup: connect to mysql: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("setup: get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// MigrateDB migrates the durable schema.
func MigrateDB(db *gorm.DB) error {
	err := db.AutoMigrate(
		&domain.User{},
		&domain.Room{},
		&domain.RoomInvitation{},
		&domain.DiscussionThread{},
		&domain.DiscussionMessage{},
		&domain.Announcement{},
		&domain.AnnouncementComment{},
	)
	if err != nil {
		return fmt.Errorf("setup: migrate database: %w", err)
	}
	return nil
}

// InitRedis opens and pings the Redis client.
func InitRedis(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     20,
		MinIdleConns: 5,
		MaxConnAge:   30 * time.Minute,
	})
	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("setup: connect to redis: %w", err)
	}
	return client, nil
}
