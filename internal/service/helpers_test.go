package service

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/echo-go-api/internal/config"
	"github.com/noah-isme/echo-go-api/internal/models"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func testLifetime() config.LifetimeConfig {
	return config.LifetimeConfig{
		Post:                 24 * time.Hour,
		Comment:              240 * time.Hour,
		PostEchoExtend:       time.Hour,
		PostDisechoReduce:    time.Hour,
		CommentEchoExtend:    10 * time.Hour,
		CommentDisechoReduce: 10 * time.Hour,
	}
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Post{},
		&models.Comment{},
		&models.Vote{},
		&models.Chat{},
		&models.ChatMember{},
		&models.SweepRun{},
	))
	return db
}

func seedUsers(t *testing.T, db *gorm.DB, ids ...uint) {
	t.Helper()
	for _, id := range ids {
		user := models.User{ID: id, Username: fmt.Sprintf("user%d", id), Nickname: fmt.Sprintf("User %d", id)}
		require.NoError(t, db.Create(&user).Error)
	}
}

func seedGroupChat(t *testing.T, db *gorm.DB, owner uint, members ...uint) models.Chat {
	t.Helper()

	ownerID := owner
	base := time.Now().UTC()
	chat := models.Chat{IsGroup: true, Name: "crew", OwnerID: &ownerID}
	chat.Members = append(chat.Members, models.ChatMember{UserID: owner, IsAdmin: true, JoinedAt: base})
	for i, id := range members {
		chat.Members = append(chat.Members, models.ChatMember{UserID: id, JoinedAt: base.Add(time.Duration(i+1) * time.Second)})
	}
	require.NoError(t, db.Create(&chat).Error)
	return chat
}

func ptrUint(v uint) *uint {
	return &v
}
