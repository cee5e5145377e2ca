// Package testdb поднимает SQLite в памяти со схемой приложения для тестов репозиториев и сервисов.
package testdb

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rabbitctf/rabbitctf-api/internal/domain/entity"
)

var counter atomic.Int64

// Models - все таблицы схемы
var Models = []interface{}{
	&entity.User{},
	&entity.Team{},
	&entity.TeamMember{},
	&entity.Challenge{},
	&entity.Submission{},
	&entity.Solve{},
	&entity.SubmissionBlock{},
	&entity.EventConfig{},
	&entity.AuditLog{},
}

// New возвращает отдельную базу для каждого теста.
// Одно соединение: SQLite сериализует запись, а транзакции не мешают друг другу.
func New(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb_%d?mode=memory&cache=shared&_busy_timeout=5000", counter.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(Models...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

// Seed создает пользователей и команды: по одному пользователю на команду.
// Возвращает членства в порядке команд.
func Seed(t *testing.T, db *gorm.DB, teamNames ...string) []entity.TeamMember {
	t.Helper()

	members := make([]entity.TeamMember, 0, len(teamNames))
	for i, name := range teamNames {
		user := &entity.User{
			Username: fmt.Sprintf("player%d", i+1),
			Email:    fmt.Sprintf("player%d@ctf.local", i+1),
			Role:     entity.RoleUser,
		}
		if err := db.Create(user).Error; err != nil {
			t.Fatalf("create user: %v", err)
		}
		team := &entity.Team{Name: name, CaptainID: user.ID}
		if err := db.Create(team).Error; err != nil {
			t.Fatalf("create team: %v", err)
		}
		member := entity.TeamMember{UserID: user.ID, TeamID: team.ID, JoinedAt: time.Now().UTC()}
		if err := db.Create(&member).Error; err != nil {
			t.Fatalf("create team member: %v", err)
		}
		members = append(members, member)
	}
	return members
}
