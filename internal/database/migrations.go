package database

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
)

// Migration はバージョン付きのスキーマ変更です。
type Migration struct {
	Version string
	Name    string
	Up      func(*gorm.DB) error
	Down    func(*gorm.DB) error
}

// MigrationRecord は適用済みマイグレーションの記録です。
type MigrationRecord struct {
	Version   string    `gorm:"primaryKey"`
	Name      string    `gorm:"not null"`
	AppliedAt time.Time `gorm:"not null"`
}

// TableName は記録テーブル名を返します。
func (MigrationRecord) TableName() string {
	return "schema_migrations"
}

// MigrationStatus は status コマンドで表示する1行分の情報です。
type MigrationStatus struct {
	Version   string
	Name      string
	Applied   bool
	AppliedAt *time.Time
}

// Migrator はマイグレーションの適用と巻き戻しを行います。
type Migrator struct {
	db         *gorm.DB
	migrations []*Migration
}

// NewMigrator は登録済みのスキーマ定義を持つ Migrator を作成します。
func NewMigrator(db *gorm.DB) *Migrator {
	return &Migrator{
		db:         db,
		migrations: Migrations(),
	}
}

// Register はマイグレーションを追加します。バージョン順に並べ替えられます。
func (m *Migrator) Register(migration *Migration) {
	m.migrations = append(m.migrations, migration)
	sort.SliceStable(m.migrations, func(i, j int) bool {
		return m.migrations[i].Version < m.migrations[j].Version
	})
}

func (m *Migrator) ensureVersionTable() error {
	return m.db.AutoMigrate(&MigrationRecord{})
}

func (m *Migrator) appliedRecords() (map[string]MigrationRecord, error) {
	if err := m.ensureVersionTable(); err != nil {
		return nil, err
	}

	var records []MigrationRecord
	if err := m.db.Find(&records).Error; err != nil {
		return nil, err
	}

	applied := make(map[string]MigrationRecord, len(records))
	for _, record := range records {
		applied[record.Version] = record
	}
	return applied, nil
}

// Up は未適用のマイグレーションをすべて適用し、適用した件数を返します。
func (m *Migrator) Up() (int, error) {
	applied, err := m.appliedRecords()
	if err != nil {
		return 0, err
	}

	count := 0
	for _, mr := range m.migrations {
		if _, ok := applied[mr.Version]; ok {
			continue
		}
		err := m.db.Transaction(func(tx *gorm.DB) error {
			if err := mr.Up(tx); err != nil {
				return err
			}
			return tx.Create(&MigrationRecord{
				Version:   mr.Version,
				Name:      mr.Name,
				AppliedAt: time.Now().UTC(),
			}).Error
		})
		if err != nil {
			return count, fmt.Errorf("migration %s (%s) failed: %w", mr.Version, mr.Name, err)
		}
		count++
	}
	return count, nil
}

// Down は最後に適用したマイグレーションを1件巻き戻します。
// 適用済みのものがない場合は nil を返します。
func (m *Migrator) Down() (*MigrationRecord, error) {
	if err := m.ensureVersionTable(); err != nil {
		return nil, err
	}

	var last MigrationRecord
	if err := m.db.Order("version DESC").First(&last).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var target *Migration
	for _, mr := range m.migrations {
		if mr.Version == last.Version {
			target = mr
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("migration %s is recorded but not registered", last.Version)
	}

	err := m.db.Transaction(func(tx *gorm.DB) error {
		if err := target.Down(tx); err != nil {
			return err
		}
		return tx.Delete(&last).Error
	})
	if err != nil {
		return nil, fmt.Errorf("rollback %s (%s) failed: %w", target.Version, target.Name, err)
	}
	return &last, nil
}

// Status は登録済みマイグレーションの適用状況を返します。
func (m *Migrator) Status() ([]MigrationStatus, error) {
	applied, err := m.appliedRecords()
	if err != nil {
		return nil, err
	}

	statuses := make([]MigrationStatus, 0, len(m.migrations))
	for _, mr := range m.migrations {
		st := MigrationStatus{Version: mr.Version, Name: mr.Name}
		if record, ok := applied[mr.Version]; ok {
			appliedAt := record.AppliedAt
			st.Applied = true
			st.AppliedAt = &appliedAt
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

// Migrate はスキーマを最新にします。サーバー起動時とテストで使います。
func Migrate(db *gorm.DB) error {
	_, err := NewMigrator(db).Up()
	return err
}

// Migrations はアプリケーションのスキーマ定義をバージョン順に返します。
func Migrations() []*Migration {
	return []*Migration{
		{
			Version: "20230717205449",
			Name:    "create_users",
			Up: func(db *gorm.DB) error {
				return db.Exec(ddl(db, createUsersSQL)).Error
			},
			Down: func(db *gorm.DB) error {
				return db.Exec("DROP TABLE IF EXISTS users").Error
			},
		},
		{
			Version: "20230717205450",
			Name:    "create_posts",
			Up: func(db *gorm.DB) error {
				if err := db.Exec(ddl(db, createPostsSQL)).Error; err != nil {
					return err
				}
				return db.Exec("CREATE INDEX idx_posts_user_id ON posts (user_id)").Error
			},
			Down: func(db *gorm.DB) error {
				return db.Exec("DROP TABLE IF EXISTS posts").Error
			},
		},
		{
			Version: "20230717205451",
			Name:    "create_comments",
			Up: func(db *gorm.DB) error {
				if err := db.Exec(ddl(db, createCommentsSQL)).Error; err != nil {
					return err
				}
				if err := db.Exec("CREATE INDEX idx_comments_user_id ON comments (user_id)").Error; err != nil {
					return err
				}
				return db.Exec("CREATE INDEX idx_comments_post_id ON comments (post_id)").Error
			},
			Down: func(db *gorm.DB) error {
				return db.Exec("DROP TABLE IF EXISTS comments").Error
			},
		},
	}
}

type dialectSQL struct {
	sqlite   string
	postgres string
}

// ddl は接続先の方言に合わせたDDLを選びます。
func ddl(db *gorm.DB, stmt dialectSQL) string {
	if db.Dialector.Name() == "postgres" {
		return stmt.postgres
	}
	return stmt.sqlite
}

var createUsersSQL = dialectSQL{
	sqlite: `CREATE TABLE users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	email TEXT NOT NULL,
	password TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	CONSTRAINT idx_users_email UNIQUE (email)
)`,
	postgres: `CREATE TABLE users (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL,
	password TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	CONSTRAINT idx_users_email UNIQUE (email)
)`,
}

var createPostsSQL = dialectSQL{
	sqlite: `CREATE TABLE posts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	user_id INTEGER NOT NULL REFERENCES users (id),
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
)`,
	postgres: `CREATE TABLE posts (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	user_id BIGINT NOT NULL REFERENCES users (id),
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`,
}

var createCommentsSQL = dialectSQL{
	sqlite: `CREATE TABLE comments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	content TEXT NOT NULL,
	user_id INTEGER NOT NULL REFERENCES users (id),
	post_id INTEGER NOT NULL REFERENCES posts (id) ON DELETE CASCADE,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
)`,
	postgres: `CREATE TABLE comments (
	id BIGSERIAL PRIMARY KEY,
	content TEXT NOT NULL,
	user_id BIGINT NOT NULL REFERENCES users (id),
	post_id BIGINT NOT NULL REFERENCES posts (id) ON DELETE CASCADE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`,
}
