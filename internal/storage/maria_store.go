package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MariaStore хранит миры в таблице worlds MariaDB/MySQL. ID выдаются
// AUTO_INCREMENT таблицы world_ids.
type MariaStore struct {
	db *sql.DB
}

// NewMariaStore подключается к базе и создаёт таблицы при необходимости.
//
// dsn - строка подключения (user:pass@tcp(host:port)/dbname?parseTime=true)
func NewMariaStore(dsn string) (*MariaStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с MariaDB: %w", err)
	}

	s := &MariaStore{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MariaStore) createTables() error {
	queries := []string{`
		CREATE TABLE IF NOT EXISTS world_ids (
			id         INT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
			created_at TIMESTAMP    DEFAULT CURRENT_TIMESTAMP
		) ENGINE=InnoDB`, `
		CREATE TABLE IF NOT EXISTS worlds (
			id         INT UNSIGNED PRIMARY KEY,
			name       VARCHAR(24)  NOT NULL,
			data       LONGBLOB     NOT NULL,
			updated_at DATETIME(6)  NOT NULL,
			UNIQUE KEY idx_name (name)
		) ENGINE=InnoDB`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("ошибка создания таблиц миров: %w", err)
		}
	}
	return nil
}

func (s *MariaStore) scan(row *sql.Row, key interface{}) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.Name, &rec.Data, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrWorldNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("ошибка загрузки мира %v: %w", key, err)
	}
	return rec, nil
}

func (s *MariaStore) Get(ctx context.Context, name string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, data, updated_at FROM worlds WHERE name = ?`, name)
	return s.scan(row, name)
}

func (s *MariaStore) GetByID(ctx context.Context, id uint32) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, data, updated_at FROM worlds WHERE id = ?`, id)
	return s.scan(row, id)
}

func (s *MariaStore) Put(ctx context.Context, rec Record) error {
	query := `
		INSERT INTO worlds (id, name, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			name = VALUES(name),
			data = VALUES(data),
			updated_at = VALUES(updated_at)
	`
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, query, rec.ID, rec.Name, rec.Data, rec.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("ошибка сохранения мира %s: %w", rec.Name, err)
	}
	return nil
}

func (s *MariaStore) NextID(ctx context.Context) (uint32, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO world_ids () VALUES ()`)
	if err != nil {
		return 0, fmt.Errorf("ошибка выдачи ID мира: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint32(id), nil
}

// Close закрывает соединение с базой данных
func (s *MariaStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
