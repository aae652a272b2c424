package database

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// DB обертка для работы с базой данных дашборда
type DB struct {
	conn *sql.DB
}

// NewDB создает новое подключение к базе данных и применяет миграции
func NewDB(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Для in-memory SQLite требуется ровно одно соединение, иначе каждое
	// новое соединение получает пустую БД без таблиц
	if isInMemoryDB(dbPath) {
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Внешние ключи в SQLite выключены по умолчанию
	if _, err := conn.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// Close закрывает подключение к базе данных
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn возвращает низкоуровневое подключение для нестандартных запросов
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// isInMemoryDB проверяет, описывает ли путь in-memory базу
func isInMemoryDB(dbPath string) bool {
	return dbPath == ":memory:" ||
		strings.Contains(dbPath, "mode=memory") ||
		strings.HasPrefix(dbPath, "file::memory:")
}

// nullString разворачивает sql.NullString в пустую строку
func nullString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}
