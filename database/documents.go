package database

import (
	"fmt"
	"time"
)

// Минимальные операции записи над таблицами документов. Полноценный
// конвейер загрузки (парсинг PDF, OCR) живет вне этого сервиса; здесь
// только то, что нужно загрузчику демо-данных и тестам.

// Supplier поставщик
type Supplier struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Document документ (счет или накладная)
type Document struct {
	ID         int64  `json:"id"`
	Reference  string `json:"reference"`
	DocType    string `json:"doc_type"`
	ClientName string `json:"client_name"`
	SupplierID int64  `json:"supplier_id"`
	IssuedOn   string `json:"issued_on"`
}

// InvoiceLine строка счета
type InvoiceLine struct {
	ID                int64   `json:"id"`
	DocumentID        int64   `json:"document_id"`
	Description       string  `json:"description"`
	MaterialType      string  `json:"material_type"`
	Quantity          float64 `json:"quantity"`
	Unit              string  `json:"unit"`
	DepartureLocation string  `json:"departure_location"`
	ArrivalLocation   string  `json:"arrival_location"`
	Amount            float64 `json:"amount"`
}

// InsertSupplier создает поставщика и возвращает его id
func (db *DB) InsertSupplier(name string) (int64, error) {
	result, err := db.conn.Exec(`
		INSERT INTO suppliers (name, created_at) VALUES (?, ?)`,
		name, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to insert supplier: %w", err)
	}
	return result.LastInsertId()
}

// InsertDocument создает документ и возвращает его id
func (db *DB) InsertDocument(doc Document) (int64, error) {
	result, err := db.conn.Exec(`
		INSERT INTO documents (reference, doc_type, client_name, supplier_id, issued_on, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		doc.Reference, orDefault(doc.DocType, "invoice"), doc.ClientName,
		nullableID(doc.SupplierID), doc.IssuedOn, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to insert document: %w", err)
	}
	return result.LastInsertId()
}

// InsertInvoiceLine создает строку счета и возвращает ее id
func (db *DB) InsertInvoiceLine(line InvoiceLine) (int64, error) {
	result, err := db.conn.Exec(`
		INSERT INTO invoice_lines
			(document_id, description, material_type, quantity, unit,
			 departure_location, arrival_location, amount)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		nullableID(line.DocumentID), line.Description,
		nullableText(line.MaterialType), line.Quantity, line.Unit,
		nullableText(line.DepartureLocation), nullableText(line.ArrivalLocation),
		line.Amount)
	if err != nil {
		return 0, fmt.Errorf("failed to insert invoice line: %w", err)
	}
	return result.LastInsertId()
}

// nullableID превращает нулевой id в NULL для внешних ключей
func nullableID(id int64) interface{} {
	if id == 0 {
		return nil
	}
	return id
}

// nullableText превращает пустую строку в NULL, чтобы запросы различных
// значений с фильтром IS NOT NULL не видели пустых записей
func nullableText(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
