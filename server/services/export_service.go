package services

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"rationalize/database"
	"rationalize/resolution"
)

// ExportFormat формат экспорта
type ExportFormat string

const (
	FormatJSON  ExportFormat = "json"
	FormatCSV   ExportFormat = "csv"
	FormatExcel ExportFormat = "excel"
)

// ParseExportFormat проверяет и приводит строку к ExportFormat
func ParseExportFormat(s string) (ExportFormat, bool) {
	switch ExportFormat(s) {
	case FormatJSON, FormatCSV, FormatExcel:
		return ExportFormat(s), true
	case "":
		return FormatJSON, true
	}
	return "", false
}

// ContentType возвращает MIME-тип формата
func (f ExportFormat) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/json"
}

// ExportService экспорт таблицы маппингов для ревью вне дашборда
type ExportService struct {
	db *database.DB
}

// NewExportService создает новый сервис экспорта
func NewExportService(db *database.DB) *ExportService {
	return &ExportService{db: db}
}

// mappingExportHeader колонки табличных форматов
var mappingExportHeader = []string{
	"id", "entity_category", "raw_value", "canonical_value",
	"match_mode", "status", "source", "confidence", "created_by", "notes",
}

// ExportMappings выгружает все маппинги категории в указанном формате
func (e *ExportService) ExportMappings(w io.Writer, category resolution.EntityCategory, format ExportFormat) error {
	entries, err := e.db.Mappings(category)
	if err != nil {
		return fmt.Errorf("failed to fetch mappings: %w", err)
	}
	return e.write(w, format, entries)
}

// ExportPendingReviews выгружает очередь ревью категории
func (e *ExportService) ExportPendingReviews(w io.Writer, category resolution.EntityCategory, format ExportFormat) error {
	entries, err := e.db.PendingReviews(category)
	if err != nil {
		return fmt.Errorf("failed to fetch pending reviews: %w", err)
	}
	return e.write(w, format, entries)
}

func (e *ExportService) write(w io.Writer, format ExportFormat, entries []resolution.MappingEntry) error {
	switch format {
	case FormatCSV:
		return e.writeCSV(w, entries)
	case FormatExcel:
		return e.writeExcel(w, entries)
	default:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(entries)
	}
}

func (e *ExportService) writeCSV(w io.Writer, entries []resolution.MappingEntry) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(mappingExportHeader); err != nil {
		return err
	}
	for _, entry := range entries {
		record := []string{
			strconv.FormatInt(entry.ID, 10),
			string(entry.Category),
			entry.RawValue,
			entry.CanonicalValue,
			entry.MatchMode,
			entry.Status,
			entry.Source,
			strconv.FormatFloat(entry.Confidence, 'f', 2, 64),
			entry.CreatedBy,
			entry.Notes,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func (e *ExportService) writeExcel(w io.Writer, entries []resolution.MappingEntry) error {
	file := excelize.NewFile()
	defer file.Close()

	const sheet = "Mappings"
	if err := file.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	for col, title := range mappingExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := file.SetCellValue(sheet, cell, title); err != nil {
			return err
		}
	}

	for row, entry := range entries {
		values := []interface{}{
			entry.ID, string(entry.Category), entry.RawValue,
			entry.CanonicalValue, entry.MatchMode, entry.Status,
			entry.Source, entry.Confidence, entry.CreatedBy, entry.Notes,
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return err
			}
			if err := file.SetCellValue(sheet, cell, value); err != nil {
				return err
			}
		}
	}

	return file.Write(w)
}
