package batch

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/spec-kit/support-assistant/internal/domain"
)

const xlsxSheet = "Sheet1"

var xlsxHeader = []string{"Question", "Answer", "Metadata", "Language"}

// ParseXLSX decodes the first sheet into answer items. The optional fourth
// column of the first data row may carry a source language code; it is
// returned verbatim for the caller to validate.
func ParseXLSX(data []byte) ([]domain.AnswerItem, string, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("open xlsx: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, "", fmt.Errorf("xlsx has no sheets")
	}
	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, "", fmt.Errorf("read xlsx rows: %w", err)
	}

	language := ""
	items := make([]domain.AnswerItem, 0, len(rows))
	for i, row := range rows {
		if i == 0 && isXLSXHeader(row) {
			continue
		}
		if len(items) == 0 && len(row) > 3 {
			language = strings.TrimSpace(row[3])
		}
		items = append(items, domain.AnswerItem{
			Question: field(row, 0),
			Answer:   field(row, 1),
			Metadata: field(row, 2),
		})
	}
	return items, language, nil
}

// EncodeXLSX serializes items into a single-sheet workbook with a header
// row. A non-empty language is written next to the first data row.
func EncodeXLSX(items []domain.AnswerItem, language string) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	header := make([]interface{}, len(xlsxHeader))
	for i, h := range xlsxHeader {
		header[i] = h
	}
	if err := file.SetSheetRow(xlsxSheet, "A1", &header); err != nil {
		return nil, err
	}

	for i, item := range items {
		row := []interface{}{item.Question, item.Answer, item.Metadata}
		if i == 0 && language != "" {
			row = append(row, language)
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := file.SetSheetRow(xlsxSheet, cell, &row); err != nil {
			return nil, err
		}
	}

	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isXLSXHeader(row []string) bool {
	return len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), xlsxHeader[0])
}
