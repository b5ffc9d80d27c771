package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

const scanPrompt = `This photo shows a table of values, such as a ledger or a spreadsheet printout.

Extract its cells as JSON in this exact shape:
{
  "rows": <number of data rows>,
  "cols": <number of columns>,
  "cells": [["value", "value", ...], ...]
}

Rules:
- Skip column header rows and total rows; only data rows go in "cells".
- Keep numbers as written, without thousands separators or currency symbols.
- Use "" for an empty cell.
- Answer ONLY with the JSON, no comment or markdown.`

// ErrEmptyScan is returned when the model does not find a usable table.
var ErrEmptyScan = errors.New("no table found in image")

type scannedTable struct {
	Rows  int        `json:"rows"`
	Cols  int        `json:"cols"`
	Cells [][]string `json:"cells"`
}

// ScanTable sends a photo to Gemini and builds a sheet from the table it reads.
func (g *GeminiClient) ScanTable(ctx context.Context, imageData []byte, mimeType string) (*Sheet, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.modelName,
		[]*genai.Content{{
			Role: "user",
			Parts: []*genai.Part{
				{Text: scanPrompt},
				{InlineData: &genai.Blob{MIMEType: mimeType, Data: imageData}},
			},
		}},
		&genai.GenerateContentConfig{
			Temperature:      genai.Ptr(float32(0.1)),
			TopP:             genai.Ptr(float32(1)),
			ResponseMIMEType: "application/json",
		},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("%w: empty response", ErrEmptyScan)
	}
	return parseScannedTable([]byte(text))
}

func parseScannedTable(raw []byte) (*Sheet, error) {
	var table scannedTable
	if err := json.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("parse table JSON: %w\nraw response: %s", err, raw)
	}
	if table.Rows == 0 || table.Cols == 0 || len(table.Cells) == 0 {
		return nil, fmt.Errorf("%w: %dx%d with %d cell rows", ErrEmptyScan, table.Rows, table.Cols, len(table.Cells))
	}
	return sheetFromRows(table.Cells, table.Rows, table.Cols)
}
