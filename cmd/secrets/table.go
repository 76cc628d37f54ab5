package main

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
)

// renderAlignedTable renders a fixed-width text table, measuring each cell
// with go-runewidth so wide runes (CJK provider names, box-drawing icons)
// still line up column to column.
func renderAlignedTable(headers []string, rows [][]string, gutter int) []string {
	if len(headers) == 0 {
		return nil
	}
	if gutter < 1 {
		gutter = 1
	}
	widths := make([]int, len(headers))
	for i, header := range headers {
		widths[i] = runewidth.StringWidth(header)
	}
	for _, row := range rows {
		for i := range headers {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	sep := strings.Repeat(" ", gutter)
	out := make([]string, 0, len(rows)+1)
	out = append(out, renderAlignedTableRow(headers, widths, sep))
	for _, row := range rows {
		out = append(out, renderAlignedTableRow(row, widths, sep))
	}
	return out
}

func printAlignedTable(headers []string, rows [][]string, gutter int) {
	for _, line := range renderAlignedTable(headers, rows, gutter) {
		fmt.Println(line)
	}
}

func renderAlignedTableRow(row []string, widths []int, sep string) string {
	cells := make([]string, len(widths))
	for i, width := range widths {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		cells[i] = runewidth.FillRight(cell, width)
	}
	return strings.Join(cells, sep)
}
