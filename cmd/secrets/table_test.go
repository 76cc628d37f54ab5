package main

import "testing"

func TestRenderAlignedTableAlignsColumns(t *testing.T) {
	lines := renderAlignedTable(
		[]string{"alias", "source"},
		[][]string{
			{"env", "env"},
			{"vault-prod", "exec"},
		},
		2,
	)
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines: %v", len(lines), lines)
	}
	if len(lines[0]) != len(lines[1]) || len(lines[1]) != len(lines[2]) {
		t.Fatalf("expected every rendered line to share one width, got %v", lines)
	}
}

func TestRenderAlignedTableEmptyHeaders(t *testing.T) {
	if lines := renderAlignedTable(nil, [][]string{{"a"}}, 2); lines != nil {
		t.Fatalf("expected nil output for no headers, got %v", lines)
	}
}

func TestRenderAlignedTableShortRowPadsMissingCells(t *testing.T) {
	lines := renderAlignedTable(
		[]string{"a", "b", "c"},
		[][]string{{"x"}},
		1,
	)
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d", len(lines))
	}
	if len(lines[0]) != len(lines[1]) {
		t.Fatalf("expected short row to be padded to header width, got %q vs %q", lines[0], lines[1])
	}
}

func TestRenderAlignedTableGutterFloor(t *testing.T) {
	withZero := renderAlignedTable([]string{"a"}, nil, 0)
	withOne := renderAlignedTable([]string{"a"}, nil, 1)
	if withZero[0] != withOne[0] {
		t.Fatalf("expected gutter < 1 to be clamped to 1, got %q vs %q", withZero[0], withOne[0])
	}
}
