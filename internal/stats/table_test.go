package stats

import "testing"

func TestFormatTableAlignsColumns(t *testing.T) {
	headers := []string{"Key", "Failed", "Rate"}
	rows := [][]string{
		{"A", "12", "97.50%"},
		{"NUM ENTER", "3", "8.00%"},
	}
	rightAlign := map[int]bool{1: true, 2: true}

	lines := formatTable(headers, rows, rightAlign)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "Key       Failed   Rate" {
		t.Fatalf("unexpected header line: %q", lines[0])
	}
	if lines[1] != "A             12 97.50%" {
		t.Fatalf("unexpected row line: %q", lines[1])
	}
	if lines[2] != "NUM ENTER      3  8.00%" {
		t.Fatalf("unexpected row line: %q", lines[2])
	}
}

func TestFormatTableUsesCellWidth(t *testing.T) {
	lines := formatTable([]string{"Key", "N"}, [][]string{{"한/영", "1"}, {"A", "2"}}, nil)
	if lines[1] != "한/영 1" {
		t.Fatalf("unexpected wide row: %q", lines[1])
	}
	if lines[2] != "A     2" {
		t.Fatalf("unexpected narrow row: %q", lines[2])
	}
}
