package google

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// gridRange is the parsed form of an A1 range like "Leads!A2:Z". Rows and
// columns are 0-based; End values are exclusive and 0 when open-ended.
type gridRange struct {
	Sheet    string
	StartCol int
	StartRow int
	EndCol   int
	EndRow   int
}

func parseA1(r string) (gridRange, error) {
	var g gridRange
	cells := r
	if i := strings.LastIndex(r, "!"); i >= 0 {
		g.Sheet = r[:i]
		if len(g.Sheet) >= 2 && strings.HasPrefix(g.Sheet, "'") && strings.HasSuffix(g.Sheet, "'") {
			g.Sheet = strings.ReplaceAll(g.Sheet[1:len(g.Sheet)-1], "''", "'")
		}
		cells = r[i+1:]
	}
	if g.Sheet == "" {
		return g, fmt.Errorf("range %q has no sheet name", r)
	}
	if cells == "" {
		return g, nil
	}

	from, to, _ := strings.Cut(cells, ":")
	col, row, err := parseCell(from)
	if err != nil {
		return g, fmt.Errorf("range %q: %w", r, err)
	}
	g.StartCol = col
	if row > 0 {
		g.StartRow = row - 1
	}
	if to == "" {
		g.EndCol = col + 1
		if row > 0 {
			g.EndRow = row
		}
		return g, nil
	}
	col, row, err = parseCell(to)
	if err != nil {
		return g, fmt.Errorf("range %q: %w", r, err)
	}
	g.EndCol = col + 1
	g.EndRow = row
	return g, nil
}

// parseCell splits "AB12" into a 0-based column and a 1-based row (0 if absent).
func parseCell(s string) (int, int, error) {
	i := 0
	col := 0
	for i < len(s) && unicode.IsLetter(rune(s[i])) {
		col = col*26 + int(unicode.ToUpper(rune(s[i]))-'A'+1)
		i++
	}
	if i == 0 {
		return 0, 0, fmt.Errorf("cell %q has no column", s)
	}
	row := 0
	if i < len(s) {
		n, err := strconv.Atoi(s[i:])
		if err != nil || n < 1 {
			return 0, 0, fmt.Errorf("cell %q has invalid row", s)
		}
		row = n
	}
	return col - 1, row, nil
}

// quoteSheet quotes a sheet name for use in A1 notation when needed.
func quoteSheet(name string) string {
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return "'" + strings.ReplaceAll(name, "'", "''") + "'"
		}
	}
	return name
}
