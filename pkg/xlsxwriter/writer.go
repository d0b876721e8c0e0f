/**
 * @description
 * Spreadsheet artifact writer. Produces a single-sheet workbook with two styled
 * header rows followed by the data rows.
 */
package xlsxwriter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const (
	SheetName = "GST Report"

	headerFill   = "D9E1F2"
	borderColor  = "B4B4B4"
	minColWidth  = 8.0
	maxColWidth  = 60.0
	widthPadding = 2.0
)

// Artifact is a written workbook on disk. Each artifact lives in its own
// directory so concurrent writes of the same filename never share a path.
type Artifact struct {
	Path     string
	Filename string
	Size     int64

	dir string
}

// Remove deletes the artifact file and its directory. Removing an already
// missing artifact is not an error.
func (a *Artifact) Remove() error {
	if a == nil || a.Path == "" {
		return nil
	}
	target := a.Path
	if a.dir != "" {
		target = a.dir
	}
	if err := os.RemoveAll(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Writer writes workbooks into a directory.
type Writer struct {
	dir string
}

// NewWriter creates a writer. An empty dir uses the OS temp directory.
func NewWriter(dir string) *Writer {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Writer{dir: dir}
}

// Write renders header and data rows into a fresh directory under dir, keeping
// filename as the file's base name.
func (w *Writer) Write(header [][]string, rows [][]string, generatedAt time.Time, filename string) (*Artifact, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, err
	}
	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   filename,
		Created: generatedAt.UTC().Format(time.RFC3339),
		Creator: "gst-report",
	}); err != nil {
		return nil, err
	}

	widths := make(map[int]float64)
	all := append(append([][]string{}, header...), rows...)
	for i, row := range all {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
			if width := float64(utf8.RuneCountInString(v)) + widthPadding; width > widths[j] {
				widths[j] = width
			}
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return nil, err
		}
	}

	if err := styleHeader(f, header); err != nil {
		return nil, err
	}
	if err := styleBody(f, len(header), len(rows), columnCount(all)); err != nil {
		return nil, err
	}
	for col, width := range widths {
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(SheetName, name, name, clamp(width)); err != nil {
			return nil, err
		}
	}
	if len(header) > 0 {
		top, _ := excelize.CoordinatesToCellName(1, len(header)+1)
		if err := f.SetPanes(SheetName, &excelize.Panes{
			Freeze:      true,
			YSplit:      len(header),
			TopLeftCell: top,
			ActivePane:  "bottomLeft",
		}); err != nil {
			return nil, err
		}
	}

	dir, err := os.MkdirTemp(w.dir, "gst-report-*")
	if err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(filename))
	if err := f.SaveAs(path); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("save workbook: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	return &Artifact{Path: path, Filename: filename, Size: info.Size(), dir: dir}, nil
}

func borders() []excelize.Border {
	return []excelize.Border{
		{Type: "left", Color: borderColor, Style: 1},
		{Type: "top", Color: borderColor, Style: 1},
		{Type: "right", Color: borderColor, Style: 1},
		{Type: "bottom", Color: borderColor, Style: 1},
	}
}

// styleHeader applies the header style and merges: a cell with an empty cell
// below it spans both rows, a class name spans the empty cells to its right.
func styleHeader(f *excelize.File, header [][]string) error {
	if len(header) == 0 {
		return nil
	}
	style, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{headerFill}, Pattern: 1},
		Border:    borders(),
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		return err
	}
	width := columnCount(header)
	first, _ := excelize.CoordinatesToCellName(1, 1)
	last, _ := excelize.CoordinatesToCellName(width, len(header))
	if err := f.SetCellStyle(SheetName, first, last, style); err != nil {
		return err
	}

	for _, m := range headerMerges(header) {
		from, _ := excelize.CoordinatesToCellName(m.fromCol, m.fromRow)
		to, _ := excelize.CoordinatesToCellName(m.toCol, m.toRow)
		if err := f.MergeCell(SheetName, from, to); err != nil {
			return err
		}
	}
	return nil
}

func styleBody(f *excelize.File, headerRows, dataRows, width int) error {
	if dataRows == 0 || width == 0 {
		return nil
	}
	style, err := f.NewStyle(&excelize.Style{Border: borders()})
	if err != nil {
		return err
	}
	first, _ := excelize.CoordinatesToCellName(1, headerRows+1)
	last, _ := excelize.CoordinatesToCellName(width, headerRows+dataRows)
	return f.SetCellStyle(SheetName, first, last, style)
}

type merge struct {
	fromCol, fromRow, toCol, toRow int
}

func headerMerges(header [][]string) []merge {
	if len(header) < 2 {
		return nil
	}
	top, below := header[0], header[1]
	var merges []merge
	for col := 0; col < len(top); col++ {
		if top[col] == "" {
			continue
		}
		if col < len(below) && below[col] == "" {
			merges = append(merges, merge{col + 1, 1, col + 1, 2})
			continue
		}
		end := col
		for end+1 < len(top) && top[end+1] == "" && end+1 < len(below) && below[end+1] != "" {
			end++
		}
		if end > col {
			merges = append(merges, merge{col + 1, 1, end + 1, 1})
		}
	}
	return merges
}

func columnCount(rows [][]string) int {
	n := 0
	for _, r := range rows {
		if len(r) > n {
			n = len(r)
		}
	}
	return n
}

func clamp(width float64) float64 {
	if width < minColWidth {
		return minColWidth
	}
	if width > maxColWidth {
		return maxColWidth
	}
	return width
}
