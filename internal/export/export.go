// Package export writes warehouse results to flat files.
package export

import (
	"encoding/csv"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/leapstack-labs/leapreport/pkg/core"
)

// FileMode is the permission of every exported CSV.
const FileMode os.FileMode = 0o644

// Layouts used when formatting time values.
const (
	DateLayout      = time.DateOnly
	TimestampLayout = time.DateTime
)

// WriteCSV writes tbl to path with a header row and no index column.
// Any existing file is replaced. The data goes to a temp file in the same
// directory first, so a failure never leaves a partial CSV behind.
func WriteCSV(path string, tbl *core.Table) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return &core.IOError{Op: "create", Path: path, Err: err}
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	w := csv.NewWriter(tmp)
	if err := writeRecords(w, tbl); err != nil {
		_ = tmp.Close()
		cleanup()
		return &core.IOError{Op: "write", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return &core.IOError{Op: "write", Path: path, Err: err}
	}
	// CreateTemp makes the file owner-only; the workbook's data connection
	// may read it as another user.
	if err := os.Chmod(tmpPath, FileMode); err != nil {
		cleanup()
		return &core.IOError{Op: "chmod", Path: path, Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return &core.IOError{Op: "rename", Path: path, Err: err}
	}
	return nil
}

func writeRecords(w *csv.Writer, tbl *core.Table) error {
	if err := w.Write(tbl.ColumnNames()); err != nil {
		return err
	}
	if tbl != nil {
		record := make([]string, len(tbl.Columns))
		for _, row := range tbl.Rows {
			for i := range record {
				record[i] = ""
				if i < len(row) {
					record[i] = FormatValue(row[i])
				}
			}
			if err := w.Write(record); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}

// FormatValue renders a single warehouse value as text.
// Midnight timestamps are treated as dates.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(DateLayout)
		}
		return x.Format(TimestampLayout)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case *big.Int:
		if x == nil {
			return ""
		}
		return x.String()
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}
