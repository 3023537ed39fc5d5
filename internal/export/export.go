// Package export writes rankings and trait tables as CSV or JSON.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Format represents the export format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat parses a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format: %q", s)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/json"
}

// Options holds configuration for export operations.
type Options struct {
	Format     Format
	FilePath   string
	PrettyJSON bool
	Overwrite  bool
}

// Exporter writes data in a fixed format.
type Exporter struct {
	opts Options
}

// NewExporter creates a new Exporter with the given options.
func NewExporter(opts Options) *Exporter {
	return &Exporter{opts: opts}
}

// Write encodes data to w. CSV requires a slice of structs; columns come
// from `csv:"name[,precision]"` tags, falling back to field names.
func (e *Exporter) Write(w io.Writer, data any) error {
	switch e.opts.Format {
	case FormatCSV:
		return writeCSV(w, data)
	case FormatJSON:
		enc := json.NewEncoder(w)
		if e.opts.PrettyJSON {
			enc.SetIndent("", "  ")
		}
		if err := enc.Encode(data); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported export format: %s", e.opts.Format)
	}
}

// ExportToFile writes data to the configured file path. An existing file is
// only replaced when Overwrite is set.
func (e *Exporter) ExportToFile(data any) (err error) {
	if e.opts.FilePath == "" {
		return fmt.Errorf("file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(e.opts.FilePath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !e.opts.Overwrite {
		flags |= os.O_EXCL
	}
	file, err := os.OpenFile(e.opts.FilePath, flags, 0o644)
	if os.IsExist(err) {
		return fmt.Errorf("file already exists: %s (use overwrite option to replace)", e.opts.FilePath)
	}
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return e.Write(file, data)
}

// column is one CSV column derived from a struct field.
type column struct {
	index     int
	name      string
	precision int // -1 = shortest representation
}

func columnsOf(t reflect.Type) []column {
	var cols []column
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("csv")
		if !field.IsExported() || tag == "-" {
			continue
		}

		col := column{index: i, name: field.Name, precision: -1}
		if tag != "" {
			name, prec, hasPrec := strings.Cut(tag, ",")
			if name != "" {
				col.name = name
			}
			if hasPrec {
				if p, err := strconv.Atoi(prec); err == nil {
					col.precision = p
				}
			}
		}
		cols = append(cols, col)
	}
	return cols
}

func writeCSV(w io.Writer, data any) error {
	v := reflect.ValueOf(data)
	if v.Kind() != reflect.Slice {
		return fmt.Errorf("CSV export requires a slice, got %s", v.Kind())
	}

	elemType := v.Type().Elem()
	if elemType.Kind() == reflect.Ptr {
		elemType = elemType.Elem()
	}
	if elemType.Kind() != reflect.Struct {
		return fmt.Errorf("CSV export requires a slice of structs")
	}

	cols := columnsOf(elemType)
	writer := csv.NewWriter(w)

	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.name
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	row := make([]string, len(cols))
	for i := 0; i < v.Len(); i++ {
		elem := v.Index(i)
		if elem.Kind() == reflect.Ptr {
			if elem.IsNil() {
				continue
			}
			elem = elem.Elem()
		}

		for j, c := range cols {
			row[j] = formatValue(elem.Field(c.index), c.precision)
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row %d: %w", i, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

func formatValue(v reflect.Value, precision int) string {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', precision, 64)
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	}

	if t, ok := v.Interface().(time.Time); ok {
		return t.Format(time.RFC3339)
	}
	if s, ok := v.Interface().(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", v.Interface())
}

// GenerateFilename returns "<name>_<timestamp>.<format>".
func GenerateFilename(name string, format Format) string {
	return fmt.Sprintf("%s_%s.%s", name, time.Now().Format("20060102_150405"), format)
}
