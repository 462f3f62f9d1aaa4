// Package render provides centralized output rendering for the stager CLI.
//
// Format selection rules:
//   - --format flag always overrides defaults
//   - then output.format from the config file
//   - If output is a TTY, default to table
//   - If output is not a TTY, default to json
//   - Invalid formats are errors
//
// Table output prints byte counts in IEC units. Struct fields whose json
// name ends in "_bytes" or is "size" are treated as byte counts.
// --no-color disables the progress view styling; it never changes json or
// yaml output.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"slices"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

// Format represents an output format.
type Format string

// Supported formats.
const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

var formats = []Format{FormatJSON, FormatTable, FormatYAML}

// ParseFormat parses a format name case-insensitively. An empty name yields
// "" so the caller can pick a default.
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return "", nil
	}
	f := Format(strings.ToLower(s))
	if !slices.Contains(formats, f) {
		return "", fmt.Errorf("invalid format: %q (must be json, table, or yaml)", s)
	}
	return f, nil
}

// Renderer handles output formatting.
type Renderer struct {
	format  Format
	noColor bool
	out     io.Writer
}

// NewRenderer creates a renderer from CLI context writing to the app's
// Writer. fallback is the configured format, used when --format is not given.
func NewRenderer(c *cli.Context, fallback string) (*Renderer, error) {
	formatStr := c.String("format")
	if formatStr == "" {
		formatStr = fallback
	}
	format, err := ParseFormat(formatStr)
	if err != nil {
		return nil, err
	}

	var out io.Writer = os.Stdout
	if c.App != nil && c.App.Writer != nil {
		out = c.App.Writer
	}

	// Apply default format based on TTY detection
	if format == "" {
		if f, ok := out.(*os.File); ok && IsTerminal(f) {
			format = FormatTable
		} else {
			format = FormatJSON
		}
	}

	return &Renderer{
		format:  format,
		noColor: c.Bool("no-color"),
		out:     out,
	}, nil
}

// NewRendererWithWriter creates a renderer with a custom writer (for testing).
func NewRendererWithWriter(format Format, noColor bool, out io.Writer) *Renderer {
	return &Renderer{
		format:  format,
		noColor: noColor,
		out:     out,
	}
}

// Render outputs the data in the configured format.
func (r *Renderer) Render(data any) error {
	switch r.format {
	case FormatJSON:
		return r.renderJSON(data)
	case FormatTable:
		return r.renderTable(data)
	case FormatYAML:
		return r.renderYAML(data)
	default:
		return fmt.Errorf("unknown format: %s", r.format)
	}
}

// Format returns the selected output format.
func (r *Renderer) Format() Format { return r.format }

// NoColor reports whether styling is disabled.
func (r *Renderer) NoColor() bool { return r.noColor }

func (r *Renderer) renderJSON(data any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (r *Renderer) renderYAML(data any) error {
	enc := yaml.NewEncoder(r.out)
	enc.SetIndent(2)
	return enc.Encode(data)
}

func (r *Renderer) renderTable(data any) error {
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	v := indirect(reflect.ValueOf(data))
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return writeRows(w, v)
	case reflect.Struct:
		for _, col := range columnsOf(v.Type()) {
			fmt.Fprintf(w, "%s:\t%s\n", col.name, col.cell(v))
		}
	case reflect.Map:
		for _, key := range sortedKeys(v) {
			fmt.Fprintf(w, "%v:\t%s\n", key.Interface(), formatValue(v.MapIndex(key)))
		}
	default:
		fmt.Fprintf(w, "%v\n", data)
	}
	return nil
}

// writeRows prints one line per element under a header taken from the
// element type. Non-struct elements are printed one per line.
func writeRows(w io.Writer, v reflect.Value) error {
	if v.Len() == 0 {
		fmt.Fprintln(w, "(no results)")
		return nil
	}

	elem := v.Type().Elem()
	if elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
	}
	if elem.Kind() != reflect.Struct {
		for i := 0; i < v.Len(); i++ {
			fmt.Fprintln(w, formatValue(v.Index(i)))
		}
		return nil
	}

	cols := columnsOf(elem)
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = col.name
	}
	fmt.Fprintln(w, strings.Join(names, "\t"))

	cells := make([]string, len(cols))
	for i := 0; i < v.Len(); i++ {
		row := indirect(v.Index(i))
		for j, col := range cols {
			if row.IsValid() {
				cells[j] = col.cell(row)
			} else {
				cells[j] = ""
			}
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	return nil
}

// column is one rendered struct field.
type column struct {
	name  string
	index int
	bytes bool
}

func (c column) cell(row reflect.Value) string {
	f := row.Field(c.index)
	if c.bytes {
		if s, ok := formatBytes(f); ok {
			return s
		}
	}
	return formatValue(f)
}

// columnsOf lists the fields of t visible in json output, named by their json
// tag. Fields named "size" or ending in "_bytes" or "_size" are byte counts.
func columnsOf(t reflect.Type) []column {
	var cols []column
	for i := 0; i < t.NumField(); i++ {
		name := fieldName(t.Field(i))
		if name == "" {
			continue
		}
		cols = append(cols, column{
			name:  name,
			index: i,
			bytes: name == "size" || strings.HasSuffix(name, "_bytes") || strings.HasSuffix(name, "_size"),
		})
	}
	return cols
}

// fieldName returns the json name of f, or "" for fields hidden from json.
func fieldName(f reflect.StructField) string {
	if !f.IsExported() {
		return ""
	}
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return strings.ToLower(f.Name)
	}
	return name
}

func formatBytes(v reflect.Value) (string, bool) {
	switch v.Kind() {
	case reflect.Int, reflect.Int32, reflect.Int64:
		if n := v.Int(); n >= 0 {
			return humanize.IBytes(uint64(n)), true
		}
	case reflect.Uint, reflect.Uint32, reflect.Uint64:
		return humanize.IBytes(v.Uint()), true
	}
	return "", false
}

func formatValue(v reflect.Value) string {
	v = indirect(v)
	if !v.IsValid() || !v.CanInterface() {
		return ""
	}
	if s, ok := v.Interface().(fmt.Stringer); ok {
		return s.String()
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		return fmt.Sprintf("{%d keys}", v.Len())
	case reflect.Struct:
		return "{...}"
	}
	return fmt.Sprintf("%v", v.Interface())
}

// indirect follows pointers and interfaces; nil yields the zero Value.
func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func sortedKeys(m reflect.Value) []reflect.Value {
	keys := m.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
	})
	return keys
}

// IsTerminal reports whether f is a terminal, including Cygwin and MSYS
// pseudo terminals on Windows.
func IsTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
