// Package mapping loads the declarative column mapping that drives every
// migration run.
package mapping

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var requiredHeaders = []string{"migration_name", "source_table", "source_column", "target_table", "target_column"}

type ConfigError struct {
	Path string
	Msg  string
	Err  error
}

func (e *ConfigError) Error() string {
	prefix := "mapping config"
	if e.Path != "" {
		prefix += " " + e.Path
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Msg, e.Err)
	}
	return prefix + ": " + e.Msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

type Column struct {
	Source string
	Target string
}

// Migration is every mapping row sharing one migration_name. The first row
// decides the source and target tables.
type Migration struct {
	Name        string
	SourceTable string
	TargetTable string
	Columns     []Column
}

func (m Migration) SourceColumns() []string {
	out := make([]string, len(m.Columns))
	for i, c := range m.Columns {
		out[i] = c.Source
	}
	return out
}

type Config struct {
	order  []string
	byName map[string]*Migration
}

// Names lists migrations in first-seen order.
func (c *Config) Names() []string { return append([]string(nil), c.order...) }

func (c *Config) Get(name string) (Migration, bool) {
	m, ok := c.byName[name]
	if !ok {
		return Migration{}, false
	}
	return *m, true
}

func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Msg: "open", Err: err}
	}
	defer f.Close()
	cfg, err := Load(f)
	var ce *ConfigError
	if errors.As(err, &ce) {
		ce.Path = path
	}
	return cfg, err
}

func Load(r io.Reader) (*Config, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, &ConfigError{Msg: "read header", Err: err}
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	var missing []string
	for _, h := range requiredHeaders {
		if _, ok := idx[h]; !ok {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return nil, &ConfigError{Msg: "missing required headers " + strings.Join(missing, ", ")}
	}

	cfg := &Config{byName: map[string]*Migration{}}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ConfigError{Msg: fmt.Sprintf("line %d", line), Err: err}
		}
		field := func(h string) string {
			if i := idx[h]; i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}
		name := field("migration_name")
		if name == "" {
			continue
		}
		m, ok := cfg.byName[name]
		if !ok {
			m = &Migration{Name: name, SourceTable: field("source_table"), TargetTable: field("target_table")}
			cfg.byName[name] = m
			cfg.order = append(cfg.order, name)
		}
		m.Columns = append(m.Columns, Column{Source: field("source_column"), Target: field("target_column")})
	}
	return cfg, nil
}
