// Package ddl generates database specific DDL statements from xml schema descriptors.
package ddl

import (
	_ "embed"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
)

// Schema is an xml schema descriptor.
//
//	<schema>
//		<dialect name="h2" flavor="mysql" increment="AUTO_INCREMENT">
//			<type name="text">CLOB</type>
//		</dialect>
//		<table name="example">
//			<column name="id" type="serial" primary="true"/>
//			<column name="label" type="varchar" size="64" nullable="true"/>
//			<index name="example_label" columns="label"/>
//		</table>
//	</schema>
type Schema struct {
	XMLName  xml.Name      `xml:"schema"`
	Dialects []DialectSpec `xml:"dialect"`
	Tables   []Table       `xml:"table"`
}

// DialectSpec overrides or adds a dialect.
// Attributes left empty keep the values of the builtin dialect of the same name.
type DialectSpec struct {
	Name             string     `xml:"name,attr"`
	Flavor           string     `xml:"flavor,attr"`
	Increment        *string    `xml:"increment,attr"`
	IfNotExists      *bool      `xml:"ifNotExists,attr"`
	IndexIfNotExists *bool      `xml:"indexIfNotExists,attr"`
	Types            []TypeSpec `xml:"type"`
}

// TypeSpec maps an abstract type to a template.
type TypeSpec struct {
	Name     string `xml:"name,attr"`
	Template string `xml:",chardata"`
}

// Table describes a single table.
type Table struct {
	Name    string   `xml:"name,attr"`
	Columns []Column `xml:"column"`
	Indexes []Index  `xml:"index"`
}

// Column describes a column of a table.
type Column struct {
	Name     string `xml:"name,attr"`
	Type     string `xml:"type,attr"`
	Size     int    `xml:"size,attr"`
	Nullable bool   `xml:"nullable,attr"`
	Primary  bool   `xml:"primary,attr"`
	Default  string `xml:"default,attr"`
}

// Index describes an index on a table.
type Index struct {
	Name    string `xml:"name,attr"`
	Unique  bool   `xml:"unique,attr"`
	Columns string `xml:"columns,attr"` // comma-separated
}

// ColumnNames returns the names of the indexed columns.
func (index Index) ColumnNames() []string {
	names := strings.Split(index.Columns, ",")
	for i, name := range names {
		names[i] = strings.TrimSpace(name)
	}
	return names
}

// Table returns the table with the given name.
func (schema *Schema) Table(name string) (Table, bool) {
	for _, table := range schema.Tables {
		if table.Name == name {
			return table, true
		}
	}
	return Table{}, false
}

// Validate checks that the schema is well-formed.
func (schema *Schema) Validate() error {
	seen := make(map[string]struct{}, len(schema.Tables))
	for _, table := range schema.Tables {
		if table.Name == "" {
			return fmt.Errorf("%w: table without name", ErrInvalidSchema)
		}
		if _, ok := seen[table.Name]; ok {
			return fmt.Errorf("%w: duplicate table %q", ErrInvalidSchema, table.Name)
		}
		seen[table.Name] = struct{}{}

		if len(table.Columns) == 0 {
			return fmt.Errorf("%w: table %q has no columns", ErrInvalidSchema, table.Name)
		}

		columns := make(map[string]struct{}, len(table.Columns))
		for _, column := range table.Columns {
			if column.Name == "" || column.Type == "" {
				return fmt.Errorf("%w: table %q: column needs name and type", ErrInvalidSchema, table.Name)
			}
			columns[column.Name] = struct{}{}
		}
		for _, index := range table.Indexes {
			if index.Name == "" {
				return fmt.Errorf("%w: table %q: index without name", ErrInvalidSchema, table.Name)
			}
			for _, name := range index.ColumnNames() {
				if _, ok := columns[name]; !ok {
					return fmt.Errorf("%w: index %q references unknown column %q", ErrInvalidSchema, index.Name, name)
				}
			}
		}
	}
	return nil
}

// Parse reads a schema descriptor from r.
func Parse(r io.Reader) (*Schema, error) {
	var schema Schema
	if err := xml.NewDecoder(r).Decode(&schema); err != nil {
		return nil, fmt.Errorf("failed to decode schema: %w", err)
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	return &schema, nil
}

// ParseFile reads a schema descriptor from the file at path.
func ParseFile(path string) (*Schema, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

//go:embed schema.xml
var defaultSchema string

// Default returns the schema of the relational triplestore.
func Default() *Schema {
	schema, err := Parse(strings.NewReader(defaultSchema))
	if err != nil {
		panic("ddl: invalid embedded schema: " + err.Error())
	}
	return schema
}
