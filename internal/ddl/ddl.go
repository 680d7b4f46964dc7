package ddl

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/huandu/go-sqlbuilder"
)

var (
	ErrUnknownDialect = errors.New("ddl: unknown dialect")
	ErrUnknownType    = errors.New("ddl: unknown column type")
	ErrInvalidSchema  = errors.New("ddl: invalid schema")
)

// Dialect holds the substitutions used to render a schema for a single database.
type Dialect struct {
	Name   string
	Flavor sqlbuilder.Flavor

	// Types maps abstract column types to templates.
	// The placeholder ${size} is replaced by the size of the column.
	Types map[string]string

	// Increment is appended to the definition of serial primary keys.
	Increment string

	// IfNotExists and IndexIfNotExists indicate support for "IF NOT EXISTS"
	// when creating tables and indexes respectively.
	IfNotExists      bool
	IndexIfNotExists bool
}

// defaultSizes are used for columns that do not specify a size
var defaultSizes = map[string]int{
	"varchar": 255,
}

var builtinDialects = map[string]Dialect{
	"sqlite": {
		Name:   "sqlite",
		Flavor: sqlbuilder.SQLite,
		Types: map[string]string{
			"serial":    "INTEGER",
			"id":        "INTEGER",
			"int":       "INTEGER",
			"bigint":    "INTEGER",
			"text":      "TEXT",
			"varchar":   "VARCHAR(${size})",
			"boolean":   "INTEGER",
			"timestamp": "TIMESTAMP",
		},
		Increment:        "AUTOINCREMENT",
		IfNotExists:      true,
		IndexIfNotExists: true,
	},
	"mysql": {
		Name:   "mysql",
		Flavor: sqlbuilder.MySQL,
		Types: map[string]string{
			"serial":    "BIGINT",
			"id":        "BIGINT",
			"int":       "INT",
			"bigint":    "BIGINT",
			"text":      "LONGTEXT",
			"varchar":   "VARCHAR(${size})",
			"boolean":   "TINYINT(1)",
			"timestamp": "DATETIME",
		},
		Increment:   "AUTO_INCREMENT",
		IfNotExists: true,
	},
	"postgres": {
		Name:   "postgres",
		Flavor: sqlbuilder.PostgreSQL,
		Types: map[string]string{
			"serial":    "BIGSERIAL",
			"id":        "BIGINT",
			"int":       "INTEGER",
			"bigint":    "BIGINT",
			"text":      "TEXT",
			"varchar":   "VARCHAR(${size})",
			"boolean":   "BOOLEAN",
			"timestamp": "TIMESTAMP",
		},
		IfNotExists:      true,
		IndexIfNotExists: true,
	},
	"sqlserver": {
		Name:   "sqlserver",
		Flavor: sqlbuilder.SQLServer,
		Types: map[string]string{
			"serial":    "BIGINT",
			"id":        "BIGINT",
			"int":       "INT",
			"bigint":    "BIGINT",
			"text":      "NVARCHAR(MAX)",
			"varchar":   "NVARCHAR(${size})",
			"boolean":   "BIT",
			"timestamp": "DATETIME2",
		},
		Increment: "IDENTITY(1,1)",
	},
}

var flavors = map[string]sqlbuilder.Flavor{
	"sqlite":    sqlbuilder.SQLite,
	"mysql":     sqlbuilder.MySQL,
	"postgres":  sqlbuilder.PostgreSQL,
	"sqlserver": sqlbuilder.SQLServer,
}

// Generator renders a schema for any known dialect.
type Generator struct {
	Schema   *Schema
	dialects map[string]Dialect
}

// New creates a generator for schema.
// Dialects declared in the schema are merged into the builtin ones.
func New(schema *Schema) (*Generator, error) {
	dialects := make(map[string]Dialect, len(builtinDialects))
	for name, dialect := range builtinDialects {
		dialect.Types = maps.Clone(dialect.Types)
		dialects[name] = dialect
	}

	for _, decl := range schema.Dialects {
		if decl.Name == "" {
			return nil, fmt.Errorf("%w: dialect without name", ErrInvalidSchema)
		}

		dialect, ok := dialects[decl.Name]
		if !ok {
			dialect = Dialect{Name: decl.Name, Flavor: sqlbuilder.DefaultFlavor, Types: make(map[string]string)}
		}
		if decl.Flavor != "" {
			flavor, ok := flavors[decl.Flavor]
			if !ok {
				return nil, fmt.Errorf("%w: dialect %q: unknown flavor %q", ErrInvalidSchema, decl.Name, decl.Flavor)
			}
			dialect.Flavor = flavor

			// inherit the types of the flavor
			for name, template := range builtinDialects[decl.Flavor].Types {
				if _, ok := dialect.Types[name]; !ok {
					dialect.Types[name] = template
				}
			}
		}
		if decl.Increment != nil {
			dialect.Increment = *decl.Increment
		}
		if decl.IfNotExists != nil {
			dialect.IfNotExists = *decl.IfNotExists
		}
		if decl.IndexIfNotExists != nil {
			dialect.IndexIfNotExists = *decl.IndexIfNotExists
		}
		for _, tp := range decl.Types {
			dialect.Types[tp.Name] = strings.TrimSpace(tp.Template)
		}
		dialects[decl.Name] = dialect
	}

	return &Generator{Schema: schema, dialects: dialects}, nil
}

// Dialects returns the names of all known dialects in sorted order.
func (gen *Generator) Dialects() []string {
	return slices.Sorted(maps.Keys(gen.dialects))
}

// Dialect returns the dialect with the given name.
func (gen *Generator) Dialect(name string) (Dialect, error) {
	dialect, ok := gen.dialects[name]
	if !ok {
		return Dialect{}, fmt.Errorf("%w: %q", ErrUnknownDialect, name)
	}
	return dialect, nil
}

// ColumnType renders the type of column in this dialect.
func (dialect Dialect) ColumnType(column Column) (string, error) {
	template, ok := dialect.Types[column.Type]
	if !ok {
		return "", fmt.Errorf("%w: %q in dialect %q", ErrUnknownType, column.Type, dialect.Name)
	}

	size := column.Size
	if size <= 0 {
		size = defaultSizes[column.Type]
	}
	return strings.ReplaceAll(template, "${size}", strconv.Itoa(size)), nil
}

// CreateTable renders the CREATE TABLE statement for table.
func (dialect Dialect) CreateTable(table Table) (string, error) {
	builder := dialect.Flavor.NewCreateTableBuilder().CreateTable(table.Name)
	if dialect.IfNotExists {
		builder.IfNotExists()
	}

	var primary []string
	for _, column := range table.Columns {
		if column.Primary {
			primary = append(primary, column.Name)
		}
	}

	for _, column := range table.Columns {
		tp, err := dialect.ColumnType(column)
		if err != nil {
			return "", fmt.Errorf("table %q: %w", table.Name, err)
		}

		def := []string{column.Name, tp}
		if !column.Nullable {
			def = append(def, "NOT NULL")
		}
		if column.Default != "" {
			def = append(def, "DEFAULT", column.Default)
		}
		if len(primary) == 1 && column.Primary {
			def = append(def, "PRIMARY KEY")
			if column.Type == "serial" && dialect.Increment != "" {
				def = append(def, dialect.Increment)
			}
		}
		builder.Define(def...)
	}

	if len(primary) > 1 {
		builder.Define("PRIMARY KEY", "("+strings.Join(primary, ", ")+")")
	}
	return builder.String(), nil
}

// CreateIndex renders the CREATE INDEX statement for index on table.
func (dialect Dialect) CreateIndex(table Table, index Index) string {
	var builder strings.Builder
	builder.WriteString("CREATE ")
	if index.Unique {
		builder.WriteString("UNIQUE ")
	}
	builder.WriteString("INDEX ")
	if dialect.IndexIfNotExists {
		builder.WriteString("IF NOT EXISTS ")
	}
	builder.WriteString(index.Name)
	builder.WriteString(" ON ")
	builder.WriteString(table.Name)
	builder.WriteString(" (")
	builder.WriteString(strings.Join(index.ColumnNames(), ", "))
	builder.WriteString(")")
	return builder.String()
}

// Kind is the kind of a schema object.
type Kind string

const (
	KindTable Kind = "table"
	KindIndex Kind = "index"
)

// Object is a table or index of a schema together with the statement creating it.
type Object struct {
	Kind  Kind
	Table string
	Name  string
	Stmt  string

	// Guarded is true when Stmt does nothing if the object already exists.
	Guarded bool
}

// Objects returns the objects of the schema in the named dialect.
// All tables come before any index.
func (gen *Generator) Objects(name string) ([]Object, error) {
	dialect, err := gen.Dialect(name)
	if err != nil {
		return nil, err
	}

	var tables, indexes []Object
	for _, table := range gen.Schema.Tables {
		stmt, err := dialect.CreateTable(table)
		if err != nil {
			return nil, err
		}
		tables = append(tables, Object{Kind: KindTable, Table: table.Name, Name: table.Name, Stmt: stmt, Guarded: dialect.IfNotExists})

		for _, index := range table.Indexes {
			indexes = append(indexes, Object{Kind: KindIndex, Table: table.Name, Name: index.Name, Stmt: dialect.CreateIndex(table, index), Guarded: dialect.IndexIfNotExists})
		}
	}
	return append(tables, indexes...), nil
}

// Create returns the statements creating the schema in the named dialect.
// All tables are created before any index.
func (gen *Generator) Create(name string) ([]string, error) {
	objects, err := gen.Objects(name)
	if err != nil {
		return nil, err
	}
	stmts := make([]string, len(objects))
	for i, object := range objects {
		stmts[i] = object.Stmt
	}
	return stmts, nil
}

// Exists builds a query returning the number of objects matching object in the current database.
func (dialect Dialect) Exists(object Object) (string, []any) {
	sb := dialect.Flavor.NewSelectBuilder()
	sb.Select("COUNT(*)")

	switch {
	case dialect.Flavor == sqlbuilder.SQLite:
		sb.From("sqlite_master").Where(sb.Equal("type", string(object.Kind)), sb.Equal("name", object.Name))
	case dialect.Flavor == sqlbuilder.PostgreSQL && object.Kind == KindIndex:
		sb.From("pg_indexes").Where("schemaname = current_schema()", sb.Equal("indexname", object.Name))
	case dialect.Flavor == sqlbuilder.PostgreSQL:
		sb.From("information_schema.tables").Where("table_schema = current_schema()", sb.Equal("table_name", object.Name))
	case dialect.Flavor == sqlbuilder.SQLServer && object.Kind == KindIndex:
		sb.From("sys.indexes").Where(sb.Equal("name", object.Name), "object_id = OBJECT_ID("+sb.Var(object.Table)+")")
	case dialect.Flavor == sqlbuilder.SQLServer:
		sb.From("sys.tables").Where(sb.Equal("name", object.Name))
	case object.Kind == KindIndex:
		sb.From("information_schema.statistics").Where("table_schema = DATABASE()", sb.Equal("table_name", object.Table), sb.Equal("index_name", object.Name))
	default:
		sb.From("information_schema.tables").Where("table_schema = DATABASE()", sb.Equal("table_name", object.Name))
	}
	return sb.Build()
}

// Drop returns the statements dropping the schema in the named dialect.
// Tables are dropped in reverse order of declaration.
func (gen *Generator) Drop(name string) ([]string, error) {
	if _, err := gen.Dialect(name); err != nil {
		return nil, err
	}

	stmts := make([]string, 0, len(gen.Schema.Tables))
	for _, table := range slices.Backward(gen.Schema.Tables) {
		stmts = append(stmts, "DROP TABLE IF EXISTS "+table.Name)
	}
	return stmts, nil
}
