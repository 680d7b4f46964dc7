package ddl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	schema := Default()

	nodes, ok := schema.Table("swb_nodes")
	require.True(t, ok)
	assert.Len(t, nodes.Columns, 6)

	quads, ok := schema.Table("swb_quads")
	require.True(t, ok)
	assert.Equal(t, []string{"predicate", "object"}, quads.Indexes[0].ColumnNames())
}

func TestGenerator_Create(t *testing.T) {
	gen, err := New(Default())
	require.NoError(t, err)

	assert.Equal(t, []string{"mysql", "postgres", "sqlite", "sqlserver"}, gen.Dialects())

	for _, tt := range []struct {
		dialect string
		want    []string
		notWant []string
	}{
		{
			dialect: "sqlite",
			want: []string{
				"CREATE TABLE IF NOT EXISTS swb_nodes",
				"id INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT",
				"hash VARCHAR(64) NOT NULL",
				"lang VARCHAR(32)",
				"PRIMARY KEY (graph, subject, predicate, object)",
				"CREATE UNIQUE INDEX IF NOT EXISTS swb_nodes_hash ON swb_nodes (hash)",
			},
			notWant: []string{"lang VARCHAR(32) NOT NULL"},
		},
		{
			dialect: "mysql",
			want: []string{
				"id BIGINT NOT NULL PRIMARY KEY AUTO_INCREMENT",
				"value LONGTEXT NOT NULL",
				"CREATE INDEX swb_quads_pos ON swb_quads (predicate, object)",
			},
			notWant: []string{"INDEX IF NOT EXISTS"},
		},
		{
			dialect: "postgres",
			want: []string{
				"id BIGSERIAL NOT NULL PRIMARY KEY",
				"CREATE INDEX IF NOT EXISTS swb_quads_osp ON swb_quads (object, subject)",
			},
		},
		{
			dialect: "sqlserver",
			want: []string{
				"CREATE TABLE swb_nodes",
				"id BIGINT NOT NULL PRIMARY KEY IDENTITY(1,1)",
				"value NVARCHAR(MAX) NOT NULL",
			},
			notWant: []string{"IF NOT EXISTS"},
		},
	} {
		t.Run(tt.dialect, func(t *testing.T) {
			stmts, err := gen.Create(tt.dialect)
			require.NoError(t, err)
			require.Len(t, stmts, 5)

			// tables come first
			assert.True(t, strings.HasPrefix(stmts[0], "CREATE TABLE"))
			assert.True(t, strings.HasPrefix(stmts[1], "CREATE TABLE"))

			all := strings.Join(stmts, "\n")
			for _, want := range tt.want {
				assert.Contains(t, all, want)
			}
			for _, notWant := range tt.notWant {
				assert.NotContains(t, all, notWant)
			}
		})
	}
}

func TestGenerator_Drop(t *testing.T) {
	gen, err := New(Default())
	require.NoError(t, err)

	stmts, err := gen.Drop("postgres")
	require.NoError(t, err)
	assert.Equal(t, []string{"DROP TABLE IF EXISTS swb_quads", "DROP TABLE IF EXISTS swb_nodes"}, stmts)
}

func TestGenerator_UnknownDialect(t *testing.T) {
	gen, err := New(Default())
	require.NoError(t, err)

	_, err = gen.Create("oracle")
	assert.ErrorIs(t, err, ErrUnknownDialect)

	_, err = gen.Drop("oracle")
	assert.ErrorIs(t, err, ErrUnknownDialect)
}

const customSchema = `<schema>
	<dialect name="h2" flavor="mysql" increment="AUTO_INCREMENT" ifNotExists="false">
		<type name="text">CLOB</type>
	</dialect>
	<dialect name="sqlite">
		<type name="timestamp">TEXT</type>
	</dialect>
	<table name="log">
		<column name="id" type="serial" primary="true"/>
		<column name="message" type="text"/>
		<column name="at" type="timestamp" default="CURRENT_TIMESTAMP"/>
	</table>
</schema>`

func TestGenerator_CustomDialects(t *testing.T) {
	schema, err := Parse(strings.NewReader(customSchema))
	require.NoError(t, err)

	gen, err := New(schema)
	require.NoError(t, err)

	stmts, err := gen.Create("h2")
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	assert.Contains(t, stmts[0], "CREATE TABLE log")
	assert.Contains(t, stmts[0], "message CLOB NOT NULL")
	assert.Contains(t, stmts[0], "at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP")

	stmts, err = gen.Create("sqlite")
	require.NoError(t, err)
	assert.Contains(t, stmts[0], "at TEXT NOT NULL")

	// overrides do not leak into other generators
	other, err := New(Default())
	require.NoError(t, err)
	dialect, err := other.Dialect("sqlite")
	require.NoError(t, err)
	assert.Equal(t, "TIMESTAMP", dialect.Types["timestamp"])
}

func TestParse_Invalid(t *testing.T) {
	for name, src := range map[string]string{
		"no columns":     `<schema><table name="t"/></schema>`,
		"unknown column": `<schema><table name="t"><column name="a" type="int"/><index name="i" columns="b"/></table></schema>`,
		"duplicate":      `<schema><table name="t"><column name="a" type="int"/></table><table name="t"><column name="a" type="int"/></table></schema>`,
	} {
		_, err := Parse(strings.NewReader(src))
		assert.ErrorIs(t, err, ErrInvalidSchema, name)
	}
}

func TestGenerator_Objects(t *testing.T) {
	gen, err := New(Default())
	require.NoError(t, err)

	objects, err := gen.Objects("mysql")
	require.NoError(t, err)
	require.Len(t, objects, 5)

	assert.Equal(t, KindTable, objects[0].Kind)
	assert.True(t, objects[0].Guarded)

	index := objects[2]
	assert.Equal(t, KindIndex, index.Kind)
	assert.Equal(t, "swb_nodes", index.Table)
	assert.Equal(t, "swb_nodes_hash", index.Name)
	assert.False(t, index.Guarded)

	dialect, err := gen.Dialect("mysql")
	require.NoError(t, err)
	query, args := dialect.Exists(index)
	assert.Contains(t, query, "information_schema.statistics")
	assert.Equal(t, []any{"swb_nodes", "swb_nodes_hash"}, args)

	dialect, err = gen.Dialect("sqlserver")
	require.NoError(t, err)
	query, args = dialect.Exists(index)
	assert.Contains(t, query, "sys.indexes")
	assert.Equal(t, []any{"swb_nodes_hash", "swb_nodes"}, args)

	dialect, err = gen.Dialect("sqlite")
	require.NoError(t, err)
	query, args = dialect.Exists(objects[0])
	assert.Contains(t, query, "sqlite_master")
	assert.Equal(t, []any{"table", "swb_nodes"}, args)
}
