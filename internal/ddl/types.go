package ddl

// ColumnDef describes a single column in a table definition.
//
// Fields:
//   - Name: column name (unquoted; quoting happens at render time)
//   - SQLType: target SQL type (e.g., TEXT, DOUBLE PRECISION)
//   - Nullable: whether NULL is allowed
//   - PrimaryKey: whether the column is part of the primary key
//   - Default: raw default expression (e.g., CURRENT_TIMESTAMP)
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Default    string
}

// TableDef holds the fully-qualified table name (FQN) and an ordered list of
// columns. The FQN is expected in dotted form (e.g., "geo.imports").
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// Kind is a logical column type mapped to SQL by a Dialect.
type Kind int

const (
	// Key is bounded text usable in primary keys.
	Key Kind = iota
	Text
	Float
	Timestamp
	Geometry
)

// Dialect renders the logical schema for one SQL backend.
type Dialect struct {
	Name string
	// Quote quotes one identifier segment.
	Quote func(id string) string
	// Types maps every Kind to a SQL type.
	Types map[Kind]string
	// Guard wraps a CREATE TABLE statement so it is a no-op when the table
	// exists. The default prefixes IF NOT EXISTS.
	Guard func(quotedFQN, body string) string
	// NoSchemas drops the schema qualifier (SQLite).
	NoSchemas bool
}

// QuoteFQN quotes a possibly schema-qualified name segment by segment.
// Empty segments are ignored.
func (d Dialect) QuoteFQN(fqn string) string {
	var out []byte
	start := 0
	for i := 0; i <= len(fqn); i++ {
		if i < len(fqn) && fqn[i] != '.' {
			continue
		}
		if seg := fqn[start:i]; seg != "" {
			if len(out) > 0 {
				out = append(out, '.')
			}
			out = append(out, d.Quote(seg)...)
		}
		start = i + 1
	}
	return string(out)
}

// Table qualifies name with schema unless the dialect has no schemas.
func (d Dialect) Table(schema, name string) string {
	if schema == "" || d.NoSchemas {
		return name
	}
	return schema + "." + name
}

// DoubleQuote quotes an identifier ANSI style: "name", escaping embedded quotes.
func DoubleQuote(id string) string {
	out := make([]byte, 0, len(id)+2)
	out = append(out, '"')
	for i := 0; i < len(id); i++ {
		if id[i] == '"' {
			out = append(out, '"')
		}
		out = append(out, id[i])
	}
	return string(append(out, '"'))
}
