package ddl

import "fmt"

// Table names of the data store.
const (
	Imports         = "imports"
	Columns         = "columns"
	Geographies     = "geographies"
	GeoAttributes   = "geo_attributes"
	LocalityMembers = "locality_members"
)

type column struct {
	name     string
	kind     Kind
	nullable bool
	pk       bool
	def      string
}

type table struct {
	name    string
	columns []column
}

var schema = []table{
	{Imports, []column{
		{name: "id", kind: Key, pk: true},
		{name: "namespace", kind: Key},
		{name: "notes", kind: Text},
		{name: "created_at", kind: Timestamp, def: "CURRENT_TIMESTAMP"},
	}},
	{Columns, []column{
		{name: "name", kind: Key, pk: true},
	}},
	{Geographies, []column{
		{name: "namespace", kind: Key, pk: true},
		{name: "layer", kind: Key, pk: true},
		{name: "geoid", kind: Key, pk: true},
		{name: "name", kind: Text, nullable: true},
		{name: "geometry", kind: Geometry},
		{name: "internal_point_lon", kind: Float},
		{name: "internal_point_lat", kind: Float},
		{name: "land_area", kind: Float},
		{name: "water_area", kind: Float},
		{name: "classification", kind: Key},
		{name: "import_id", kind: Key},
	}},
	{GeoAttributes, []column{
		{name: "namespace", kind: Key, pk: true},
		{name: "layer", kind: Key, pk: true},
		{name: "geoid", kind: Key, pk: true},
		{name: "column_name", kind: Key, pk: true},
		{name: "value", kind: Text, nullable: true},
	}},
	{LocalityMembers, []column{
		{name: "namespace", kind: Key, pk: true},
		{name: "layer", kind: Key, pk: true},
		{name: "locality", kind: Key, pk: true},
		{name: "geoid", kind: Key, pk: true},
	}},
}

// Schema returns the table definitions for d, qualified with schemaName.
func Schema(d Dialect, schemaName string) ([]TableDef, error) {
	out := make([]TableDef, 0, len(schema))
	for _, t := range schema {
		td := TableDef{FQN: d.Table(schemaName, t.name)}
		for _, c := range t.columns {
			typ, ok := d.Types[c.kind]
			if !ok {
				return nil, fmt.Errorf("%s ddl: no SQL type for %s.%s", d.Name, t.name, c.name)
			}
			td.Columns = append(td.Columns, ColumnDef{
				Name:       c.name,
				SQLType:    typ,
				Nullable:   c.nullable,
				PrimaryKey: c.pk,
				Default:    c.def,
			})
		}
		out = append(out, td)
	}
	return out, nil
}

// Statements renders every table of the schema for d.
func Statements(d Dialect, schemaName string) ([]string, error) {
	defs, err := Schema(d, schemaName)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(defs))
	for _, td := range defs {
		stmt, err := BuildCreateTableSQL(d, td)
		if err != nil {
			return nil, err
		}
		out = append(out, stmt)
	}
	return out, nil
}
