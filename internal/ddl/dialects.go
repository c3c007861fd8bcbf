package ddl

import (
	"fmt"
	"strings"
)

// Postgres uses PostGIS for geometry.
var Postgres = Dialect{
	Name:  "postgres",
	Quote: DoubleQuote,
	Types: map[Kind]string{
		Key:       "TEXT",
		Text:      "TEXT",
		Float:     "DOUBLE PRECISION",
		Timestamp: "TIMESTAMPTZ",
		Geometry:  "geometry(Geometry, 4326)",
	},
}

// SQLite stores geometry as WKB blobs.
var SQLite = Dialect{
	Name:  "sqlite",
	Quote: DoubleQuote,
	Types: map[Kind]string{
		Key:       "TEXT",
		Text:      "TEXT",
		Float:     "REAL",
		Timestamp: "TEXT",
		Geometry:  "BLOB",
	},
	NoSchemas: true,
}

// MSSQL wraps CREATE TABLE in an OBJECT_ID guard since T-SQL has no
// CREATE TABLE IF NOT EXISTS. Keys are NVARCHAR(100) so a four-column
// clustered primary key stays under 900 bytes.
var MSSQL = Dialect{
	Name: "mssql",
	Quote: func(id string) string {
		return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
	},
	Types: map[Kind]string{
		Key:       "NVARCHAR(100)",
		Text:      "NVARCHAR(MAX)",
		Float:     "FLOAT",
		Timestamp: "DATETIME2",
		Geometry:  "GEOMETRY",
	},
	Guard: func(quotedFQN, body string) string {
		return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL\nBEGIN\n  %s;\nEND;", quotedFQN, body)
	},
}

// MySQL keys are VARCHAR(191) so a four-column utf8mb4 primary key stays
// under the 3072 byte index limit.
var MySQL = Dialect{
	Name: "mysql",
	Quote: func(id string) string {
		return "`" + strings.ReplaceAll(id, "`", "``") + "`"
	},
	Types: map[Kind]string{
		Key:       "VARCHAR(191)",
		Text:      "LONGTEXT",
		Float:     "DOUBLE",
		Timestamp: "DATETIME",
		Geometry:  "GEOMETRY",
	},
}
