// Package all wires the built-in storage backends into the storage factory.
//
// It exists for side effects only: importing it runs the init function of
// each backend, which registers its factory. After
//
//	import _ "geoetl/internal/storage/all"
//
// storage.New accepts the kinds "memory", "postgres", "sqlite", "mssql" and
// "mysql". A binary that needs only a subset can import those backend
// packages directly instead.
package all

import (
	_ "geoetl/internal/storage/memory"
	_ "geoetl/internal/storage/mssql"
	_ "geoetl/internal/storage/mysql"
	_ "geoetl/internal/storage/postgres"
	_ "geoetl/internal/storage/sqlite"
)
