// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init functions of each concrete backend, which register
// their factories and DDL bootstrappers with the storage package.
//
// Importing this package makes the following storage kinds available:
//
//   - "postgres" (dex/internal/storage/postgres)
//   - "sqlite"   (dex/internal/storage/sqlite)
//   - "mssql"    (dex/internal/storage/mssql)
//   - "mysql"    (dex/internal/storage/mysql)
//
// Binaries that need only a subset can blank-import the individual backend
// packages instead.
package all

import (
	_ "dex/internal/storage/mssql"
	_ "dex/internal/storage/mysql"
	_ "dex/internal/storage/postgres"
	_ "dex/internal/storage/sqlite"
)
