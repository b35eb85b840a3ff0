package migrations

import "embed"

// PostgresFS holds the PostgreSQL schema files, applied in lexical
// filename order by RunPostgresMigrations.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS holds the ClickHouse schema files, applied in lexical
// filename order by RunClickhouseMigrations.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
