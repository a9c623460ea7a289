package db

import _ "embed"

// SchemaSQL is the table definition for ingested records. The test store
// applies it so integration tests run against a fresh database; production
// deploys run it out of band.
//
//go:embed schema.sql
var SchemaSQL string
