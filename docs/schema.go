package docs

import _ "embed"

// Schema is the DDL of the users table the service expects.
//
//go:embed schema.sql
var Schema string
