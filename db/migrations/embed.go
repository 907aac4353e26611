// Package migrations embeds the goose SQL migrations so binaries do not depend on the working directory.
package migrations

import "embed"

//go:embed sql/*.sql
var FS embed.FS

// Dir is the directory inside FS holding the migrations.
const Dir = "sql"
