package migrations

import "embed"

// FS embeds the SQL migration files for both storage dialects. Each backend
// reads its own subdirectory (postgres/ or sqlite/).
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
