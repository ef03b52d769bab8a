// Package migrations embeds the rfbridge schema so the binary can migrate
// its database without the SQL files on disk.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed *.sql
var files embed.FS

// FS returns the embedded migration files, rooted at this directory.
func FS() fs.FS {
	return files
}
