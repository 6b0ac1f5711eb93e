package migrate

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// DefaultDir is where new migration files are written in a checkout.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Source returns the migration set to run. An empty dir selects the set
// compiled into the binary; anything else is read from disk.
func Source(dir string) (fs.FS, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return fs.Sub(embedded, "migrations")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("migrations dir %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("migrations dir %q is not a directory", dir)
	}
	return os.DirFS(dir), nil
}
