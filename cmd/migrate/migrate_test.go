package main

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrationFiles(t *testing.T) {
	dir := filepath.Join("..", "..", "migrations")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups := make(map[string]bool)
	downs := make(map[string]bool)
	var versions []string
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			base := strings.TrimSuffix(name, ".up.sql")
			ups[base] = true
			versions = append(versions, strings.SplitN(base, "_", 2)[0])
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected file in migrations dir: %s", name)
		}
	}

	t.Run("every up has a down", func(t *testing.T) {
		for base := range ups {
			require.True(t, downs[base], "missing down migration for %s", base)
		}
		for base := range downs {
			require.True(t, ups[base], "missing up migration for %s", base)
		}
	})

	t.Run("versions are unique and ordered", func(t *testing.T) {
		sort.Strings(versions)
		for i := 1; i < len(versions); i++ {
			require.NotEqual(t, versions[i-1], versions[i], "duplicate migration version")
		}
	})

	t.Run("files are non-empty", func(t *testing.T) {
		for _, e := range entries {
			content, err := os.ReadFile(filepath.Join(dir, e.Name()))
			require.NoError(t, err)
			require.NotEmpty(t, strings.TrimSpace(string(content)), "empty migration %s", e.Name())
		}
	})
}
