package database

import (
	"errors"
	"fmt"
	"strings"

	migrate "github.com/golang-migrate/migrate/v4"
	// Register the mysql database driver and the file source for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// RunMigrations applies the SQL files in dir to the mysql database at dsn.
func RunMigrations(dsn, dir string) error {
	m, err := migrate.New("file://"+dir, MigrateURL(dsn))
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// MigrationVersion reports the applied version and whether the last run left the schema dirty.
func MigrationVersion(dsn, dir string) (uint, bool, error) {
	m, err := migrate.New("file://"+dir, MigrateURL(dsn))
	if err != nil {
		return 0, false, err
	}
	defer m.Close()

	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// MigrateURL turns a go-sql-driver DSN (user:pass@tcp(host)/db?x=y) into the
// mysql:// URL golang-migrate expects, enabling multi statements.
func MigrateURL(dsn string) string {
	if strings.HasPrefix(dsn, "mysql://") {
		return dsn
	}
	u := "mysql://" + dsn
	if !strings.Contains(u, "multiStatements=") {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u = fmt.Sprintf("%s%smultiStatements=true", u, sep)
	}
	return u
}
