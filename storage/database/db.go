// Package database connects to the gradebook PostgreSQL database, provisions it and applies its migrations.
package database

import (
	"context"
	"database/sql"
	"net/url"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/trezcool/goose"

	"github.com/trezcool/gradebook/core"
	appfs "github.com/trezcool/gradebook/fs"
)

const (
	migrationsDir = "migrations"
	pingAttempts  = 30
)

// dsn builds the connection URL of dbName, as the admin role when asked & configured.
func dsn(conf *core.Config, dbName string, admin bool) string {
	db := conf.Database
	user := url.UserPassword(db.User, db.Password)
	if admin && db.AdminUser != "" {
		user = url.UserPassword(db.AdminUser, db.AdminPassword)
	}

	q := make(url.Values)
	q.Set("sslmode", "require")
	if db.DisableTLS {
		q.Set("sslmode", "disable")
	}
	q.Set("timezone", "utc")
	if conf.AppName != "" {
		q.Set("application_name", conf.AppName)
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     user,
		Host:     db.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func Open(conf *core.Config) (*sql.DB, error) {
	return sql.Open("postgres", dsn(conf, conf.Database.Name, false))
}

// waitReady pings the server until it answers, backing off 100ms more after each failed attempt.
func waitReady(ctx context.Context, db *sql.DB) error {
	var err error
	for attempt := 1; attempt <= pingAttempts; attempt++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
		}
	}
	return errors.Wrapf(err, "gradebook DB not ready after %d attempts", pingAttempts)
}

func exists(ctx context.Context, db *sql.DB, query string, arg string) (bool, error) {
	var found bool
	err := db.QueryRowContext(ctx, query, arg).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return found, err
}

// ensureRole creates the login role of the app, allowed to create the gradebook DB.
func ensureRole(ctx context.Context, db *sql.DB, conf *core.Config) error {
	name := conf.Database.User
	if name == "" {
		return nil
	}

	found, err := exists(ctx, db, `SELECT true FROM pg_roles WHERE rolname = $1`, name)
	if err != nil {
		return errors.Wrapf(err, "looking up role %q", name)
	}
	if found {
		return nil
	}
	// DDL takes no bind parameters
	q := `CREATE ROLE ` + pq.QuoteIdentifier(name) + ` LOGIN CREATEDB ENCRYPTED PASSWORD ` + pq.QuoteLiteral(conf.Database.Password)
	if _, err = db.ExecContext(ctx, q); err != nil {
		return errors.Wrapf(err, "creating role %q", name)
	}
	return nil
}

func ensureDatabase(ctx context.Context, db *sql.DB, name string) error {
	found, err := exists(ctx, db, `SELECT true FROM pg_database WHERE datname = $1`, name)
	if err != nil {
		return errors.Wrapf(err, "looking up database %q", name)
	}
	if found {
		return nil
	}
	if _, err = db.ExecContext(ctx, `CREATE DATABASE `+pq.QuoteIdentifier(name)); err != nil {
		return errors.Wrapf(err, "creating database %q", name)
	}
	return nil
}

// CreateIfNotExist provisions the app role (as the admin role) and the gradebook DB (owned by the app role).
func CreateIfNotExist(conf *core.Config) error {
	ctx := context.Background()

	admin, err := sql.Open("postgres", dsn(conf, "postgres", true))
	if err != nil {
		return errors.Wrap(err, "connecting as admin")
	}
	defer func() { _ = admin.Close() }()
	if err = waitReady(ctx, admin); err != nil {
		return err
	}
	if err = ensureRole(ctx, admin, conf); err != nil {
		return err
	}

	app, err := sql.Open("postgres", dsn(conf, "postgres", false))
	if err != nil {
		return errors.Wrap(err, "connecting as app")
	}
	defer func() { _ = app.Close() }()
	return ensureDatabase(ctx, app, conf.Database.Name)
}

// Migrate applies the pending migrations and returns the resulting schema version.
func Migrate(db *sql.DB) (int64, error) {
	if err := goose.SetDialect("postgres"); err != nil {
		return 0, errors.Wrap(err, "setting migration dialect")
	}
	if err := goose.Up(db, appfs.FS, migrationsDir); err != nil {
		return 0, errors.Wrap(err, "migrating gradebook DB")
	}
	version, err := goose.GetDBVersion(db)
	return version, errors.Wrap(err, "reading schema version")
}
