package database

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/gradebook/core"
)

func Test_dsn(t *testing.T) {
	conf := &core.Config{
		AppName: "Gradebook",
		Database: core.DatabaseConfig{
			Host:          "db",
			Port:          "5432",
			Name:          "gradebook",
			User:          "app",
			Password:      "p@ss word",
			AdminUser:     "postgres",
			AdminPassword: "root",
		},
	}

	tests := []struct {
		name       string
		dbName     string
		admin      bool
		disableTLS bool
		noAdmin    bool
		wantUser   string
		wantPwd    string
		wantSSL    string
	}{
		{name: "app", dbName: "gradebook", wantUser: "app", wantPwd: "p@ss word", wantSSL: "require"},
		{name: "admin", dbName: "postgres", admin: true, wantUser: "postgres", wantPwd: "root", wantSSL: "require"},
		{name: "admin not configured", dbName: "postgres", admin: true, noAdmin: true, wantUser: "app", wantPwd: "p@ss word", wantSSL: "require"},
		{name: "tls disabled", dbName: "gradebook", disableTLS: true, wantUser: "app", wantPwd: "p@ss word", wantSSL: "disable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *conf
			c.Database.DisableTLS = tt.disableTLS
			if tt.noAdmin {
				c.Database.AdminUser = ""
			}

			u, err := url.Parse(dsn(&c, tt.dbName, tt.admin))
			require.NoError(t, err)
			assert.Equal(t, "postgres", u.Scheme)
			assert.Equal(t, "db:5432", u.Host)
			assert.Equal(t, "/"+tt.dbName, u.Path)
			assert.Equal(t, tt.wantUser, u.User.Username())
			pwd, _ := u.User.Password()
			assert.Equal(t, tt.wantPwd, pwd)

			q := u.Query()
			assert.Equal(t, tt.wantSSL, q.Get("sslmode"))
			assert.Equal(t, "utc", q.Get("timezone"))
			assert.Equal(t, "Gradebook", q.Get("application_name"))
		})
	}
}
