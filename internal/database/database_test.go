package database

import (
	"strings"
	"testing"

	"github.com/allureimpex/allure-impex-api/internal/config"
)

func TestMySQLDSN(t *testing.T) {
	dsn := MySQLDSN(config.MySQLConfig{User: "app", Pass: "pw", Host: "db", Port: "3306", Name: "allure"})
	for _, want := range []string{"app:pw@tcp(db:3306)/allure", "parseTime=true", "multiStatements=true", "charset=utf8mb4"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("dsn %q missing %q", dsn, want)
		}
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatal(err)
	}
	var up, down int
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			up++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			down++
		}
	}
	if up == 0 || up != down {
		t.Errorf("up=%d down=%d", up, down)
	}
}
