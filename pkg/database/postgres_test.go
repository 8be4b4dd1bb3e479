package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/uni-portal/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5432, User: "portal", Password: "pw", Name: "portal", SSLMode: "disable"})
	assert.Equal(t, "host=db port=5432 user=portal password=pw dbname=portal sslmode=disable", dsn)
}
