package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDBConfigDSN(t *testing.T) {
	cfg := DBConfig{Host: "db", Port: 5433, User: "u", Password: "p", DBName: "payments"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=payments sslmode=disable", cfg.DSN())

	cfg.SSLMode = "require"
	assert.Contains(t, cfg.DSN(), "sslmode=require")
}
