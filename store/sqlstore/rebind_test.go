package sqlstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRebind(t *testing.T) {
	q := `SELECT a FROM t WHERE x = ? AND y IN (?, ?)`

	pg := &conn{dialect: DialectPostgres}
	lite := &conn{dialect: DialectSQLite}

	assert.Equal(t, `SELECT a FROM t WHERE x = $1 AND y IN ($2, $3)`, pg.rebind(q))
	assert.Equal(t, q, lite.rebind(q))
	assert.Equal(t, "?, ?, ?", placeholders(3))
}

func TestOpen_RejectsUnknownDialect(t *testing.T) {
	_, err := Open("mysql", "whatever")
	assert.Error(t, err)
}
