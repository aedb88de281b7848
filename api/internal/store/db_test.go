package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDSN(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PGHOST", "")
	assert.Empty(t, ResolveDSN())

	t.Setenv("PGHOST", "db")
	t.Setenv("POSTGRES_PASSWORD", "s3cret")
	t.Setenv("POSTGRES_USER", "")
	t.Setenv("POSTGRES_DB", "")
	t.Setenv("PGPORT", "")
	assert.Equal(t, "postgres://whiteboard:s3cret@db:5432/whiteboard?sslmode=disable", ResolveDSN())

	t.Setenv("DATABASE_URL", " postgres://u:p@h:6543/x ")
	assert.Equal(t, "postgres://u:p@h:6543/x", ResolveDSN())
}

func TestSafeDSNSummary(t *testing.T) {
	assert.Equal(t, "host=h port=6543 db=x user=u", SafeDSNSummary("postgres://u:p@h:6543/x"))
	assert.Equal(t, "host=h db=x user=u", SafeDSNSummary("postgres://u:p@h/x"))
	assert.NotContains(t, SafeDSNSummary("postgres://u:topsecret@h/x"), "topsecret")
	assert.Equal(t, "dsn: parse error", SafeDSNSummary("postgres://u:p@h:port/\x7f"))
}

func TestSafeDSNSummary_KeywordForm(t *testing.T) {
	got := SafeDSNSummary("host=db port=6543 user=wb password=s3cret dbname=whiteboard sslmode=disable")
	assert.Equal(t, "host=db port=6543 db=whiteboard user=wb", got)
	assert.NotContains(t, got, "s3cret")

	got = SafeDSNSummary("host=db user=wb password='quoted secret' dbname=wb sslmode=disable")
	assert.NotContains(t, got, "secret")
	assert.Contains(t, got, "host=db")

	assert.Equal(t, "dsn: parse error", SafeDSNSummary("host=db password='unterminated"))
}

func TestOpen_EmptyDSN(t *testing.T) {
	_, err := Open(context.Background(), " ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}
