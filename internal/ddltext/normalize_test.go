package ddltext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeLiterals(t *testing.T) {
	in := "ALTER TABLE t1 ADD COLUMN c3 INT DEFAULT 42"
	assert.Equal(t, "ALTER TABLE t1 ADD COLUMN c3 INT DEFAULT ?", Normalize(in))
}

func TestNormalizeStringLiteral(t *testing.T) {
	in := "INSERT INTO t1 (c1) VALUES ('hello world')"
	assert.Equal(t, "INSERT INTO t1 (c1) VALUES ('?')", Normalize(in))
}

func TestNormalizeCollapsesWhitespace(t *testing.T) {
	in := "SELECT   *  \n FROM  t1"
	assert.Equal(t, "SELECT * FROM t1", Normalize(in))
}
