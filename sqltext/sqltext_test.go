package sqltext

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripComments(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "no comments",
			in:   "select a, b\nfrom c.d\nwhere e = 1;\n",
			want: "select a, b\nfrom c.d\nwhere e = 1;\n",
		},
		{
			name: "multi-line block comment",
			in:   "/*\nselect * from a.b;\n*/\n\nselect * from c.d\n",
			want: "\nselect * from c.d\n",
		},
		{
			name: "trailing line comment",
			in:   "select * from a.b -- latest only\nwhere x = 1\n",
			want: "select * from a.b \nwhere x = 1\n",
		},
		{
			name: "full-line line comment leaves empty line",
			in:   "-- header\nselect 1;\n",
			want: "\nselect 1;\n",
		},
		{
			name: "line comment at end of input",
			in:   "select 1; -- done",
			want: "select 1; ",
		},
		{
			name: "inline block comment",
			in:   "select /* all */ * from t\n",
			want: "select  * from t\n",
		},
		{
			name: "block comment spanning code lines",
			in:   "select a, /* first\nsecond */ b from t\n",
			want: "select a,  b from t\n",
		},
		{
			name: "indented block comment line",
			in:   "select 1;\n   /* note */  \nselect 2;\n",
			want: "select 1;\nselect 2;\n",
		},
		{
			name: "block comment followed by code",
			in:   "/* lead */ select 1\n",
			want: " select 1\n",
		},
		{
			name: "line comment marker inside literal",
			in:   "select '--not a comment' from t\n",
			want: "select '--not a comment' from t\n",
		},
		{
			name: "block comment marker inside literal",
			in:   "select '/* keep */' as x -- drop\n",
			want: "select '/* keep */' as x \n",
		},
		{
			name: "escaped quote in literal",
			in:   "select 'it''s -- here' -- gone\n",
			want: "select 'it''s -- here' \n",
		},
		{
			name: "literal spanning lines",
			in:   "select 'a\n-- b' from t\n",
			want: "select 'a\n-- b' from t\n",
		},
		{
			name: "unterminated block comment",
			in:   "select 1;\n/* never closed\nselect 2;\n",
			want: "select 1;\n",
		},
		{
			name: "unterminated block comment mid-line",
			in:   "select 1 /* open",
			want: "select 1 ",
		},
		{
			name: "crlf line comment",
			in:   "select 1 -- c\r\nselect 2\r\n",
			want: "select 1 \r\nselect 2\r\n",
		},
		{
			name: "removal does not fuse markers",
			in:   "select 5 -/* x */- 3\n",
			want: "select 5 - - 3\n",
		},
		{
			name: "empty input",
			in:   "",
			want: "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := StripComments(tc.in)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, got, StripComments(got), "stripping must be idempotent")
		})
	}
}

func TestStatements(t *testing.T) {
	sql := `
-- build the sample
create volatile table tmp as (select * from a.b) with data on commit preserve rows;
/* pull it back */
select * from tmp where note = 'x;y';
;
`
	got := Statements(sql)
	require.Len(t, got, 2)
	assert.True(t, strings.HasPrefix(got[0], "create volatile table tmp"))
	assert.Equal(t, "select * from tmp where note = 'x;y'", got[1])
}

func TestStatementsWithoutTrailingSemicolon(t *testing.T) {
	assert.Equal(t, []string{"select 1", "select 2"}, Statements("select 1; select 2"))
	assert.Empty(t, Statements("-- only a comment\n"))
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "query.sql")
	require.NoError(t, os.WriteFile(path, []byte("/* doc */\nselect 1; -- one\n"), 0o600))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "select 1; \n", got)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.sql"))
	assert.Error(t, err)
}
