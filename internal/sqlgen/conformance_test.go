package sqlgen_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/quillsql/quill/internal/ast"
	"github.com/quillsql/quill/internal/plan"
	"github.com/quillsql/quill/internal/sqlgen/postgres"
	"github.com/quillsql/quill/internal/sqlgen/sqlitegen"
)

// conformanceCase pins one wire-format query to its statement on every
// dialect. Fixtures go through the full path: tagged JSON decode, parse,
// finalize, generate.
type conformanceCase struct {
	Name     string            `yaml:"name"`
	Query    string            `yaml:"query"`
	Params   map[string]any    `yaml:"params,omitempty"`
	Postgres string            `yaml:"postgres"`
	SQLite   string            `yaml:"sqlite"`
	Args     map[string]string `yaml:"args,omitempty"`
}

func TestConformanceFixtures(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "conformance.yaml"))
	require.NoError(t, err)

	var file struct {
		Cases []conformanceCase `yaml:"cases"`
	}
	require.NoError(t, yaml.Unmarshal(data, &file))
	require.NotEmpty(t, file.Cases)

	s := plan.NewSchema()
	for _, tc := range file.Cases {
		t.Run(tc.Name, func(t *testing.T) {
			node, err := ast.UnmarshalNode([]byte(tc.Query))
			require.NoError(t, err)
			fn, ok := node.(*ast.Lambda)
			require.True(t, ok, "fixture query must be a lambda")

			fin, err := s.Compile(fn, tc.Params)
			require.NoError(t, err)

			pg, err := postgres.Compile(fin.Op, fin.Params)
			require.NoError(t, err)
			assert.Equal(t, tc.Postgres, pg.SQL)

			lite, err := sqlitegen.Compile(fin.Op, fin.Params)
			require.NoError(t, err)
			assert.Equal(t, tc.SQLite, lite.SQL)

			want := tc.Args
			if want == nil {
				want = map[string]string{}
			}
			got := map[string]string{}
			for _, a := range pg.Args {
				got[a.Name] = fmt.Sprintf("%v", a.Value)
			}
			assert.Equal(t, want, got)
		})
	}
}
