package plan

import (
	"github.com/quillsql/quill/internal/ast"
	"github.com/quillsql/quill/internal/parse"
	"github.com/quillsql/quill/internal/parsecache"
)

// Compile lowers a whole query function and finalizes it in one step.
// Lowering is memoized through the schema's parse cache, keyed by the
// AST fingerprint; the per-call params and row filters are applied to a
// clone, never to the cached entry.
func (s *Schema) Compile(fn *ast.Lambda, params map[string]any) (*Finalized, error) {
	return s.compile(fn, params, s.cache)
}

// CompileUncached bypasses the parse cache for one call. The result is
// not stored either, so a poisoned or oversized query cannot evict hot
// entries.
func (s *Schema) CompileUncached(fn *ast.Lambda, params map[string]any) (*Finalized, error) {
	return s.compile(fn, params, nil)
}

func (s *Schema) compile(fn *ast.Lambda, params map[string]any, cache *parsecache.Cache) (*Finalized, error) {
	var key string
	if cache != nil {
		key = ast.Fingerprint(fn)
		if entry, ok := cache.Get(key); ok {
			st := state{schema: s, op: entry.Op, ctx: entry.Ctx}
			return st.finalize(params)
		}
	}

	res, err := parse.Parse(fn)
	if err != nil {
		return nil, err
	}
	op := normalize(res.Op)
	if cache != nil {
		cache.Put(key, &parsecache.Entry{Op: op, Ctx: res.Ctx})
	}
	st := state{schema: s, op: op, ctx: res.Ctx}
	return st.finalize(params)
}
