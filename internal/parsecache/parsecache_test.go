package parsecache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillsql/quill/internal/ir"
	"github.com/quillsql/quill/internal/parse"
)

func entry(table string) *Entry {
	ctx := parse.NewContext()
	ctx.TableCount = 1
	ctx.AutoParams["__p1"] = int64(5)
	return &Entry{
		Op: &ir.Where{
			Src: &ir.From{Table: table},
			Pred: &ir.Comparison{
				Op:    ir.CmpGt,
				Left:  &ir.Column{Name: "age"},
				Right: &ir.Param{Name: "__p1"},
			},
		},
		Ctx: ctx,
	}
}

func TestNewDisabled(t *testing.T) {
	c := New(Config{Enabled: false})
	assert.Nil(t, c)
}

func TestNilCacheIsSafe(t *testing.T) {
	var c *Cache

	_, ok := c.Get("k")
	assert.False(t, ok)
	c.Put("k", entry("users"))
	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestPutGet(t *testing.T) {
	c := New(Config{Enabled: true, Capacity: 4})
	require.NotNil(t, c)

	c.Put("k1", entry("users"))
	got, ok := c.Get("k1")
	require.True(t, ok)

	w, isWhere := got.Op.(*ir.Where)
	require.True(t, isWhere)
	assert.Equal(t, "users", w.Src.(*ir.From).Table)
	assert.Equal(t, int64(5), got.Ctx.AutoParams["__p1"])

	_, ok = c.Get("k2")
	assert.False(t, ok)
}

func TestEntriesAreIsolated(t *testing.T) {
	c := New(Config{Enabled: true, Capacity: 4})
	src := entry("users")
	c.Put("k", src)

	// Mutating the original after Put changes nothing.
	src.Op.(*ir.Where).Pred = nil
	src.Ctx.AutoParams["__p1"] = "poison"

	a, ok := c.Get("k")
	require.True(t, ok)
	assert.NotNil(t, a.Op.(*ir.Where).Pred)
	assert.Equal(t, int64(5), a.Ctx.AutoParams["__p1"])

	// Mutating one Get result never leaks into the next.
	a.Op.(*ir.Where).Pred = nil
	a.Ctx.AutoParams["extra"] = true

	b, ok := c.Get("k")
	require.True(t, ok)
	assert.NotNil(t, b.Op.(*ir.Where).Pred)
	assert.NotContains(t, b.Ctx.AutoParams, "extra")
}

func TestCapacityEvictsLRU(t *testing.T) {
	c := New(Config{Enabled: true, Capacity: 2})

	c.Put("a", entry("t1"))
	c.Put("b", entry("t2"))
	_, _ = c.Get("a") // refresh a
	c.Put("c", entry("t3"))

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("b")
	assert.False(t, ok, "least recently used entry is evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
}

func TestDefaultCapacity(t *testing.T) {
	c := New(Config{Enabled: true})
	require.NotNil(t, c)
	for i := 0; i < DefaultCapacity+10; i++ {
		c.Put(fmt.Sprintf("k%d", i), entry("users"))
	}
	assert.Equal(t, DefaultCapacity, c.Len())
}

func TestPurge(t *testing.T) {
	c := New(Config{Enabled: true, Capacity: 4})
	c.Put("a", entry("t1"))
	c.Put("b", entry("t2"))
	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestConcurrentAccess(t *testing.T) {
	c := New(Config{Enabled: true, Capacity: 32})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", n%4)
			for j := 0; j < 100; j++ {
				c.Put(key, entry("users"))
				if e, ok := c.Get(key); ok {
					// Each goroutine owns its clone outright.
					e.Ctx.AutoParams["scratch"] = n
				}
			}
		}(i)
	}
	wg.Wait()

	e, ok := c.Get("k0")
	require.True(t, ok)
	assert.NotContains(t, e.Ctx.AutoParams, "scratch")
}
