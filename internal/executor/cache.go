package executor

import (
	"github.com/dgraph-io/ristretto/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

// documentCache holds validated documents keyed by query text. Its capacity
// is a number of documents. A nil *documentCache is a disabled cache.
type documentCache struct {
	docs *ristretto.Cache[string, *ast.QueryDocument]
}

func newDocumentCache(entries int64) (*documentCache, error) {
	if entries <= 0 {
		return nil, nil
	}
	docs, err := ristretto.NewCache(&ristretto.Config[string, *ast.QueryDocument]{
		NumCounters:        entries * 10,
		MaxCost:            entries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &documentCache{docs: docs}, nil
}

func (c *documentCache) get(query string) (*ast.QueryDocument, bool) {
	if c == nil {
		return nil, false
	}
	return c.docs.Get(query)
}

// set stores doc with a cost of one entry. Admission is asynchronous, so a
// document may not be visible to get right away.
func (c *documentCache) set(query string, doc *ast.QueryDocument) {
	if c == nil {
		return
	}
	c.docs.Set(query, doc, 1)
}

func (c *documentCache) wait() {
	if c == nil {
		return
	}
	c.docs.Wait()
}

func (c *documentCache) close() {
	if c == nil {
		return
	}
	c.docs.Close()
}
