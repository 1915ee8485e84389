package proseql

// Query is a lazy, builder-style description of a read against one
// collection, compiled and run by Collection.Find/FindOne/Aggregate
// (§4.8): source -> filter -> sort -> paginate -> populate -> select.
type Query struct {
	col           *Collection
	where         Where
	sort          []SortKey
	offset        int
	limit         int
	cursorField   string
	cursorAfter   string
	cursorBefore  string
	cursorLimit   int
	populate      []PopulateSpec
	selectFields  []string
	includeSoft   bool
}

// NewQuery starts a query against col.
func NewQuery(col *Collection) *Query {
	return &Query{col: col}
}

func (q *Query) Where(w Where) *Query { q.where = w; return q }
func (q *Query) Sort(keys ...SortKey) *Query { q.sort = keys; return q }
func (q *Query) Offset(n int) *Query { q.offset = n; return q }
func (q *Query) Limit(n int) *Query { q.limit = n; return q }
func (q *Query) Populate(specs ...PopulateSpec) *Query { q.populate = specs; return q }
func (q *Query) Select(fields ...string) *Query { q.selectFields = fields; return q }
func (q *Query) IncludeSoftDeleted() *Query { q.includeSoft = true; return q }

// Cursor switches Run to cursor pagination, replacing Offset/Limit for
// this query (§4.8 step 4).
func (q *Query) Cursor(field, after, before string, limit int) *Query {
	q.cursorField = field
	q.cursorAfter = after
	q.cursorBefore = before
	q.cursorLimit = limit
	return q
}

// source produces the initial entity slice: an equality-only where on a
// hash-indexed field is served from the index; everything else falls back
// to a full snapshot scan.
func (q *Query) source() []M {
	snap := q.col.snapshot()
	if field, value, ok := singleEqualityOn(q.where); ok {
		if ids, found := q.col.index.hashLookup(field, value); found {
			out := make([]M, 0, len(ids))
			for _, id := range ids {
				if e, ok := snap[id]; ok {
					out = append(out, e)
				}
			}
			return out
		}
	}
	order := q.col.state.insertionOrder()
	out := make([]M, 0, len(order))
	for _, id := range order {
		if e, ok := snap[id]; ok {
			out = append(out, e)
		}
	}
	return out
}

// singleEqualityOn recognizes a where tree that is exactly one direct
// field-equality condition, the shape the index source stage can serve.
func singleEqualityOn(w Where) (field string, value any, ok bool) {
	if len(w) != 1 {
		return "", nil, false
	}
	for k, v := range w {
		if k == "$and" || k == "$or" || k == "$not" {
			return "", nil, false
		}
		if _, isOp := asFieldOperatorMap(v); isOp {
			return "", nil, false
		}
		return k, v, true
	}
	return "", nil, false
}

// Run compiles and executes the query, returning the page of results plus
// PageInfo (populated only when cursor pagination was configured).
func (q *Query) Run() ([]M, PageInfo, error) {
	timer := newMetricsTimer()
	defer timer.observe(metricsQueryDuration.WithLabelValues(q.col.cfg.Name))

	entities := q.source()

	filtered := entities[:0:0]
	for _, e := range entities {
		if !q.includeSoft {
			if _, soft := e.DeletedAt(); soft {
				continue
			}
		}
		if evalWhere(q.where, e, nil) {
			filtered = append(filtered, e)
		}
	}

	sortEntities(filtered, q.sort)

	var page []M
	var info PageInfo
	if q.cursorField != "" {
		after, _ := decodeCursor(q.cursorAfter)
		before, _ := decodeCursor(q.cursorBefore)
		var afterPtr, beforePtr *cursorValue
		if q.cursorAfter != "" {
			afterPtr = &after
		}
		if q.cursorBefore != "" {
			beforePtr = &before
		}
		page, info = paginateCursor(filtered, q.cursorField, afterPtr, beforePtr, q.cursorLimit)
	} else {
		page = paginateOffset(filtered, q.offset, q.limit)
	}

	if len(q.populate) > 0 {
		populated := make([]M, len(page))
		for i, e := range page {
			p, err := populateEntity(q.col.db, q.col, e, q.populate, 0)
			if err != nil {
				return nil, PageInfo{}, err
			}
			populated[i] = p
		}
		page = populated
	}

	if len(q.selectFields) > 0 {
		page = projectFields(page, q.selectFields, q.populate)
	}

	return page, info, nil
}

// projectFields restricts each entity to fields, always keeping any
// explicitly populated relationship's key alongside the projection
// (§4.8 step 6).
func projectFields(entities []M, fields []string, populate []PopulateSpec) []M {
	keep := make(map[string]bool, len(fields)+len(populate))
	for _, f := range fields {
		keep[f] = true
	}
	for _, p := range populate {
		keep[p.Relationship] = true
	}
	out := make([]M, len(entities))
	for i, e := range entities {
		next := make(M, len(keep))
		for f := range keep {
			if v, ok := e[f]; ok {
				next[f] = v
			}
		}
		out[i] = next
	}
	return out
}

// FindOne runs the query and returns its first result, if any.
func (q *Query) FindOne() (M, bool, error) {
	q.limit = 1
	results, _, err := q.Run()
	if err != nil {
		return nil, false, err
	}
	if len(results) == 0 {
		return nil, false, nil
	}
	return results[0], true, nil
}

// Aggregate computes spec over the query's filtered (pre-pagination)
// stream.
func (q *Query) Aggregate(spec AggregateSpec) ([]AggregateResult, error) {
	entities := q.source()
	filtered := entities[:0:0]
	for _, e := range entities {
		if !q.includeSoft {
			if _, soft := e.DeletedAt(); soft {
				continue
			}
		}
		if evalWhere(q.where, e, nil) {
			filtered = append(filtered, e)
		}
	}
	return runAggregate(filtered, spec), nil
}

// Find starts a query against c.
func (c *Collection) Find() *Query {
	return NewQuery(c)
}
