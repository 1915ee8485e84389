package proseql

// AggregateSpec describes a count/sum/avg/min/max computation over a
// filtered stream, optionally bucketed by groupBy (§4.8 "Aggregate").
type AggregateSpec struct {
	Count   bool
	Sum     []string
	Avg     []string
	Min     []string
	Max     []string
	GroupBy []string
}

// AggregateResult is one bucket's computed values (or the single scalar
// result when GroupBy is empty): Group is nil in the scalar case.
type AggregateResult struct {
	Group map[string]any
	Count int
	Sum   map[string]float64
	Avg   map[string]float64
	Min   map[string]float64
	Max   map[string]float64
}

func groupKey(e M, fields []string) string {
	vals := make([]any, len(fields))
	for i, f := range fields {
		vals[i] = e[f]
	}
	key, _ := encodeTuple(vals)
	return key
}

func groupValues(e M, fields []string) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		out[f] = e[f]
	}
	return out
}

// runAggregate computes spec over entities, returning one bucket per
// distinct GroupBy tuple (or a single bucket when GroupBy is empty).
func runAggregate(entities []M, spec AggregateSpec) []AggregateResult {
	type acc struct {
		group      map[string]any
		count      int
		sum        map[string]float64
		min        map[string]float64
		max        map[string]float64
		minSeen    map[string]bool
		maxSeen    map[string]bool
	}

	order := []string{}
	buckets := map[string]*acc{}

	for _, e := range entities {
		key := ""
		if len(spec.GroupBy) > 0 {
			key = groupKey(e, spec.GroupBy)
		}
		b, ok := buckets[key]
		if !ok {
			b = &acc{
				sum:     map[string]float64{},
				min:     map[string]float64{},
				max:     map[string]float64{},
				minSeen: map[string]bool{},
				maxSeen: map[string]bool{},
			}
			if len(spec.GroupBy) > 0 {
				b.group = groupValues(e, spec.GroupBy)
			}
			buckets[key] = b
			order = append(order, key)
		}
		b.count++
		for _, f := range dedupeFields(spec.Sum, spec.Avg) {
			if v, ok := toFloat64(e[f]); ok {
				b.sum[f] += v
			}
		}
		for _, f := range spec.Min {
			if v, ok := toFloat64(e[f]); ok {
				if !b.minSeen[f] || v < b.min[f] {
					b.min[f] = v
				}
				b.minSeen[f] = true
			}
		}
		for _, f := range spec.Max {
			if v, ok := toFloat64(e[f]); ok {
				if !b.maxSeen[f] || v > b.max[f] {
					b.max[f] = v
				}
				b.maxSeen[f] = true
			}
		}
	}

	results := make([]AggregateResult, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		r := AggregateResult{Group: b.group, Count: b.count}
		if len(spec.Sum) > 0 {
			r.Sum = map[string]float64{}
			for _, f := range spec.Sum {
				r.Sum[f] = b.sum[f]
			}
		}
		if len(spec.Avg) > 0 {
			r.Avg = map[string]float64{}
			for _, f := range spec.Avg {
				if b.count > 0 {
					r.Avg[f] = b.sum[f] / float64(b.count)
				}
			}
		}
		if len(spec.Min) > 0 {
			r.Min = map[string]float64{}
			for _, f := range spec.Min {
				r.Min[f] = b.min[f]
			}
		}
		if len(spec.Max) > 0 {
			r.Max = map[string]float64{}
			for _, f := range spec.Max {
				r.Max[f] = b.max[f]
			}
		}
		results = append(results, r)
	}
	return results
}

func dedupeFields(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, f := range a {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	for _, f := range b {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}
