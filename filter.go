package topsort

// restrict narrows an edge set to the subgraph relevant to the given
// start and endpoint nodes. With starts, only edges leaving a node
// reachable from some start survive; with endpoints, only edges arriving
// at a node that can reach some endpoint survive. Applied together the
// survivors are exactly the edges lying on a path from a start to an
// endpoint. Filter nodes absent from the graph are not an error; they
// contribute nothing.
//
// The result is always a fresh map, safe for the caller to consume.
func restrict(edges map[Edge]struct{}, starts, endpoints []string) map[Edge]struct{} {
	var reachable, reaching map[string]struct{}
	if len(starts) > 0 {
		reachable = grow(edges, starts, func(e Edge) (string, string) { return e.Source, e.Sink })
	}
	if len(endpoints) > 0 {
		reaching = grow(edges, endpoints, func(e Edge) (string, string) { return e.Sink, e.Source })
	}
	out := make(map[Edge]struct{}, len(edges))
	for e := range edges {
		if reachable != nil {
			if _, ok := reachable[e.Source]; !ok {
				continue
			}
		}
		if reaching != nil {
			if _, ok := reaching[e.Sink]; !ok {
				continue
			}
		}
		out[e] = struct{}{}
	}
	return out
}

// grow computes the closure of seeds under the step relation: starting
// from the seeds, repeatedly admit the far end of every edge whose near
// end is already admitted, until nothing new appears. step maps an edge
// to its (near, far) ends, so (Source, Sink) walks the graph forward and
// (Sink, Source) walks it backward.
func grow(edges map[Edge]struct{}, seeds []string, step func(Edge) (near, far string)) map[string]struct{} {
	admitted := toSet(seeds)
	for {
		grew := false
		for e := range edges {
			near, far := step(e)
			if _, ok := admitted[near]; !ok {
				continue
			}
			if _, ok := admitted[far]; !ok {
				admitted[far] = struct{}{}
				grew = true
			}
		}
		if !grew {
			return admitted
		}
	}
}
