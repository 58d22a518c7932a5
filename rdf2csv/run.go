package rdf2csv

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/geoknoesis/csvw-go/internal/metrics"
	"github.com/geoknoesis/csvw-go/issues"
	"github.com/geoknoesis/csvw-go/rdf"
	"github.com/geoknoesis/csvw-go/schema"
	"github.com/geoknoesis/csvw-go/store"
	"github.com/geoknoesis/csvw-go/store/memory"
	"github.com/geoknoesis/csvw-go/stream"
)

// run is the state of one conversion.
type run struct {
	conv *Converter
	tr   *issues.Tracker
	log  zerolog.Logger
	emit stream.Emit[TableRow]

	tables []*tablePlan
	// inferred is set when the layout came from schema inference; each
	// subject then lands in exactly one table.
	inferred bool
	prepared bool
}

func (r *run) infer(ctx context.Context, st store.Store) (*schema.TableGroupSchema, error) {
	opts := schema.InferOptions{Base: r.conv.opts.Base}
	if r.conv.opts.UseVocabMetadata && r.conv.opts.Resolver != nil {
		opts.Labels = newLabeler(r.conv.opts.Resolver, r.tr, r.log).Label
	}
	return schema.Infer(ctx, st, opts)
}

// prepare settles the table layout: the supplied descriptor, the supplied
// schema, or one inferred from the quads resident in st.
func (r *run) prepare(ctx context.Context, st store.Store) error {
	if r.prepared {
		return nil
	}
	r.prepared = true

	g := r.conv.opts.Descriptor
	switch {
	case g != nil:
	case r.conv.opts.Schema != nil:
		g = r.conv.opts.Schema.Descriptor()
	default:
		inferred, err := r.infer(ctx, st)
		if err != nil {
			return err
		}
		g = inferred.Descriptor()
		r.inferred = true
		if len(g.Tables) == 0 {
			if n, err := st.Len(ctx); err == nil && n > 0 {
				r.tr.AddWarning("no tables could be inferred from the input")
			}
		}
	}
	for _, t := range g.Tables {
		r.tables = append(r.tables, newTablePlan(t, r.tr))
	}
	r.log.Debug().Int("tables", len(r.tables)).Bool("inferred", r.inferred).Msg("table layout ready")
	return nil
}

func (r *run) unbounded(ctx context.Context, src rdf.Reader) error {
	st, err := r.conv.openStore(ctx)
	if err != nil {
		src.Close()
		return err
	}
	defer st.Close()
	n, err := load(ctx, st, src)
	if err != nil {
		return err
	}
	r.log.Debug().Int("quads", n).Msg("input loaded")
	if err := r.prepare(ctx, st); err != nil {
		return err
	}

	subjects, err := store.Subjects(ctx, st, store.Pattern{})
	if err != nil {
		return err
	}
	buckets := make([][]rdf.Term, len(r.tables))
	for _, s := range subjects {
		idx, err := r.classify(ctx, st, s)
		if err != nil {
			return err
		}
		for _, i := range idx {
			buckets[i] = append(buckets[i], s)
		}
	}
	for i, tp := range r.tables {
		if err := r.tr.Update(issues.Update{Table: issues.Set(tp.table.URL)}); err != nil {
			return err
		}
		for _, s := range buckets[i] {
			if err := r.emitRow(ctx, st, st, tp, s); err != nil {
				return err
			}
		}
	}
	r.tr.ClearTable()
	return nil
}

// windowed keeps at most WindowSize quads resident. Quads evicted from the
// window are buffered per subject; a subject's rows are built when its last
// resident quad is about to be evicted, or at the end of the input. Quads of
// a subject that arrive after its rows were built form further rows; each
// such subject is reported once as a warning.
func (r *run) windowed(ctx context.Context, src rdf.Reader) error {
	st, err := r.conv.openStore(ctx)
	if err != nil {
		src.Close()
		return err
	}
	w, err := r.conv.window(st, src)
	if err != nil {
		return err
	}
	defer w.Close()

	resident := make(map[string]int)
	evicted := make(map[string][]rdf.Quad)
	flushed := make(map[string]bool)
	reported := make(map[string]bool)
	w.OnEvict = func(ctx context.Context, q rdf.Quad) error {
		r.conv.opts.Metrics.Evicted()
		if err := r.prepare(ctx, st); err != nil {
			return err
		}
		key := rdf.TermKey(q.S)
		evicted[key] = append(evicted[key], q)
		resident[key]--
		if resident[key] > 0 {
			return nil
		}
		quads := evicted[key]
		delete(resident, key)
		delete(evicted, key)
		flushed[key] = true
		return r.subjectRows(ctx, st, q.S, quads)
	}

	for !w.Done() {
		added, err := w.Move(ctx)
		if err != nil {
			return err
		}
		for _, q := range added {
			key := rdf.TermKey(q.S)
			resident[key]++
			if flushed[key] && !reported[key] {
				reported[key] = true
				r.tr.ClearTable()
				r.tr.Warnf("subject %s reappears after its rows were written; window size %d is too small to keep its quads together",
					key, w.Size())
			}
		}
	}
	if err := r.prepare(ctx, st); err != nil {
		return err
	}

	var order []rdf.Term
	remaining := make(map[string][]rdf.Quad)
	for _, q := range w.Resident() {
		key := rdf.TermKey(q.S)
		if _, ok := remaining[key]; !ok {
			order = append(order, q.S)
			remaining[key] = evicted[key]
		}
		remaining[key] = append(remaining[key], q)
	}
	for _, s := range order {
		if err := r.subjectRows(ctx, st, s, remaining[rdf.TermKey(s)]); err != nil {
			return err
		}
	}
	r.tr.ClearTable()
	return nil
}

// subjectRows builds the rows of s from all of its quads. Lists and other
// linked nodes are looked up in the resident store.
func (r *run) subjectRows(ctx context.Context, resident store.Store, s rdf.Term, quads []rdf.Quad) error {
	own := memory.New()
	defer own.Close()
	for _, q := range quads {
		if err := own.Put(ctx, q); err != nil {
			return err
		}
	}
	idx, err := r.classify(ctx, own, s)
	if err != nil {
		return err
	}
	for _, i := range idx {
		tp := r.tables[i]
		if err := r.tr.Update(issues.Update{Table: issues.Set(tp.table.URL)}); err != nil {
			return err
		}
		if err := r.emitRow(ctx, own, resident, tp, s); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) emitRow(ctx context.Context, st, links store.Store, tp *tablePlan, s rdf.Term) error {
	tp.rows++
	if err := r.tr.Update(issues.Update{Row: issues.Set(tp.rows)}); err != nil {
		return err
	}
	row, err := tp.row(ctx, st, links, s, r.tr)
	if err != nil {
		return err
	}
	row.Number = tp.rows
	if err := r.emit(row); err != nil {
		return err
	}
	r.conv.opts.Metrics.RowEmitted(metrics.RDFToTabular)
	return nil
}

// classify returns the indexes of the tables s has rows in. With an
// inferred layout that is at most one table: the first typed table whose
// types s has, or the untyped table that best covers its predicates.
func (r *run) classify(ctx context.Context, st store.Store, s rdf.Term) ([]int, error) {
	if !r.inferred {
		var out []int
		for i, tp := range r.tables {
			ok, err := tp.matches(ctx, st, s)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, i)
			}
		}
		return out, nil
	}

	quads, err := st.Match(ctx, store.Pattern{S: s})
	if err != nil {
		return nil, err
	}
	types := make(map[string]bool)
	preds := make(map[string]bool)
	for _, q := range quads {
		if q.P.Value == rdf.RDFType {
			types[rdf.TermKey(q.O)] = true
		} else {
			preds[q.P.Value] = true
		}
	}
	if len(types) > 0 {
		for i, tp := range r.tables {
			if len(tp.types) > 0 && tp.hasTypes(types) {
				return []int{i}, nil
			}
		}
		return nil, nil
	}
	best, bestScore := -1, 0
	for i, tp := range r.tables {
		if len(tp.types) > 0 {
			continue
		}
		score := tp.coverage(preds)
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return nil, nil
	}
	return []int{best}, nil
}
