package rdf2csv

import (
	"context"
	"io"

	"github.com/geoknoesis/csvw-go/descriptor"
	"github.com/geoknoesis/csvw-go/dialect"
	"github.com/geoknoesis/csvw-go/errs"
	"github.com/geoknoesis/csvw-go/stream"
)

// OpenFunc returns the destination of the CSV file for a table URL.
type OpenFunc func(table string) (io.WriteCloser, error)

type tableFile struct {
	dst io.WriteCloser
	w   *dialect.Writer
}

// WriteCSV drains rows into one CSV file per table. Files are opened, and
// their header written, when the first row of a table arrives. A nil
// dialect writes RFC 4180 CSV with a header.
func WriteCSV(ctx context.Context, rows *stream.Stream[TableRow], open OpenFunc, d *descriptor.Dialect) (err error) {
	files := make(map[string]*tableFile)
	var order []string
	defer func() {
		for _, table := range order {
			f := files[table]
			if cerr := f.w.Close(); cerr != nil && err == nil {
				err = errs.Wrap(errs.KindIO, "writing "+table, cerr)
			}
			if cerr := f.dst.Close(); cerr != nil && err == nil {
				err = errs.Wrap(errs.KindIO, "closing "+table, cerr)
			}
		}
	}()

	return stream.ForEach(ctx, rows, func(row TableRow) error {
		f, ok := files[row.Table]
		if !ok {
			dst, err := open(row.Table)
			if err != nil {
				return errs.Wrap(errs.KindIO, "opening output for "+row.Table, err)
			}
			w, err := dialect.NewWriter(dst, d)
			if err != nil {
				dst.Close()
				return err
			}
			f = &tableFile{dst: dst, w: w}
			files[row.Table] = f
			order = append(order, row.Table)
			if err := w.WriteHeader(row.Titles); err != nil {
				return errs.Wrap(errs.KindIO, "writing header of "+row.Table, err)
			}
		}
		if err := f.w.Write(row.Cells); err != nil {
			return errs.Wrap(errs.KindIO, "writing row of "+row.Table, err)
		}
		return nil
	})
}
