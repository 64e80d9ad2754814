package table

import (
	"fmt"
	"io"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/ipc"
	"github.com/apache/arrow/go/v18/arrow/memory"
)

// Schema returns an Arrow schema of non-nullable float64 fields, one per
// column. The table name is stored in the schema metadata.
func (t *Table) Schema() *arrow.Schema {
	fields := make([]arrow.Field, len(t.Columns))
	for i, c := range t.Columns {
		fields[i] = arrow.Field{Name: c.Name, Type: arrow.PrimitiveTypes.Float64}
	}
	md := arrow.NewMetadata([]string{"name"}, []string{t.Name})
	return arrow.NewSchema(fields, &md)
}

// WriteArrow writes the table as a single record batch in the Arrow IPC
// file format
func WriteArrow(w io.Writer, t *Table) error {
	if err := t.Validate(); err != nil {
		return err
	}

	pool := memory.NewGoAllocator()
	schema := t.Schema()

	builder := array.NewRecordBuilder(pool, schema)
	defer builder.Release()
	for i, c := range t.Columns {
		builder.Field(i).(*array.Float64Builder).AppendValues(c.Values, nil)
	}
	record := builder.NewRecord()
	defer record.Release()

	writer, err := ipc.NewFileWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(pool))
	if err != nil {
		return fmt.Errorf("create arrow writer: %w", err)
	}
	if err := writer.Write(record); err != nil {
		writer.Close()
		return fmt.Errorf("write arrow record: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close arrow writer: %w", err)
	}
	return nil
}

// ReadArrow reads a table from an Arrow IPC file. Every field must be
// float64; record batches are concatenated.
func ReadArrow(r ipc.ReadAtSeeker) (*Table, error) {
	reader, err := ipc.NewFileReader(r, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, fmt.Errorf("create arrow reader: %w", err)
	}
	defer reader.Close()

	schema := reader.Schema()
	name := ""
	if i := schema.Metadata().FindKey("name"); i >= 0 {
		name = schema.Metadata().Values()[i]
	}

	t := New(name)
	for _, f := range schema.Fields() {
		if f.Type.ID() != arrow.FLOAT64 {
			return nil, fmt.Errorf("field %q has type %s, expected float64", f.Name, f.Type)
		}
		t.EnsureColumn(f.Name)
	}

	for n := 0; n < reader.NumRecords(); n++ {
		record, err := reader.Record(n)
		if err != nil {
			return nil, fmt.Errorf("read arrow record %d: %w", n, err)
		}
		for i := range t.Columns {
			col := record.Column(i).(*array.Float64)
			t.Columns[i].Values = append(t.Columns[i].Values, col.Float64Values()...)
		}
	}
	return t, nil
}
