package schema

import (
	"io"

	jsonpool "github.com/vizydrop/gallery/pkg/json"
	"github.com/vizydrop/gallery/pkg/metrics"
)

// StreamWriter normalizes raw provider records and writes them straight
// into an open JSON array on the sink, so the full result set never sits
// in memory.
type StreamWriter struct {
	enc       *jsonpool.StreamingEncoder
	schema    Schema
	connector string
	source    string
}

// NewStreamWriter opens the JSON array on w. Close must be called to emit
// the closing bracket even when no records were written.
func NewStreamWriter(w io.Writer, s Schema, connector, source string) (*StreamWriter, error) {
	enc, err := jsonpool.NewStreamingEncoder(w)
	if err != nil {
		return nil, err
	}
	return &StreamWriter{
		enc:       enc,
		schema:    s,
		connector: connector,
		source:    source,
	}, nil
}

// Write normalizes one raw record and appends it to the array.
func (sw *StreamWriter) Write(raw map[string]interface{}) error {
	record, err := sw.schema.Normalize(raw)
	if err != nil {
		return err
	}
	if err := sw.enc.Encode(record); err != nil {
		return err
	}
	metrics.RecordsEmitted.WithLabelValues(sw.connector, sw.source).Inc()
	return nil
}

// Count returns how many records have been written.
func (sw *StreamWriter) Count() int64 {
	return sw.enc.Count()
}

// Close terminates the JSON array.
func (sw *StreamWriter) Close() error {
	return sw.enc.Close()
}
