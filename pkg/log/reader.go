package log

import (
	"errors"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// Reader streams the events of a protocol log that match a query.
type Reader struct {
	dec    *cbor.Decoder
	closer io.Closer
	query  Query

	truncated bool
}

// NewReader reads the events of r that match q.
func NewReader(r io.Reader, q Query) *Reader {
	return &Reader{dec: NewDecoder(r), query: q}
}

// Open reads the events of the protocol log at path that match q.
func Open(path string, q Query) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := NewReader(f, q)
	r.closer = f
	return r, nil
}

// Next returns the next matching event, or io.EOF at the end of the log.
// A record cut short by an interrupted writer ends the log; Truncated
// reports it.
func (r *Reader) Next() (Event, error) {
	for {
		var ev Event
		err := r.dec.Decode(&ev)
		switch {
		case errors.Is(err, io.ErrUnexpectedEOF):
			r.truncated = true
			return Event{}, io.EOF
		case err != nil:
			return Event{}, err
		}
		if r.query.Match(ev) {
			return ev, nil
		}
	}
}

// Each calls fn for every remaining matching event and stops at the first
// error fn returns.
func (r *Reader) Each(fn func(Event) error) error {
	for {
		ev, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}

// Truncated reports whether the log ended in a partial record.
func (r *Reader) Truncated() bool {
	return r.truncated
}

// Close closes a log opened with Open.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
