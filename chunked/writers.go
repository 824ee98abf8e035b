package chunked

import (
	"encoding"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// SerializationError is returned by a BodyWriter that could not encode
// a chunk.  Unlike other write errors, it does not mean that the
// client went away.
type SerializationError struct {
	Chunk any
	Err   error
}

func (err *SerializationError) Error() string {
	return fmt.Sprintf("cannot serialize %T: %s", err.Chunk, err.Err)
}

func (err *SerializationError) Unwrap() error { return err.Err }

type BodyWriterFunc func(chunk any, mediaType string, header http.Header, out io.Writer) (io.Writer, error)

func (f BodyWriterFunc) WriteChunk(chunk any, mediaType string, header http.Header, out io.Writer) (io.Writer, error) {
	return f(chunk, mediaType, header, out)
}

// JSONWriter writes each chunk as one line of JSON
var JSONWriter BodyWriter = BodyWriterFunc(writeJSON)

func writeJSON(chunk any, _ string, _ http.Header, out io.Writer) (io.Writer, error) {
	enc, err := json.Marshal(chunk)
	if err != nil {
		return out, &SerializationError{Chunk: chunk, Err: err}
	}
	enc = append(enc, '\n')
	_, err = out.Write(enc)
	return out, errors.WithStack(err)
}

// TextWriter writes strings, byte slices, encoding.TextMarshalers and
// fmt.Stringers as they are.  Anything else is formatted with %v.
var TextWriter BodyWriter = BodyWriterFunc(writeText)

func writeText(chunk any, _ string, _ http.Header, out io.Writer) (io.Writer, error) {
	var b []byte
	switch c := chunk.(type) {
	case []byte:
		b = c
	case string:
		b = []byte(c)
	case encoding.TextMarshaler:
		var err error
		b, err = c.MarshalText()
		if err != nil {
			return out, &SerializationError{Chunk: chunk, Err: err}
		}
	case fmt.Stringer:
		b = []byte(c.String())
	default:
		b = []byte(fmt.Sprint(c))
	}
	_, err := out.Write(b)
	return out, errors.WithStack(err)
}

// WriterFor picks a BodyWriter for a media type
func WriterFor(mediaType string) BodyWriter {
	switch mediaType {
	case "application/json", "application/x-ndjson", "application/stream+json":
		return JSONWriter
	default:
		return TextWriter
	}
}
