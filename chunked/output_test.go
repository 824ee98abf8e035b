package chunked_test

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	inject "github.com/eclipse-ee4j/jersey-sub005"
	"github.com/eclipse-ee4j/jersey-sub005/chunked"
	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	metrics "github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSink struct {
	buf     bytes.Buffer
	stream  io.Writer
	commits int32
	closes  int32
}

func newMemSink() *memSink {
	s := &memSink{}
	s.stream = &s.buf
	return s
}

func (s *memSink) Stream() io.Writer   { return s.stream }
func (s *memSink) Replace(w io.Writer) { s.stream = w }
func (s *memSink) Commit() error       { atomic.AddInt32(&s.commits, 1); return nil }
func (s *memSink) Close() error        { atomic.AddInt32(&s.closes, 1); return nil }

func quiet[T any](opts ...chunked.Opt) *chunked.Output[T] {
	return chunked.New[T](append([]chunked.Opt{
		chunked.WithLogger(inject.NoLogger()),
		chunked.WithRegistry(metrics.NewRegistry()),
	}, opts...)...)
}

func returnsWithin(ch <-chan error, d time.Duration) (error, bool) {
	select {
	case err := <-ch:
		return err, true
	case <-time.After(d):
		return nil, false
	}
}

func TestBackpressureKeepsOrder(t *testing.T) {
	sink := newMemSink()
	started := make(chan struct{})
	gate := make(chan struct{})
	var first sync.Once
	writer := chunked.BodyWriterFunc(func(chunk any, mt string, h http.Header, out io.Writer) (io.Writer, error) {
		first.Do(func() {
			close(started)
			<-gate
		})
		return chunked.TextWriter.WriteChunk(chunk, mt, h, out)
	})
	o := quiet[string](chunked.WithQueueCapacity(1))
	require.NoError(t, o.Attach(chunked.Target{Sink: sink, Writer: writer}))

	a := make(chan error, 1)
	go func() { a <- o.Write("a") }()
	<-started

	require.NoError(t, o.Write("b"), "queued behind the active flusher")

	c := make(chan error, 1)
	go func() { c <- o.Write("c") }()
	_, returned := returnsWithin(c, 50*time.Millisecond)
	assert.False(t, returned, "queue is full so the producer blocks")

	close(gate)
	err, ok := returnsWithin(a, 5*time.Second)
	require.True(t, ok)
	assert.NoError(t, err)
	err, ok = returnsWithin(c, 5*time.Second)
	require.True(t, ok)
	assert.NoError(t, err)

	require.NoError(t, o.Close())
	assert.Equal(t, "abc", sink.buf.String())
	assert.Equal(t, int32(1), atomic.LoadInt32(&sink.closes))
	assert.True(t, atomic.LoadInt32(&sink.commits) >= 1)
}

func TestConcurrentProducers(t *testing.T) {
	sink := newMemSink()
	o := quiet[string](chunked.WithQueueCapacity(1), chunked.WithDelimiter([]byte("\n")))
	require.NoError(t, o.Attach(chunked.Target{Sink: sink, Writer: chunked.TextWriter}))
	const producers, each = 3, 50
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < each; i++ {
				assert.NoError(t, o.Write(fmt.Sprintf("%d-%03d", p, i)))
			}
		}(p)
	}
	wg.Wait()
	require.NoError(t, o.Close())

	lines := strings.Split(strings.TrimSuffix(sink.buf.String(), "\n"), "\n")
	require.Len(t, lines, producers*each)
	last := map[string]string{}
	for _, line := range lines {
		p := line[:1]
		assert.True(t, line > last[p], "%s after %s", line, last[p])
		last[p] = line
	}
}

func TestConcurrentCloseClosesOnce(t *testing.T) {
	sink := newMemSink()
	rc := inject.NewRequestContext()
	var disposed int32
	_, err := rc.Resolve(1, func() (any, error) { return "scoped", nil }, func(any) {
		atomic.AddInt32(&disposed, 1)
	})
	require.NoError(t, err)

	o := quiet[string]()
	require.NoError(t, o.Attach(chunked.Target{Sink: sink, Writer: chunked.TextWriter, Request: rc}))
	require.NoError(t, o.Write("x"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, o.Close())
		}()
	}
	wg.Wait()
	assert.True(t, o.Closed())
	assert.Equal(t, int32(1), atomic.LoadInt32(&sink.closes))
	assert.Equal(t, int32(1), atomic.LoadInt32(&disposed))
	assert.True(t, rc.Released())
	assert.True(t, errors.Is(o.Write("late"), chunked.ErrClosed))
	assert.Equal(t, "x", sink.buf.String())
}

func TestFailureDrainsQueue(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := NewMockSink(ctrl)
	writer := NewMockBodyWriter(ctrl)
	callback := NewMockConnectionCallback(ctrl)

	started := make(chan struct{})
	gate := make(chan struct{})
	sink.EXPECT().Stream().Return(io.Discard).AnyTimes()
	sink.EXPECT().Commit().Return(nil).AnyTimes()
	sink.EXPECT().Close().Return(nil).Times(1)
	gomock.InOrder(
		writer.EXPECT().WriteChunk("one", "text/plain", gomock.Any(), io.Discard).Return(io.Discard, nil),
		writer.EXPECT().WriteChunk("two", "text/plain", gomock.Any(), io.Discard).DoAndReturn(
			func(chunk any, mediaType string, header http.Header, out io.Writer) (io.Writer, error) {
				close(started)
				<-gate
				return nil, errors.New("broken pipe")
			}),
	)
	callback.EXPECT().OnDisconnect().Times(1)

	rc := inject.NewRequestContext()
	o := quiet[string](chunked.WithQueueCapacity(1))
	require.NoError(t, o.Attach(chunked.Target{
		Sink:      sink,
		Writer:    writer,
		MediaType: "text/plain",
		Callback:  callback,
		Request:   rc,
	}))
	require.NoError(t, o.Write("one"))

	second := make(chan error, 1)
	go func() { second <- o.Write("two") }()
	<-started
	require.NoError(t, o.Write("three"))
	fourth := make(chan error, 1)
	go func() { fourth <- o.Write("four") }()
	_, returned := returnsWithin(fourth, 50*time.Millisecond)
	require.False(t, returned)

	close(gate)
	err, ok := returnsWithin(second, 5*time.Second)
	require.True(t, ok)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")
	err, ok = returnsWithin(fourth, 5*time.Second)
	require.True(t, ok, "blocked producer is released")
	assert.True(t, errors.Is(err, chunked.ErrClosed))

	assert.True(t, o.Closed())
	assert.True(t, rc.Released())
	assert.True(t, errors.Is(o.Write("five"), chunked.ErrClosed))
	assert.NoError(t, o.Close())
}

func TestSerializationErrorIsNotADisconnect(t *testing.T) {
	var disconnects int32
	sink := newMemSink()
	o := quiet[any]()
	require.NoError(t, o.Attach(chunked.Target{
		Sink:     sink,
		Writer:   chunked.JSONWriter,
		Callback: chunked.ConnectionCallbackFunc(func() { atomic.AddInt32(&disconnects, 1) }),
	}))
	require.NoError(t, o.Write(map[string]int{"a": 1}))
	err := o.Write(make(chan int))
	require.Error(t, err)
	var se *chunked.SerializationError
	assert.True(t, errors.As(err, &se))
	assert.Equal(t, int32(0), atomic.LoadInt32(&disconnects))
	assert.True(t, o.Closed())
	assert.Equal(t, "{\"a\":1}\n", sink.buf.String())
	assert.Equal(t, int32(1), atomic.LoadInt32(&sink.closes))
}

func TestWriteBeforeAttach(t *testing.T) {
	var resumed int32
	sink := newMemSink()
	o := quiet[int](chunked.WithResumer(func() { atomic.AddInt32(&resumed, 1) }), chunked.WithDelimiter([]byte(",")))
	require.NoError(t, o.Write(1))
	require.NoError(t, o.Write(2))
	require.NoError(t, o.Close())
	assert.Equal(t, int32(0), atomic.LoadInt32(&sink.closes))
	assert.True(t, errors.Is(o.Write(3), chunked.ErrClosed))

	require.NoError(t, o.Attach(chunked.Target{Sink: sink, Writer: chunked.TextWriter}))
	assert.Equal(t, "1,2,", sink.buf.String())
	assert.Equal(t, int32(1), atomic.LoadInt32(&sink.closes))
	assert.Equal(t, int32(1), atomic.LoadInt32(&resumed))
	assert.Error(t, o.Attach(chunked.Target{Sink: sink, Writer: chunked.TextWriter}))
}

type event struct {
	Name string `json:"name"`
}

func TestNilChunkOnlyFlushes(t *testing.T) {
	registry := metrics.NewRegistry()
	sink := newMemSink()
	o := chunked.New[*event](chunked.WithLogger(inject.NoLogger()), chunked.WithRegistry(registry))
	require.NoError(t, o.Attach(chunked.Target{Sink: sink, Writer: chunked.JSONWriter, MediaType: "application/json"}))
	require.NoError(t, o.Write(nil))
	require.NoError(t, o.Write(&event{Name: "b"}))
	require.NoError(t, o.Close())
	assert.Equal(t, `{"name":"b"}`+"\n", sink.buf.String())
	queued, ok := registry.Get("chunked.queued").(metrics.Counter)
	require.True(t, ok)
	assert.Equal(t, int64(1), queued.Count())

	bytesOut := quiet[[]byte]()
	bsink := newMemSink()
	require.NoError(t, bytesOut.Attach(chunked.Target{Sink: bsink, Writer: chunked.TextWriter}))
	require.NoError(t, bytesOut.Write(nil))
	require.NoError(t, bytesOut.Write([]byte("x")))
	require.NoError(t, bytesOut.Close())
	assert.Equal(t, "x", bsink.buf.String())
}

func TestMetrics(t *testing.T) {
	registry := metrics.NewRegistry()
	o := chunked.New[string](chunked.WithLogger(inject.NoLogger()), chunked.WithRegistry(registry))
	require.NoError(t, o.Attach(chunked.Target{Sink: newMemSink(), Writer: chunked.TextWriter}))
	require.NoError(t, o.Write("a"))
	require.NoError(t, o.Write("b"))
	require.NoError(t, o.Close())
	written, ok := registry.Get("chunked.written").(metrics.Counter)
	require.True(t, ok)
	assert.Equal(t, int64(2), written.Count())
	closed, ok := registry.Get("chunked.closed").(metrics.Counter)
	require.True(t, ok)
	assert.Equal(t, int64(1), closed.Count())
	assert.Equal(t, "chunked.Output[string]", o.String())
}

func TestResponseSink(t *testing.T) {
	rec := httptest.NewRecorder()
	sink := chunked.NewResponseSink(rec)
	o := quiet[string]()
	require.NoError(t, o.Attach(chunked.Target{Sink: sink, Writer: chunked.WriterFor("text/plain")}))
	require.NoError(t, o.Write("hello "))
	assert.True(t, rec.Flushed)
	require.NoError(t, o.Write("world"))
	select {
	case <-sink.Done():
		t.Fatal("done before close")
	default:
	}
	require.NoError(t, o.Close())
	<-sink.Done()
	assert.Equal(t, "hello world", rec.Body.String())
	assert.Error(t, sink.Commit())
	assert.NoError(t, sink.Close())
}
