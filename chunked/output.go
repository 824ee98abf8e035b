package chunked

import (
	"io"
	"net/http"
	"reflect"
	"sync"
	"sync/atomic"

	inject "github.com/eclipse-ee4j/jersey-sub005"
	"github.com/muir/reflectutils"
	"github.com/pkg/errors"
	metrics "github.com/rcrowley/go-metrics"
)

//go:generate mockgen -source=output.go -destination=mock_output_test.go -package=chunked_test

// ErrClosed is returned by Write once the output is closed
var ErrClosed = errors.New("chunked output is closed")

// Sink is the entity stream of a response
type Sink interface {
	// Stream is where the next chunk is written
	Stream() io.Writer
	// Replace swaps in a stream that a BodyWriter wrapped around Stream()
	Replace(w io.Writer)
	// Commit pushes what has been written so far to the client
	Commit() error
	// Close ends the response
	Close() error
}

// BodyWriter serializes one chunk onto out.  It may return a different
// writer that wraps out; later chunks are written to that.
type BodyWriter interface {
	WriteChunk(chunk any, mediaType string, header http.Header, out io.Writer) (io.Writer, error)
}

// ConnectionCallback hears about clients that went away
type ConnectionCallback interface {
	OnDisconnect()
}

type ConnectionCallbackFunc func()

func (f ConnectionCallbackFunc) OnDisconnect() { f() }

// Target is what an Output writes to.  It is provided by the
// transport once the response is ready to be streamed.
type Target struct {
	Sink      Sink
	Writer    BodyWriter
	MediaType string
	Header    http.Header
	// Callback may be nil
	Callback ConnectionCallback
	// Request, if set, is released when the output closes
	Request *inject.RequestContext
}

// Output is a response entity that is written one chunk at a time.
// Any goroutine may Write; chunks are delivered in the order they
// were queued.  Only one goroutine at a time writes to the Sink.
//
// Chunks queued before Attach is called are held until then.  With a
// queue capacity, Write blocks while the queue is full.
type Output[T any] struct {
	lock     sync.Mutex
	notFull  *sync.Cond
	queue    []T
	flushing bool
	closed   int32
	resumed  int32
	attached bool
	target   Target

	sinkOnce    sync.Once
	sinkErr     error
	releaseOnce sync.Once

	options
}

type options struct {
	capacity  int
	delimiter []byte
	resumer   func()
	log       inject.BasicLogger
	registry  metrics.Registry
}

// Opt are options for New
type Opt func(*options)

// WithQueueCapacity bounds the queue.  Zero or less is unbounded.
func WithQueueCapacity(capacity int) Opt {
	return func(o *options) {
		o.capacity = capacity
	}
}

// WithDelimiter is written after every chunk
func WithDelimiter(delimiter []byte) Opt {
	return func(o *options) {
		o.delimiter = append([]byte(nil), delimiter...)
	}
}

// WithResumer is called once, on the first Write or Close.  Transports
// use it to resume a suspended response.
func WithResumer(resume func()) Opt {
	return func(o *options) {
		o.resumer = resume
	}
}

// WithLogger overrides inject.DefaultLogger()
func WithLogger(log inject.BasicLogger) Opt {
	return func(o *options) {
		o.log = log
	}
}

// WithRegistry overrides metrics.DefaultRegistry
func WithRegistry(registry metrics.Registry) Opt {
	return func(o *options) {
		o.registry = registry
	}
}

func New[T any](opts ...Opt) *Output[T] {
	o := &Output[T]{
		options: options{
			log:      inject.DefaultLogger(),
			registry: metrics.DefaultRegistry,
		},
	}
	for _, opt := range opts {
		opt(&o.options)
	}
	o.notFull = sync.NewCond(&o.lock)
	return o
}

func (o *Output[T]) String() string {
	return "chunked.Output[" + reflectutils.TypeName(inject.TypeOf[T]()) + "]"
}

// Closed is true once Close has been called or a write failed
func (o *Output[T]) Closed() bool {
	return atomic.LoadInt32(&o.closed) == 1
}

func (o *Output[T]) counter(name string) metrics.Counter {
	return metrics.GetOrRegisterCounter("chunked."+name, o.registry)
}

// Write queues a chunk and flushes if no other goroutine is flushing.
// A nil chunk only flushes.  That includes typed nils such as a nil
// pointer when T is a pointer type.
func (o *Output[T]) Write(chunk T) error {
	if o.Closed() {
		return ErrClosed
	}
	if !isNil(chunk) {
		o.lock.Lock()
		for o.capacity > 0 && len(o.queue) >= o.capacity && !o.Closed() {
			o.notFull.Wait()
		}
		if o.Closed() {
			o.lock.Unlock()
			return ErrClosed
		}
		o.queue = append(o.queue, chunk)
		o.lock.Unlock()
		o.counter("queued").Inc(1)
	}
	return o.flush()
}

func isNil(chunk any) bool {
	if chunk == nil {
		return true
	}
	v := reflect.ValueOf(chunk)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}

// Close stops accepting chunks.  Chunks already queued are still
// written and then the Sink is closed.  Close may be called any number
// of times from any goroutine.
func (o *Output[T]) Close() error {
	o.lock.Lock()
	atomic.StoreInt32(&o.closed, 1)
	o.notFull.Broadcast()
	o.lock.Unlock()
	return o.flush()
}

// Attach starts delivery to t
func (o *Output[T]) Attach(t Target) error {
	o.lock.Lock()
	if o.attached {
		o.lock.Unlock()
		return errors.Errorf("%s is already attached", o)
	}
	if t.Callback == nil {
		t.Callback = ConnectionCallbackFunc(func() {})
	}
	o.target = t
	o.attached = true
	o.lock.Unlock()
	return o.flush()
}

// poll removes the head of the queue.  The lock must be held.
func (o *Output[T]) poll() (T, bool) {
	var zero T
	if len(o.queue) == 0 {
		return zero, false
	}
	chunk := o.queue[0]
	o.queue[0] = zero
	o.queue = o.queue[1:]
	o.notFull.Signal()
	return chunk, true
}

func (o *Output[T]) flush() (err error) {
	if atomic.CompareAndSwapInt32(&o.resumed, 0, 1) && o.resumer != nil {
		o.resumer()
	}
	o.lock.Lock()
	attached := o.attached
	o.lock.Unlock()
	if !attached {
		return nil
	}

	defer func() {
		if !o.Closed() {
			return
		}
		o.lock.Lock()
		flushing := o.flushing
		o.lock.Unlock()
		if flushing {
			// the active flusher closes when it is done
			return
		}
		if cerr := o.closeSink(); err == nil {
			err = cerr
		}
		o.releaseOnce.Do(func() {
			if o.target.Request != nil {
				o.target.Request.Release()
			}
		})
	}()

	err = o.drain()
	if err != nil {
		o.onClose(err)
	}
	return err
}

// drain writes queued chunks until the queue is empty.  If another
// goroutine is already draining, it returns at once: that goroutine
// will pick up whatever was queued.
func (o *Output[T]) drain() error {
	o.lock.Lock()
	if o.flushing {
		o.lock.Unlock()
		return nil
	}
	chunk, ok := o.poll()
	if !ok {
		o.lock.Unlock()
		return nil
	}
	o.flushing = true
	o.lock.Unlock()

	for {
		if err := o.write(chunk); err != nil {
			return err
		}
		o.lock.Lock()
		chunk, ok = o.poll()
		o.lock.Unlock()
		if ok {
			continue
		}
		if err := o.target.Sink.Commit(); err != nil {
			o.disconnected(err)
			return errors.Wrap(err, "commit chunks")
		}
		// look again before giving up the flushing flag: a chunk or a
		// Close may have arrived during the commit
		o.lock.Lock()
		chunk, ok = o.poll()
		if !ok {
			o.flushing = false
			o.lock.Unlock()
			return nil
		}
		o.lock.Unlock()
	}
}

func (o *Output[T]) write(chunk T) error {
	t := o.target
	orig := t.Sink.Stream()
	written, err := t.Writer.WriteChunk(chunk, t.MediaType, t.Header, orig)
	if err != nil {
		var se *SerializationError
		if !errors.As(err, &se) {
			o.disconnected(err)
		}
		return errors.Wrapf(err, "write chunk to %s", o)
	}
	if len(o.delimiter) > 0 {
		if _, err := written.Write(o.delimiter); err != nil {
			o.disconnected(err)
			return errors.Wrap(err, "write chunk delimiter")
		}
	}
	if written != orig {
		t.Sink.Replace(written)
	}
	o.counter("written").Inc(1)
	return nil
}

func (o *Output[T]) disconnected(err error) {
	o.counter("disconnects").Inc(1)
	o.log.Warn("chunked output lost its connection", map[string]interface{}{
		"output": o.String(),
		"error":  err.Error(),
	})
	o.target.Callback.OnDisconnect()
}

// onClose forces the output closed and drops the queue so that
// blocked producers return
func (o *Output[T]) onClose(err error) {
	o.lock.Lock()
	atomic.StoreInt32(&o.closed, 1)
	dropped := len(o.queue)
	o.queue = nil
	o.flushing = false
	o.notFull.Broadcast()
	o.lock.Unlock()
	o.counter("failures").Inc(1)
	o.log.Debug("chunked output failed", map[string]interface{}{
		"output":  o.String(),
		"dropped": dropped,
		"error":   err.Error(),
	})
}

func (o *Output[T]) closeSink() error {
	o.sinkOnce.Do(func() {
		o.sinkErr = o.target.Sink.Close()
		o.counter("closed").Inc(1)
		if o.sinkErr != nil {
			o.sinkErr = errors.Wrap(o.sinkErr, "close chunked output sink")
		}
	})
	return o.sinkErr
}
