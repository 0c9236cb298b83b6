package transport

import (
	"bytes"
	"encoding/binary"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pimalaya/timerd/pkg/protocol"
	"github.com/pimalaya/timerd/pkg/protolog"
)

func TestFrameWriterReader(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{name: "small message", payload: []byte("hello")},
		{name: "medium message", payload: bytes.Repeat([]byte("x"), 1000)},
		{name: "max size message", payload: bytes.Repeat([]byte("y"), DefaultMaxMessageSize)},
		{name: "single byte", payload: []byte{0x42}},
		{name: "binary data", payload: []byte{0x00, 0xFF, 0x7F, 0x80}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := new(bytes.Buffer)

			writer := NewFrameWriter(buf)
			require.NoError(t, writer.WriteFrame(tt.payload))
			assert.Equal(t, LengthPrefixSize+len(tt.payload), buf.Len())

			reader := NewFrameReader(buf)
			got, err := reader.ReadFrame()
			require.NoError(t, err)
			assert.Equal(t, tt.payload, got)
		})
	}
}

func TestDefaultMaxMessageSizeMatchesProtocol(t *testing.T) {
	assert.EqualValues(t, protocol.MaxPayloadSize, DefaultMaxMessageSize)
}

func TestFrameWriterEmptyMessage(t *testing.T) {
	buf := new(bytes.Buffer)
	writer := NewFrameWriter(buf)

	assert.ErrorIs(t, writer.WriteFrame([]byte{}), ErrMessageEmpty)
	assert.ErrorIs(t, writer.WriteFrame(nil), ErrMessageEmpty)
}

func TestFrameWriterMessageTooLarge(t *testing.T) {
	buf := new(bytes.Buffer)
	writer := NewFrameWriterWithMaxSize(buf, 100)

	err := writer.WriteFrame(bytes.Repeat([]byte("x"), 101))
	assert.ErrorIs(t, err, ErrMessageTooLarge)
	assert.Equal(t, protocol.ErrorKindFrameTooLarge, ClassifyFrameError(err))
}

func TestFrameReaderMessageTooLarge(t *testing.T) {
	buf := new(bytes.Buffer)

	var lengthBuf [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(lengthBuf[:], 1000)
	buf.Write(lengthBuf[:])
	buf.Write(bytes.Repeat([]byte("x"), 1000))

	reader := NewFrameReaderWithMaxSize(buf, 100)
	_, err := reader.ReadFrame()
	assert.ErrorIs(t, err, ErrMessageTooLarge)
	assert.Equal(t, protocol.ErrorKindFrameTooLarge, ClassifyFrameError(err))
}

func TestFrameReaderEmptyLength(t *testing.T) {
	buf := new(bytes.Buffer)

	var lengthBuf [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(lengthBuf[:], 0)
	buf.Write(lengthBuf[:])

	reader := NewFrameReader(buf)
	_, err := reader.ReadFrame()
	assert.ErrorIs(t, err, ErrMessageEmpty)
}

func TestFrameReaderTruncatedLength(t *testing.T) {
	buf := new(bytes.Buffer)
	buf.Write([]byte{0x00, 0x01})

	reader := NewFrameReader(buf)
	_, err := reader.ReadFrame()
	assert.ErrorIs(t, err, ErrFrameTruncated)
	assert.Equal(t, protocol.ErrorKindEndOfStream, ClassifyFrameError(err))
}

func TestFrameReaderTruncatedPayload(t *testing.T) {
	buf := new(bytes.Buffer)

	var lengthBuf [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(lengthBuf[:], 100)
	buf.Write(lengthBuf[:])
	buf.Write(bytes.Repeat([]byte("x"), 50))

	reader := NewFrameReader(buf)
	_, err := reader.ReadFrame()
	assert.ErrorIs(t, err, ErrFrameTruncated)
}

func TestFrameReaderEOF(t *testing.T) {
	buf := new(bytes.Buffer)
	reader := NewFrameReader(buf)

	_, err := reader.ReadFrame()
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, protocol.ErrorKindEndOfStream, ClassifyFrameError(err))
}

func TestClassifyFrameErrorDecodeFallback(t *testing.T) {
	assert.Equal(t, protocol.ErrorKind(""), ClassifyFrameError(nil))

	perr := &protocol.Error{Kind: protocol.ErrorKindState, Message: "timer already running"}
	assert.Equal(t, protocol.ErrorKindState, ClassifyFrameError(perr))

	assert.Equal(t, protocol.ErrorKindDecode, ClassifyFrameError(io.ErrClosedPipe))
}

func TestFramerBidirectional(t *testing.T) {
	r, w := io.Pipe()
	defer r.Close()
	defer w.Close()

	done := make(chan struct{})
	payload := []byte("test message")

	go func() {
		defer close(done)
		framer := NewFramer(&readWriter{r: r, w: w})
		assert.NoError(t, framer.WriteFrame(payload))
	}()

	framer := NewFramer(&readWriter{r: r, w: w})
	got, err := framer.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	<-done
}

// readWriter combines a reader and writer for testing.
type readWriter struct {
	r io.Reader
	w io.Writer
}

func (rw *readWriter) Read(p []byte) (n int, err error)  { return rw.r.Read(p) }
func (rw *readWriter) Write(p []byte) (n int, err error) { return rw.w.Write(p) }

func TestMultipleFrames(t *testing.T) {
	buf := new(bytes.Buffer)
	writer := NewFrameWriter(buf)

	messages := [][]byte{[]byte("first"), []byte("second"), []byte("third")}
	for _, msg := range messages {
		require.NoError(t, writer.WriteFrame(msg))
	}

	reader := NewFrameReader(buf)
	for i, want := range messages {
		got, err := reader.ReadFrame()
		require.NoErrorf(t, err, "frame %d", i)
		assert.Equal(t, want, got)
	}

	_, err := reader.ReadFrame()
	assert.Equal(t, io.EOF, err)
}

func TestFrameSize(t *testing.T) {
	assert.Equal(t, 104, FrameSize(100))
	assert.Equal(t, 4, FrameSize(0))
}

func BenchmarkFrameWrite(b *testing.B) {
	buf := new(bytes.Buffer)
	writer := NewFrameWriter(buf)
	payload := bytes.Repeat([]byte("x"), 1000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Reset()
		writer.WriteFrame(payload)
	}
}

func BenchmarkFrameRead(b *testing.B) {
	buf := new(bytes.Buffer)
	writer := NewFrameWriter(buf)
	payload := bytes.Repeat([]byte("x"), 1000)

	for i := 0; i < 1000; i++ {
		writer.WriteFrame(payload)
	}

	data := buf.Bytes()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		reader := NewFrameReader(bytes.NewReader(data))
		for {
			_, err := reader.ReadFrame()
			if err == io.EOF {
				break
			}
			if err != nil {
				b.Fatal(err)
			}
		}
	}
}

// capturingLogger captures protolog events for testing.
type capturingLogger struct {
	mu     sync.Mutex
	events []protolog.Event
}

func (l *capturingLogger) Log(event protolog.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *capturingLogger) Events() []protolog.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]protolog.Event(nil), l.events...)
}

func TestFrameWriterLogsOnWrite(t *testing.T) {
	buf := new(bytes.Buffer)
	logger := &capturingLogger{}

	writer := NewFrameWriter(buf)
	writer.SetLogger(logger, "conn-123")

	payload := []byte("hello")
	require.NoError(t, writer.WriteFrame(payload))

	events := logger.Events()
	require.Len(t, events, 1)

	e := events[0]
	assert.Equal(t, "conn-123", e.ConnectionID)
	assert.Equal(t, protolog.DirectionOut, e.Direction)
	assert.Equal(t, protolog.LayerTransport, e.Layer)
	assert.Equal(t, protolog.CategoryMessage, e.Category)
	require.NotNil(t, e.Frame)
	assert.Equal(t, LengthPrefixSize+len(payload), e.Frame.Size)
	assert.Equal(t, payload, e.Frame.Data)
}

func TestFrameReaderLogsOnRead(t *testing.T) {
	buf := new(bytes.Buffer)
	writer := NewFrameWriter(buf)
	payload := []byte("world")
	require.NoError(t, writer.WriteFrame(payload))

	logger := &capturingLogger{}
	reader := NewFrameReader(buf)
	reader.SetLogger(logger, "conn-456")

	data, err := reader.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	events := logger.Events()
	require.Len(t, events, 1)

	e := events[0]
	assert.Equal(t, "conn-456", e.ConnectionID)
	assert.Equal(t, protolog.DirectionIn, e.Direction)
	assert.Equal(t, protolog.LayerTransport, e.Layer)
	require.NotNil(t, e.Frame)
	assert.Equal(t, payload, e.Frame.Data)
}

func TestFramerLogsWithConnectionID(t *testing.T) {
	r, w := io.Pipe()
	defer r.Close()
	defer w.Close()

	logger := &capturingLogger{}
	done := make(chan struct{})

	go func() {
		defer close(done)
		framer := NewFramer(&readWriter{r: r, w: w})
		framer.SetLogger(logger, "conn-789")
		framer.WriteFrame([]byte("test"))
	}()

	framer := NewFramer(&readWriter{r: r, w: w})
	framer.SetLogger(logger, "conn-789")
	framer.ReadFrame()

	<-done

	events := logger.Events()
	require.GreaterOrEqual(t, len(events), 2)
	for _, e := range events {
		assert.Equal(t, "conn-789", e.ConnectionID)
	}
}

func TestFramerNoLoggerNoPanic(t *testing.T) {
	buf := new(bytes.Buffer)

	writer := NewFrameWriter(buf)
	require.NoError(t, writer.WriteFrame([]byte("hello")))

	reader := NewFrameReader(buf)
	_, err := reader.ReadFrame()
	require.NoError(t, err)

	buf.Reset()
	writer.SetLogger(nil, "conn-id")
	assert.NoError(t, writer.WriteFrame([]byte("world")))
}

func TestFramerLogsTruncatedData(t *testing.T) {
	buf := new(bytes.Buffer)
	logger := &capturingLogger{}

	writer := NewFrameWriter(buf)
	writer.SetLogger(logger, "conn-trunc")

	largePayload := bytes.Repeat([]byte("x"), 5000)
	require.NoError(t, writer.WriteFrame(largePayload))

	events := logger.Events()
	require.Len(t, events, 1)

	e := events[0]
	require.NotNil(t, e.Frame)
	assert.Equal(t, LengthPrefixSize+len(largePayload), e.Frame.Size)
	assert.Len(t, e.Frame.Data, MaxLogFrameDataSize)
	assert.True(t, e.Frame.Truncated)
}
