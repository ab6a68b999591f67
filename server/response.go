package server

import (
	"bytes"
	"io"
	"net/http/httputil"
	"strconv"
)

const (
	// ReasonPageNotFound is the reason phrase of the 404 status line.
	ReasonPageNotFound = "PAGE_NOT_FOUND"
	protocol           = "HTTP/1.1"
)

type HeaderField struct {
	Name  string
	Value string
}

// Response is a fully buffered response. Framing headers are derived from the body when the
// response is written: pages get a Content-Length, chunked responses a Transfer-Encoding header.
type Response struct {
	StatusCode int
	Reason     string
	Header     []HeaderField
	Body       []byte
	// ChunkSize > 0 writes the body with chunked transfer encoding in chunks of at most ChunkSize bytes.
	ChunkSize int
}

func newPageResponse(code int, reason string, body []byte) Response {
	return Response{StatusCode: code, Reason: reason, Body: body}
}

// Chunked returns true if the body is written with chunked transfer encoding.
func (r Response) Chunked() bool {
	return r.ChunkSize > 0
}

// Get returns the value of the first header called name, framing headers excluded.
func (r Response) Get(name string) string {
	for _, field := range r.Header {
		if field.Name == name {
			return field.Value
		}
	}
	return ""
}

// StatusLine returns e.g. "HTTP/1.1 200 OK" without line terminator.
func (r Response) StatusLine() string {
	return protocol + " " + strconv.Itoa(r.StatusCode) + " " + r.Reason
}

// Bytes returns the response exactly as it is sent over the wire.
func (r Response) Bytes() []byte {
	var buf bytes.Buffer
	buf.WriteString(r.StatusLine())
	buf.WriteString("\r\n")
	for _, field := range r.Header {
		buf.WriteString(field.Name + ": " + field.Value + "\r\n")
	}
	if r.Chunked() {
		buf.WriteString("Transfer-Encoding: chunked\r\n\r\n")
		buf.Write(ChunkBody(r.Body, r.ChunkSize))
	} else {
		buf.WriteString("Content-Length: " + strconv.Itoa(len(r.Body)) + "\r\n\r\n")
		buf.Write(r.Body)
	}
	return buf.Bytes()
}

// WriteTo implements [io.WriterTo].
func (r Response) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(r.Bytes())
	return int64(n), err
}

// ChunkBody frames data as a chunked transfer encoded body with chunks of at most size bytes,
// followed by the terminating zero-length chunk and an empty trailer.
func ChunkBody(data []byte, size int) []byte {
	if size <= 0 {
		size = len(data)
	}
	var buf bytes.Buffer
	chunked := httputil.NewChunkedWriter(&buf)
	for len(data) > 0 {
		n := min(size, len(data))
		_, _ = chunked.Write(data[:n])
		data = data[n:]
	}
	_ = chunked.Close()
	buf.WriteString("\r\n")
	return buf.Bytes()
}
