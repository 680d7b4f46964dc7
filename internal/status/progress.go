package status

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// DefaultFlushInterval is a reasonable default flush interval
const DefaultFlushInterval = time.Second / 30

// Rewritable is a single line of output that is rewritten in place using carriage returns.
// A nil Rewritable discards all writes.
type Rewritable struct {
	Writer io.Writer

	FlushInterval time.Duration // minimum time between flushes

	m              sync.Mutex
	lastFlush      time.Time // last time we flushed
	longestContent int       // longest content ever flushed
	content        string    // current content
}

// Write replaces the content of the line.
func (rw *Rewritable) Write(value string) {
	if rw == nil {
		return
	}

	rw.m.Lock()
	defer rw.m.Unlock()

	rw.content = value
	rw.flush(false)
}

// Flush writes out the content, unless the last flush was too recent and force is not set.
func (rw *Rewritable) Flush(force bool) {
	if rw == nil {
		return
	}

	rw.m.Lock()
	defer rw.m.Unlock()

	rw.flush(force)
}

func (rw *Rewritable) flush(force bool) {
	if !force && time.Since(rw.lastFlush) <= rw.FlushInterval {
		return
	}

	rw.longestContent = max(rw.longestContent, len(rw.content))

	// blank out leftovers of longer content
	blank := strings.Repeat(" ", rw.longestContent-len(rw.content))
	fmt.Fprintf(rw.Writer, "\r%s%s", rw.content, blank)

	rw.lastFlush = time.Now()
}

// Close clears the line.
func (rw *Rewritable) Close() {
	if rw == nil {
		return
	}

	rw.m.Lock()
	defer rw.m.Unlock()

	rw.content = ""
	rw.flush(true)
	rw.Writer.Write([]byte("\r"))
}

// Reader writes the number of bytes read to a Rewritable.
type Reader struct {
	io.Reader       // Reader to read from
	Bytes     int64 // total number of bytes read (so far)

	Progress *Rewritable
}

func (cr *Reader) Read(bytes []byte) (int, error) {
	count, err := cr.Reader.Read(bytes)
	cr.Bytes += int64(count)
	cr.Progress.Write(fmt.Sprintf("Read %s", humanize.Bytes(uint64(cr.Bytes))))
	return count, err
}

// Writer writes the number of bytes written to a Rewritable.
type Writer struct {
	io.Writer       // Writer to write to
	Bytes     int64 // Total number of bytes written

	Progress *Rewritable
}

func (cw *Writer) Write(bytes []byte) (int, error) {
	cw.Bytes += int64(len(bytes))
	cw.Progress.Write(fmt.Sprintf("Wrote %s", humanize.Bytes(uint64(cw.Bytes))))
	return cw.Writer.Write(bytes)
}
