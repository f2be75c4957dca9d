// Package stream provides the two halves of chat response plumbing: Fork
// splits a model byte stream into independent copies, and Scanner
// recovers assistant text from newline-delimited JSON chunks.
package stream

import (
	"io"
	"sync"
)

// Fork reads src once and delivers every byte to two independent
// readers. Each branch buffers unread data without bound, so a slow or
// abandoned consumer on one branch never stalls the other. Both branches
// observe the same terminal condition: io.EOF on clean end of stream, or
// the source's read error. Closing a branch discards its remaining data;
// src is closed once the producer finishes, regardless of the branches.
func Fork(src io.ReadCloser) (io.ReadCloser, io.ReadCloser) {
	a := newBranch()
	b := newBranch()

	go func() {
		defer src.Close()
		buf := make([]byte, 32*1024)
		for {
			n, err := src.Read(buf)
			if n > 0 {
				a.append(buf[:n])
				b.append(buf[:n])
			}
			if err != nil {
				a.finish(err)
				b.finish(err)
				return
			}
		}
	}()

	return a, b
}

// branch is one output of Fork: an unbounded FIFO of byte chunks fed by
// the producer goroutine.
type branch struct {
	mu     sync.Mutex
	cond   *sync.Cond
	chunks [][]byte
	err    error // terminal condition once set
	closed bool
}

func newBranch() *branch {
	b := &branch{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *branch) append(p []byte) {
	chunk := make([]byte, len(p))
	copy(chunk, p)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.chunks = append(b.chunks, chunk)
	b.cond.Signal()
}

func (b *branch) finish(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = err
	b.cond.Broadcast()
}

func (b *branch) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for len(b.chunks) == 0 {
		if b.closed {
			return 0, io.ErrClosedPipe
		}
		if b.err != nil {
			return 0, b.err
		}
		b.cond.Wait()
	}

	n := copy(p, b.chunks[0])
	if n < len(b.chunks[0]) {
		b.chunks[0] = b.chunks[0][n:]
	} else {
		b.chunks = b.chunks[1:]
	}
	return n, nil
}

// Close abandons the branch. Buffered data is dropped and subsequent
// reads fail; the producer keeps feeding the other branch.
func (b *branch) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.chunks = nil
	b.cond.Broadcast()
	return nil
}
