package mockphone

import (
	"fmt"
	"sync"
)

// Batch is the output of one producer, in generation order.
// Ownership passes to the Funnel on Send.
type Batch []string

// Funnel carries batches from many producers to one writer.
//
// It expects exactly one batch per producer and is buffered to hold all of
// them, so Send never blocks even if the writer falls behind.
// Sending too many batches, sending after Close, or closing before
// every batch has arrived are coordination bugs and panic.
type Funnel struct {
	ch chan Batch

	// mu protects sent and closed
	mu     sync.Mutex
	want   int
	sent   int
	closed bool
}

// NewFunnel returns a Funnel for the given number of producers.
func NewFunnel(producers int) *Funnel {
	return &Funnel{
		ch:   make(chan Batch, producers),
		want: producers,
	}
}

// Send hands b to the writer.
func (f *Funnel) Send(b Batch) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		panic("send on closed funnel")
	}
	if f.sent == f.want {
		panic(fmt.Sprintf("funnel: more than %d batches sent", f.want))
	}
	f.sent++
	f.ch <- b
}

// Close signals end-of-stream once every producer has sent its batch.
func (f *Funnel) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		panic("funnel closed twice")
	}
	if f.sent != f.want {
		panic(fmt.Sprintf("funnel closed with %d of %d batches sent", f.sent, f.want))
	}
	f.closed = true
	close(f.ch)
}

// Abort ends the stream without checking that every batch arrived.
// It is used when the run is already failing; later sends still panic.
// Abort after Close or Abort does nothing.
func (f *Funnel) Abort() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	close(f.ch)
}

// Batches returns the receive side, which is closed by Close or Abort.
func (f *Funnel) Batches() <-chan Batch {
	return f.ch
}
