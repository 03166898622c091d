// Package lob moves large object payloads from a row producer into the
// archive entry that holds them without buffering the payload.
package lob

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"strings"
	"sync"
)

var ErrBridgeClosed = errors.New("lob bridge closed")

// Bridge wraps a payload stream. A consumer drains it and closes it exactly
// once; any number of goroutines may wait for that closure.
type Bridge struct {
	src io.Reader

	mu   sync.Mutex
	hash hash.Hash
	n    int64

	once sync.Once
	done chan struct{}
	err  error
}

// New wraps src. The bridge counts and digests every byte read through it.
func New(src io.Reader) *Bridge {
	return &Bridge{src: src, hash: md5.New(), done: make(chan struct{})}
}

func (b *Bridge) Read(p []byte) (int, error) {
	select {
	case <-b.done:
		return 0, ErrBridgeClosed
	default:
	}
	n, err := b.src.Read(p)
	if n > 0 {
		b.mu.Lock()
		b.hash.Write(p[:n])
		b.n += int64(n)
		b.mu.Unlock()
	}
	return n, err
}

// Close releases every waiter. Only the first call has an effect.
func (b *Bridge) Close() error { return b.CloseWithError(nil) }

// CloseWithError releases every waiter with err. Only the first call has an
// effect; later calls return nil.
func (b *Bridge) CloseWithError(err error) error {
	b.once.Do(func() {
		b.err = err
		close(b.done)
	})
	return nil
}

// Done is closed once the bridge is.
func (b *Bridge) Done() <-chan struct{} { return b.done }

// Wait blocks until the bridge is closed and returns the closing error.
func (b *Bridge) Wait() error {
	<-b.done
	return b.err
}

// WaitContext is Wait with a deadline. When ctx ends first the bridge is
// closed with the context cause and WaitContext returns at once. A consumer
// blocked inside the source Read keeps running until that Read returns; the
// caller unblocks it by closing the source.
func (b *Bridge) WaitContext(ctx context.Context) error {
	select {
	case <-b.done:
		return b.err
	case <-ctx.Done():
		b.CloseWithError(context.Cause(ctx))
		return b.Wait()
	}
}

// Length is the number of bytes drained so far. It is final once the
// consumer has returned.
func (b *Bridge) Length() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.n
}

// Digest is the upper-case hex MD5 of the bytes drained so far.
func (b *Bridge) Digest() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.ToUpper(hex.EncodeToString(b.hash.Sum(nil)))
}

// Pump runs dst on its own goroutine with the bridge as input. The bridge is
// closed when dst returns, fails or panics.
func Pump(b *Bridge, dst func(io.Reader) error) {
	go func() {
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("lob consumer panicked: %v", r)
			}
			b.CloseWithError(err)
		}()
		err = dst(b)
	}()
}
