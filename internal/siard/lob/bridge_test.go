package lob_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"db-siard/internal/siard/lob"
)

func TestBridge_ReleasesAllWaiters(t *testing.T) {
	b := lob.New(strings.NewReader("payload"))

	const waiters = 16
	var released atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Wait()
			released.Add(1)
		}()
	}

	b.Close()

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected every waiter to be released")
	}
	if released.Load() != waiters {
		t.Errorf("Expected %d releases, got %d", waiters, released.Load())
	}
}

func TestBridge_CloseIsIdempotent(t *testing.T) {
	b := lob.New(strings.NewReader(""))
	first := errors.New("first")
	if err := b.CloseWithError(first); err != nil {
		t.Errorf("Expected nil from CloseWithError, got %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("Expected second close to be a no-op, got %v", err)
	}
	if err := b.CloseWithError(errors.New("second")); err != nil {
		t.Errorf("Expected third close to be a no-op, got %v", err)
	}
	if err := b.Wait(); err != first {
		t.Errorf("Expected the first closing error, got %v", err)
	}
	if _, err := b.Read(make([]byte, 4)); !errors.Is(err, lob.ErrBridgeClosed) {
		t.Errorf("Expected reads after close to fail, got %v", err)
	}
}

func TestPump_DigestAndLength(t *testing.T) {
	b := lob.New(strings.NewReader("hello"))
	var got strings.Builder
	lob.Pump(b, func(r io.Reader) error {
		_, err := io.Copy(&got, r)
		return err
	})
	if err := b.Wait(); err != nil {
		t.Fatalf("Pump failed: %v", err)
	}
	if got.String() != "hello" {
		t.Errorf("Expected payload to be copied, got %q", got.String())
	}
	if b.Length() != 5 {
		t.Errorf("Expected length 5, got %d", b.Length())
	}
	if b.Digest() != "5D41402ABC4B2A76B9719D911017C592" {
		t.Errorf("Unexpected digest %s", b.Digest())
	}
}

func TestPump_ClosesOnFailureAndPanic(t *testing.T) {
	b := lob.New(strings.NewReader("x"))
	boom := errors.New("disk full")
	lob.Pump(b, func(io.Reader) error { return boom })
	if err := b.Wait(); err != boom {
		t.Errorf("Expected consumer error, got %v", err)
	}

	p := lob.New(strings.NewReader("x"))
	lob.Pump(p, func(io.Reader) error { panic("bad consumer") })
	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Expected bridge to close after a panic")
	}
	if err := p.Wait(); err == nil || !strings.Contains(err.Error(), "bad consumer") {
		t.Errorf("Expected panic to surface as an error, got %v", err)
	}
}

func TestBridge_WaitContext(t *testing.T) {
	block := make(chan struct{})
	b := lob.New(strings.NewReader("x"))
	lob.Pump(b, func(io.Reader) error {
		<-block
		return nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := b.WaitContext(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline error, got %v", err)
	}
	close(block)
}

func TestBridge_CountersWhileConsumerRuns(t *testing.T) {
	pr, pw := io.Pipe()
	b := lob.New(pr)
	lob.Pump(b, func(r io.Reader) error {
		_, err := io.Copy(io.Discard, r)
		return err
	})

	go func() {
		for i := 0; i < 100; i++ {
			pw.Write([]byte("abcd"))
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	for ctx.Err() == nil {
		b.Length()
		b.Digest()
	}
	if err := b.WaitContext(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline error, got %v", err)
	}
	pr.Close()
	if n := b.Length(); n < 0 || n > 400 {
		t.Errorf("Expected a partial length within the payload size, got %d", n)
	}
}
