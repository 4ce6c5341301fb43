// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/arduino-utils/arduino/lib/testutil"
)

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(Config{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(Config{Path: "/dev/null", Driver: "bluetooth"})
	if err == nil || !strings.Contains(err.Error(), `unknown driver "bluetooth"`) {
		t.Fatalf("err = %v, want unknown driver error", err)
	}
}

// recordingWriter records each Write call separately.
type recordingWriter struct {
	mu     sync.Mutex
	writes []string
	fail   error
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail != nil {
		return 0, w.fail
	}
	w.writes = append(w.writes, string(p))
	return len(p), nil
}

func TestPacedWriterConcurrentPayloadsStayWhole(t *testing.T) {
	recorder := &recordingWriter{}
	paced := NewPacedWriter(recorder, 0)

	const senders = 20
	var waitGroup sync.WaitGroup
	waitGroup.Add(senders)
	for i := range senders {
		go func() {
			defer waitGroup.Done()
			payload := strings.Repeat(string(rune('a'+i)), 200)
			if err := paced.WritePayload(context.Background(), []byte(payload)); err != nil {
				t.Errorf("WritePayload: %v", err)
			}
		}()
	}
	waitGroup.Wait()

	if len(recorder.writes) != senders {
		t.Fatalf("got %d writes, want %d", len(recorder.writes), senders)
	}
	for _, write := range recorder.writes {
		if write != strings.Repeat(write[:1], 200) {
			t.Errorf("interleaved payload: %q", write)
		}
	}
}

func TestPacedWriterSkipsEmptyPayload(t *testing.T) {
	recorder := &recordingWriter{}
	if err := NewPacedWriter(recorder, 0).WritePayload(context.Background(), nil); err != nil {
		t.Fatalf("WritePayload: %v", err)
	}
	if len(recorder.writes) != 0 {
		t.Errorf("empty payload produced %d writes", len(recorder.writes))
	}
}

func TestPacedWriterHonoursCancellationWhileThrottled(t *testing.T) {
	recorder := &recordingWriter{}
	paced := NewPacedWriter(recorder, 10)

	// The first payload spends the whole burst.
	if err := paced.WritePayload(context.Background(), []byte(strings.Repeat("x", 255))); err != nil {
		t.Fatalf("first WritePayload: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := paced.WritePayload(ctx, []byte("hello"))
	if err == nil {
		t.Fatal("expected error from cancelled context while throttled")
	}
	if len(recorder.writes) != 1 {
		t.Errorf("throttled payload was written anyway: %q", recorder.writes)
	}
}

func TestPacedWriterReportsDeviceErrors(t *testing.T) {
	recorder := &recordingWriter{fail: errors.New("EIO")}
	err := NewPacedWriter(recorder, 0).WritePayload(context.Background(), []byte("hello"))
	if err == nil || !strings.Contains(err.Error(), "EIO") {
		t.Fatalf("err = %v, want wrapped EIO", err)
	}
}

// gatedWriter blocks every Write until release is closed.
type gatedWriter struct {
	entered chan struct{}
	release chan struct{}
	recordingWriter
}

func (w *gatedWriter) Write(p []byte) (int, error) {
	w.entered <- struct{}{}
	<-w.release
	return w.recordingWriter.Write(p)
}

func TestPacedWriterDropsQueuedPayloadAfterCancellation(t *testing.T) {
	writer := &gatedWriter{entered: make(chan struct{}, 2), release: make(chan struct{})}
	paced := NewPacedWriter(writer, 0)

	first := make(chan error, 1)
	go func() { first <- paced.WritePayload(context.Background(), []byte("first")) }()
	testutil.RequireReceive(t, writer.entered, 5*time.Second, "first write started")

	ctx, cancel := context.WithCancel(context.Background())
	queued := make(chan error, 1)
	go func() { queued <- paced.WritePayload(ctx, []byte("queued")) }()
	cancel()
	close(writer.release)

	if err := testutil.RequireReceive(t, first, 5*time.Second, "first write finished"); err != nil {
		t.Fatalf("first WritePayload: %v", err)
	}
	if err := testutil.RequireReceive(t, queued, 5*time.Second, "queued write returned"); !errors.Is(err, context.Canceled) {
		t.Fatalf("queued WritePayload = %v, want context.Canceled", err)
	}
	if len(writer.writes) != 1 || writer.writes[0] != "first" {
		t.Fatalf("device writes = %q, want only the first payload", writer.writes)
	}
}
