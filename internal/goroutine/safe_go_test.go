package goroutine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
	done  chan struct{}
}

func (l *recordingLogger) Errorf(format string, args ...interface{}) {
	l.mu.Lock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
	l.mu.Unlock()
	close(l.done)
}

func TestSafeGoRecoversPanic(t *testing.T) {
	log := &recordingLogger{done: make(chan struct{})}
	rh := NewRecoveryHandler(log)

	rh.SafeGo(func() { panic("boom") })

	select {
	case <-log.done:
	case <-time.After(2 * time.Second):
		t.Fatal("panic не был залогирован")
	}

	log.mu.Lock()
	defer log.mu.Unlock()
	assert.Len(t, log.lines, 1)
	assert.Contains(t, log.lines[0], "boom")
}

func TestSafeGoRunsFunction(t *testing.T) {
	done := make(chan struct{})
	SafeGo(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("функция не была выполнена")
	}
}

func TestSafeGoWithContextPassesContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")

	got := make(chan any, 1)
	SafeGoWithContext(ctx, func(ctx context.Context) { got <- ctx.Value(key{}) })

	select {
	case v := <-got:
		assert.Equal(t, "v", v)
	case <-time.After(2 * time.Second):
		t.Fatal("функция не была выполнена")
	}
}

func TestSafeGoWithContextRecoversPanic(t *testing.T) {
	log := &recordingLogger{done: make(chan struct{})}
	rh := NewRecoveryHandler(log)

	rh.SafeGoWithContext(context.Background(), func(context.Context) { panic("boom") })

	select {
	case <-log.done:
	case <-time.After(2 * time.Second):
		t.Fatal("panic не был залогирован")
	}

	log.mu.Lock()
	defer log.mu.Unlock()
	assert.Contains(t, log.lines[0], "with context")
}
