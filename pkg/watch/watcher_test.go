package watch

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/classmeter/pkg/config"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestWatcher(t *testing.T, dir string, debounce time.Duration) (*Watcher, *syncBuffer) {
	t.Helper()
	out := &syncBuffer{}
	w, err := NewWatcher(dir, config.DefaultConfig(), WithDebounce(debounce), WithOutput(out))
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })
	return w, out
}

func TestNewWatcher(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWatcher(dir, nil)
	require.NoError(t, err)
	defer w.Stop()
	assert.Equal(t, DefaultDebounce, w.debounce)
	assert.NotNil(t, w.config)
	assert.NotNil(t, w.pending)

	w2, err := NewWatcher(dir, nil, WithDebounce(-time.Second))
	require.NoError(t, err)
	defer w2.Stop()
	assert.Equal(t, DefaultDebounce, w2.debounce, "negative debounce keeps the default")

	w3, err := NewWatcher(dir, nil, WithDebounce(time.Second))
	require.NoError(t, err)
	defer w3.Stop()
	assert.Equal(t, time.Second, w3.debounce)
}

func TestWatcher_handleEvent(t *testing.T) {
	dir := t.TempDir()
	w, _ := newTestWatcher(t, dir, time.Second)

	tests := []struct {
		name    string
		event   fsnotify.Event
		pending bool
	}{
		{"write class", fsnotify.Event{Name: filepath.Join(dir, "A.class"), Op: fsnotify.Write}, true},
		{"create nested class", fsnotify.Event{Name: filepath.Join(dir, "com", "B.class"), Op: fsnotify.Create}, true},
		{"remove class", fsnotify.Event{Name: filepath.Join(dir, "C.class"), Op: fsnotify.Remove}, false},
		{"chmod class", fsnotify.Event{Name: filepath.Join(dir, "D.class"), Op: fsnotify.Chmod}, false},
		{"java source", fsnotify.Event{Name: filepath.Join(dir, "E.java"), Op: fsnotify.Write}, false},
		{"excluded dir", fsnotify.Event{Name: filepath.Join(dir, ".classmeter", "cache", "F.class"), Op: fsnotify.Write}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w.handleEvent(tt.event)
			w.mu.Lock()
			_, ok := w.pending[tt.event.Name]
			w.mu.Unlock()
			assert.Equal(t, tt.pending, ok)
		})
	}
}

func TestWatcher_processPending(t *testing.T) {
	dir := t.TempDir()
	w, _ := newTestWatcher(t, dir, 50*time.Millisecond)

	done := make(chan string, 2)
	w.SetCallback(func(_ context.Context, path string) { done <- path })

	ready := filepath.Join(dir, "Ready.class")
	fresh := filepath.Join(dir, "Fresh.class")
	w.pending[ready] = time.Now().Add(-time.Second)
	w.pending[fresh] = time.Now()

	w.processPending(context.Background())

	select {
	case got := <-done:
		assert.Equal(t, ready, got)
	case <-time.After(time.Second):
		t.Fatal("callback not called for a settled file")
	}

	w.mu.Lock()
	_, freshPending := w.pending[fresh]
	_, readyPending := w.pending[ready]
	w.mu.Unlock()
	assert.True(t, freshPending, "recent change stays pending")
	assert.False(t, readyPending)
}

func TestWatcher_processPending_NoCallback(t *testing.T) {
	w, _ := newTestWatcher(t, t.TempDir(), 10*time.Millisecond)
	w.pending["X.class"] = time.Now().Add(-time.Second)
	w.processPending(context.Background())
	assert.Empty(t, w.pending)
}

func TestWatcher_Start_Context(t *testing.T) {
	w, _ := newTestWatcher(t, t.TempDir(), 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Start(ctx) }()

	<-w.Ready()
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}
}

func TestWatcher_Start_ClassFileChange(t *testing.T) {
	dir := t.TempDir()
	w, out := newTestWatcher(t, dir, 50*time.Millisecond)

	var calls atomic.Int32
	got := make(chan string, 4)
	w.SetCallback(func(_ context.Context, path string) {
		calls.Add(1)
		got <- path
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)
	<-w.Ready()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Ignored.java"), []byte("class X {}"), 0644))
	classFile := filepath.Join(dir, "App.class")
	require.NoError(t, os.WriteFile(classFile, []byte{0xCA, 0xFE, 0xBA, 0xBE}, 0644))

	select {
	case path := <-got:
		assert.Equal(t, classFile, path)
	case <-time.After(3 * time.Second):
		t.Fatal("callback should be called when a class file is written")
	}
	assert.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("File changed: App.class"))
	}, time.Second, 10*time.Millisecond)
}

func TestWatcher_Start_NewPackageDirectory(t *testing.T) {
	dir := t.TempDir()
	w, _ := newTestWatcher(t, dir, 50*time.Millisecond)

	got := make(chan string, 4)
	w.SetCallback(func(_ context.Context, path string) { got <- path })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)
	<-w.Ready()

	pkg := filepath.Join(dir, "com", "example")
	require.NoError(t, os.MkdirAll(pkg, 0755))
	require.Eventually(t, func() bool {
		for _, d := range w.WatchedDirs() {
			if d == pkg {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond, "new directories are watched")

	classFile := filepath.Join(pkg, "Inner.class")
	require.NoError(t, os.WriteFile(classFile, []byte{0xCA, 0xFE}, 0644))

	select {
	case path := <-got:
		assert.Equal(t, classFile, path)
	case <-time.After(3 * time.Second):
		t.Fatal("callback should fire for class files in new directories")
	}
}

func TestWatcher_Start_ExcludedDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".classmeter", "cache"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "out"), 0755))

	w, _ := newTestWatcher(t, dir, 50*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)
	<-w.Ready()

	watched := w.WatchedDirs()
	assert.Contains(t, watched, filepath.Join(dir, "out"))
	for _, path := range watched {
		assert.NotEqual(t, ".classmeter", filepath.Base(path))
		assert.NotEqual(t, "cache", filepath.Base(path))
	}
}
