package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, root string) (*Watcher, <-chan string) {
	t.Helper()

	w, err := NewWatcher(root)
	require.NoError(t, err)

	changes := make(chan string, 64)
	w.OnChange(func(path string) {
		select {
		case changes <- path:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
		w.Close()
	})

	return w, changes
}

func waitForChange(t *testing.T, changes <-chan string, touch func()) string {
	t.Helper()

	var got string
	require.Eventually(t, func() bool {
		touch()
		select {
		case got = <-changes:
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	return got
}

func TestNewWatcher_SetupErrors(t *testing.T) {
	tmpDir := t.TempDir()
	filePath := filepath.Join(tmpDir, "file.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("x"), 0644))

	tests := []struct {
		name string
		path string
	}{
		{
			name: "missing path",
			path: filepath.Join(tmpDir, "does-not-exist"),
		},
		{
			name: "regular file",
			path: filePath,
		},
		{
			name: "empty path",
			path: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := NewWatcher(tt.path)
			require.Error(t, err)
			assert.Nil(t, w)

			var setupErr *SetupError
			require.True(t, errors.As(err, &setupErr))
			assert.Equal(t, tt.path, setupErr.Path)
			assert.Contains(t, err.Error(), "cannot watch")
		})
	}
}

func TestSetupError_Unwrap(t *testing.T) {
	err := &SetupError{Path: "/missing", Err: os.ErrNotExist}
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Equal(t, "cannot watch /missing: file does not exist", err.Error())
}

func TestWatcher_ReportsFileWrites(t *testing.T) {
	root := t.TempDir()
	w, changes := startWatcher(t, root)
	assert.Equal(t, root, w.Root())

	target := filepath.Join(root, "main.go")
	got := waitForChange(t, changes, func() {
		os.WriteFile(target, []byte("package main\n"), 0644)
	})

	assert.Equal(t, target, got)
}

func TestWatcher_ReportsRemoveAndRename(t *testing.T) {
	root := t.TempDir()
	oldPath := filepath.Join(root, "old.txt")
	newPath := filepath.Join(root, "new.txt")
	gone := filepath.Join(root, "gone.txt")
	require.NoError(t, os.WriteFile(oldPath, []byte("a"), 0644))
	require.NoError(t, os.WriteFile(gone, []byte("b"), 0644))

	_, changes := startWatcher(t, root)

	require.NoError(t, os.Rename(oldPath, newPath))
	require.NoError(t, os.Remove(gone))

	seen := make(map[string]bool)
	require.Eventually(t, func() bool {
		for {
			select {
			case p := <-changes:
				seen[p] = true
			default:
				return seen[oldPath] && seen[gone]
			}
		}
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatcher_ExistingSubdirectories(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "pkg", "nested")
	require.NoError(t, os.MkdirAll(nested, 0755))

	_, changes := startWatcher(t, root)

	target := filepath.Join(nested, "file.go")
	got := waitForChange(t, changes, func() {
		os.WriteFile(target, []byte("package nested\n"), 0644)
	})

	assert.Equal(t, target, got)
}

func waitForPath(t *testing.T, changes <-chan string, want string, touch func()) {
	t.Helper()

	require.Eventually(t, func() bool {
		touch()
		for {
			select {
			case p := <-changes:
				if p == want {
					return true
				}
			case <-time.After(50 * time.Millisecond):
				return false
			}
		}
	}, 5*time.Second, 10*time.Millisecond)
}

func TestWatcher_NewSubdirectoriesAreWatched(t *testing.T) {
	tests := []struct {
		name   string
		create string
		write  string
	}{
		{
			name:   "new directory",
			create: "generated",
			write:  "generated/out.txt",
		},
		{
			name:   "new directory tree",
			create: "build/gen/proto",
			write:  "build/gen/proto/api.pb.go",
		},
		{
			name:   "file in intermediate new directory",
			create: "dist/assets",
			write:  "dist/index.html",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			_, changes := startWatcher(t, root)

			require.NoError(t, os.MkdirAll(filepath.Join(root, tt.create), 0755))
			waitForChange(t, changes, func() {})

			// Write once so the file event can only come from a watch on the new directory.
			target := filepath.Join(root, tt.write)
			time.Sleep(100 * time.Millisecond)
			require.NoError(t, os.WriteFile(target, []byte("data"), 0644))

			waitForPath(t, changes, target, func() {})
		})
	}
}

func TestWatcher_RegistrationErrorsReported(t *testing.T) {
	w, err := NewWatcher(t.TempDir())
	require.NoError(t, err)
	defer w.Close()

	var reported []error
	w.OnError(func(err error) {
		reported = append(reported, err)
	})

	missing := filepath.Join(w.Root(), "vanished")
	w.addRecursive(missing)

	require.Len(t, reported, 1)
	assert.Contains(t, reported[0].Error(), "failed to walk "+missing)
}

func TestWatcher_PendingErrorsDeliveredByRun(t *testing.T) {
	w, err := NewWatcher(t.TempDir())
	require.NoError(t, err)
	defer w.Close()

	w.addRecursive(filepath.Join(w.Root(), "vanished"))

	reported := make(chan error, 1)
	w.OnError(func(err error) {
		reported <- err
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	select {
	case err = <-reported:
		assert.Contains(t, err.Error(), "failed to walk")
	case <-time.After(2 * time.Second):
		t.Fatal("registration error was not reported")
	}
}

func TestWatcher_ChmodIsNotActivity(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "script.sh")
	require.NoError(t, os.WriteFile(target, []byte("#!/bin/sh\n"), 0644))

	_, changes := startWatcher(t, root)

	require.NoError(t, os.Chmod(target, 0755))

	select {
	case p := <-changes:
		t.Fatalf("unexpected change for %s", p)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_RunStopsOnCancel(t *testing.T) {
	w, err := NewWatcher(t.TempDir())
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx)
	}()

	cancel()

	select {
	case err = <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestWatcher_RunStopsOnClose(t *testing.T) {
	w, err := NewWatcher(t.TempDir())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- w.Run(context.Background())
	}()

	require.NoError(t, w.Close())

	select {
	case err = <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}
}
