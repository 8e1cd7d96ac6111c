package tuf

import (
	"bytes"
	"context"
	"encoding/binary"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name      string
		nodes     []testNode
		wantDirs  []string
		wantFiles map[string]string
	}{
		{
			name:     "empty directory",
			nodes:    []testNode{dirNode("dir1")},
			wantDirs: []string{"dir1"},
		},
		{
			name:      "leading slash is stripped",
			nodes:     []testNode{plainNode("/a.txt", "hello")},
			wantFiles: map[string]string{"a.txt": "hello"},
		},
		{
			name:      "zlib compressed",
			nodes:     []testNode{zlibNode(t, "b.bin", "hello world")},
			wantFiles: map[string]string{"b.bin": "hello world"},
		},
		{
			name: "raw deflate compressed",
			nodes: []testNode{func() testNode {
				data := deflateBytes(t, []byte("hello world"))
				return testNode{path: "c.bin", compressed: 1, originalSize: 11, compressedSize: uint32(len(data)), payload: data}
			}()},
			wantFiles: map[string]string{"c.bin": "hello world"},
		},
		{
			name: "mixed with padding",
			nodes: []testNode{
				dirNode("/fw"),
				{path: "//fw/boot.img", originalSize: 4, padding: 12, payload: []byte("BOOT")},
				dirNode("fw/charts"),
				func() testNode {
					n := zlibNode(t, "fw/charts/eu.dat", "chart data chart data chart data")
					n.padding = 7
					return n
				}(),
				plainNode("readme", ""),
				plainNode("fw/empty-looking", "x"),
			},
			wantDirs: []string{"fw", "fw/charts", "readme"},
			wantFiles: map[string]string{
				"fw/boot.img":      "BOOT",
				"fw/charts/eu.dat": "chart data chart data chart data",
				"fw/empty-looking": "x",
			},
		},
		{
			name:      "parent directories are created for files",
			nodes:     []testNode{plainNode("a/b/c.txt", "c")},
			wantDirs:  []string{"a", "a/b"},
			wantFiles: map[string]string{"a/b/c.txt": "c"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			data := testArchive{nodes: tt.nodes}.bytes(t)

			_, err := Extract(context.Background(), bytes.NewReader(data), dir, quiet)
			require.NoErrorf(t, err, "Extract() error = %v", err)

			gotDirs, gotFiles := walk(t, dir)
			assert.Equal(t, sorted(tt.wantDirs), gotDirs)
			if tt.wantFiles == nil {
				tt.wantFiles = map[string]string{}
			}
			assert.Equal(t, tt.wantFiles, gotFiles)
		})
	}
}

func TestExtract_ZeroLengthIsDirectory(t *testing.T) {
	// "readme" has an empty payload so it is a directory, same as "dir" which is compressed with zero size.
	dir := t.TempDir()
	data := testArchive{nodes: []testNode{
		plainNode("readme", ""),
		{path: "dir", compressed: 1, originalSize: 100},
	}}.bytes(t)

	res, err := Extract(context.Background(), bytes.NewReader(data), dir, quiet)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Dirs)
	assert.Equal(t, 0, res.Files)

	gotDirs, gotFiles := walk(t, dir)
	assert.Equal(t, []string{"dir", "readme"}, gotDirs)
	assert.Empty(t, gotFiles)
}

func TestExtract_BadSignature(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	data := testArchive{signature: "XXXX", nodes: []testNode{dirNode("dir1"), plainNode("a.txt", "hello")}}.bytes(t)

	_, err := Extract(context.Background(), bytes.NewReader(data), dir, quiet)
	assert.ErrorIsf(t, err, ErrFormat, "Extract() error = %v, want ErrFormat", err)

	_, err = os.Stat(dir)
	assert.Truef(t, os.IsNotExist(err), "Extract() should not have created %s", dir)
}

func TestExtract_PlainCopyIsVerbatim(t *testing.T) {
	payload := make([]byte, 3*DefaultBufferSize+17)
	for i := range payload {
		payload[i] = byte(i * 7)
	}

	dir := t.TempDir()
	data := testArchive{nodes: []testNode{{path: "big.bin", originalSize: uint32(len(payload)), padding: 3, payload: payload}, plainNode("next", "n")}}.bytes(t)

	var calls int
	res, err := Extract(context.Background(), bytes.NewReader(data), dir, quiet, func(o *ExtractOptions) {
		o.BufferSize = 1000
		o.ProgressReporter = func(name string, written, size int64, done bool) {
			calls++
		}
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)+1), res.Written)
	assert.Greater(t, calls, 2)

	got, err := os.ReadFile(filepath.Join(dir, "big.bin"))
	require.NoError(t, err)
	assert.Truef(t, bytes.Equal(payload, got), "big.bin does not match payload")
}

func TestExtract_TruncatedPlainCopy(t *testing.T) {
	nodes := []testNode{{path: "a.txt", originalSize: 10, payload: []byte("hello")}}

	t.Run("warning", func(t *testing.T) {
		dir := t.TempDir()
		data := testArchive{nodes: nodes}.bytes(t)

		var logs bytes.Buffer
		res, err := Extract(context.Background(), bytes.NewReader(data), dir, func(o *ExtractOptions) {
			o.Logger = log.New(&logs, "", 0)
		})
		assert.NoError(t, err)
		assert.Equal(t, 1, res.Warnings)
		assert.Contains(t, logs.String(), "truncated read")

		got, err := os.ReadFile(filepath.Join(dir, "a.txt"))
		assert.NoError(t, err)
		assert.Equal(t, "hello", string(got))
	})

	t.Run("strict", func(t *testing.T) {
		dir := t.TempDir()
		data := testArchive{nodes: nodes}.bytes(t)

		_, err := Extract(context.Background(), bytes.NewReader(data), dir, quiet, func(o *ExtractOptions) {
			o.Strict = true
		})
		assert.ErrorIs(t, err, ErrIO)
		assert.ErrorIs(t, err, ErrTruncated)
	})
}

func TestExtract_CreateDirectoryFailure(t *testing.T) {
	// "x" is created as a file so "x/y" cannot be created as a directory.
	nodes := []testNode{plainNode("x", "data"), dirNode("x/y"), plainNode("z", "1")}

	t.Run("warning", func(t *testing.T) {
		dir := t.TempDir()
		data := testArchive{nodes: nodes}.bytes(t)

		var logs bytes.Buffer
		res, err := Extract(context.Background(), bytes.NewReader(data), dir, func(o *ExtractOptions) {
			o.Logger = log.New(&logs, "", 0)
		})
		assert.NoError(t, err)
		assert.Equal(t, 1, res.Warnings)
		assert.Contains(t, logs.String(), "create directory")

		_, gotFiles := walk(t, dir)
		assert.Equal(t, map[string]string{"x": "data", "z": "1"}, gotFiles)
	})

	t.Run("strict", func(t *testing.T) {
		dir := t.TempDir()
		data := testArchive{nodes: nodes}.bytes(t)

		_, err := Extract(context.Background(), bytes.NewReader(data), dir, quiet, func(o *ExtractOptions) {
			o.Strict = true
		})
		assert.ErrorIs(t, err, ErrIO)

		_, gotFiles := walk(t, dir)
		assert.Equal(t, map[string]string{"x": "data"}, gotFiles)
	})
}

func TestExtract_CreateFileFailure(t *testing.T) {
	// "x" is a directory so it cannot be opened as a file; that is fatal even without Strict.
	dir := t.TempDir()
	data := testArchive{nodes: []testNode{dirNode("x"), plainNode("x", "data"), plainNode("z", "1")}}.bytes(t)

	_, err := Extract(context.Background(), bytes.NewReader(data), dir, quiet)
	assert.ErrorIs(t, err, ErrIO)

	_, gotFiles := walk(t, dir)
	assert.Empty(t, gotFiles)
}

func TestExtract_UnsafePath(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "out")
	data := testArchive{nodes: []testNode{plainNode("/../evil.txt", "evil")}}.bytes(t)

	_, err := Extract(context.Background(), bytes.NewReader(data), dir, quiet)
	assert.ErrorIs(t, err, ErrFormat)
	assert.ErrorIs(t, err, ErrUnsafePath)

	_, err = os.Stat(filepath.Join(parent, "evil.txt"))
	assert.Truef(t, os.IsNotExist(err), "Extract() should not have written outside of %s", dir)
}

func TestExtract_DecompressError(t *testing.T) {
	dir := t.TempDir()
	good := zlibBytes(t, []byte("hello world"))
	data := testArchive{nodes: []testNode{
		{path: "bad.bin", compressed: 1, originalSize: 5, compressedSize: uint32(len(good)), payload: good},
		plainNode("after", "never"),
	}}.bytes(t)

	_, err := Extract(context.Background(), bytes.NewReader(data), dir, quiet)
	assert.ErrorIsf(t, err, ErrDecompress, "Extract() error = %v, want ErrDecompress", err)

	_, gotFiles := walk(t, dir)
	assert.NotContains(t, gotFiles, "after")
}

func TestExtract_TruncatedCompressedPayload(t *testing.T) {
	dir := t.TempDir()
	n := zlibNode(t, "b.bin", "hello world")
	n.payload = n.payload[:3]
	data := testArchive{nodes: []testNode{n}}.bytes(t)

	_, err := Extract(context.Background(), bytes.NewReader(data), dir, quiet)
	assert.ErrorIs(t, err, ErrIO)
}

func TestExtract_ResourceLimit(t *testing.T) {
	dir := t.TempDir()
	data := testArchive{nodes: []testNode{zlibNode(t, "b.bin", "hello world")}}.bytes(t)

	_, err := Extract(context.Background(), bytes.NewReader(data), dir, quiet, func(o *ExtractOptions) {
		o.MaxBufferSize = 8
	})
	assert.ErrorIs(t, err, ErrResource)
}

func TestExtract_Raw(t *testing.T) {
	dir := t.TempDir()
	n := zlibNode(t, "fw.bin", "hello world")
	n.subKind = 1
	data := testArchive{nodes: []testNode{n}}.bytes(t)

	_, err := Extract(context.Background(), bytes.NewReader(data), dir, quiet, func(o *ExtractOptions) {
		o.Raw = true
	})
	require.NoError(t, err)

	_, gotFiles := walk(t, dir)
	assert.Equal(t, map[string]string{"fw.bin.zz": string(n.payload)}, gotFiles)
}

func TestExtract_ZlibKindIsRenamedWhenInflated(t *testing.T) {
	dir := t.TempDir()
	n := zlibNode(t, "fw.bin", "hello world")
	n.subKind = 1
	data := testArchive{nodes: []testNode{n}}.bytes(t)

	_, err := Extract(context.Background(), bytes.NewReader(data), dir, quiet)
	require.NoError(t, err)

	_, gotFiles := walk(t, dir)
	assert.Equal(t, map[string]string{"fw.bin.zz": "hello world"}, gotFiles)
}

func TestExtract_TruncatesExistingFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a much longer existing content"), 0644))
	data := testArchive{nodes: []testNode{plainNode("a.txt", "hello")}}.bytes(t)

	_, err := Extract(context.Background(), bytes.NewReader(data), dir, quiet)
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	assert.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestExtract_BigEndian(t *testing.T) {
	dir := t.TempDir()
	data := testArchive{order: binary.BigEndian, nodes: []testNode{dirNode("d"), plainNode("d/a", "abc"), zlibNode(t, "d/b", "hello world")}}.bytes(t)

	_, err := Extract(context.Background(), bytes.NewReader(data), dir, quiet, func(o *ExtractOptions) {
		o.ByteOrder = binary.BigEndian
	})
	require.NoError(t, err)

	_, gotFiles := walk(t, dir)
	assert.Equal(t, map[string]string{"d/a": "abc", "d/b": "hello world"}, gotFiles)
}

func TestExtract_ForwardOnly(t *testing.T) {
	dir := t.TempDir()
	data := testArchive{nodeTableOffset: 100, nodes: []testNode{
		{path: "a", originalSize: 1, padding: 3, payload: []byte("a")},
		zlibNode(t, "b", "hello world"),
		{path: "c", originalSize: 1, padding: 5, payload: []byte("c")},
	}}.bytes(t)

	_, err := Extract(context.Background(), forwardOnly{bytes.NewReader(data)}, dir, quiet)
	require.NoError(t, err)

	_, gotFiles := walk(t, dir)
	assert.Equal(t, map[string]string{"a": "a", "b": "hello world", "c": "c"}, gotFiles)
}

func TestExtract_Listing(t *testing.T) {
	dir := t.TempDir()
	data := testArchive{info: "FW", date: "2010-10-10", nodes: []testNode{dirNode("/d"), plainNode("d/a", "abc")}}.bytes(t)

	var out bytes.Buffer
	_, err := Extract(context.Background(), bytes.NewReader(data), dir, quiet, func(o *ExtractOptions) {
		o.Listing = &out
	})
	require.NoError(t, err)
	assert.Equal(t, "fileinfo: FW, 2010-10-10\n"+
		"0x00000020: /d, 0x0000, 0x00, 0x00, 0, 0, 0\n"+
		"0x000000b0: d/a, 0x0000, 0x00, 0x00, 3, 0, 0\n", out.String())
}

func TestExtract_Cancelled(t *testing.T) {
	dir := t.TempDir()
	data := testArchive{nodes: []testNode{plainNode("a", "a")}}.bytes(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Extract(ctx, bytes.NewReader(data), dir, quiet)
	assert.ErrorIs(t, err, context.Canceled)
}

func quiet(o *ExtractOptions) {
	o.Logger = log.New(&bytes.Buffer{}, "", 0)
}

// walk returns the relative paths of all directories (sorted) and the content of all regular files under dir.
func walk(t *testing.T, dir string) (dirs []string, files map[string]string) {
	t.Helper()

	dirs, files = []string{}, map[string]string{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || path == dir {
			return err
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			dirs = append(dirs, rel)
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		files[rel] = string(data)
		return nil
	})
	require.NoError(t, err)

	slices.Sort(dirs)
	return
}

func sorted(s []string) []string {
	s = append([]string{}, s...)
	slices.Sort(s)
	return s
}
