package filesystem_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"goa.design/agentcore/middleware"
	"goa.design/agentcore/middleware/filesystem"
	"goa.design/agentcore/vfs"
)

func toolByName(t *testing.T, fs *filesystem.FileSystem, name string) func(context.Context, map[string]any) (any, error) {
	t.Helper()
	tools, err := fs.Tools(middleware.Config{})
	require.NoError(t, err)
	for _, tool := range tools {
		if tool.Name == name {
			return tool.Function
		}
	}
	t.Fatalf("no tool named %q", name)
	return nil
}

func TestWriteThenReadFile(t *testing.T) {
	ctx := context.Background()
	v := vfs.New()
	defer v.Close(ctx)
	fs := filesystem.New(v)

	_, err := toolByName(t, fs, "write_file")(ctx, map[string]any{"path": "/notes.txt", "content": "hello"})
	require.NoError(t, err)

	got, err := toolByName(t, fs, "read_file")(ctx, map[string]any{"path": "/notes.txt"})
	require.NoError(t, err)
	require.Equal(t, "hello", got)
}

func TestListFilesIncludesWritten(t *testing.T) {
	ctx := context.Background()
	v := vfs.New()
	defer v.Close(ctx)
	fs := filesystem.New(v)
	_, err := toolByName(t, fs, "write_file")(ctx, map[string]any{"path": "/a.txt", "content": "x"})
	require.NoError(t, err)

	got, err := toolByName(t, fs, "list_files")(ctx, nil)
	require.NoError(t, err)
	require.Contains(t, got, "/a.txt")
}

func TestDeleteFileRemovesIt(t *testing.T) {
	ctx := context.Background()
	v := vfs.New()
	defer v.Close(ctx)
	fs := filesystem.New(v)
	_, err := toolByName(t, fs, "write_file")(ctx, map[string]any{"path": "/a.txt", "content": "x"})
	require.NoError(t, err)
	_, err = toolByName(t, fs, "delete_file")(ctx, map[string]any{"path": "/a.txt"})
	require.NoError(t, err)

	_, err = toolByName(t, fs, "read_file")(ctx, map[string]any{"path": "/a.txt"})
	require.ErrorIs(t, err, vfs.ErrNotFound)
}
