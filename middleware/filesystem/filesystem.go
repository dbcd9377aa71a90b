// Package filesystem implements the default FileSystem middleware: tools
// that read, write, list, and delete files in the agent's VFS.
package filesystem

import (
	"context"
	"fmt"

	"goa.design/agentcore/middleware"
	"goa.design/agentcore/toolspec"
	"goa.design/agentcore/vfs"
)

// ID is this middleware's identifier.
const ID = "filesystem"

// Options configures the middleware, applied from config["filesystem_opts"].
type Options struct {
	// PromptHint overrides the default system-prompt guidance.
	PromptHint string
}

// FileSystem is the default middleware exposing VFS-backed file tools.
type FileSystem struct {
	middleware.Base
	vfs  *vfs.VFS
	opts Options
}

// New constructs a FileSystem middleware bound to v. v must outlive the
// agent (the VFS process survives AgentServer restarts per spec §4.8).
func New(v *vfs.VFS) *FileSystem { return &FileSystem{vfs: v} }

func (m *FileSystem) ID() string { return ID }

func (m *FileSystem) Init(config middleware.Config) (middleware.Config, error) {
	if raw, ok := config["filesystem_opts"]; ok {
		opts, ok := raw.(Options)
		if !ok {
			return nil, fmt.Errorf("filesystem: filesystem_opts must be filesystem.Options, got %T", raw)
		}
		m.opts = opts
	}
	return config, nil
}

func (m *FileSystem) SystemPrompt(middleware.Config) ([]string, error) {
	hint := m.opts.PromptHint
	if hint == "" {
		hint = "Use read_file/write_file/list_files/delete_file to persist working notes and intermediate artifacts."
	}
	return []string{hint}, nil
}

func (m *FileSystem) Tools(middleware.Config) ([]toolspec.ToolSpec, error) {
	return []toolspec.ToolSpec{
		{
			Name:        "read_file",
			Description: "Read the full content of a file by path.",
			Parameters:  []toolspec.FunctionParam{{Name: "path", Kind: toolspec.ParamString, Required: true}},
			Function:    m.readFile,
		},
		{
			Name:        "write_file",
			Description: "Write (creating or overwriting) a file's content.",
			Parameters: []toolspec.FunctionParam{
				{Name: "path", Kind: toolspec.ParamString, Required: true},
				{Name: "content", Kind: toolspec.ParamString, Required: true},
			},
			Function: m.writeFile,
		},
		{
			Name:        "list_files",
			Description: "List every known file path.",
			Function:    m.listFiles,
		},
		{
			Name:        "delete_file",
			Description: "Delete a file by path.",
			Parameters:  []toolspec.FunctionParam{{Name: "path", Kind: toolspec.ParamString, Required: true}},
			Function:    m.deleteFile,
		},
	}, nil
}

func (m *FileSystem) readFile(ctx context.Context, args map[string]any) (any, error) {
	path, _ := args["path"].(string)
	content, err := m.vfs.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	return string(content), nil
}

func (m *FileSystem) writeFile(ctx context.Context, args map[string]any) (any, error) {
	path, _ := args["path"].(string)
	content, _ := args["content"].(string)
	if err := m.vfs.Write(ctx, path, []byte(content), vfs.WriteOptions{}); err != nil {
		return nil, err
	}
	return map[string]any{"path": path, "written": true}, nil
}

func (m *FileSystem) listFiles(ctx context.Context, _ map[string]any) (any, error) {
	paths, err := m.vfs.List(ctx)
	if err != nil {
		return nil, err
	}
	return paths, nil
}

func (m *FileSystem) deleteFile(ctx context.Context, args map[string]any) (any, error) {
	path, _ := args["path"].(string)
	if err := m.vfs.Delete(ctx, path); err != nil {
		return nil, err
	}
	return map[string]any{"path": path, "deleted": true}, nil
}
