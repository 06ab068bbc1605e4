package cache

import (
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mcp-scooter/toolbridge/internal/domain/discovery"
	"github.com/mcp-scooter/toolbridge/internal/domain/protocol"
)

// SchemaCache keeps the last seen definition of every namespaced tool on
// disk, one file per tool under <dir>/<server>/.
type SchemaCache struct {
	dir string
}

func NewSchemaCache(dir string) *SchemaCache {
	return &SchemaCache{dir: dir}
}

func (c *SchemaCache) path(name string) (string, bool) {
	server, tool, err := discovery.SplitName(name)
	if err != nil {
		return "", false
	}
	return filepath.Join(c.dir, url.PathEscape(server), url.PathEscape(tool)+".json"), true
}

func (c *SchemaCache) Get(name string) (*protocol.Tool, bool) {
	path, ok := c.path(name)
	if !ok {
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var tool protocol.Tool
	if err := json.Unmarshal(data, &tool); err != nil {
		return nil, false
	}
	return &tool, true
}

func (c *SchemaCache) Set(tool protocol.Tool) error {
	path, ok := c.path(tool.Name)
	if !ok {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(tool, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Replace drops the cached tools of every server in tools and stores the
// new set, so tools a server no longer offers disappear.
func (c *SchemaCache) Replace(tools []protocol.Tool) error {
	servers := make(map[string]bool)
	for _, t := range tools {
		if server, _, err := discovery.SplitName(t.Name); err == nil {
			servers[server] = true
		}
	}
	for server := range servers {
		if err := os.RemoveAll(filepath.Join(c.dir, url.PathEscape(server))); err != nil {
			return err
		}
	}
	for _, t := range tools {
		if err := c.Set(t); err != nil {
			return err
		}
	}
	return nil
}

// All returns every cached tool sorted by name.
func (c *SchemaCache) All() ([]protocol.Tool, error) {
	var tools []protocol.Tool
	err := filepath.WalkDir(c.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		var tool protocol.Tool
		if json.Unmarshal(data, &tool) == nil && tool.Name != "" {
			tools = append(tools, tool)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools, nil
}
