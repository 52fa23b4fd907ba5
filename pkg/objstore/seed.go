package objstore

import (
	"strings"
	"time"
)

// Create adds a new object called name under the directory with id parent
// and returns its id. Symlinks take their target from target.
func (c *Cache) Create(parent uint64, name string, typ FileType, mode uint32, target string) (uint64, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsRune(name, '/') {
		return 0, NewInvalidError("invalid name " + name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	d, err := c.loadDir(parent)
	if err != nil {
		return 0, err
	}
	if _, exists := d.Children[name]; exists {
		return 0, NewExistsError(name)
	}

	id, err := c.backend.NextID()
	if err != nil {
		return 0, NewIOError(err)
	}

	n := &Node{
		ID:     id,
		Type:   typ,
		Mode:   mode,
		Nlink:  1,
		Change: 1,
		Mtime:  time.Now(),
	}
	switch typ {
	case TypeDirectory:
		n.Nlink = 2
		n.Parent = d.ID
		n.Children = make(map[string]uint64)
		d.Nlink++
	case TypeSymlink:
		n.Target = target
		n.Size = uint64(len(target))
	}

	d.Children[name] = id
	d.touch()
	if err := c.update([]*Node{d, n}, nil); err != nil {
		return 0, err
	}
	return id, nil
}

// CreatePath creates the object at a slash-separated path relative to the
// root, making missing intermediate directories. An existing object of the
// same type at path is not an error.
func (c *Cache) CreatePath(path string, typ FileType, mode uint32, target string) (uint64, error) {
	parts := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
	if len(parts) == 0 {
		return 0, NewInvalidError("empty path")
	}

	dir := RootID
	for i, name := range parts {
		last := i == len(parts)-1
		want, wantMode := TypeDirectory, uint32(0o755)
		if last {
			want, wantMode = typ, mode
		}

		id, err := c.Create(dir, name, want, wantMode, target)
		if err == nil {
			dir = id
			continue
		}
		if se, ok := err.(*StoreError); !ok || se.Code != ErrAlreadyExists {
			return 0, err
		}

		existing, err := c.childID(dir, name)
		if err != nil {
			return 0, err
		}
		c.mu.Lock()
		n, err := c.load(existing)
		c.mu.Unlock()
		if err != nil {
			return 0, err
		}
		if n.Type != want {
			return 0, NewExistsError(name)
		}
		dir = existing
	}
	return dir, nil
}

func (c *Cache) childID(dir uint64, name string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, err := c.loadDir(dir)
	if err != nil {
		return 0, err
	}
	id, ok := d.Children[name]
	if !ok {
		return 0, NewNotFoundError(name)
	}
	return id, nil
}
