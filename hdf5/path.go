package hdf5

import (
	"fmt"
	"path"
	"strings"
)

// CleanPath returns the shortest equivalent of an object path. Relative
// paths stay relative; "" and "." become ".".
func CleanPath(p string) string {
	return path.Clean(p)
}

// SplitPath returns the link names along p. The root and "." yield no
// names. A path that climbs above its start with ".." is rejected.
func SplitPath(p string) ([]string, error) {
	c := path.Clean(p)
	if c == "/" || c == "." {
		return nil, nil
	}
	if c == ".." || strings.HasPrefix(c, "../") || strings.HasPrefix(c, "/..") {
		return nil, fmt.Errorf("%w: %q leaves its group", ErrInvalidPath, p)
	}
	return strings.Split(strings.TrimPrefix(c, "/"), "/"), nil
}

// ParseAttrPath splits "object@attribute" into its parts. The last "@"
// separates them, so object paths may themselves contain "@". An empty
// object part names the root.
func ParseAttrPath(p string) (object, name string, err error) {
	i := strings.LastIndexByte(p, '@')
	if i < 0 {
		return "", "", fmt.Errorf("%w: %q has no @attribute", ErrInvalidPath, p)
	}
	object, name = p[:i], p[i+1:]
	if name == "" {
		return "", "", fmt.Errorf("%w: %q has an empty attribute name", ErrInvalidPath, p)
	}
	if object == "" {
		object = "/"
	}
	return object, name, nil
}

// JoinAttrPath is the inverse of ParseAttrPath.
func JoinAttrPath(object, name string) string {
	if object == "" {
		object = "/"
	}
	return object + "@" + name
}

func joinPath(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}
