package models

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
)

const pathSeparator = "/"

// CommentPath is the materialized ancestor chain of a comment, root first.
// It is stored as the ids joined by "/" so that a subtree can be selected with
// a single prefix match.
type CommentPath []uint

// RootPath returns the path of a root comment.
func RootPath(id uint) CommentPath {
	return CommentPath{id}
}

// Child returns a new path with id appended. The receiver is not modified.
func (p CommentPath) Child(id uint) CommentPath {
	out := make(CommentPath, len(p), len(p)+1)
	copy(out, p)
	return append(out, id)
}

// Depth is the number of ancestors, zero for a root.
func (p CommentPath) Depth() int {
	return len(p) - 1
}

// Leaf returns the id of the comment the path belongs to.
func (p CommentPath) Leaf() uint {
	if len(p) == 0 {
		return 0
	}
	return p[len(p)-1]
}

// Root returns the id of the top-level ancestor.
func (p CommentPath) Root() uint {
	if len(p) == 0 {
		return 0
	}
	return p[0]
}

// HasPrefix reports whether p lies in the subtree rooted at the last id of prefix.
func (p CommentPath) HasPrefix(prefix CommentPath) bool {
	if len(prefix) == 0 || len(prefix) > len(p) {
		return false
	}
	for i := range prefix {
		if p[i] != prefix[i] {
			return false
		}
	}
	return true
}

func (p CommentPath) String() string {
	parts := make([]string, len(p))
	for i, id := range p {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return strings.Join(parts, pathSeparator)
}

// DescendantPattern is the LIKE pattern matching strict descendants of p.
func (p CommentPath) DescendantPattern() string {
	return p.String() + pathSeparator + "%"
}

// ParseCommentPath parses the stored form of a path.
func ParseCommentPath(s string) (CommentPath, error) {
	if s == "" {
		return CommentPath{}, nil
	}
	parts := strings.Split(s, pathSeparator)
	out := make(CommentPath, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseUint(part, 10, 64)
		if err != nil || id == 0 {
			return nil, fmt.Errorf("invalid comment path segment %q in %q", part, s)
		}
		out = append(out, uint(id))
	}
	return out, nil
}

// GormDataType implements gorm's schema.GormDataTypeInterface.
func (CommentPath) GormDataType() string {
	return "text"
}

// Value implements driver.Valuer.
func (p CommentPath) Value() (driver.Value, error) {
	return p.String(), nil
}

// Scan implements sql.Scanner.
func (p *CommentPath) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case nil:
		*p = CommentPath{}
		return nil
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("cannot scan %T into CommentPath", src)
	}
	parsed, err := ParseCommentPath(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
