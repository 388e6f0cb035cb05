// Package perm stores per-command permission lists: which user ids on
// which platform may trigger a restricted command kind.
package perm

// Table maps command kind -> platform -> allowed user ids. An empty id
// list is a platform-wide wildcard; an absent platform denies everyone
// on it.
type Table = map[string]map[string][]string

// Source yields the current permission table.
type Source interface {
	GetPermissions() (Table, error)
}

// Static is a fixed in-memory permission table.
type Static Table

func (s Static) GetPermissions() (Table, error) { return Table(s), nil }

// Kind extracts the platform->ids map for one command kind from src.
// A nil map means the kind is unrestricted.
func Kind(src Source, kind string) (map[string][]string, error) {
	if src == nil {
		return nil, nil
	}
	table, err := src.GetPermissions()
	if err != nil {
		return nil, err
	}
	perms, ok := table[kind]
	if !ok {
		return nil, nil
	}
	return perms, nil
}
