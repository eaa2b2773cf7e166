package dispatch

import (
	"context"
	"fmt"
	"strings"
)

// Directory resolves role-based recipient tags (for example "teachers")
// to concrete email addresses. Resolve reports ok=false for inputs that
// are not known tags, so plain addresses fall through untouched.
type Directory interface {
	Resolve(ctx context.Context, tag string) (addrs []string, ok bool, err error)
}

// StaticDirectory is a fixed tag table, loaded from configuration.
type StaticDirectory struct {
	groups map[string][]string
}

func NewStaticDirectory(groups map[string][]string) *StaticDirectory {
	normalized := make(map[string][]string, len(groups))
	for tag, addrs := range groups {
		normalized[strings.ToLower(strings.TrimSpace(tag))] = addrs
	}
	return &StaticDirectory{groups: normalized}
}

func (d *StaticDirectory) Resolve(_ context.Context, tag string) ([]string, bool, error) {
	addrs, ok := d.groups[strings.ToLower(strings.TrimSpace(tag))]
	return addrs, ok, nil
}

// ParseGroups parses the RECIPIENT_GROUPS environment value, formatted as
// "tag=a@x,b@x;othertag=c@y". Empty input yields an empty table.
func ParseGroups(raw string) (map[string][]string, error) {
	groups := make(map[string][]string)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return groups, nil
	}
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		tag, list, found := strings.Cut(entry, "=")
		tag = strings.ToLower(strings.TrimSpace(tag))
		if !found || tag == "" {
			return nil, fmt.Errorf("invalid recipient group entry %q", entry)
		}
		var addrs []string
		for _, addr := range strings.Split(list, ",") {
			addr = strings.TrimSpace(addr)
			if addr != "" {
				addrs = append(addrs, addr)
			}
		}
		if len(addrs) == 0 {
			return nil, fmt.Errorf("recipient group %q has no addresses", tag)
		}
		groups[tag] = addrs
	}
	return groups, nil
}
