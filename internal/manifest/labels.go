package manifest

import (
	"fmt"
	"maps"
	"strings"
)

// ParseKV parses "a=b,c=d" into a map. Items are split on the first '=', so
// "a=b=c" yields a -> "b=c". Blank items are ignored; an item without '=' is
// an error.
func ParseKV(input string) (map[string]string, error) {
	out := map[string]string{}
	for _, item := range strings.Split(input, ",") {
		if strings.TrimSpace(item) == "" {
			continue
		}
		k, v, ok := strings.Cut(item, "=")
		if !ok {
			return nil, fmt.Errorf("invalid key=value pair %q", item)
		}
		out[k] = v
	}
	return out, nil
}

// ParseLabels merges several key=value lists into one label map. Later
// entries override earlier ones.
func ParseLabels(items []string) (map[string]string, error) {
	out := map[string]string{}
	for _, item := range items {
		kv, err := ParseKV(item)
		if err != nil {
			return nil, err
		}
		maps.Copy(out, kv)
	}
	return out, nil
}

// ParseFilters parses each list into its own group. Groups are OR-ed, the
// pairs inside a group are AND-ed.
func ParseFilters(filters []string) ([]map[string]string, error) {
	groups := make([]map[string]string, 0, len(filters))
	for _, f := range filters {
		kv, err := ParseKV(f)
		if err != nil {
			return nil, err
		}
		groups = append(groups, kv)
	}
	return groups, nil
}

// MatchFilters reports whether a project with the given labels is selected.
// A project matching any exclude group is never selected; otherwise it is
// selected when there are no filters or it matches at least one filter group.
func MatchFilters(labels map[string]string, filters, excludes []map[string]string) bool {
	for _, ex := range excludes {
		if matchGroup(labels, ex) {
			return false
		}
	}
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if matchGroup(labels, f) {
			return true
		}
	}
	return false
}

func matchGroup(labels, group map[string]string) bool {
	for k, v := range group {
		if got, ok := labels[k]; !ok || got != v {
			return false
		}
	}
	return true
}
