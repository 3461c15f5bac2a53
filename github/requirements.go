package github

import "strings"

// ParseRequirements returns one distribution name per requirement line, in
// file order. Comments, pip options and blank lines are skipped; extras,
// version specifiers and environment markers are dropped.
func ParseRequirements(content string) []string {
	var names []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if i := strings.Index(line, "#"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" || strings.HasPrefix(line, "-") {
			continue
		}
		if name := requirementName(line); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func requirementName(line string) string {
	if i := strings.IndexAny(line, "<>=!~;[@ \t"); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}
