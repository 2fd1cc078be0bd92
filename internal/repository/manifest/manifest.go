package manifest

import (
	"sort"
	"strings"
)

// Manifest maps release channels to the package versions they publish.
type Manifest map[string]map[string]string

// Parse reads the repository's sectioned text form. A "[section]" line
// switches the current release channel, "name:value" lines add entries to
// it, anything before the first section or not matching either shape is
// dropped. Version strings are taken verbatim; validation happens at use.
func Parse(text string) Manifest {
	result := make(Manifest)

	var current string

	for _, line := range strings.SplitAfter(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			current = line[1 : len(line)-1]
			if _, ok := result[current]; !ok {
				result[current] = make(map[string]string)
			}

			continue
		}

		if current == "" {
			continue
		}

		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}

		result[current][strings.TrimSpace(name)] = strings.TrimSpace(value)
	}

	return result
}

// Format renders a manifest back to the repository's text form with
// channels and package names sorted, so regenerated manifests diff cleanly.
func Format(m Manifest) string {
	channels := make([]string, 0, len(m))
	for channel := range m {
		channels = append(channels, channel)
	}

	sort.Strings(channels)

	var builder strings.Builder

	for i, channel := range channels {
		if i > 0 {
			builder.WriteString("\n")
		}

		builder.WriteString("[")
		builder.WriteString(channel)
		builder.WriteString("]\n")

		names := make([]string, 0, len(m[channel]))
		for name := range m[channel] {
			names = append(names, name)
		}

		sort.Strings(names)

		for _, name := range names {
			builder.WriteString(name)
			builder.WriteString(":")
			builder.WriteString(m[channel][name])
			builder.WriteString("\n")
		}
	}

	return builder.String()
}
