package metrics

import "strings"

// MetricPrefix namespaces every instrument this system registers so its
// metrics never collide with another exporter sharing the same registry.
const MetricPrefix = "flowforge_"

// MetricName returns name prefixed with MetricPrefix, normalized to
// lowercase with separator characters replaced by underscores so the
// result is always a valid OTel/Prometheus metric name.
func MetricName(name string) string {
	clean := strings.TrimSpace(name)
	clean = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '.', '-', '/', ':':
			return '_'
		default:
			return r
		}
	}, clean)
	clean = strings.ToLower(clean)
	if clean == "" {
		return MetricPrefix
	}
	if strings.HasPrefix(clean, MetricPrefix) {
		return clean
	}
	return MetricPrefix + clean
}

// MetricNameWithSubsystem returns a name formatted as
// flowforge_<subsystem>_<name>, both normalized to lowercase with spaces
// replaced by underscores.
func MetricNameWithSubsystem(subsystem string, name string) string {
	subsystem = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(subsystem), " ", "_"))
	subsystem = strings.Trim(subsystem, "_")
	base := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "_"))
	base = strings.Trim(base, "_")
	switch {
	case subsystem != "" && base != "":
		base = subsystem + "_" + base
	case subsystem != "":
		base = subsystem
	}
	return MetricName(base)
}
