package metrics

import "testing"

func TestMetricName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Should add prefix to unprefixed metric", input: "releases_total", expected: "flowforge_releases_total"},
		{
			name:     "Should keep already prefixed metric",
			input:    "flowforge_custom_metric",
			expected: "flowforge_custom_metric",
		},
		{name: "Should return prefix when input is blank", input: "", expected: "flowforge_"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := MetricName(tt.input); got != tt.expected {
				t.Fatalf("MetricName(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestMetricNameWithSubsystem(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		subsystem  string
		metricName string
		expected   string
	}{
		{
			name:       "Should include subsystem and name",
			subsystem:  "job",
			metricName: "duration_seconds",
			expected:   "flowforge_job_duration_seconds",
		},
		{
			name:       "Should trim subsystem underscores",
			subsystem:  "_scheduler_",
			metricName: "retries_total",
			expected:   "flowforge_scheduler_retries_total",
		},
		{
			name:       "Should return subsystem when name is empty",
			subsystem:  "stage",
			metricName: "",
			expected:   "flowforge_stage",
		},
		{
			name:       "Should keep already prefixed metric",
			subsystem:  "",
			metricName: "flowforge_existing_metric",
			expected:   "flowforge_existing_metric",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := MetricNameWithSubsystem(tt.subsystem, tt.metricName); got != tt.expected {
				t.Fatalf("MetricNameWithSubsystem(%q, %q) = %q, want %q", tt.subsystem, tt.metricName, got, tt.expected)
			}
		})
	}
}
