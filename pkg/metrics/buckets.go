package metrics

// DurationBuckets defines the default latency buckets (seconds) shared by
// the job and stage duration histograms.
var DurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300, 900, 3600}
