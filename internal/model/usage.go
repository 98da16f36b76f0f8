package model

// AllKey is the grouping key of the grand-total row
const AllKey = "All"

// JobRecord represents a single accounting entry from sacct
type JobRecord struct {
	User         string
	Partition    string
	ElapsedHours float64
	AllocCPUs    int64
	AllocGPUs    int64
	AllocRAMGB   float64
}

// Metric names a derived usage quantity
type Metric string

const (
	CPUHours Metric = "CPU_Hours"
	GPUHours Metric = "GPU_Hours"
	RAMHours Metric = "RAM_Hours"
)

// MetricOrder is the fixed column order of the metrics
var MetricOrder = []Metric{CPUHours, GPUHours, RAMHours}

// Metrics holds resource-hours, either for one job or summed over many
type Metrics struct {
	CPUHours float64
	GPUHours float64
	RAMHours float64
}

// Job is a record together with its derived metrics
type Job struct {
	Record  JobRecord
	Metrics Metrics
}

// Derive computes the resource-hours of a single record
func Derive(r JobRecord) Metrics {
	return Metrics{
		CPUHours: r.ElapsedHours * float64(r.AllocCPUs),
		GPUHours: r.ElapsedHours * float64(r.AllocGPUs),
		RAMHours: r.ElapsedHours * r.AllocRAMGB,
	}
}

// DeriveAll pairs every record with its metrics
func DeriveAll(records []JobRecord) []Job {
	jobs := make([]Job, len(records))
	for i, r := range records {
		jobs[i] = Job{Record: r, Metrics: Derive(r)}
	}
	return jobs
}

// Add accumulates other into m
func (m *Metrics) Add(other Metrics) {
	m.CPUHours += other.CPUHours
	m.GPUHours += other.GPUHours
	m.RAMHours += other.RAMHours
}

// Get returns the value of the named metric
func (m Metrics) Get(metric Metric) float64 {
	switch metric {
	case CPUHours:
		return m.CPUHours
	case GPUHours:
		return m.GPUHours
	case RAMHours:
		return m.RAMHours
	}
	return 0
}

// Report is the aggregated usage for one report invocation.
// Keys lists the rows in output order: AllKey first, then users ascending.
// Partitions is only populated when a partition breakdown was requested.
type Report struct {
	Keys        []string
	Partitions  []string
	Totals      map[string]Metrics
	ByPartition map[string]map[string]Metrics
}

// Empty reports whether the report has no rows
func (r *Report) Empty() bool {
	return len(r.Keys) == 0
}

// Users returns the user keys, without the grand-total key
func (r *Report) Users() []string {
	if len(r.Keys) == 0 {
		return nil
	}
	return r.Keys[1:]
}

// Total returns the summed metrics for a row key
func (r *Report) Total(key string) Metrics {
	return r.Totals[key]
}

// PartitionTotal returns the summed metrics for a row key on one partition.
// Combinations that never occurred read as zero.
func (r *Report) PartitionTotal(key, partition string) Metrics {
	if parts, ok := r.ByPartition[key]; ok {
		return parts[partition]
	}
	return Metrics{}
}
