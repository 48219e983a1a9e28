package performance

// Metric indexes the fixed set of scored competencies on an evaluation.
type Metric int

const (
	CommunicationSkills Metric = iota
	Multitasking
	TeamSkills
	TechnicalSkills
	JobKnowledge
	Productivity
	Creativity
	WorkQuality
	Professionalism
	WorkConsistency
	Attitude
	Cooperation
	Dependability
	Attendance
	Punctuality

	MetricCount = 15
)

const (
	MinMetricValue = 0
	MaxMetricValue = 100
)

var metricNames = [MetricCount]string{
	"communication_skills",
	"multitasking",
	"team_skills",
	"technical_skills",
	"job_knowledge",
	"productivity",
	"creativity",
	"work_quality",
	"professionalism",
	"work_consistency",
	"attitude",
	"cooperation",
	"dependability",
	"attendance",
	"punctuality",
}

const commentSuffix = "_comment"

var (
	metricByName  = make(map[string]Metric, MetricCount)
	metricComment = make(map[string]Metric, MetricCount)
)

func init() {
	for i, name := range metricNames {
		metricByName[name] = Metric(i)
		metricComment[name+commentSuffix] = Metric(i)
	}
}

func (m Metric) Name() string { return metricNames[m] }

func (m Metric) CommentKey() string { return metricNames[m] + commentSuffix }

// Metrics returns every metric in display order.
func Metrics() []Metric {
	out := make([]Metric, MetricCount)
	for i := range out {
		out[i] = Metric(i)
	}
	return out
}

// LookupMetric resolves a metric field name.
func LookupMetric(name string) (Metric, bool) {
	m, ok := metricByName[name]
	return m, ok
}

// LookupComment resolves a "<metric>_comment" field name to its metric.
func LookupComment(name string) (Metric, bool) {
	m, ok := metricComment[name]
	return m, ok
}

// Scores holds one value per metric; nil means the metric was not scored.
type Scores [MetricCount]*int

func (s Scores) Value(m Metric) int {
	if s[m] == nil {
		return 0
	}
	return *s[m]
}

type Comments [MetricCount]string

func IntPtr(v int) *int { return &v }

// UniformScores sets every metric to v.
func UniformScores(v int) Scores {
	var s Scores
	for i := range s {
		s[i] = IntPtr(v)
	}
	return s
}
