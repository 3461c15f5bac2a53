package analysis

// Kind tells which framing a Response carries.
type Kind int

const (
	KindEmpty Kind = iota
	KindSummary
	KindMessage
)

func (k Kind) String() string {
	switch k {
	case KindSummary:
		return "summary"
	case KindMessage:
		return "message"
	default:
		return "empty"
	}
}

type DependencyResult struct {
	PackageName             string  `json:"package_name"`
	VulnerabilityPercentage float64 `json:"vulnerability_percentage"`
}

// Response is the body returned by the analysis API. Every field is optional
// and a JSON null decodes the same as an absent field. A nil Dependencies
// slice means the field was absent or null, an empty one means it was sent
// as [].
type Response struct {
	TotalVulnerabilityPercentage *float64           `json:"total_vulnerability_percentage,omitempty"`
	Dependencies                 []DependencyResult `json:"dependencies,omitempty"`
	Message                      *string            `json:"message,omitempty"`
}

// Kind resolves the response shape. The total wins over the message when
// both are set.
func (r *Response) Kind() Kind {
	switch {
	case r == nil:
		return KindEmpty
	case r.TotalVulnerabilityPercentage != nil:
		return KindSummary
	case r.Message != nil:
		return KindMessage
	default:
		return KindEmpty
	}
}

func NewSummary(total float64, deps []DependencyResult) *Response {
	if deps == nil {
		deps = []DependencyResult{}
	}
	return &Response{TotalVulnerabilityPercentage: &total, Dependencies: deps}
}

func NewMessage(msg string) *Response {
	return &Response{Message: &msg}
}
