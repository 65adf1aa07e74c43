package models

// Classification is the severity band of a similarity match.
type Classification string

const (
	ClassExactDuplicate Classification = "exact/near-exact duplicate"
	ClassVerySimilar    Classification = "very similar"
	ClassSimilar        Classification = "similar functionality"
)

// Signal names the comparison that produced a match.
type Signal string

const (
	SignalStructural Signal = "structural"
	SignalSemantic   Signal = "semantic"
)

type SimilarityWarning struct {
	SimilarToID    string         `json:"similarToId"`
	MethodName     string         `json:"methodName,omitempty"`
	Score          float64        `json:"score"`
	Classification Classification `json:"classification"`
	Signal         Signal         `json:"signal"`
	FilePath       string         `json:"filePath"`
	Snippet        string         `json:"snippet"`
}
