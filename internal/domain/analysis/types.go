package analysis

import "time"

// CommitData is everything the detector needs about a single commit.
// PRNumber is 0 when the commit is not associated with a pull request.
type CommitData struct {
	SHA         string
	Message     string
	AuthorLogin string
	Timestamp   time.Time
	Files       []FileChange
	PRNumber    int
	PRBody      string
}

type FileChange struct {
	Path      string
	Additions int
	Deletions int
	Patch     string
}

// Signal is one independent detection heuristic outcome. Weight carries the
// matched contribution; unmatched signals report weight 0.
type Signal struct {
	Name    string  `json:"name"`
	Weight  float64 `json:"weight"`
	Matched bool    `json:"matched"`
	Detail  string  `json:"detail,omitempty"`
}

type RiskTier string

const (
	TierBoilerplate RiskTier = "T1_boilerplate"
	TierGlue        RiskTier = "T2_glue"
	TierCore        RiskTier = "T3_core"
	TierNovel       RiskTier = "T4_novel"
)

const MethodHeuristic = "heuristic"

// Result is the commit-level detection outcome shared by every changed file.
type Result struct {
	Confidence  float64
	Method      string
	Signals     []Signal
	RiskTier    RiskTier
	RiskScore   float64
	Explanation string
}
