package analysis

import "regexp"

var corePathPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)auth`),
	regexp.MustCompile(`(?i)payment`),
	regexp.MustCompile(`(?i)billing`),
	regexp.MustCompile(`(?i)security`),
	regexp.MustCompile(`(?i)crypto`),
	regexp.MustCompile(`(?i)password`),
	regexp.MustCompile(`(?i)session`),
	regexp.MustCompile(`(?i)token`),
	regexp.MustCompile(`(?i)middleware`),
	regexp.MustCompile(`api/.*\.(ts|js)$`),
}

var boilerplatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\.config\.(ts|js|mjs|cjs)$`),
	regexp.MustCompile(`\.test\.(ts|js|tsx|jsx)$`),
	regexp.MustCompile(`\.spec\.(ts|js|tsx|jsx)$`),
	regexp.MustCompile(`types\.ts$`),
	regexp.MustCompile(`index\.ts$`),
	regexp.MustCompile(`\.d\.ts$`),
	regexp.MustCompile(`\.stories\.(ts|tsx)$`),
	regexp.MustCompile(`\.mock\.(ts|js)$`),
}

const (
	coreBlastRadius    = 0.3
	defaultBlastRadius = 0.1
	lowConfidenceBound = 0.3
	highConfidenceBound = 0.7
)

// ClassifyRisk maps a commit's changed paths and AI confidence to a risk
// tier, score, and explanation. Commits touching only boilerplate paths are
// T1 regardless of confidence; low-confidence detections are never allowed
// to imply high risk (T4 demotes to T3, T3 to T2).
func ClassifyRisk(commit CommitData, aiConfidence float64) (RiskTier, float64, string) {
	touchesCore := false
	// A commit with no file list never counts as boilerplate-only; it
	// falls through to T2_glue.
	onlyBoilerplate := len(commit.Files) > 0

	for _, f := range commit.Files {
		if !touchesCore {
			for _, re := range corePathPatterns {
				if re.MatchString(f.Path) {
					touchesCore = true
					break
				}
			}
		}

		matched := false
		for _, re := range boilerplatePatterns {
			if re.MatchString(f.Path) {
				matched = true
				break
			}
		}
		if !matched {
			onlyBoilerplate = false
		}
	}

	var tier RiskTier
	var explanation string

	switch {
	case onlyBoilerplate:
		tier = TierBoilerplate
		explanation = "Config, test, or type definition files only"
	case touchesCore && aiConfidence > highConfidenceBound:
		tier = TierNovel
		explanation = "High-confidence AI in security-sensitive code"
	case touchesCore:
		tier = TierCore
		explanation = "Changes to core business logic"
	default:
		tier = TierGlue
		explanation = "Standard application code"
	}

	// Downgrade only demotes T4 and T3; there is no upgrade path for
	// high-confidence boilerplate.
	if aiConfidence < lowConfidenceBound {
		switch tier {
		case TierNovel:
			tier = TierCore
			explanation += " (low AI confidence, downgraded)"
		case TierCore:
			tier = TierGlue
			explanation += " (low AI confidence, downgraded)"
		}
	}

	blastRadius := defaultBlastRadius
	if touchesCore {
		blastRadius = coreBlastRadius
	}

	score := aiConfidence*0.7 + blastRadius
	if score > 1.0 {
		score = 1.0
	}

	return tier, score, explanation
}
