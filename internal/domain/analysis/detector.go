package analysis

// Signal weights. Coauthor trailers are close to definitive; time of day is
// deliberately weak.
const (
	weightCoauthor     = 0.9
	weightPRMentionsAI = 0.7
	weightHighVelocity = 0.6
	weightLateNight    = 0.3
	weightGenericStyle = 0.4
)

// Detect runs every heuristic signal over the commit, sums the matched
// weights into a confidence clamped to [0, 1], and classifies risk.
func Detect(commit CommitData) Result {
	signals := []Signal{
		checkCoauthor(commit, weightCoauthor),
		checkPRMentionsAI(commit, weightPRMentionsAI),
		checkVelocity(commit, weightHighVelocity),
		checkTimeOfDay(commit, weightLateNight),
	}

	// Style heuristics run independently per changed file.
	for _, file := range commit.Files {
		if file.Patch == "" {
			continue
		}
		styleSignal := checkCodeStyle(file, weightGenericStyle)
		if styleSignal.Matched {
			styleSignal.Detail = file.Path + ": " + styleSignal.Detail
			signals = append(signals, styleSignal)
		}
	}

	confidence := 0.0
	for _, s := range signals {
		if s.Matched {
			confidence += s.Weight
		}
	}
	if confidence > 1.0 {
		confidence = 1.0
	}

	tier, score, explanation := ClassifyRisk(commit, confidence)

	return Result{
		Confidence:  confidence,
		Method:      MethodHeuristic,
		Signals:     signals,
		RiskTier:    tier,
		RiskScore:   score,
		Explanation: explanation,
	}
}
