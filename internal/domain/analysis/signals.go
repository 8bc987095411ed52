package analysis

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	signalCoauthor     = "ai_coauthor"
	signalPRMentionsAI = "pr_mentions_ai"
	signalHighVelocity = "high_velocity"
	signalLateNight    = "late_night"
	signalGenericStyle = "generic_style"
)

const (
	highVelocityThreshold     = 500
	veryHighVelocityThreshold = 1000
)

var coauthorTrailerRe = regexp.MustCompile(`(?im)^\s*co-authored-by:\s*(.+)$`)

var aiToolPatterns = []struct {
	re   *regexp.Regexp
	tool string
}{
	{regexp.MustCompile(`(?i)copilot`), "Copilot"},
	{regexp.MustCompile(`(?i)cursor`), "Cursor"},
	{regexp.MustCompile(`(?i)claude`), "Claude"},
	{regexp.MustCompile(`(?i)chatgpt`), "ChatGPT"},
	{regexp.MustCompile(`(?i)gpt-4`), "GPT-4"},
	{regexp.MustCompile(`(?i)gemini`), "Gemini"},
	{regexp.MustCompile(`(?i)codewhisperer`), "CodeWhisperer"},
	{regexp.MustCompile(`(?i)tabnine`), "Tabnine"},
	{regexp.MustCompile(`(?i)ai.assist`), "AI assist"},
	{regexp.MustCompile(`(?i)generated.*code`), "generated code mention"},
}

// checkCoauthor matches a Co-Authored-By trailer naming a known AI assistant.
// This is the definitive signal: tools write the trailer themselves.
func checkCoauthor(commit CommitData, weight float64) Signal {
	for _, m := range coauthorTrailerRe.FindAllStringSubmatch(commit.Message, -1) {
		trailer := m[1]
		for _, p := range aiToolPatterns {
			if p.re.MatchString(trailer) {
				return Signal{
					Name:    signalCoauthor,
					Weight:  weight,
					Matched: true,
					Detail:  fmt.Sprintf("co-author trailer: %s", strings.TrimSpace(trailer)),
				}
			}
		}
	}

	return Signal{Name: signalCoauthor}
}

// checkPRMentionsAI scans the PR body for named AI tools. The weight scales
// with the count of distinct tools mentioned, capped at the base weight.
func checkPRMentionsAI(commit CommitData, weight float64) Signal {
	if commit.PRBody == "" {
		return Signal{Name: signalPRMentionsAI}
	}

	var found []string
	for _, p := range aiToolPatterns {
		if p.re.MatchString(commit.PRBody) {
			found = append(found, p.tool)
		}
	}

	if len(found) == 0 {
		return Signal{Name: signalPRMentionsAI}
	}

	scaled := weight * (0.5 + float64(len(found))*0.25)
	if scaled > weight {
		scaled = weight
	}

	return Signal{
		Name:    signalPRMentionsAI,
		Weight:  scaled,
		Matched: true,
		Detail:  "PR mentions: " + strings.Join(found, ", "),
	}
}

// checkVelocity flags very large commits. Humans rarely land 1000+ changed
// lines in one commit.
func checkVelocity(commit CommitData, weight float64) Signal {
	totalLines := 0
	for _, f := range commit.Files {
		totalLines += f.Additions + f.Deletions
	}

	if totalLines >= veryHighVelocityThreshold {
		return Signal{
			Name:    signalHighVelocity,
			Weight:  weight,
			Matched: true,
			Detail:  fmt.Sprintf("%d lines changed (very high)", totalLines),
		}
	}

	if totalLines >= highVelocityThreshold {
		return Signal{
			Name:    signalHighVelocity,
			Weight:  weight * 0.6,
			Matched: true,
			Detail:  fmt.Sprintf("%d lines changed", totalLines),
		}
	}

	return Signal{Name: signalHighVelocity}
}

// checkTimeOfDay flags commits in the 2am-4am UTC band. Weak signal: many
// developers work late.
func checkTimeOfDay(commit CommitData, weight float64) Signal {
	hour := commit.Timestamp.UTC().Hour()

	if hour >= 2 && hour <= 4 {
		return Signal{
			Name:    signalLateNight,
			Weight:  weight,
			Matched: true,
			Detail:  fmt.Sprintf("commit at %d:00 UTC", hour),
		}
	}

	return Signal{Name: signalLateNight}
}

var genericVarPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)\bconst\s+(data|result|response|value|item|temp|tmp)\s*=`),
	regexp.MustCompile(`(?m)\blet\s+(data|result|response|value|item|temp|tmp)\s*=`),
	regexp.MustCompile(`(?m)\bfunction\s+(handleClick|handleChange|handleSubmit|getData|fetchData)\s*\(`),
}

var excessiveCommentPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)//\s*(TODO|FIXME|NOTE|HACK):`),
	regexp.MustCompile(`//\s*.{50,}`),
	regexp.MustCompile(`(?s)/\*\*.{200,}?\*/`),
}

var boilerplateIndicators = []*regexp.Regexp{
	regexp.MustCompile(`import\s+\{[^}]{100,}\}\s+from`),
	regexp.MustCompile(`(?s)export\s+(default\s+)?function\s+\w+\s*\([^)]*\)\s*\{.{10,50}\}`),
}

// checkCodeStyle inspects the added lines of one file's patch for generic
// naming, comment spam, and boilerplate shapes. Needs at least two full
// sub-indicators to match; the weight scales with how many matched.
func checkCodeStyle(file FileChange, weight float64) Signal {
	if file.Patch == "" {
		return Signal{Name: signalGenericStyle}
	}

	var added []string
	for _, line := range strings.Split(file.Patch, "\n") {
		if strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++") {
			added = append(added, line)
		}
	}
	addedText := strings.Join(added, "\n")

	if len(addedText) < 50 {
		return Signal{Name: signalGenericStyle}
	}

	var hits float64
	var details []string

	for _, re := range genericVarPatterns {
		if len(re.FindAllString(addedText, -1)) >= 2 {
			hits += 1
			details = append(details, "generic variable names")
			break
		}
	}

	for _, re := range excessiveCommentPatterns {
		if len(re.FindAllString(addedText, -1)) >= 3 {
			hits += 1
			details = append(details, "excessive comments")
			break
		}
	}

	for _, re := range boilerplateIndicators {
		if re.MatchString(addedText) {
			hits += 0.5
			details = append(details, "boilerplate patterns")
			break
		}
	}

	if hits >= 1.5 {
		scaled := weight * (hits / 2)
		if scaled > weight {
			scaled = weight
		}
		return Signal{
			Name:    signalGenericStyle,
			Weight:  scaled,
			Matched: true,
			Detail:  strings.Join(details, ", "),
		}
	}

	return Signal{Name: signalGenericStyle}
}
