package analyze

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"sentinel/internal/bootstrap/logging"
	"sentinel/internal/domain/analysis"
	"sentinel/internal/errs"
	"sentinel/internal/ports"
)

// Analyzer attributes one commit per job: fetch the diff, run detection,
// and persist a per-file attribution row carrying the commit-level result.
type Analyzer struct {
	events       ports.EventStore
	attributions ports.AttributionStore
	scm          ports.SourceControlClient
	clock        ports.Clock
}

func NewAnalyzer(
	events ports.EventStore,
	attributions ports.AttributionStore,
	scm ports.SourceControlClient,
	clock ports.Clock,
) *Analyzer {
	return &Analyzer{
		events:       events,
		attributions: attributions,
		scm:          scm,
		clock:        clock,
	}
}

func (a *Analyzer) ProcessAnalysis(ctx context.Context, job ports.Job) error {
	var aj ports.AnalysisJob
	if err := json.Unmarshal(job.Payload, &aj); err != nil {
		return errs.Wrap(err, "decode analysis job")
	}

	ctx = logging.WithAttrs(ctx,
		slog.String("commitSha", aj.CommitSHA),
		slog.String("repoId", aj.RepoID),
	)
	logging.Info(ctx, "starting analysis")

	analyzed, err := a.attributions.ExistsForCommit(ctx, aj.RepoID, aj.CommitSHA)
	if err != nil {
		return err
	}
	if analyzed {
		logging.Debug(ctx, "commit already analyzed, skipping")
		return nil
	}

	details, err := a.scm.GetCommit(ctx, aj.InstallationID, aj.Owner, aj.Repo, aj.CommitSHA)
	if err != nil {
		return err
	}

	commit := analysis.CommitData{
		SHA:         details.SHA,
		Message:     details.Message,
		AuthorLogin: details.Author,
		Timestamp:   details.Timestamp,
	}
	for _, file := range details.Files {
		commit.Files = append(commit.Files, analysis.FileChange{
			Path:      file.Path,
			Additions: file.Additions,
			Deletions: file.Deletions,
			Patch:     file.Patch,
		})
	}

	// The PR body feeds the AI-mention signal; losing it degrades detection
	// but does not fail the job.
	if event, err := a.events.Get(ctx, aj.EventID); err != nil {
		if !errors.Is(err, ports.ErrEventNotFound) {
			return err
		}
	} else if event.PRNumber > 0 {
		commit.PRNumber = event.PRNumber
		pr, err := a.scm.GetPullRequest(ctx, aj.InstallationID, aj.Owner, aj.Repo, event.PRNumber)
		if err != nil {
			logging.Warn(ctx, "failed to fetch PR details",
				slog.Int("prNumber", event.PRNumber), slog.Any("error", errs.Loggable(err)))
		} else {
			commit.PRBody = pr.Body
		}
	}

	result := analysis.Detect(commit)

	// Wrapped in an object so survival tracking can merge its flags into
	// the same column later.
	signals, err := json.Marshal(map[string]any{"signals": result.Signals})
	if err != nil {
		return errs.Wrap(err, "encode detection signals")
	}

	now := a.clock.Now().UTC()
	rows := make([]ports.AttributionCreate, 0, len(commit.Files))
	for _, file := range commit.Files {
		rows = append(rows, ports.AttributionCreate{
			RepoID:       aj.RepoID,
			CommitSHA:    aj.CommitSHA,
			FilePath:     file.Path,
			AIConfidence: result.Confidence,
			Method:       result.Method,
			SignalsJSON:  string(signals),
			RiskTier:     string(result.RiskTier),
			RiskScore:    result.RiskScore,
			Explanation:  result.Explanation,
			LinesAdded:   file.Additions,
			LinesDeleted: file.Deletions,
			AnalyzedAt:   now,
		})
	}
	if err := a.attributions.CreateBatch(ctx, rows); err != nil {
		return err
	}

	logging.Info(ctx, "analysis complete",
		slog.Float64("confidence", result.Confidence),
		slog.String("riskTier", string(result.RiskTier)),
		slog.Int("files", len(commit.Files)),
	)
	return nil
}
