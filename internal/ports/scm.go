package ports

import (
	"context"
	"time"
)

type CommitFile struct {
	Path      string
	Additions int
	Deletions int
	Patch     string
}

type CommitDetails struct {
	SHA       string
	Message   string
	Author    string
	Timestamp time.Time
	Files     []CommitFile
}

type PullRequestDetails struct {
	Number int
	Title  string
	Body   string
	Author string
}

// SourceControlClient fetches commit and pull-request detail from the
// hosting provider on behalf of an app installation. Calls are fallible
// remote operations; retry happens at the job-queue level.
type SourceControlClient interface {
	GetCommit(ctx context.Context, installationID int64, owner string, repo string, sha string) (CommitDetails, error)
	GetPullRequest(ctx context.Context, installationID int64, owner string, repo string, number int) (PullRequestDetails, error)
	ListPRCommits(ctx context.Context, installationID int64, owner string, repo string, number int) ([]string, error)
}
