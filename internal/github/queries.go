package github

import "time"

const queryCommitHistory = `
query ($owner: String!, $name: String!, $since: GitTimestamp!, $cursor: String) {
  repository(owner: $owner, name: $name) {
    defaultBranchRef {
      target {
        ... on Commit {
          history(first: 100, since: $since, after: $cursor) {
            pageInfo {
              hasNextPage
              endCursor
            }
            edges {
              node {
                committedDate
              }
            }
          }
        }
      }
    }
  }
}`

const queryCommitCount = `
query ($owner: String!, $name: String!, $since: GitTimestamp!, $until: GitTimestamp!) {
  repository(owner: $owner, name: $name) {
    defaultBranchRef {
      target {
        ... on Commit {
          history(since: $since, until: $until) {
            totalCount
          }
        }
      }
    }
  }
}`

const queryIssues = `
query ($owner: String!, $name: String!) {
  repository(owner: $owner, name: $name) {
    hasIssuesEnabled
    issues(states: OPEN) {
      totalCount
    }
    closed: issues(states: CLOSED) {
      totalCount
    }
  }
}`

const queryStars = `
query ($owner: String!, $name: String!) {
  repository(owner: $owner, name: $name) {
    stargazerCount
  }
}`

type commitHistory struct {
	TotalCount int `json:"totalCount"`
	PageInfo   struct {
		HasNextPage bool   `json:"hasNextPage"`
		EndCursor   string `json:"endCursor"`
	} `json:"pageInfo"`
	Edges []struct {
		Node struct {
			CommittedDate string `json:"committedDate"`
		} `json:"node"`
	} `json:"edges"`
}

type historyResponse struct {
	Repository *struct {
		DefaultBranchRef *struct {
			Target *struct {
				History *commitHistory `json:"history"`
			} `json:"target"`
		} `json:"defaultBranchRef"`
	} `json:"repository"`
}

// history walks the nested response and returns nil when any level is
// missing: no repository, no default branch, or a target that is not a commit.
func (r *historyResponse) history() *commitHistory {
	if r.Repository == nil || r.Repository.DefaultBranchRef == nil || r.Repository.DefaultBranchRef.Target == nil {
		return nil
	}
	return r.Repository.DefaultBranchRef.Target.History
}

type issuesResponse struct {
	Repository *struct {
		HasIssuesEnabled bool `json:"hasIssuesEnabled"`
		Issues           struct {
			TotalCount int `json:"totalCount"`
		} `json:"issues"`
		Closed struct {
			TotalCount int `json:"totalCount"`
		} `json:"closed"`
	} `json:"repository"`
}

type starsResponse struct {
	Repository *struct {
		StargazerCount int `json:"stargazerCount"`
	} `json:"repository"`
}

// gitTimestamp formats t the way GitTimestamp arguments expect it.
func gitTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
