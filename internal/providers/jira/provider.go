// Package jira implements the provider backed by Atlassian Jira
// worklogs. A record's name is the issue key, its id is the worklog's
// own REST URL. Jira only stores whole minutes of time spent, and a
// worklog cannot move between issues, so a rename update is split into
// a delete plus a create.
package jira

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/meTasking/sync/internal/transport"
	"github.com/meTasking/sync/pkg/errors"
	"github.com/meTasking/sync/pkg/interval"
	"github.com/meTasking/sync/pkg/provider"
)

const (
	urlSession      = "%s/rest/auth/1/session"
	urlQueryIssues  = "%s/rest/api/2/search"
	urlIssueWorklog = "%s/rest/api/2/issue/%s/worklog"

	issuePageSize   = 250
	worklogPageSize = 250

	// Jira rejects fractional offsets like "+02:00"; it wants "+0200".
	startedFormat = "2006-01-02T15:04:05.000-0700"
)

var issueKeyRegex = regexp.MustCompile(`^[A-Z]+-\d+$`)

// Config holds the Jira connection settings.
type Config struct {
	Server   string // base URL, e.g. https://example.atlassian.net
	Username string
	Token    string
}

// Provider syncs against the current user's Jira worklogs.
type Provider struct {
	*provider.Base
	client *transport.Client
	cfg    Config
}

// New creates the Jira provider.
func New(opts provider.Options, cfg Config) (*Provider, error) {
	if cfg.Server == "" {
		return nil, errors.NewConfigError("jira", "server address is required", nil)
	}
	if cfg.Username == "" || cfg.Token == "" {
		return nil, errors.NewConfigError("jira", "username and token are required", nil)
	}
	base, err := provider.NewBase(opts)
	if err != nil {
		return nil, err
	}
	return &Provider{
		Base: base,
		client: transport.New(provider.JiraID.String(), &transport.BasicAuth{
			Username: cfg.Username,
			Password: cfg.Token,
		}),
		cfg: cfg,
	}, nil
}

// ID implements the provider interface.
func (p *Provider) ID() provider.ID {
	return provider.JiraID
}

type session struct {
	Name string `json:"name"`
}

type searchResult struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []issue `json:"issues"`
}

type issue struct {
	Key    string `json:"key"`
	Self   string `json:"self"`
	Fields struct {
		Worklog worklogPage `json:"worklog"`
	} `json:"fields"`
}

type worklogPage struct {
	StartAt    int       `json:"startAt"`
	MaxResults int       `json:"maxResults"`
	Total      int       `json:"total"`
	Worklogs   []worklog `json:"worklogs"`
}

type worklog struct {
	Self             string `json:"self"`
	Comment          string `json:"comment"`
	Started          string `json:"started"`
	TimeSpentSeconds int64  `json:"timeSpentSeconds"`
	Author           struct {
		AccountID string `json:"accountId"`
	} `json:"author"`
}

// Open searches issues carrying worklogs by the current user and
// indexes every one of the user's worklogs. The JQL date filter only
// has to be close; the indexer's window check does the precise cut.
func (p *Provider) Open(ctx context.Context) error {
	var sess session
	if err := p.client.GetJSON(ctx, fmt.Sprintf(urlSession, p.cfg.Server), &sess); err != nil {
		return err
	}

	jql := "worklogAuthor = currentUser()"
	if since := p.Options().Since; since != nil {
		jql += fmt.Sprintf(" AND worklogDate >= %q", since.Format("2006-01-02"))
	}
	if until := p.Options().Until; until != nil {
		jql += fmt.Sprintf(" AND worklogDate <= %q", until.Format("2006-01-02"))
	}

	offset := 0
	for {
		var result searchResult
		err := p.client.PostJSON(ctx, fmt.Sprintf(urlQueryIssues, p.cfg.Server), map[string]any{
			"fields":     []string{"worklog", "summary"},
			"startAt":    offset,
			"maxResults": issuePageSize,
			"jql":        jql,
		}, &result)
		if err != nil {
			return err
		}

		for _, iss := range result.Issues {
			if err := p.indexIssueWorklogs(ctx, iss, sess.Name); err != nil {
				return err
			}
		}

		if result.MaxResults+result.StartAt >= result.Total {
			return nil
		}
		offset += result.MaxResults
	}
}

// indexIssueWorklogs walks an issue's worklog pages. The first page
// comes embedded in the search result; the rest are fetched from the
// issue's worklog sub-resource.
func (p *Provider) indexIssueWorklogs(ctx context.Context, iss issue, userID string) error {
	page := iss.Fields.Worklog
	offset := page.StartAt
	for {
		for _, wl := range page.Worklogs {
			if wl.Author.AccountID != userID {
				continue
			}
			start, err := interval.ParseTime(wl.Started)
			if err != nil {
				return err
			}
			rec := &interval.Record{
				ID:          wl.Self,
				Name:        iss.Key,
				Description: wl.Comment,
				Start:       start,
				End:         start.Add(time.Duration(wl.TimeSpentSeconds) * time.Second),
			}
			if err := p.Index(rec); err != nil {
				return err
			}
		}

		if page.MaxResults+page.StartAt >= page.Total {
			return nil
		}
		offset += page.MaxResults

		url := fmt.Sprintf("%s/worklog?startAt=%d&maxResults=%d", iss.Self, offset, worklogPageSize)
		page = worklogPage{}
		if err := p.client.GetJSON(ctx, url, &page); err != nil {
			return err
		}
	}
}

// Apply drains the queued changes against Jira.
func (p *Provider) Apply(ctx context.Context) error {
	return p.ApplyPending(ctx, p.ID(), p.applyChange)
}

func (p *Provider) applyChange(ctx context.Context, change provider.Change) error {
	rec := change.Record
	switch rec.Action {
	case interval.ActionUpdate:
		if change.Prev != nil && change.Prev.Name != rec.Name {
			// A worklog cannot move to another issue; replace it.
			if err := p.deleteWorklog(ctx, rec.ID); err != nil {
				return err
			}
			return p.createWorklog(ctx, rec)
		}
		return p.updateWorklog(ctx, rec)

	case interval.ActionDelete:
		return p.deleteWorklog(ctx, rec.ID)

	case interval.ActionCreate:
		return p.createWorklog(ctx, rec)

	default:
		return errors.NewIntegrityError("unknown_action",
			fmt.Sprintf("record %s carries action %q", rec.ID, rec.Action.String()), rec.ID)
	}
}

func (p *Provider) deleteWorklog(ctx context.Context, worklogURL string) error {
	if !strings.HasPrefix(worklogURL, "http") {
		return fmt.Errorf("worklog id %q is not a REST URL: %w", worklogURL, provider.ErrUnprocessable)
	}
	return p.client.Delete(ctx, worklogURL)
}

func (p *Provider) createWorklog(ctx context.Context, rec *interval.Record) error {
	if !issueKeyRegex.MatchString(rec.Name) {
		return fmt.Errorf("name %q is not a valid issue key: %w", rec.Name, provider.ErrUnprocessable)
	}

	err := p.client.PostJSON(ctx, fmt.Sprintf(urlIssueWorklog, p.cfg.Server, rec.Name), map[string]any{
		"comment":          rec.Description,
		"started":          rec.Start.Format(startedFormat),
		"timeSpentSeconds": timeSpentSeconds(rec),
	}, nil)
	if apiErr := (*errors.APIError)(nil); errors.As(err, &apiErr) &&
		(apiErr.StatusCode == 400 || apiErr.StatusCode == 404) {
		return fmt.Errorf("issue %s rejected the worklog: %w", rec.Name, provider.ErrUnprocessable)
	}
	return err
}

func (p *Provider) updateWorklog(ctx context.Context, rec *interval.Record) error {
	if !strings.HasPrefix(rec.ID, "http") {
		return fmt.Errorf("worklog id %q is not a REST URL: %w", rec.ID, provider.ErrUnprocessable)
	}
	return p.client.PutJSON(ctx, rec.ID, map[string]any{
		"comment":          rec.Description,
		"started":          rec.Start.Format(startedFormat),
		"timeSpentSeconds": timeSpentSeconds(rec),
	}, nil)
}

// timeSpentSeconds converts a span to Jira's time-spent field. Jira
// truncates the value to whole minutes, which can land the computed end
// before the interval's real end; when the truncated end would cross
// below a minute boundary the span is rounded up instead.
func timeSpentSeconds(rec *interval.Record) int64 {
	spent := rec.End.Sub(rec.Start).Seconds()
	overflow := math.Mod(spent, 60)
	endSeconds := float64(rec.End.Second()) + float64(rec.End.Nanosecond())/1e9
	if endSeconds-overflow < 0 {
		spent += 60
	}
	return int64(spent)
}
