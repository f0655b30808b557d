// Package toggl implements the provider backed by the Toggl Track v9
// API. Toggl time entries have a single description field; the optional
// split-name mode divides it into a grouping name and a free-text
// description on the way in and joins them back on the way out.
package toggl

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/meTasking/sync/internal/transport"
	"github.com/meTasking/sync/pkg/errors"
	"github.com/meTasking/sync/pkg/interval"
	"github.com/meTasking/sync/pkg/provider"
)

const (
	defaultBaseURL = "https://www.toggl.com/api/v9"

	createdWith = "meTasking SYNC"
)

var nameRegex = regexp.MustCompile(`^(.*)[: -_](.*)$`)

// Config holds the Toggl connection settings.
type Config struct {
	Token       string
	WorkspaceID string
	SplitName   bool   // split the description into name and description
	BaseURL     string // API base URL; empty means the public API
}

// Provider syncs against a Toggl Track workspace.
type Provider struct {
	*provider.Base
	client  *transport.Client
	cfg     Config
	baseURL string
}

// New creates the Toggl provider.
func New(opts provider.Options, cfg Config) (*Provider, error) {
	if cfg.Token == "" {
		return nil, errors.NewConfigError("toggl", "API token is required", nil)
	}
	if cfg.WorkspaceID == "" {
		return nil, errors.NewConfigError("toggl", "workspace id is required", nil)
	}
	base, err := provider.NewBase(opts)
	if err != nil {
		return nil, err
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Provider{
		Base: base,
		client: transport.New(provider.TogglID.String(), &transport.BasicAuth{
			Username: cfg.Token,
			Password: "api_token",
		}),
		cfg:     cfg,
		baseURL: baseURL,
	}, nil
}

// ID implements the provider interface.
func (p *Provider) ID() provider.ID {
	return provider.TogglID
}

type timeEntry struct {
	ID          int64  `json:"id"`
	WorkspaceID int64  `json:"workspace_id"`
	Description string `json:"description"`
	Start       string `json:"start"`
	Stop        string `json:"stop"`
}

// Open fetches all time entries in the window and indexes the ones
// belonging to the configured workspace.
func (p *Provider) Open(ctx context.Context) error {
	url := p.baseURL + "/me/time_entries"
	sep := "?"
	if since := p.Options().Since; since != nil {
		url += sep + "start_date=" + since.Format(time.RFC3339)
		sep = "&"
	}
	if until := p.Options().Until; until != nil {
		url += sep + "end_date=" + until.Format(time.RFC3339)
	}

	var entries []timeEntry
	if err := p.client.GetJSON(ctx, url, &entries); err != nil {
		return err
	}

	for _, entry := range entries {
		if strconv.FormatInt(entry.WorkspaceID, 10) != p.cfg.WorkspaceID {
			continue
		}

		name, description := p.splitName(entry.Description)
		start, err := interval.ParseTime(entry.Start)
		if err != nil {
			return err
		}
		end, err := interval.ParseTime(entry.Stop)
		if err != nil {
			return err
		}
		rec := &interval.Record{
			ID:          strconv.FormatInt(entry.ID, 10),
			Name:        name,
			Description: description,
			Start:       start,
			End:         end,
		}
		if err := p.Index(rec); err != nil {
			return err
		}
	}
	return nil
}

// splitName divides a Toggl description into name and description when
// split mode is on.
func (p *Provider) splitName(description string) (string, string) {
	if !p.cfg.SplitName {
		return description, ""
	}
	match := nameRegex.FindStringSubmatch(description)
	if match == nil {
		return description, ""
	}
	return strings.TrimSpace(match[1]), strings.TrimSpace(match[2])
}

// joinName is the inverse of splitName for outgoing entries.
func (p *Provider) joinName(rec *interval.Record) string {
	if !p.cfg.SplitName || rec.Description == "" {
		return rec.Name
	}
	return rec.Name + ": " + rec.Description
}

// Apply drains the queued changes against the workspace.
func (p *Provider) Apply(ctx context.Context) error {
	return p.ApplyPending(ctx, p.ID(), p.applyChange)
}

func (p *Provider) applyChange(ctx context.Context, change provider.Change) error {
	rec := change.Record
	switch rec.Action {
	case interval.ActionDelete:
		return p.client.Delete(ctx, p.entryURL(rec.ID))

	case interval.ActionUpdate:
		return p.client.PutJSON(ctx, p.entryURL(rec.ID), map[string]any{
			"description": p.joinName(rec),
			"start":       rec.Start.Format(time.RFC3339),
			"stop":        rec.End.Format(time.RFC3339),
		}, nil)

	case interval.ActionCreate:
		workspaceID, err := strconv.ParseInt(p.cfg.WorkspaceID, 10, 64)
		if err != nil {
			return errors.NewConfigError("toggl", "workspace id must be numeric", err)
		}
		return p.client.PostJSON(ctx, p.entriesURL(), map[string]any{
			"created_with": createdWith,
			"workspace_id": workspaceID,
			"description":  p.joinName(rec),
			"start":        rec.Start.Format(time.RFC3339),
			"stop":         rec.End.Format(time.RFC3339),
		}, nil)

	default:
		return errors.NewIntegrityError("unknown_action",
			fmt.Sprintf("record %s carries action %q", rec.ID, rec.Action.String()), rec.ID)
	}
}

func (p *Provider) entriesURL() string {
	return fmt.Sprintf("%s/workspaces/%s/time_entries", p.baseURL, p.cfg.WorkspaceID)
}

func (p *Provider) entryURL(id string) string {
	return p.entriesURL() + "/" + id
}
