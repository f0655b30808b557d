// Package metasking implements the provider backed by a meTasking
// server. Work logs are listed page by page and flattened into one
// record per log record; changes map onto the log and record REST
// resources.
package metasking

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/meTasking/sync/internal/transport"
	"github.com/meTasking/sync/pkg/errors"
	"github.com/meTasking/sync/pkg/interval"
	"github.com/meTasking/sync/pkg/provider"
)

const (
	apiVersion = "v1"
	pageSize   = 100
	urlLog     = "/api/" + apiVersion + "/log"
	urlLogList = urlLog + "/list"
	urlRecord  = "/api/" + apiVersion + "/record"
	timeOutFmt = time.RFC3339Nano
)

// Config holds the meTasking connection settings.
type Config struct {
	Server string // base URL, e.g. http://localhost:8000
}

// Provider syncs against a meTasking server.
type Provider struct {
	*provider.Base
	client *transport.Client
	server string
}

// New creates the meTasking provider.
func New(opts provider.Options, cfg Config) (*Provider, error) {
	if cfg.Server == "" {
		return nil, errors.NewConfigError("metasking", "server address is required", nil)
	}
	base, err := provider.NewBase(opts)
	if err != nil {
		return nil, err
	}
	return &Provider{
		Base:   base,
		client: transport.New(provider.MeTaskingID.String(), &transport.NoAuth{}),
		server: cfg.Server,
	}, nil
}

// ID implements the provider interface.
func (p *Provider) ID() provider.ID {
	return provider.MeTaskingID
}

type logEntry struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Task        *taskEntry   `json:"task"`
	Records     []workRecord `json:"records"`
}

type taskEntry struct {
	Name string `json:"name"`
}

type workRecord struct {
	ID    int64  `json:"id"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// Open pages through the log list and indexes every record. The server
// has no time-bound filter on the list endpoint, so the defensive
// window check in the indexer does the filtering.
func (p *Provider) Open(ctx context.Context) error {
	offset := 0
	for {
		var logs []logEntry
		url := fmt.Sprintf("%s%s?offset=%d&limit=%d", p.server, urlLogList, offset, pageSize)
		if err := p.client.GetJSON(ctx, url, &logs); err != nil {
			return err
		}
		if len(logs) == 0 {
			return nil
		}

		for _, entry := range logs {
			name := entry.Name
			if entry.Task != nil {
				name = entry.Task.Name
			}
			for _, wr := range entry.Records {
				start, err := interval.ParseTime(wr.Start)
				if err != nil {
					return err
				}
				end, err := interval.ParseTime(wr.End)
				if err != nil {
					return err
				}
				rec := &interval.Record{
					ID:          strconv.FormatInt(wr.ID, 10),
					Name:        name,
					Description: entry.Description,
					Start:       start,
					End:         end,
				}
				if err := p.Index(rec); err != nil {
					return err
				}
			}
		}

		offset += len(logs)
	}
}

// Apply drains the queued changes against the server.
func (p *Provider) Apply(ctx context.Context) error {
	return p.ApplyPending(ctx, p.ID(), p.applyChange)
}

func (p *Provider) applyChange(ctx context.Context, change provider.Change) error {
	rec := change.Record
	switch rec.Action {
	case interval.ActionDelete:
		return p.client.Delete(ctx, fmt.Sprintf("%s%s/%s", p.server, urlRecord, rec.ID))

	case interval.ActionCreate:
		body := map[string]any{
			"name":        rec.Name,
			"description": rec.Description,
			"records": []map[string]any{
				{
					"start": rec.Start.Format(timeOutFmt),
					"end":   rec.End.Format(timeOutFmt),
				},
			},
		}
		return p.client.PostJSON(ctx, p.server+urlLog, body, nil)

	case interval.ActionUpdate:
		// The record resource owns the span, the log resource owns the
		// name and description; an update touches both.
		err := p.client.PutJSON(ctx, fmt.Sprintf("%s%s/%s", p.server, urlRecord, rec.ID), map[string]any{
			"start": rec.Start.Format(timeOutFmt),
			"end":   rec.End.Format(timeOutFmt),
		}, nil)
		if err != nil {
			return err
		}

		var parent struct {
			ID int64 `json:"id"`
		}
		err = p.client.GetJSON(ctx, fmt.Sprintf("%s%s/%s/log", p.server, urlRecord, rec.ID), &parent)
		if err != nil {
			return err
		}
		return p.client.PutJSON(ctx, fmt.Sprintf("%s%s/%d", p.server, urlLog, parent.ID), map[string]any{
			"name":        rec.Name,
			"description": rec.Description,
		}, nil)

	default:
		return errors.NewIntegrityError("unknown_action",
			fmt.Sprintf("record %s carries action %q", rec.ID, rec.Action.String()), rec.ID)
	}
}
