// Package jsonl implements the provider backed by a plain JSON line
// stream: records are read from an input stream at open and the
// post-change collection (or just the modifications) is written to an
// output stream at apply. It composes with shell pipelines and is the
// workhorse for testing the reconciler end to end.
package jsonl

import (
	"context"
	"encoding/json"
	"io"

	"github.com/meTasking/sync/pkg/errors"
	"github.com/meTasking/sync/pkg/interval"
	"github.com/meTasking/sync/pkg/provider"
)

// Config holds the stream settings.
type Config struct {
	Input  io.Reader // nil reads nothing
	Output io.Writer // nil writes nothing

	// OnlyModifications writes the tagged change stream instead of the
	// full post-change collection.
	OnlyModifications bool
}

// Provider syncs against a JSON line stream.
type Provider struct {
	*provider.Base
	cfg Config
}

// New creates the JSON line-stream provider.
func New(opts provider.Options, cfg Config) (*Provider, error) {
	base, err := provider.NewBase(opts)
	if err != nil {
		return nil, err
	}
	return &Provider{Base: base, cfg: cfg}, nil
}

// ID implements the provider interface.
func (p *Provider) ID() provider.ID {
	return provider.JSONLID
}

// Open reads records from the input stream until EOF. Input records
// must be pristine: an action field in the input is rejected, not
// interpreted.
func (p *Provider) Open(_ context.Context) error {
	if p.cfg.Input == nil {
		return nil
	}

	decoder := json.NewDecoder(p.cfg.Input)
	for {
		var raw map[string]json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			if err == io.EOF {
				return nil
			}
			return errors.WrapValidation("input", err)
		}
		if _, ok := raw["action"]; ok {
			return errors.NewValidationError("action", nil,
				"field 'action' is not allowed in input data")
		}

		encoded, err := json.Marshal(raw)
		if err != nil {
			return err
		}
		var rec interval.Record
		if err := json.Unmarshal(encoded, &rec); err != nil {
			return errors.WrapValidation("input", err)
		}
		if err := p.Index(&rec); err != nil {
			return err
		}
	}
}

// Apply writes the output stream. In modification mode every applied
// change is written as one tagged record line; otherwise the full
// collection is written after the queue drains.
func (p *Provider) Apply(ctx context.Context) error {
	dryRun := p.Options().DryRun

	var encoder *json.Encoder
	if p.cfg.Output != nil {
		encoder = json.NewEncoder(p.cfg.Output)
	}

	err := p.ApplyPending(ctx, p.ID(), func(_ context.Context, change provider.Change) error {
		if encoder == nil || !p.cfg.OnlyModifications {
			return nil
		}
		return encoder.Encode(change.Record)
	})
	if err != nil {
		return err
	}

	if encoder == nil || p.cfg.OnlyModifications || dryRun {
		return nil
	}
	for _, rec := range p.Dump() {
		if err := encoder.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}
