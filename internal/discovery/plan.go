// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package discovery

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"
	"golang.org/x/sync/errgroup"
)

// Plan is a discovery pass saved on disk: the searches one literature
// review needs, typically one per section of the document.
//
//	queries:
//	  - label: background
//	    query: ti:"world models"
//	  - label: methods
//	    query: abs:diffusion AND cat:cs.LG
//	    force_refresh: true
type Plan struct {
	Queries []PlanQuery `yaml:"queries"`
}

// PlanQuery is one search of a plan.
type PlanQuery struct {
	Label        string `yaml:"label,omitempty"`
	Query        string `yaml:"query"`
	ForceRefresh bool   `yaml:"force_refresh,omitempty"`
}

func (q PlanQuery) name() string {
	if q.Label != "" {
		return q.Label
	}
	return q.Query
}

// ReadPlan loads a plan file.
func ReadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan: %w", err)
	}
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing plan %s: %w", path, err)
	}
	for i, q := range p.Queries {
		if strings.TrimSpace(q.Query) == "" {
			return nil, fmt.Errorf("plan %s: query %d has no query text", path, i+1)
		}
	}
	return &p, nil
}

// Outcome is the result of one plan query.
type Outcome struct {
	Label          string   `yaml:"label,omitempty"`
	Query          string   `yaml:"query"`
	CanonicalQuery string   `yaml:"canonical_query,omitempty"`
	ItemIDs        []string `yaml:"item_ids,omitempty"`
	Fetched        bool     `yaml:"fetched"`
	Error          string   `yaml:"error,omitempty"`

	err error
}

// Err returns the failure of the query, if any.
func (o Outcome) Err() error { return o.err }

// PassSummary counts the outcomes of a pass.
type PassSummary struct {
	Fetched   int       `yaml:"fetched"`
	Cached    int       `yaml:"cached"`
	Failed    int       `yaml:"failed"`
	Timestamp time.Time `yaml:"timestamp"`
}

// Total returns the number of queries run.
func (s PassSummary) Total() int { return s.Fetched + s.Cached + s.Failed }

// Report is the saved record of a pass.
type Report struct {
	Outcomes []Outcome   `yaml:"outcomes"`
	Summary  PassSummary `yaml:"summary"`
}

// Err returns the first query failure, or nil.
func (r Report) Err() error {
	for _, o := range r.Outcomes {
		if o.err != nil {
			return fmt.Errorf("%d of %d plan quer(ies) failed; first %q: %w",
				r.Summary.Failed, r.Summary.Total(), o.name(), o.err)
		}
	}
	return nil
}

func (o Outcome) name() string {
	return PlanQuery{Label: o.Label, Query: o.Query}.name()
}

// RunPlan runs every query of plan with at most parallel searches in
// flight. A failing query is reported and the others continue. One status
// line per query is written to w in plan order once all have finished.
func (d *Discoverer) RunPlan(ctx context.Context, plan *Plan, parallel int, w io.Writer) Report {
	if parallel <= 0 {
		parallel = 1
	}
	outcomes := make([]Outcome, len(plan.Queries))

	var g errgroup.Group
	g.SetLimit(parallel)
	for i, q := range plan.Queries {
		g.Go(func() error {
			o := Outcome{Label: q.Label, Query: q.Query}
			res, err := d.Search(ctx, q.Query, q.ForceRefresh)
			if err != nil {
				o.err = err
				o.Error = err.Error()
				d.log.Warn("plan query failed", "query", q.name(), "err", err)
			} else {
				o.CanonicalQuery = res.Record.CanonicalQuery
				o.ItemIDs = res.Record.ItemIDs
				o.Fetched = res.Fetched
			}
			outcomes[i] = o
			return nil
		})
	}
	g.Wait()

	report := Report{Outcomes: outcomes, Summary: PassSummary{Timestamp: time.Now().UTC()}}
	for _, o := range outcomes {
		switch {
		case o.err != nil:
			fmt.Fprintf(w, "failed:  %s (%v)\n", o.name(), o.err)
			report.Summary.Failed++
		case o.Fetched:
			fmt.Fprintf(w, "fetched: %s (%d works)\n", o.name(), len(o.ItemIDs))
			report.Summary.Fetched++
		default:
			fmt.Fprintf(w, "cached:  %s (%d works)\n", o.name(), len(o.ItemIDs))
			report.Summary.Cached++
		}
	}
	fmt.Fprintf(w, "\nDiscovery summary: %d fetched, %d cached, %d failed (total: %d)\n",
		report.Summary.Fetched, report.Summary.Cached, report.Summary.Failed, report.Summary.Total())
	return report
}

// WriteReport saves a pass report as YAML.
func WriteReport(path string, r Report) error {
	data, err := yaml.Marshal(&r)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}
