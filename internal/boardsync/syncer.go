// Package boardsync copies rank, SLA and revenue from a source item onto the
// matching item of the target board, creating it when absent.
package boardsync

import (
	"context"
	"strings"

	"github.com/dt-pm-tools/board-sync/internal/config"
	"github.com/dt-pm-tools/board-sync/internal/monday"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// NameColumn is the pseudo-column holding the item name.
const NameColumn = "name"

// Upsert actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
)

// ErrAmbiguousTarget is returned when several target items match and the
// configured policy refuses to pick one.
var ErrAmbiguousTarget = errors.New("ambiguous target item")

// API is the subset of the monday client the syncer needs.
type API interface {
	GetItem(ctx context.Context, itemID string) (*monday.Item, error)
	SearchItems(ctx context.Context, boardID, columnID, value string) ([]monday.ItemRef, error)
	ChangeColumnValues(ctx context.Context, boardID, itemID string, values any) (monday.ID, error)
	CreateItem(ctx context.Context, boardID, name string, values any) (monday.ID, error)
}

// Fields are the values carried across boards.
type Fields struct {
	Rank    string
	SLA     string
	Revenue string
}

// Result describes one synchronization.
type Result struct {
	SourceItemID string
	Name         string
	Fields       Fields
	Values       map[string]string
	TargetItemID string
	Action       string
	Matches      int
	DryRun       bool
}

// Syncer runs the read, search and upsert sequence for a source item.
type Syncer struct {
	api    API
	source config.ColumnMap
	target config.TargetConfig
	locks  *keyedMutex
	log    *logrus.Entry
}

// NewSyncer creates a syncer for the configured boards.
func NewSyncer(api API, cfg config.Config, log *logrus.Entry) *Syncer {
	target := cfg.Target
	if target.OnMultipleMatches == "" {
		target.OnMultipleMatches = config.MatchFirst
	}
	return &Syncer{
		api:    api,
		source: cfg.Source.Columns,
		target: target,
		locks:  newKeyedMutex(),
		log:    log.WithField("cmp", "syncer"),
	}
}

// Monitors reports whether a change on columnID should trigger a sync.
func (s *Syncer) Monitors(columnID string) bool {
	for _, id := range s.source.IDs() {
		if id == columnID {
			return true
		}
	}
	return false
}

// Extract reads the synchronized fields from a source item. Missing columns
// yield empty strings.
func (s *Syncer) Extract(item *monday.Item) Fields {
	return Fields{
		Rank:    item.Columns.Text(s.source.Rank),
		SLA:     item.Columns.Text(s.source.SLA),
		Revenue: item.Columns.Text(s.source.Revenue),
	}
}

// TargetValues maps extracted fields onto the target column ids.
func (s *Syncer) TargetValues(f Fields) map[string]string {
	values := map[string]string{}
	set := func(col, v string) {
		if col != "" {
			values[col] = v
		}
	}
	set(s.target.Columns.Rank, f.Rank)
	set(s.target.Columns.SLA, f.SLA)
	set(s.target.Columns.Revenue, f.Revenue)
	return values
}

// key returns the column and value target items are matched on.
func (s *Syncer) key(item *monday.Item) (string, string, error) {
	if s.target.ExternalIDColumn != "" {
		return s.target.ExternalIDColumn, item.ID.String(), nil
	}
	if strings.TrimSpace(item.Name) == "" {
		return "", "", errors.Errorf("source item %s has no name", item.ID)
	}
	return NameColumn, item.Name, nil
}

// SyncItem reads the source item, resolves its target counterpart and
// updates or creates it. With dryRun nothing is written.
func (s *Syncer) SyncItem(ctx context.Context, itemID string, dryRun bool) (Result, error) {
	item, err := s.api.GetItem(ctx, itemID)
	if err != nil {
		return Result{}, err
	}
	if item.ID == "" {
		item.ID = monday.ID(itemID)
	}

	fields := s.Extract(item)
	res := Result{
		SourceItemID: item.ID.String(),
		Name:         item.Name,
		Fields:       fields,
		Values:       s.TargetValues(fields),
		DryRun:       dryRun,
	}

	keyColumn, keyValue, err := s.key(item)
	if err != nil {
		return res, err
	}
	if keyColumn != NameColumn {
		res.Values[keyColumn] = keyValue
	}

	log := s.log.WithFields(logrus.Fields{
		"item":  res.SourceItemID,
		"name":  item.Name,
		"board": s.target.BoardID,
	})

	// Search and write for one key must not interleave, or two events for an
	// absent item would both create it.
	unlock, err := s.locks.Lock(ctx, s.target.BoardID+"/"+keyColumn+"="+keyValue)
	if err != nil {
		return res, err
	}
	defer unlock()

	matches, err := s.api.SearchItems(ctx, s.target.BoardID, keyColumn, keyValue)
	if err != nil {
		return res, err
	}
	res.Matches = len(matches)

	if len(matches) > 1 {
		ids := make([]string, 0, len(matches))
		for _, m := range matches {
			ids = append(ids, m.ID.String())
		}
		log.WithField("matches", ids).Warn("Several target items match, using the first one.")
		if s.target.OnMultipleMatches == config.MatchError {
			return res, errors.Wrapf(ErrAmbiguousTarget, "%d items on board %s match %s=%q", len(matches), s.target.BoardID, keyColumn, keyValue)
		}
	}

	if len(matches) > 0 {
		res.Action = ActionUpdated
		res.TargetItemID = matches[0].ID.String()
		if dryRun {
			return res, nil
		}
		if _, err := s.api.ChangeColumnValues(ctx, s.target.BoardID, res.TargetItemID, res.Values); err != nil {
			return res, err
		}
	} else {
		res.Action = ActionCreated
		if dryRun {
			return res, nil
		}
		id, err := s.api.CreateItem(ctx, s.target.BoardID, item.Name, res.Values)
		if err != nil {
			return res, err
		}
		res.TargetItemID = id.String()
	}

	log.WithFields(logrus.Fields{
		"target": res.TargetItemID,
		"action": res.Action,
	}).Info("Item synchronized.")
	return res, nil
}
