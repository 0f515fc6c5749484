package deadline

import (
	"context"
	"strings"
	"time"

	"github.com/dt-pm-tools/board-sync/internal/config"
	"github.com/dt-pm-tools/board-sync/internal/monday"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrInvalidInput is returned when a required input field is missing.
var ErrInvalidInput = errors.New("invalid input")

// API is the subset of the monday client the deadline flow needs.
type API interface {
	GetItemColumns(ctx context.Context, itemID string, columnIDs []string) (*monday.Item, error)
	ChangeColumnValues(ctx context.Context, boardID, itemID string, values any) (monday.ID, error)
}

// Input carries the action input fields. Column ids left empty fall back
// to the configured defaults.
type Input struct {
	ItemID       monday.ID `json:"itemId"`
	BoardID      monday.ID `json:"boardId"`
	ClientItemID monday.ID `json:"clienteItemId"`
	Criticality  string    `json:"criticidade"`

	SLACriticalColumn string `json:"slaCriticoColId"`
	SLAHighColumn     string `json:"slaAltaColId"`
	SLAMediumColumn   string `json:"slaMediaColId"`
	SLALowColumn      string `json:"slaBaixaColId"`
	DeadlineColumn    string `json:"deadlineColId"`
}

// Result describes a computed deadline.
type Result struct {
	ItemID   string
	BoardID  string
	Column   string
	Severity Severity
	Days     int
	Deadline string
	Written  bool
}

// Service computes SLA deadlines and writes them back onto the item.
type Service struct {
	api      API
	defaults config.SLAColumns
	loc      *time.Location
	log      *logrus.Entry

	// Now is the clock; replaced in tests.
	Now func() time.Time
}

// NewService creates a deadline service.
func NewService(api API, cfg config.Config, log *logrus.Entry) (*Service, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return &Service{
		api:      api,
		defaults: cfg.Deadline.Columns,
		loc:      loc,
		log:      log.WithField("cmp", "deadline"),
		Now:      time.Now,
	}, nil
}

func (s *Service) withDefaults(in Input) Input {
	pick := func(v, d string) string {
		if strings.TrimSpace(v) == "" {
			return d
		}
		return v
	}
	in.SLACriticalColumn = pick(in.SLACriticalColumn, s.defaults.Critical)
	in.SLAHighColumn = pick(in.SLAHighColumn, s.defaults.High)
	in.SLAMediumColumn = pick(in.SLAMediumColumn, s.defaults.Medium)
	in.SLALowColumn = pick(in.SLALowColumn, s.defaults.Low)
	in.DeadlineColumn = pick(in.DeadlineColumn, s.defaults.Deadline)
	return in
}

func validate(in Input) error {
	var missing []string
	if in.ItemID == "" {
		missing = append(missing, "itemId")
	}
	if in.BoardID == "" {
		missing = append(missing, "boardId")
	}
	if in.ClientItemID == "" {
		missing = append(missing, "clienteItemId")
	}
	if strings.TrimSpace(in.Criticality) == "" {
		missing = append(missing, "criticidade")
	}
	for _, c := range []string{in.SLACriticalColumn, in.SLAHighColumn, in.SLAMediumColumn, in.SLALowColumn, in.DeadlineColumn} {
		if c == "" {
			missing = append(missing, "column ids")
			break
		}
	}
	if len(missing) > 0 {
		return errors.Wrapf(ErrInvalidInput, "missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// Run reads the client's SLA table, computes the deadline for the given
// criticality and writes it to the deadline column. With dryRun the date is
// computed but not written.
func (s *Service) Run(ctx context.Context, in Input, dryRun bool) (Result, error) {
	in = s.withDefaults(in)
	if err := validate(in); err != nil {
		return Result{}, err
	}

	severity, err := ParseSeverity(in.Criticality)
	if err != nil {
		return Result{}, err
	}

	columns := map[Severity]string{
		Critical: in.SLACriticalColumn,
		High:     in.SLAHighColumn,
		Medium:   in.SLAMediumColumn,
		Low:      in.SLALowColumn,
	}

	client, err := s.api.GetItemColumns(ctx, in.ClientItemID.String(), []string{
		in.SLACriticalColumn, in.SLAHighColumn, in.SLAMediumColumn, in.SLALowColumn,
	})
	if err != nil {
		return Result{}, err
	}

	table, err := readTable(client.Columns, columns)
	if err != nil {
		return Result{}, errors.Wrapf(err, "client item %s", in.ClientItemID)
	}

	days, _ := table.Days(severity)
	res := Result{
		ItemID:   in.ItemID.String(),
		BoardID:  in.BoardID.String(),
		Column:   in.DeadlineColumn,
		Severity: severity,
		Days:     days,
		Deadline: Compute(s.Now(), s.loc, days),
	}

	log := s.log.WithFields(logrus.Fields{
		"item":     res.ItemID,
		"client":   in.ClientItemID,
		"severity": severity,
		"days":     days,
		"deadline": res.Deadline,
	})

	if dryRun {
		log.Debug("Deadline computed (dry run).")
		return res, nil
	}

	values := map[string]monday.DateValue{in.DeadlineColumn: {Date: res.Deadline}}
	if _, err := s.api.ChangeColumnValues(ctx, res.BoardID, res.ItemID, values); err != nil {
		return res, err
	}
	res.Written = true
	log.Info("Deadline written.")
	return res, nil
}

func readTable(cols monday.Columns, ids map[Severity]string) (SLATable, error) {
	table := SLATable{}
	for _, sev := range Severities {
		id := ids[sev]
		if !cols.Has(id) {
			return nil, errors.Errorf("SLA column %q (%s) not returned", id, sev)
		}
		days, err := ParseDays(cols.Text(id))
		if err != nil {
			return nil, errors.Wrapf(err, "column %q", id)
		}
		table[sev] = days
	}
	return table, nil
}
