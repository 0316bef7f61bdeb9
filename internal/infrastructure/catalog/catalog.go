// Package catalog ingests the external player feed and normalizes it into
// catalog players. Free-text position labels are mapped once, here; records
// that cannot be normalized are quarantined and reported.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"

	"github.com/riskibarqy/fantasy-roster/internal/domain/player"
	"github.com/riskibarqy/fantasy-roster/internal/platform/logging"
)

//go:embed seed_players.json
var seedFeed []byte

var ErrDataQuality = errors.New("catalog data quality error")

// Record is one entry of the catalog feed.
type Record struct {
	ID       string `json:"id" validate:"required,max=64"`
	Name     string `json:"name" validate:"required,max=128"`
	Position string `json:"position" validate:"required"`
	Price    int64  `json:"price" validate:"gte=0"`
	Team     string `json:"team" validate:"max=128"`
	House    string `json:"house" validate:"max=64"`
}

// Issue describes why a record was quarantined.
type Issue struct {
	Index    int
	RecordID string
	Field    string
	Reason   string
}

// DataQualityError lists quarantined records.
type DataQualityError struct {
	Issues []Issue
}

func (e *DataQualityError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, fmt.Sprintf("record %d (%s) %s: %s", issue.Index, issue.RecordID, issue.Field, issue.Reason))
	}
	return fmt.Sprintf("%s: %d record(s) quarantined: %s", ErrDataQuality, len(e.Issues), strings.Join(parts, "; "))
}

func (e *DataQualityError) Unwrap() error {
	return ErrDataQuality
}

// Result is the outcome of a feed ingestion.
type Result struct {
	Players     []player.Player
	Quarantined []Issue
}

type Loader struct {
	strict   bool
	validate *validator.Validate
	logger   *logging.Logger
}

// NewLoader builds a Loader. In strict mode any quarantined record rejects
// the whole feed.
func NewLoader(strict bool, logger *logging.Logger) *Loader {
	if logger == nil {
		logger = logging.Default()
	}
	return &Loader{
		strict:   strict,
		validate: validator.New(),
		logger:   logger,
	}
}

// Decode parses a JSON array of records.
func Decode(r io.Reader) ([]Record, error) {
	var records []Record
	if err := sonic.ConfigDefault.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode catalog feed: %w", err)
	}
	return records, nil
}

// Normalize validates records and converts them into players. Bad records
// are skipped; when any are skipped the returned error is a *DataQualityError
// alongside the good players.
func (l *Loader) Normalize(records []Record) ([]player.Player, error) {
	players := make([]player.Player, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	var issues []Issue

	for i, rec := range records {
		rec.ID = strings.TrimSpace(rec.ID)
		rec.Name = strings.TrimSpace(rec.Name)
		rec.Team = strings.TrimSpace(rec.Team)
		rec.House = strings.TrimSpace(rec.House)

		if err := l.validate.Struct(rec); err != nil {
			var fieldErrs validator.ValidationErrors
			if errors.As(err, &fieldErrs) {
				for _, fe := range fieldErrs {
					issues = append(issues, Issue{Index: i, RecordID: rec.ID, Field: strings.ToLower(fe.Field()), Reason: "failed " + fe.Tag()})
				}
			} else {
				issues = append(issues, Issue{Index: i, RecordID: rec.ID, Field: "record", Reason: err.Error()})
			}
			continue
		}

		pos, err := player.ParsePositionLabel(rec.Position)
		if err != nil {
			issues = append(issues, Issue{Index: i, RecordID: rec.ID, Field: "position", Reason: fmt.Sprintf("unknown label %q", rec.Position)})
			continue
		}
		if _, dup := seen[rec.ID]; dup {
			issues = append(issues, Issue{Index: i, RecordID: rec.ID, Field: "id", Reason: "duplicate id"})
			continue
		}
		seen[rec.ID] = struct{}{}

		players = append(players, player.Player{
			ID:       rec.ID,
			Name:     rec.Name,
			Position: pos,
			Price:    rec.Price,
			Team:     rec.Team,
			House:    rec.House,
		})
	}

	if len(issues) > 0 {
		return players, &DataQualityError{Issues: issues}
	}
	return players, nil
}

// Load ingests a feed.
func (l *Loader) Load(r io.Reader) (Result, error) {
	records, err := Decode(r)
	if err != nil {
		return Result{}, err
	}
	return l.Admit(records)
}

// Admit normalizes already decoded records and applies the quarantine policy:
// strict loaders reject the batch, lenient ones log and drop bad records.
func (l *Loader) Admit(records []Record) (Result, error) {
	players, err := l.Normalize(records)
	var dqErr *DataQualityError
	if errors.As(err, &dqErr) {
		if l.strict {
			return Result{}, err
		}
		for _, issue := range dqErr.Issues {
			l.logger.Warn("catalog record quarantined",
				"index", issue.Index,
				"record_id", issue.RecordID,
				"field", issue.Field,
				"reason", issue.Reason,
			)
		}
		return Result{Players: players, Quarantined: dqErr.Issues}, nil
	}
	if err != nil {
		return Result{}, err
	}

	return Result{Players: players}, nil
}

// Seed returns the bundled catalog records.
func Seed() ([]Record, error) {
	return Decode(bytes.NewReader(seedFeed))
}

// LoadFile ingests the feed at path. An empty path loads the bundled seed feed.
func (l *Loader) LoadFile(path string) (Result, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return l.Load(bytes.NewReader(seedFeed))
	}

	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open catalog feed: %w", err)
	}
	defer f.Close()

	return l.Load(f)
}
