// Package csvclean normalizes exported price CSVs into the layout served
// by the API: date,open,high,low,close,volume with ISO dates, oldest first.
package csvclean

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stockanalysis/internal/series"
)

// Columns is the canonical output header, in order.
var Columns = []string{"date", "open", "high", "low", "close", "volume"}

// dateLayouts are tried in order until one parses.
var dateLayouts = []string{
	series.DateLayout,
	"02-Jan-06",
	"2-Jan-06",
	"02-Jan-2006",
	"2-Jan-2006",
	"01/02/2006",
	"1/2/2006",
	"Jan 2, 2006",
	"2 Jan 2006",
	"2006-01-02 15:04:05",
	"2006/01/02",
	time.RFC3339,
}

// Report summarizes a directory run.
type Report struct {
	Cleaned []string `json:"cleaned"`
	Failed  []string `json:"failed"`
	// Skipped counts entries that are not CSV files.
	Skipped int `json:"skipped"`
}

type Cleaner struct {
	RawDir   string
	CleanDir string
	Log      zerolog.Logger
}

// Run cleans every *.csv file directly under RawDir into CleanDir. A file
// that fails is logged and recorded in the report; the others still run.
func (c *Cleaner) Run(ctx context.Context) (Report, error) {
	rep := Report{Cleaned: []string{}, Failed: []string{}}
	entries, err := os.ReadDir(c.RawDir)
	if err != nil {
		return rep, fmt.Errorf("reading raw dir: %w", err)
	}
	if err := os.MkdirAll(c.CleanDir, 0o755); err != nil {
		return rep, fmt.Errorf("creating clean dir: %w", err)
	}

	c.Log.Info().Str("dir", c.RawDir).Msg("cleaning csv files")
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(filepath.Ext(name), ".csv") {
			rep.Skipped++
			continue
		}
		if err := c.cleanFile(name); err != nil {
			c.Log.Error().Err(err).Str("file", name).Msg("failed to clean")
			rep.Failed = append(rep.Failed, name)
			continue
		}
		c.Log.Debug().Str("file", name).Msg("cleaned")
		rep.Cleaned = append(rep.Cleaned, name)
	}
	c.Log.Info().Int("cleaned", len(rep.Cleaned)).Int("failed", len(rep.Failed)).Str("dir", c.CleanDir).Msg("csv cleaning done")
	return rep, nil
}

func (c *Cleaner) cleanFile(name string) (err error) {
	in, err := os.Open(filepath.Join(c.RawDir, name))
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(c.CleanDir, "."+name+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = Clean(in, tmp); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(c.CleanDir, name))
}

type record struct {
	date   time.Time
	fields []string
}

// Clean reads one raw CSV from r and writes the canonical form to w.
func Clean(r io.Reader, w io.Writer) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return errors.New("empty file")
	}
	if err != nil {
		return fmt.Errorf("reading header: %w", err)
	}

	// canonical column -> source index
	index := make(map[string]int, len(Columns))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		for _, col := range Columns {
			if h == col {
				if _, dup := index[col]; !dup {
					index[col] = i
				}
			}
		}
	}
	var out []string
	for _, col := range Columns {
		if _, ok := index[col]; ok {
			out = append(out, col)
		}
	}
	if len(out) == 0 {
		return fmt.Errorf("no recognized columns in header %q", header)
	}
	_, hasDate := index["date"]

	var recs []record
	for line := 2; ; line++ {
		raw, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		rec := record{fields: make([]string, len(out))}
		for j, col := range out {
			cell := ""
			if i := index[col]; i < len(raw) {
				cell = strings.TrimSpace(raw[i])
			}
			if col == "date" {
				d, err := ParseDate(cell)
				if err != nil {
					return fmt.Errorf("line %d: %w", line, err)
				}
				rec.date = d
				rec.fields[j] = d.Format(series.DateLayout)
				continue
			}
			v, err := cleanNumber(cell)
			if err != nil {
				return fmt.Errorf("line %d column %s: %w", line, col, err)
			}
			rec.fields[j] = v
		}
		recs = append(recs, rec)
	}

	if hasDate {
		sort.SliceStable(recs, func(i, j int) bool { return recs[i].date.Before(recs[j].date) })
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(out); err != nil {
		return err
	}
	for _, rec := range recs {
		if err := cw.Write(rec.fields); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ParseDate accepts the date layouts seen in exchange exports.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// cleanNumber strips thousands separators. Empty and "-" cells stay empty.
func cleanNumber(s string) (string, error) {
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || s == "-" {
		return "", nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return "", fmt.Errorf("not a number: %q", s)
	}
	return d.String(), nil
}
