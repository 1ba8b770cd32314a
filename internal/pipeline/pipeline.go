// Package pipeline runs the declink stages end to end.
package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"declink/internal/clean"
	"declink/internal/config"
	"declink/internal/dedupe"
	"declink/internal/export"
	"declink/internal/group"
	"declink/internal/linker"
	"declink/internal/record"
	"declink/internal/report"
	"declink/internal/store"
	"declink/internal/tabular"
	"declink/internal/taskindex"
)

// TimestampLayout stamps artifact names.
const TimestampLayout = "2006-01-02_15-04-05"

// Extra columns of the invalid artifact.
const (
	ColLine   = "line"
	ColReason = "reason"
)

// ProcessOptions name the inputs and optional artifacts of a process run.
type ProcessOptions struct {
	Source    string
	Tasks     string
	UserTasks string
	OutDir    string
	Dedupe    bool
	Debug     bool
	XLSX      bool
	SQLite    string
	Report    string
	Logger    *log.Logger
	Now       func() time.Time
}

// ProcessResult lists what a process run produced.
type ProcessResult struct {
	RunID     string
	Processed string
	Invalid   string
	Debug     string
	Workbook  string
	Summary   report.Summary
}

func loggerOr(l *log.Logger) *log.Logger {
	if l != nil {
		return l
	}
	return log.New(io.Discard)
}

func nowOr(now func() time.Time) time.Time {
	if now != nil {
		return now()
	}
	return time.Now()
}

// Process cleans and links the source rows and writes the processed and
// invalid artifacts plus the optional ones.
func Process(cfg config.Config, opts ProcessOptions) (ProcessResult, error) {
	logger := loggerOr(opts.Logger)
	started := nowOr(opts.Now)
	stamp := started.Format(TimestampLayout)
	res := ProcessResult{RunID: uuid.NewString()}

	logger.Info("Reading tasks file", "path", opts.Tasks)
	ref, err := taskindex.LoadReference(opts.Tasks)
	if err != nil {
		return res, err
	}
	logger.Info("Reading tasks file", "path", opts.UserTasks)
	users, err := taskindex.LoadUserTasks(opts.UserTasks)
	if err != nil {
		return res, err
	}

	logger.Info("Reading the file", "path", opts.Source)
	header, rows, err := tabular.Read(opts.Source)
	if err != nil {
		return res, err
	}
	rows, ragged := fitRows(rows, len(header))
	if ragged > 0 {
		logger.Warn("Rows padded or truncated to the header width", "rows", ragged, "width", len(header))
	}

	cleaner := clean.New(cfg.Columns, cfg.Cleaning.YearPivot)
	l := linker.New(cfg.Columns, ref, users, linker.Options{MinUnlinkedName: cfg.Linking.MinUnlinkedNameLength})
	linked := l.LinkAll(rows, cleaner.Row)
	logger.Infof("Loaded rows: %d and %d invalid", len(linked.Accepted), len(linked.Invalid))

	sum := report.Summary{
		RunID:            res.RunID,
		Started:          started,
		Source:           opts.Source,
		Tasks:            opts.Tasks,
		UserTasks:        opts.UserTasks,
		ReferenceTasks:   ref.Index.Len(),
		ReferenceBuckets: ref.Index.Buckets(),
		DuplicateTasks:   ref.Counts.Duplicates(),
		Users:            len(users),
		UserFiles:        users.Tasks(),
		RowsRead:         len(rows),
		Invalid:          linked.Reasons(),
	}

	accepted := linked.Accepted
	if opts.Dedupe || cfg.Dedupe.Enabled {
		strategy, err := dedupe.ParseStrategy(cfg.Dedupe.Strategy)
		if err != nil {
			return res, err
		}
		logger.Info("Deduplicating data", "strategy", strategy)
		accepted = dedupe.Apply(strategy, accepted)
		sum.DedupeStrategy = string(strategy)
		sum.Deduped = len(linked.Accepted) - len(accepted)
		logger.Infof("Rows after deduplication: %d", len(accepted))
	}
	sum.Records = report.Collect(accepted)

	layout := cfg.Columns.Layout()
	outDir := opts.OutDir
	if outDir == "" {
		outDir = cfg.Output.Dir
	}
	artifact := func(kind, ext string) string {
		return filepath.Join(outDir, fmt.Sprintf("%s_%s.%s", kind, stamp, ext))
	}
	written := func(kind, path string) {
		logger.Info("Result was written", "path", path)
		sum.Outputs = append(sum.Outputs, report.Output{Kind: kind, Path: path}.Stat())
	}

	processedHeader := layout.Header(header)
	res.Processed = artifact("processed", "csv")
	if err := tabular.Write(res.Processed, processedHeader, layout.Rows(accepted)); err != nil {
		return res, err
	}
	written("processed", res.Processed)

	res.Invalid = artifact("invalid", "csv")
	if err := tabular.Write(res.Invalid, invalidHeader(layout, header), invalidRows(layout, linked.Invalid)); err != nil {
		return res, err
	}
	written("invalid", res.Invalid)

	if opts.Debug {
		res.Debug = artifact("processed_debug", "csv")
		if err := tabular.Write(res.Debug, debugHeader(cfg.Columns, header), debugRows(cfg.Columns, accepted)); err != nil {
			return res, err
		}
		written("debug", res.Debug)
	}

	var groups []group.Group
	if opts.XLSX || opts.SQLite != "" {
		var st group.Stats
		groups, st = group.ByNameAndLink(accepted)
		sum.Groups = &st
		logStats(logger, st)
	}

	if opts.XLSX {
		res.Workbook = artifact("grouped", "xlsx")
		rendered := make([][][]string, len(groups))
		for i, g := range groups {
			rendered[i] = layout.Rows(g.Records)
		}
		if err := export.Write(res.Workbook, processedHeader, rendered, export.Options{
			Sheets:      cfg.Export.GroupSheets,
			Highlight:   []int{indexOf(processedHeader, record.ColNameNormalized)},
			GroupColumn: cfg.Export.GroupColumn,
			Logger:      logger,
		}); err != nil {
			return res, err
		}
		written("workbook", res.Workbook)
	}

	if opts.SQLite != "" {
		if err := snapshot(opts.SQLite, cfg.Columns, store.Run{
			ID: res.RunID, StartedAt: started, Source: opts.Source, Tasks: opts.Tasks,
			UserTasks: opts.UserTasks, Deduped: sum.Deduped,
		}, accepted, linked.Invalid, groups); err != nil {
			return res, err
		}
		written("sqlite", opts.SQLite)
	}

	sum.Finished = nowOr(opts.Now)
	if opts.Report != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Report), 0o755); err != nil {
			return res, err
		}
		if err := os.WriteFile(opts.Report, []byte(report.Build(sum)), 0o644); err != nil {
			return res, err
		}
		logger.Info("Report was written", "path", opts.Report)
	}
	res.Summary = sum
	return res, nil
}

// fitRows pads short rows with empty cells and truncates long ones so that
// every row is exactly width cells wide. It reports how many rows changed.
func fitRows(rows [][]string, width int) ([][]string, int) {
	out := make([][]string, len(rows))
	n := 0
	for i, row := range rows {
		if len(row) == width {
			out[i] = row
			continue
		}
		n++
		fitted := make([]string, width)
		copy(fitted, row)
		out[i] = fitted
	}
	return out, n
}

func snapshot(path string, schema record.Schema, run store.Run, accepted []*record.Record, invalid []record.Invalid, groups []group.Group) error {
	s, err := store.Open(path, schema)
	if err != nil {
		return err
	}
	defer s.Close()
	id, err := s.SaveRun(run, accepted, invalid)
	if err != nil {
		return err
	}
	return s.SaveGroups(id, groups)
}

func logStats(logger *log.Logger, st group.Stats) {
	logger.Info("Grouped by name", "groups", st.NameGroups, "records", st.NameRecords)
	logger.Info("Attached by link", "records", st.Attached)
	logger.Info("Grouped orphans by link", "groups", st.LinkGroups, "records", st.LinkRecords)
	logger.Info("Unmatched", "records", st.Unmatched)
}

func invalidHeader(layout record.Layout, header []string) []string {
	return append(layout.Project(header), ColLine, ColReason)
}

func invalidRows(layout record.Layout, invalid []record.Invalid) [][]string {
	out := make([][]string, 0, len(invalid))
	for _, inv := range invalid {
		out = append(out, append(layout.Project(inv.Cells), fmt.Sprint(inv.Line), inv.Reason))
	}
	return out
}

func debugHeader(schema record.Schema, header []string) []string {
	at := func(i int) string {
		if i < len(header) {
			return header[i]
		}
		return ""
	}
	out := []string{at(schema.Filename), at(schema.Email), at(schema.Name)}
	return append(out, record.DerivedColumns...)
}

func debugRows(schema record.Schema, recs []*record.Record) [][]string {
	out := make([][]string, 0, len(recs))
	for _, r := range recs {
		row := []string{r.Cell(schema.Filename), r.Cell(schema.Email), r.Cell(schema.Name)}
		out = append(out, append(row, r.Derived()...))
	}
	return out
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}

// ReviewOptions select how a processed file is grouped for review.
type ReviewOptions struct {
	Processed string
	// Sheets overrides the configured sheet count when positive.
	Sheets int
	// Legacy groups by link only, keeping groups of at least
	// export.min_link_group_size records.
	Legacy bool
	OutDir string
	Logger *log.Logger
	Now    func() time.Time
}

// ReviewResult reports a review export.
type ReviewResult struct {
	Workbook string
	Records  int
	Groups   int
	Stats    *group.Stats
}

// Review groups a processed file and exports it to a workbook.
func Review(cfg config.Config, opts ReviewOptions) (ReviewResult, error) {
	logger := loggerOr(opts.Logger)
	var res ReviewResult

	logger.Info("Reading the file", "path", opts.Processed)
	header, rows, err := tabular.Read(opts.Processed)
	if err != nil {
		return res, err
	}
	recs, err := record.Decode(header, rows)
	if err != nil {
		return res, fmt.Errorf("%s: %w", opts.Processed, err)
	}
	res.Records = len(recs)
	logger.Infof("Loaded rows: %d", len(recs))

	var groups []group.Group
	var highlight []int
	kind := "grouped"
	sheets := cfg.Export.GroupSheets
	if opts.Legacy {
		groups = group.ByLink(recs, cfg.Export.MinLinkGroupSize)
		highlight = cfg.Export.HighlightColumns
		kind = "formatted"
		sheets = cfg.Export.Sheets
	} else {
		var st group.Stats
		groups, st = group.ByNameAndLink(recs)
		res.Stats = &st
		logStats(logger, st)
		highlight = []int{indexOf(header, record.ColNameNormalized)}
	}
	if opts.Sheets > 0 {
		sheets = opts.Sheets
	}
	res.Groups = len(groups)

	rendered := make([][][]string, len(groups))
	for i, g := range groups {
		rendered[i] = make([][]string, len(g.Records))
		for j, r := range g.Records {
			rendered[i][j] = rows[r.Line-1]
		}
	}

	outDir := opts.OutDir
	if outDir == "" {
		outDir = cfg.Output.Dir
	}
	res.Workbook = filepath.Join(outDir, fmt.Sprintf("%s_%s.xlsx", kind, nowOr(opts.Now).Format(TimestampLayout)))
	logger.Info("Writing to XLSX workbook", "path", res.Workbook, "groups", len(groups), "sheets", sheets)
	if err := export.Write(res.Workbook, header, rendered, export.Options{
		Sheets:      sheets,
		Highlight:   highlight,
		GroupColumn: cfg.Export.GroupColumn,
		Logger:      logger,
	}); err != nil {
		return res, err
	}
	return res, nil
}
