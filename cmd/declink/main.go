package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"declink/internal/config"
	"declink/internal/merge"
	"declink/internal/pipeline"
	"declink/internal/store"
	"declink/internal/ui"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		ui.Error(err.Error())
		os.Exit(1)
	}
}

type app struct {
	cfgPath string
	noColor bool
	verbose bool
	cfg     config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "declink",
		Short:         "Link declarant filings to reference tasks and group them for review",
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ui.Init(a.noColor, a.verbose)
			cfg, err := config.Load(a.cfgPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "YAML config file (default $"+config.EnvPath+")")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "Disable colored output")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log debug output")

	root.AddCommand(a.processCmd(), a.groupCmd(), a.formatCmd(), a.mergeCmd(), a.runsCmd())
	return root
}

// existingFiles rejects positional paths that do not name a file. Only the
// first n arguments are checked.
func existingFiles(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		for i, p := range args {
			if i >= n {
				break
			}
			fi, err := os.Stat(p)
			if err != nil {
				return fmt.Errorf("file %q does not exist", p)
			}
			if fi.IsDir() {
				return fmt.Errorf("%q is a directory", p)
			}
		}
		return nil
	}
}

func parseSheets(args []string, i int) (int, error) {
	if len(args) <= i {
		return 0, nil
	}
	n, err := strconv.Atoi(args[i])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("sheet count must be a positive integer, got %q", args[i])
	}
	return n, nil
}

func count(n int) string { return humanize.Comma(int64(n)) }

// flagged highlights counts of rows that need attention.
func flagged(n int) string {
	if n == 0 {
		return count(n)
	}
	return ui.Yellow(count(n))
}

func (a *app) processCmd() *cobra.Command {
	opts := pipeline.ProcessOptions{}
	cmd := &cobra.Command{
		Use:   "process SOURCE TASKS USER_TASKS",
		Short: "Clean and link the source rows, writing the processed and invalid CSVs",
		Args:  cobra.MatchAll(cobra.ExactArgs(3), existingFiles(3)),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			opts.Source, opts.Tasks, opts.UserTasks = args[0], args[1], args[2]
			opts.Logger = ui.Logger
			res, err := pipeline.Process(a.cfg, opts)
			if err != nil {
				return err
			}
			s := res.Summary
			pairs := []ui.Pair{
				{Key: "Run", Value: res.RunID},
				{Key: "Rows read", Value: count(s.RowsRead)},
				{Key: "Accepted", Value: ui.Green(count(s.Records.Accepted))},
				{Key: "Invalid", Value: flagged(s.InvalidTotal())},
				{Key: "Unlinked", Value: flagged(s.Records.Unlinked)},
				{Key: "Ambiguous", Value: flagged(s.Records.Ambiguous)},
			}
			if s.DedupeStrategy != "" {
				pairs = append(pairs, ui.Pair{Key: "Deduplicated", Value: count(s.Deduped)})
			}
			if s.Groups != nil {
				pairs = append(pairs, ui.Pair{Key: "Groups", Value: count(s.Groups.Groups())})
			}
			ui.Summary("Process", pairs)
			for _, o := range s.Outputs {
				ui.Success(fmt.Sprintf("%s written to %s", ui.Bold(o.Kind), ui.Dim(o.Path)))
			}
			if opts.Report != "" {
				ui.Success(ui.Bold("report") + " written to " + ui.Dim(opts.Report))
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.BoolVar(&opts.Dedupe, "dedupe", false, "Drop rows with repeated fingerprints")
	f.BoolVar(&opts.Debug, "debug", false, "Also write a debug CSV with the identifying and derived columns")
	f.BoolVar(&opts.XLSX, "xlsx", false, "Also write the grouped review workbook")
	f.StringVar(&opts.SQLite, "sqlite", "", "Append the run to a SQLite snapshot at `PATH`")
	f.StringVar(&opts.Report, "report", "", "Write a Markdown run profile to `PATH`")
	f.StringVar(&opts.OutDir, "out-dir", "", "Directory for the CSV and XLSX artifacts (default output.dir)")
	return cmd
}

func (a *app) reviewCmd(use, short string, legacy bool) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MatchAll(cobra.RangeArgs(1, 2), existingFiles(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			sheets, err := parseSheets(args, 1)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true
			res, err := pipeline.Review(a.cfg, pipeline.ReviewOptions{
				Processed: args[0],
				Sheets:    sheets,
				Legacy:    legacy,
				OutDir:    outDir,
				Logger:    ui.Logger,
			})
			if err != nil {
				return err
			}
			pairs := []ui.Pair{
				{Key: "Records", Value: count(res.Records)},
				{Key: "Groups", Value: count(res.Groups)},
			}
			if st := res.Stats; st != nil {
				pairs = append(pairs,
					ui.Pair{Key: "By name", Value: count(st.NameGroups)},
					ui.Pair{Key: "Attached", Value: count(st.Attached)},
					ui.Pair{Key: "By link", Value: count(st.LinkGroups)},
					ui.Pair{Key: "Unmatched", Value: flagged(st.Unmatched)},
				)
			}
			ui.Summary("Review", pairs)
			ui.Success(ui.Bold("workbook") + " written to " + ui.Dim(res.Workbook))
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Directory for the workbook (default output.dir)")
	return cmd
}

func (a *app) groupCmd() *cobra.Command {
	return a.reviewCmd("group PROCESSED [NUM_SHEETS]",
		"Group a processed CSV by name and link into a review workbook", false)
}

func (a *app) formatCmd() *cobra.Command {
	return a.reviewCmd("format PROCESSED [NUM_SHEETS]",
		"Group a processed CSV by link only into a review workbook", true)
}

func (a *app) mergeCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "merge ORIGINAL MOVABLES POSITIONS",
		Short: "Merge the reviewed movables and positions exports back into one CSV",
		Args:  cobra.MatchAll(cobra.ExactArgs(3), existingFiles(3)),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			m := a.cfg.Merge
			enc, err := config.Encoding(m.MovablesEncoding)
			if err != nil {
				return err
			}
			if out == "" {
				out = m.Output
			}
			res, err := merge.Files(args[0], args[1], args[2], out, merge.Options{
				GroupColumn:      m.GroupColumn,
				Marker:           m.Marker,
				Extra:            m.Extra,
				PositionColumns:  m.PositionColumns,
				MovablesEncoding: enc,
				Logger:           ui.Logger,
			})
			if err != nil {
				return err
			}
			if len(res.Dropped) > 0 {
				ui.Warning(fmt.Sprintf("%s groups were not in the positions file", ui.Red(count(len(res.Dropped)))))
			}
			ui.Success(fmt.Sprintf("%s rows, %s columns written to %s", count(res.Rows), count(res.Columns), ui.Dim(out)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "Merged CSV path (default merge.output)")
	return cmd
}

func (a *app) runsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runs DB",
		Short: "List the runs stored in a SQLite snapshot",
		Args:  cobra.MatchAll(cobra.ExactArgs(1), existingFiles(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			s, err := store.Open(args[0], a.cfg.Columns)
			if err != nil {
				return err
			}
			defer s.Close()
			runs, err := s.Runs()
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				ui.Warning("no runs stored")
				return nil
			}
			for _, r := range runs {
				c, err := s.CountRecords(r.ID)
				if err != nil {
					return err
				}
				ui.Summary(r.ID, []ui.Pair{
					{Key: "Started", Value: r.StartedAt.Local().Format(time.DateTime) + " (" + humanize.Time(r.StartedAt) + ")"},
					{Key: "Source", Value: ui.Dim(r.Source)},
					{Key: "Accepted", Value: ui.Green(count(c.Records))},
					{Key: "Invalid", Value: flagged(c.Invalid)},
					{Key: "Deduplicated", Value: count(r.Deduped)},
					{Key: "Groups", Value: count(c.Groups)},
				})
			}
			return nil
		},
	}
}
