package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradebook/journal"
	"github.com/rustyeddy/tradebook/risk"
	"github.com/rustyeddy/tradebook/stats"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Record and report on trades",
	Long: `Work with a user's futures or stocks journal.

Subcommands:
  list     - List trades in a period
  show     - Show one trade
  add      - Record a trade
  delete   - Delete a trade
  summary  - P/L summary for a period
  groups   - Win rate and P/L by strategy, symbol, session, weekday, hour or mental state
  goals    - Progress toward daily, weekly, monthly and yearly goals
  calendar - Month view of daily and weekly P/L
  export   - Write a JSON backup, optionally CSVs
  import   - Restore a JSON backup
  resync   - Reconcile every cached journal with the remote
  size     - Position size for a planned trade

Examples:
  tradebook journal add --symbol ES --side long --entry 4500 --exit 4510 --contracts 2 --pv 50 --stop 4495
  tradebook journal summary --period week --date 2024-01-03
  tradebook journal groups --by strategy`,
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List trades in a period",
	Args:  cobra.NoArgs,
	RunE:  runJournalList,
}

var journalShowCmd = &cobra.Command{
	Use:   "show <trade-id>",
	Short: "Show one trade",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalShow,
}

var journalAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a trade",
	Args:  cobra.NoArgs,
	RunE:  runJournalAdd,
}

var journalDeleteCmd = &cobra.Command{
	Use:   "delete <trade-id>",
	Short: "Delete a trade",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDelete,
}

var journalSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "P/L summary for a period",
	Args:  cobra.NoArgs,
	RunE:  runJournalSummary,
}

var journalGroupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "Breakdown by a trade attribute",
	Args:  cobra.NoArgs,
	RunE:  runJournalGroups,
}

var journalGoalsCmd = &cobra.Command{
	Use:   "goals",
	Short: "Progress toward goals",
	Args:  cobra.NoArgs,
	RunE:  runJournalGoals,
}

var journalCalendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Month view of daily and weekly P/L",
	Args:  cobra.NoArgs,
	RunE:  runJournalCalendar,
}

var journalExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a JSON backup",
	Args:  cobra.NoArgs,
	RunE:  runJournalExport,
}

var journalImportCmd = &cobra.Command{
	Use:   "import <backup.json>",
	Short: "Restore a JSON backup",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalImport,
}

var journalResyncCmd = &cobra.Command{
	Use:   "resync",
	Short: "Reconcile every cached journal with the remote",
	Args:  cobra.NoArgs,
	RunE:  runJournalResync,
}

var journalSizeCmd = &cobra.Command{
	Use:   "size",
	Short: "Position size for a planned trade",
	Long: `Size a planned trade so the loss at the stop stays within a percentage of
equity. Equity defaults to starting capital plus the journal's net P/L.

Example:
  tradebook journal size --entry 4500 --stop 4495 --pv 50 --risk-pct 0.01`,
	Args: cobra.NoArgs,
	RunE: runJournalSize,
}

var (
	jUser string
	jKind string

	jPeriod    string
	jDate      string
	jFrom      string
	jTo        string
	jWeekStart string

	jBy    string
	jYear  int
	jMonth int

	jOut     string
	jCSV     string
	jEquity  string
	jConfirm bool

	jTrade journal.Trade
	jSide  string
	jMood  string
	jStop  float64
	jFees  float64
	jTgt   float64

	jSize risk.SizeInputs
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalListCmd, journalShowCmd, journalAddCmd, journalDeleteCmd, journalSummaryCmd,
		journalGroupsCmd, journalGoalsCmd, journalCalendarCmd, journalExportCmd, journalImportCmd, journalResyncCmd, journalSizeCmd)

	journalCmd.PersistentFlags().StringVarP(&jUser, "user", "u", "", "username (defaults to the remembered user)")
	journalCmd.PersistentFlags().StringVarP(&jKind, "kind", "k", "", "journal kind: futures or stocks (defaults to the last one used)")

	for _, c := range []*cobra.Command{journalListCmd, journalSummaryCmd, journalGroupsCmd} {
		c.Flags().StringVar(&jPeriod, "period", "all", "day, week, month, year, all or range")
		c.Flags().StringVar(&jDate, "date", "", "anchor date YYYY-MM-DD (default today)")
		c.Flags().StringVar(&jFrom, "from", "", "range start YYYY-MM-DD")
		c.Flags().StringVar(&jTo, "to", "", "range end YYYY-MM-DD")
		c.Flags().StringVar(&jWeekStart, "week-start", "", "sunday or monday (overrides journal.week_starts_on_sunday)")
	}

	journalGroupsCmd.Flags().StringVar(&jBy, "by", "strategy", "strategy, symbol, session, weekday, hour or mental")
	journalCalendarCmd.Flags().IntVar(&jYear, "year", 0, "year (default this year)")
	journalCalendarCmd.Flags().IntVar(&jMonth, "month", 0, "month 1-12 (default this month)")

	journalExportCmd.Flags().StringVarP(&jOut, "output", "o", "", "backup file (default stdout)")
	journalExportCmd.Flags().StringVar(&jCSV, "csv", "", "also write trades to this CSV file")
	journalExportCmd.Flags().StringVar(&jEquity, "equity", "", "equity curve CSV file (default <csv>-equity.csv)")
	journalImportCmd.Flags().BoolVar(&jConfirm, "confirm", false, "replace a journal that already has trades")

	sf := journalSizeCmd.Flags()
	sf.Float64Var(&jSize.Entry, "entry", 0, "planned entry price")
	sf.Float64Var(&jSize.Stop, "stop", 0, "planned stop price")
	sf.Float64Var(&jSize.PointValue, "pv", 1, "point value per contract")
	sf.Float64Var(&jSize.RiskPct, "risk-pct", 0.01, "fraction of equity to risk")
	sf.Float64Var(&jSize.Equity, "equity", 0, "account equity (default from the journal)")
	_ = journalSizeCmd.MarkFlagRequired("entry")
	_ = journalSizeCmd.MarkFlagRequired("stop")

	f := journalAddCmd.Flags()
	f.StringVar(&jTrade.Symbol, "symbol", "", "instrument symbol (required)")
	f.StringVar(&jSide, "side", "long", "long/buy or short/sell")
	f.Float64Var((*float64)(&jTrade.Entry), "entry", 0, "entry price")
	f.Float64Var((*float64)(&jTrade.Exit), "exit", 0, "exit price")
	f.Float64Var((*float64)(&jTrade.Contracts), "contracts", 1, "contracts or shares")
	f.Float64Var((*float64)(&jTrade.PointValue), "pv", 1, "point value per contract")
	f.Float64Var(&jStop, "stop", 0, "stop price")
	f.Float64Var(&jFees, "fees", 0, "total fees")
	f.Float64Var(&jTgt, "target", 0, "target price")
	f.StringVar(&jTrade.Date, "date", "", "trade date YYYY-MM-DD (default today)")
	f.StringVar(&jTrade.Time, "time", "", "entry time HH:MM")
	f.StringVar(&jTrade.Strategy, "strategy", "", "strategy name")
	f.StringVar(&jTrade.Session, "session", "", "trading session")
	f.StringVar(&jTrade.Timeframe, "timeframe", "", "chart timeframe")
	f.StringVar(&jTrade.Notes, "notes", "", "review notes")
	f.StringVar(&jTrade.Tags, "tags", "", "comma separated tags")
	f.StringVar(&jMood, "mental", "", "disciplined, random or emotional")
	_ = journalAddCmd.MarkFlagRequired("symbol")
}

// openJournal opens the app and resolves which user and kind the command
// applies to.
func openJournal(cmd *cobra.Command) (*app, string, journal.Kind, error) {
	a, err := openApp(cmd.Context())
	if err != nil {
		return nil, "", "", err
	}
	user, err := currentUser(a, jUser)
	if err != nil {
		a.Close()
		return nil, "", "", err
	}

	name := jKind
	if name == "" {
		if k, ok := a.journals.LastKind(user); ok {
			name = string(k)
		} else {
			name = cfg.Journal.DefaultKind
		}
	}
	kind, err := journal.ParseKind(name)
	if err != nil {
		a.Close()
		return nil, "", "", err
	}
	_ = a.journals.SetLastKind(user, kind)
	return a, user, kind, nil
}

func parseDay(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(journal.DateLayout, v)
}

func periodFromFlags() (stats.Period, error) {
	mode, err := stats.ParseMode(jPeriod)
	if err != nil {
		return stats.Period{}, err
	}
	p := stats.Period{Mode: mode, Anchor: time.Now(), WeekStartsOnSunday: cfg.Journal.WeekStartsOnSunday}
	if jDate != "" {
		if p.Anchor, err = parseDay(jDate); err != nil {
			return stats.Period{}, fmt.Errorf("date: %w", err)
		}
	}
	if p.From, err = parseDay(jFrom); err != nil {
		return stats.Period{}, fmt.Errorf("from: %w", err)
	}
	if p.To, err = parseDay(jTo); err != nil {
		return stats.Period{}, fmt.Errorf("to: %w", err)
	}
	switch strings.ToLower(jWeekStart) {
	case "":
	case "sunday":
		p.WeekStartsOnSunday = true
	case "monday":
		p.WeekStartsOnSunday = false
	default:
		return stats.Period{}, fmt.Errorf("week-start must be sunday or monday")
	}
	return p, nil
}

func periodTitle(p stats.Period) string {
	from, to, ok := p.Bounds()
	if !ok {
		return "All trades"
	}
	f, t := "…", "…"
	if !from.IsZero() {
		f = from.Format(journal.DateLayout)
	}
	if !to.IsZero() {
		t = to.Format(journal.DateLayout)
	}
	if f == t {
		return f
	}
	return f + " to " + t
}

func runJournalList(cmd *cobra.Command, args []string) error {
	p, err := periodFromFlags()
	if err != nil {
		return err
	}
	a, user, kind, err := openJournal(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	doc, _ := a.journals.Current(cmd.Context(), user, kind)
	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradesOrg(stats.Filter(doc.Trades, p)))
	return nil
}

func runJournalShow(cmd *cobra.Command, args []string) error {
	a, user, kind, err := openJournal(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	doc, _ := a.journals.Current(cmd.Context(), user, kind)
	i := doc.Find(args[0])
	if i < 0 {
		return fmt.Errorf("%w: %s", journal.ErrTradeNotFound, args[0])
	}
	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradeOrg(doc.Trades[i]))
	return nil
}

func runJournalAdd(cmd *cobra.Command, args []string) error {
	t := jTrade
	side, ok := journal.ParseSide(jSide)
	if !ok {
		return fmt.Errorf("unknown side %q", jSide)
	}
	t.Side = side
	t.MentalState = journal.MentalState(strings.ToLower(jMood))
	if t.Date == "" {
		t.Date = time.Now().Format(journal.DateLayout)
	}
	flags := cmd.Flags()
	if flags.Changed("stop") {
		t.Stop = journal.Num(jStop).Ptr()
	}
	if flags.Changed("fees") {
		t.Fees = journal.Num(jFees).Ptr()
	}
	if flags.Changed("target") {
		t.Target = journal.Num(jTgt).Ptr()
	}

	a, user, kind, err := openJournal(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	added, res, err := a.journals.AddTrade(cmd.Context(), user, kind, t)
	if err != nil {
		return err
	}
	awaitRemote(a, res)
	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradeOrg(added))
	return nil
}

func runJournalDelete(cmd *cobra.Command, args []string) error {
	a, user, kind, err := openJournal(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.journals.DeleteTrade(cmd.Context(), user, kind, args[0])
	if err != nil {
		return err
	}
	awaitRemote(a, res)
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %s\n", args[0])
	return nil
}

func runJournalSummary(cmd *cobra.Command, args []string) error {
	p, err := periodFromFlags()
	if err != nil {
		return err
	}
	a, user, kind, err := openJournal(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	doc, _ := a.journals.Load(cmd.Context(), user, kind)
	s := stats.Summarize(stats.Filter(doc.Trades, p), doc.StartingCapital.Value())
	stats.PrintSummary(cmd.OutOrStdout(), fmt.Sprintf("%s %s: %s", user, kind, periodTitle(p)), s)
	return nil
}

func runJournalGroups(cmd *cobra.Command, args []string) error {
	key, ok := stats.KeyFuncFor(jBy)
	if !ok {
		return fmt.Errorf("cannot group by %q", jBy)
	}
	p, err := periodFromFlags()
	if err != nil {
		return err
	}
	a, user, kind, err := openJournal(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	doc, _ := a.journals.Load(cmd.Context(), user, kind)
	groups := stats.GroupBy(stats.Filter(doc.Trades, p), key)
	stats.PrintGroups(cmd.OutOrStdout(), fmt.Sprintf("By %s: %s", jBy, periodTitle(p)), groups)
	return nil
}

func runJournalGoals(cmd *cobra.Command, args []string) error {
	a, user, kind, err := openJournal(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	doc, _ := a.journals.Load(cmd.Context(), user, kind)
	stats.PrintGoals(cmd.OutOrStdout(), stats.GoalProgress(doc.Trades, doc.Goals, time.Now(), cfg.Journal.WeekStartsOnSunday))
	return nil
}

func runJournalCalendar(cmd *cobra.Command, args []string) error {
	now := time.Now()
	year, month := now.Year(), now.Month()
	if jYear != 0 {
		year = jYear
	}
	if jMonth != 0 {
		if jMonth < 1 || jMonth > 12 {
			return fmt.Errorf("month must be 1-12")
		}
		month = time.Month(jMonth)
	}

	a, user, kind, err := openJournal(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	doc, _ := a.journals.Load(cmd.Context(), user, kind)
	stats.PrintCalendar(cmd.OutOrStdout(), stats.Calendar(doc.Trades, year, month))
	return nil
}

func runJournalExport(cmd *cobra.Command, args []string) error {
	if jEquity != "" && jCSV == "" {
		return fmt.Errorf("--equity needs --csv")
	}
	if jCSV != "" && jEquity == "" {
		jEquity = strings.TrimSuffix(jCSV, ".csv") + "-equity.csv"
	}
	a, user, kind, err := openJournal(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	data, err := a.journals.Export(cmd.Context(), user, kind)
	if err != nil {
		return err
	}
	if jOut == "" {
		_, err = cmd.OutOrStdout().Write(append(data, '\n'))
	} else {
		err = os.WriteFile(jOut, data, 0o600)
	}
	if err != nil {
		return fmt.Errorf("write backup: %w", err)
	}

	if jCSV != "" {
		doc, _ := a.journals.Load(cmd.Context(), user, kind)
		if err := writeCSV(doc, jCSV, jEquity); err != nil {
			return err
		}
	}
	return nil
}

// writeCSV writes trades oldest first alongside the equity curve.
func writeCSV(doc journal.Document, tradesPath, equityPath string) error {
	w, err := journal.NewCSV(tradesPath, equityPath)
	if err != nil {
		return err
	}
	trades := journal.Chronological(doc.Trades)
	for _, t := range trades {
		if err := w.RecordTrade(t); err != nil {
			_ = w.Close()
			return err
		}
	}
	for _, pt := range stats.Summarize(trades, doc.StartingCapital.Value()).Equity {
		if err := w.RecordEquity(pt); err != nil {
			_ = w.Close()
			return err
		}
	}
	return w.Close()
}

func runJournalImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	a, user, kind, err := openJournal(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	doc, res, err := a.journals.Import(cmd.Context(), user, kind, data, jConfirm)
	if err != nil {
		return err
	}
	awaitRemote(a, res)
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Imported %d trades into %s's %s journal\n", len(doc.Trades), user, kind)
	return nil
}

func runJournalResync(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.remoteEnabled() {
		return fmt.Errorf("no remote configured or reachable")
	}
	n, err := a.journals.Resync(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Reconciled %d journals\n", n)
	return nil
}

func runJournalSize(cmd *cobra.Command, args []string) error {
	in := jSize
	if !cmd.Flags().Changed("equity") {
		a, user, kind, err := openJournal(cmd)
		if err != nil {
			return err
		}
		doc, _ := a.journals.Load(cmd.Context(), user, kind)
		a.Close()
		in.Equity = stats.Summarize(doc.Trades, doc.StartingCapital.Value()).EndingEquity
	}

	sz := risk.Size(in)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Equity:        %.2f\n", in.Equity)
	fmt.Fprintf(out, "Risk budget:   %.2f (%.2f%%)\n", sz.RiskAmount, in.RiskPct*100)
	fmt.Fprintf(out, "Risk per unit: %.2f over %g points\n", sz.RiskPerUnit, sz.StopPoints)
	fmt.Fprintf(out, "Size:          %g\n", sz.Units)
	fmt.Fprintf(out, "Actual risk:   %.2f (%.2f%%)\n", sz.ActualRisk, sz.ActualRiskPct*100)
	return nil
}
