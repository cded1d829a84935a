package formatting

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/fazecat/hpsscanner/Internal/handlers/monitoring"
	"github.com/fazecat/hpsscanner/Internal/utils/scanner"
)

var printer = message.NewPrinter(language.English)

// Separator returns a line separator of given width
func Separator(width int) string {
	return strings.Repeat("=", width)
}

// Money formats a price with thousands separators and two decimals.
func Money(v float64) string {
	return printer.Sprintf("%.2f", v)
}

func Percent(v float64) string {
	return fmt.Sprintf("%+.2f%%", v)
}

func clock(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "-"
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format("15:04")
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

// Caption is the line above a scan table: market, VIX level and index return.
func Caption(r *scanner.Report, loc *time.Location) string {
	return fmt.Sprintf("%s | %s | VIX %.2f | %s %s",
		r.Label, clock(r.StartedAt, loc), r.Context.VIX, r.Context.Benchmark, Percent(r.Context.BenchmarkReturn))
}

// RenderReport writes the ranked scan table followed by the skipped tickers.
func RenderReport(w io.Writer, r *scanner.Report, loc *time.Location) {
	fmt.Fprintln(w, Caption(r, loc))

	table := newTable(w, []string{"#", "Ticker", "Name", "Score", "Rating", "Price", "Entry", "Stop", "Target", "Qty", "Checks"})
	for i, row := range r.Rows {
		res := row.Result
		table.Append([]string{
			strconv.Itoa(i + 1),
			res.Ticker,
			row.Name,
			strconv.Itoa(res.Score),
			row.Category,
			Money(res.Price),
			Money(res.Entry),
			Money(res.Stop),
			Money(res.Target),
			strconv.FormatInt(row.Sizing.Quantity, 10),
			res.Checks.Icons(),
		})
	}
	table.Render()

	for _, sk := range r.Skipped {
		fmt.Fprintf(w, "  skipped %s (%s): %v\n", sk.Ticker, sk.Kind, sk.Err)
	}
}

// RenderSignalLog writes the day's signals. current maps tickers to their latest price.
func RenderSignalLog(w io.Writer, signals []monitoring.SignalRecord, current map[string]float64, loc *time.Location) {
	table := newTable(w, []string{"Ticker", "Signal", "Price", "Score", "State", "Exit", "Exit Price", "Return"})
	for _, rec := range signals {
		exitTime, exitPrice := "-", "-"
		if rec.ExitTime != nil {
			exitTime = clock(*rec.ExitTime, loc)
		}
		if rec.ExitPrice != nil {
			exitPrice = Money(*rec.ExitPrice)
		}
		ret := "-"
		if price, ok := current[rec.Ticker]; ok || rec.ExitPrice != nil {
			ret = Percent(rec.ReturnPercent(price))
		}
		table.Append([]string{
			rec.Ticker,
			clock(rec.SignalTime, loc),
			Money(rec.SignalPrice),
			strconv.Itoa(rec.SignalScore),
			rec.State().String(),
			exitTime,
			exitPrice,
			ret,
		})
	}
	table.Render()
}

func history(h []monitoring.Checkpoint) string {
	parts := make([]string, len(h))
	for i, c := range h {
		parts[i] = c.Label + "=" + strconv.Itoa(c.Score)
	}
	return strings.Join(parts, " ")
}

// RenderGolden writes the golden window panel with the day summary as footer.
func RenderGolden(w io.Writer, golden []monitoring.GoldenWindowRecord, sum monitoring.DaySummary, loc *time.Location) {
	table := newTable(w, []string{"Ticker", "Window", "Entry", "At", "Current", "P/L", "Source", "Scores"})
	for _, rec := range golden {
		source := "live"
		if rec.Recovered {
			source = "recovered"
		}
		table.Append([]string{
			rec.Ticker,
			rec.WindowLabel,
			Money(rec.EntryPrice),
			clock(rec.EntryTime, loc),
			Money(rec.CurrentPrice),
			Percent(rec.PnLPercent()),
			source,
			history(rec.ScoreHistory),
		})
	}
	table.SetFooter([]string{"", "", "", "", "mean", Percent(sum.MeanGoldenPnL), "", ""})
	table.Render()
}

// SignalLogRow is the CSV shape of one signal log entry.
type SignalLogRow struct {
	Ticker      string `csv:"ticker"`
	SignalTime  string `csv:"signal_time"`
	SignalPrice string `csv:"signal_price"`
	SignalScore int    `csv:"signal_score"`
	State       string `csv:"state"`
	ExitTime    string `csv:"exit_time"`
	ExitPrice   string `csv:"exit_price"`
	ExitScore   string `csv:"exit_score"`
}

func signalRows(signals []monitoring.SignalRecord) []*SignalLogRow {
	rows := make([]*SignalLogRow, 0, len(signals))
	for _, rec := range signals {
		row := &SignalLogRow{
			Ticker:      rec.Ticker,
			SignalTime:  rec.SignalTime.Format(time.RFC3339),
			SignalPrice: strconv.FormatFloat(rec.SignalPrice, 'f', 4, 64),
			SignalScore: rec.SignalScore,
			State:       rec.State().String(),
		}
		if rec.ExitTime != nil {
			row.ExitTime = rec.ExitTime.Format(time.RFC3339)
		}
		if rec.ExitPrice != nil {
			row.ExitPrice = strconv.FormatFloat(*rec.ExitPrice, 'f', 4, 64)
			row.ExitScore = strconv.Itoa(rec.ExitScore)
		}
		rows = append(rows, row)
	}
	return rows
}

// WriteSignalCSV exports the signal log. The header comes from SignalLogRow's csv tags and
// is written even for an empty log.
func WriteSignalCSV(w io.Writer, signals []monitoring.SignalRecord) error {
	rows := signalRows(signals)
	return gocsv.Marshal(&rows, w)
}
