package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"vitals/internal/metrics"
	"vitals/internal/session"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/prometheus/common/model"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

func header(cols ...string) table.Row {
	row := make(table.Row, len(cols))
	for i, c := range cols {
		row[i] = text.FgHiCyan.Sprint(c)
	}
	return row
}

// RenderStatus prints the session status.
func RenderStatus(w io.Writer, st session.Status) {
	t := newTable(w)
	t.AppendHeader(header("KEY", "VALUE"))

	signedIn := text.FgRed.Sprint("No")
	if st.SignedIn {
		signedIn = text.FgGreen.Sprint("Yes")
	}
	completed := "No"
	if st.AuthCompleted {
		completed = "Yes"
	}
	t.AppendRow(table.Row{"Signed in", signedIn})
	t.AppendRow(table.Row{"Sign-in completed", completed})

	if st.User != nil {
		t.AppendRow(table.Row{"User", st.User.Login})
		if st.User.Name != "" {
			t.AppendRow(table.Row{"Name", st.User.Name})
		}
		if st.User.Email != "" {
			t.AppendRow(table.Row{"Email", st.User.Email})
		}
	}
	t.Render()
}

// RenderQueryResult prints a query result as a table of series.
func RenderQueryResult(w io.Writer, result *metrics.QueryResult) error {
	data, err := result.QueryData()
	if err != nil {
		return err
	}

	t := newTable(w)
	switch v := data.Result.(type) {
	case model.Vector:
		t.AppendHeader(header("METRIC", "VALUE", "TIMESTAMP"))
		for _, s := range v {
			t.AppendRow(table.Row{s.Metric.String(), s.Value.String(), formatTime(s.Timestamp)})
		}
	case model.Matrix:
		t.AppendHeader(header("METRIC", "SAMPLES", "LAST VALUE", "LAST TIMESTAMP"))
		for _, ss := range v {
			last, ts := "-", "-"
			if n := len(ss.Values); n > 0 {
				last = ss.Values[n-1].Value.String()
				ts = formatTime(ss.Values[n-1].Timestamp)
			}
			t.AppendRow(table.Row{ss.Metric.String(), len(ss.Values), last, ts})
		}
	case *model.Scalar:
		t.AppendHeader(header("VALUE", "TIMESTAMP"))
		t.AppendRow(table.Row{v.Value.String(), formatTime(v.Timestamp)})
	case *model.String:
		t.AppendHeader(header("VALUE", "TIMESTAMP"))
		t.AppendRow(table.Row{v.Value, formatTime(v.Timestamp)})
	}

	if t.Length() == 0 {
		fmt.Fprintln(w, text.FgYellow.Sprint("No series matched"))
		return nil
	}
	t.Render()
	for _, warning := range result.Warnings {
		fmt.Fprintln(w, text.FgYellow.Sprint("Warning: "+warning))
	}
	return nil
}

// RenderAlerts prints alerts sorted by state and name.
func RenderAlerts(w io.Writer, alerts []metrics.Alert) {
	if len(alerts) == 0 {
		fmt.Fprintln(w, text.FgGreen.Sprint("No active alerts"))
		return
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		if alerts[i].State != alerts[j].State {
			return alerts[i].State == "firing"
		}
		return alerts[i].Name() < alerts[j].Name()
	})

	t := newTable(w)
	t.AppendHeader(header("NAME", "STATE", "SEVERITY", "ACTIVE SINCE", "SUMMARY"))
	for _, a := range alerts {
		state := a.State
		if state == "firing" {
			state = text.FgRed.Sprint(state)
		} else {
			state = text.FgYellow.Sprint(state)
		}
		since := "-"
		if a.ActiveAt != nil {
			since = a.ActiveAt.UTC().Format(time.RFC3339)
		}
		t.AppendRow(table.Row{
			a.Name(),
			state,
			string(a.Labels["severity"]),
			since,
			truncate(string(a.Annotations["summary"]), 60),
		})
	}
	t.Render()
}

func formatTime(ts model.Time) string {
	return ts.Time().UTC().Format(time.RFC3339)
}

// truncate collapses whitespace to single spaces and cuts s to n runes,
// ending in "..." when shortened.
func truncate(s string, n int) string {
	if n < 4 {
		n = 4
	}
	runes := []rune(strings.Join(strings.Fields(s), " "))
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n-3]) + "..."
}
