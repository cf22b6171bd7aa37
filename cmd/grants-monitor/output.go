package main

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/david/eu-grants-monitor/internal/ingest"
	"github.com/david/eu-grants-monitor/internal/models"
	"github.com/david/eu-grants-monitor/internal/monitor"
	"github.com/david/eu-grants-monitor/internal/prefill"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func printGrantTable(w io.Writer, grants []models.Grant, now time.Time) {
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Title", "Program", "Amount", "Deadline", "Days", "Priority"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})
	for _, g := range grants {
		t.AppendRow(table.Row{
			g.ID,
			clip(g.Title, 40),
			g.Program.DisplayName(),
			euros(g.FundingAmount),
			g.Deadline.Format("2006-01-02"),
			daysColor(g.DaysUntilDeadline(now)),
			fmt.Sprintf("%.1f", g.PriorityScore),
		})
	}
	t.Render()
}

func printGrant(w io.Writer, g models.Grant, now time.Time) {
	t := newTable(w)
	t.SetTitle("Grant Details: " + g.ID)
	t.AppendRow(table.Row{"Title", g.Title})
	t.AppendRow(table.Row{"Program", g.Program.DisplayName()})
	t.AppendRow(table.Row{"Synopsis", g.Synopsis})
	t.AppendRow(table.Row{"Funding Amount", euros(g.FundingAmount)})
	if g.MinFunding != nil && g.MaxFunding != nil {
		t.AppendRow(table.Row{"Funding Range", euros(*g.MinFunding) + " - " + euros(*g.MaxFunding)})
	}
	t.AppendRow(table.Row{"Deadline", fmt.Sprintf("%s (%d days left)", g.Deadline.Format("2006-01-02"), g.DaysUntilDeadline(now))})
	if g.StartDate != nil && g.EndDate != nil {
		t.AppendRow(table.Row{"Project Duration", g.StartDate.Format("2006-01-02") + " to " + g.EndDate.Format("2006-01-02")})
	}
	t.AppendRow(table.Row{"Official URL", g.URL})
	if g.DocumentsURL != "" {
		t.AppendRow(table.Row{"Documents URL", g.DocumentsURL})
	}
	if len(g.EligibleCountries) > 0 {
		t.AppendRow(table.Row{"Eligible Countries", strings.Join(g.EligibleCountries, ", ")})
	}
	if len(g.TargetOrganizations) > 0 {
		t.AppendRow(table.Row{"Target Organizations", strings.Join(g.TargetOrganizations, ", ")})
	}
	if len(g.Keywords) > 0 {
		t.AppendRow(table.Row{"Keywords", strings.Join(g.Keywords, ", ")})
	}
	t.AppendRow(table.Row{"Scores", fmt.Sprintf("relevance %.1f, complexity %.1f (%s), priority %.1f",
		g.RelevanceScore, g.ComplexityScore, g.ComplexityLevel(), g.PriorityScore)})
	t.Render()

	fmt.Fprintf(w, "\n%s\n", g.Description)
}

func printGuidance(w io.Writer, g models.Grant, guidance models.Guidance) {
	fmt.Fprintf(w, "%s\n", text.Bold.Sprint("Application guidance: "+g.Title))
	fmt.Fprintf(w, "Match score: %.1f%%  Success probability: %.0f%%  Effort: %d hours\n\n",
		guidance.MatchScore, guidance.Success.Probability*100, guidance.Effort.Hours)

	printList(w, "Strengths", guidance.Strengths)
	printList(w, "Gaps", guidance.Gaps)
	printList(w, "Recommendations", guidance.Recommendations)

	t := newTable(w)
	t.SetTitle("Timeline")
	t.AppendHeader(table.Row{"Phase", "Priority", "Tasks"})
	for _, phase := range guidance.Timeline {
		t.AppendRow(table.Row{phase.Phase, phase.Priority, strings.Join(phase.Tasks, "\n")})
	}
	t.Render()

	fmt.Fprintln(w)
	printList(w, "Required documents", guidance.RequiredDocuments)
	fmt.Fprintf(w, "%s\n%s\n", text.Bold.Sprint("Strategic advice"), guidance.StrategicAdvice)
	fmt.Fprintf(w, "\n%s\n%s\n", guidance.Effort.Narrative, guidance.Success.Narrative)
}

func printCallDocument(w io.Writer, call ingest.CallDocument) {
	fmt.Fprintf(w, "%s (%s)\n\n", text.Bold.Sprint("Call document "+call.URL), call.Format)
	printList(w, "Eligibility requirements", call.Eligibility)
	printList(w, "Supporting documents", call.SupportingDocuments)

	if len(call.Deadlines) > 0 {
		t := newTable(w)
		t.SetTitle("Deadline candidates")
		t.AppendHeader(table.Row{"Date", "Label", "Confidence", "Snippet"})
		for _, d := range call.Deadlines {
			t.AppendRow(table.Row{d.ParsedDateISO, d.Label, fmt.Sprintf("%.2f", d.Confidence), clip(d.Snippet, 60)})
		}
		t.Render()
	}

	b := call.Budget
	if b.MinAmount > 0 || b.MaxAmount > 0 {
		fmt.Fprintf(w, "Budget: %s - %s\n", euros(b.MinAmount), euros(b.MaxAmount))
	}
	if b.FundingRate != "" {
		fmt.Fprintf(w, "Funding rate: %s\n", b.FundingRate)
	}
	if len(b.EligibleCosts) > 0 {
		fmt.Fprintf(w, "Eligible costs: %s\n", strings.Join(b.EligibleCosts, ", "))
	}
}

func printList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintln(w, text.Bold.Sprint(title))
	for _, item := range items {
		fmt.Fprintf(w, "  - %s\n", item)
	}
	fmt.Fprintln(w)
}

func printDocuments(w io.Writer, form prefill.Form, docs []prefill.Document) {
	fmt.Fprintf(w, "Form completion: %.0f%% (%s)\n", form.CompletionPercent(), form.Status())
	if missing := form.MissingCritical(); len(missing) > 0 {
		fmt.Fprintf(w, "Missing critical fields: %s\n", strings.Join(missing, ", "))
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"Document", "Type", "Size", "Status"})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 3, Align: text.AlignRight}})
	for _, d := range docs {
		t.AppendRow(table.Row{d.Name, d.Type, d.Size, statusColor(d.Status)})
	}
	t.Render()
}

func printSessions(w io.Writer, sessions []models.MonitoringSession) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Session", "Status", "Processed", "High Priority", "Alerts", "Errors", "Duration", "Completed At"})
	for _, s := range sessions {
		t.AppendRow(table.Row{
			s.ID.String()[:8],
			s.Status,
			s.GrantsProcessed,
			s.HighPriorityCount,
			s.AlertsSent,
			s.Errors,
			s.CompletedAt.Sub(s.StartedAt).Round(time.Second).String(),
			s.CompletedAt.Format("2006-01-02 15:04:05"),
		})
	}
	t.Render()
}

func printReport(w io.Writer, r monitor.CycleReport, now time.Time) {
	fmt.Fprintf(w, "Monitoring cycle %s %s in %s\n", r.SessionID.String()[:8], r.Status,
		r.CompletedAt.Sub(r.StartedAt).Round(time.Millisecond))

	t := newTable(w)
	t.AppendHeader(table.Row{"Source", "Grants", "Error"})
	for _, s := range r.Sources {
		t.AppendRow(table.Row{s.Source, s.Grants, s.Error})
	}
	t.AppendFooter(table.Row{"total", r.GrantsFound, ""})
	t.Render()

	fmt.Fprintf(w, "Processed %d grants, %d high priority, %d alerts sent\n", r.GrantsProcessed, r.HighPriorityCount, r.AlertsSent)
	fmt.Fprintf(w, "Average relevance %.1f, average complexity %.1f\n", r.AvgRelevance, r.AvgComplexity)
	fmt.Fprintf(w, "Stored: %d new, %d updated\n", r.Stored.New, r.Stored.Updated)
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s %s\n", text.FgRed.Sprint("error:"), e)
	}

	if len(r.Grants) > 0 {
		fmt.Fprintln(w)
		top := r.Grants
		if len(top) > 10 {
			top = top[:10]
		}
		printGrantTable(w, top, now)
	}
}

func daysColor(days int) string {
	s := strconv.Itoa(days)
	switch {
	case days < 30:
		return text.FgRed.Sprint(s)
	case days < 60:
		return text.FgYellow.Sprint(s)
	default:
		return text.FgGreen.Sprint(s)
	}
}

func statusColor(s prefill.Status) string {
	switch s {
	case prefill.StatusComplete:
		return text.FgGreen.Sprint(string(s))
	case prefill.StatusNeedsReview:
		return text.FgYellow.Sprint(string(s))
	default:
		return text.FgRed.Sprint(string(s))
	}
}

var amountPrinter = message.NewPrinter(language.English)

// euros renders whole euros with thousands separators, e.g. €1,250,000.
func euros(v float64) string {
	n := int64(math.Round(v))
	if n < 0 {
		return "-€" + amountPrinter.Sprintf("%d", -n)
	}
	return "€" + amountPrinter.Sprintf("%d", n)
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
