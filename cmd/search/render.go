package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/searcher/snippet"
)

const ruleWidth = 100

type styles struct {
	header    lipgloss.Style
	label     lipgloss.Style
	score     lipgloss.Style
	highlight lipgloss.Style
	warn      lipgloss.Style
	err       lipgloss.Style
	rule      lipgloss.Style
}

func colorStyles() styles {
	return styles{
		header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		label:     lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		score:     lipgloss.NewStyle().Foreground(lipgloss.Color("154")),
		highlight: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220")),
		warn:      lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		err:       lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		rule:      lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
	}
}

func plainStyles() styles {
	s := lipgloss.NewStyle()
	return styles{header: s, label: s, score: s, highlight: s, warn: s, err: s, rule: s}
}

type renderer struct {
	w        io.Writer
	st       styles
	color    bool
	snippets snippet.Options
}

func newRenderer(w io.Writer, opts snippet.Options) *renderer {
	if isTTY(w) && os.Getenv("NO_COLOR") == "" {
		return &renderer{w: w, st: colorStyles(), color: true, snippets: opts}
	}
	return &renderer{w: w, st: plainStyles(), snippets: opts}
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (r *renderer) welcome(hits int) {
	r.line(r.st.rule.Render(strings.Repeat("=", ruleWidth)))
	r.line(r.st.header.Render("TDT3 search"))
	r.line("  free words:      hurricane disaster relief")
	r.line(`  phrases:         "new york" hurricane`)
	r.line("  result count:    --hits 5 hurricane")
	r.line("  leave:           quit, exit or q")
	r.line(fmt.Sprintf("  showing top %d results by default", hits))
	r.line(r.st.rule.Render(strings.Repeat("=", ruleWidth)))
}

func (r *renderer) prompt() {
	fmt.Fprint(r.w, r.st.header.Render("query> "))
}

func (r *renderer) goodbye() {
	r.line("bye")
}

func (r *renderer) warn(msg string) {
	r.line(r.st.warn.Render(msg))
}

func (r *renderer) error(err error) {
	r.line(r.st.err.Render("error: " + err.Error()))
}

func (r *renderer) response(resp *searcher.Response, hits int) {
	r.line(r.st.rule.Render(strings.Repeat("-", 60)))
	r.line(fmt.Sprintf("query = %s (%.3fs)", resp.Query, resp.Elapsed.Seconds()))
	r.line(fmt.Sprintf("matching documents: %d", resp.TotalCandidates))
	r.line(fmt.Sprintf("showing top %d", hits))
	if len(resp.Dropped) > 0 {
		r.line(r.st.label.Render("ignored: " + strings.Join(resp.Dropped, ", ")))
	}
	r.line(r.st.rule.Render(strings.Repeat("-", 60)))

	if len(resp.Hits) == 0 {
		r.line("no matching documents")
		return
	}
	for _, h := range resp.Hits {
		r.hit(h)
	}
}

func (r *renderer) hit(h searcher.Hit) {
	r.line(fmt.Sprintf("%s %2d    %s %s    %s %-20s    %s %-10s    %s %s",
		r.st.label.Render("No:"), h.Rank,
		r.st.label.Render("Score:"), r.st.score.Render(fmt.Sprintf("%8.4f", h.Score)),
		r.st.label.Render("DocNo:"), h.DocID,
		r.st.label.Render("DocType:"), metadata(h, corpus.FieldDocType),
		r.st.label.Render("TxtType:"), metadata(h, corpus.FieldTxtType),
	))
	r.line(r.st.rule.Render(strings.Repeat("-", ruleWidth)))
	r.line(r.highlight(strings.Join(strings.Fields(h.Snippet), " ")))
	r.line(r.st.rule.Render(strings.Repeat("=", ruleWidth)))
	r.line("")
}

// highlight replaces the snippet's match markers with terminal styling. In
// plain mode the markers are left in place.
func (r *renderer) highlight(s string) string {
	if !r.color || r.snippets.Open == "" || r.snippets.Close == "" {
		return s
	}
	var b strings.Builder
	for {
		i := strings.Index(s, r.snippets.Open)
		if i < 0 {
			break
		}
		j := strings.Index(s[i+len(r.snippets.Open):], r.snippets.Close)
		if j < 0 {
			break
		}
		b.WriteString(s[:i])
		word := s[i+len(r.snippets.Open) : i+len(r.snippets.Open)+j]
		b.WriteString(r.st.highlight.Render(word))
		s = s[i+len(r.snippets.Open)+j+len(r.snippets.Close):]
	}
	b.WriteString(s)
	return b.String()
}

func metadata(h searcher.Hit, field string) string {
	if v, ok := h.Metadata[field]; ok && v != "" {
		return v
	}
	return corpus.MissingField
}

func (r *renderer) line(s string) {
	fmt.Fprintln(r.w, s)
}
