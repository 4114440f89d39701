// Package report renders a saved or live graph as a markdown summary and
// as HTML.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"gocausal/domain/causal"
)

// Graph is the input of a report.
type Graph struct {
	Title       string
	SessionID   string
	Nodes       []causal.Node
	Edges       []causal.Edge
	GeneratedAt time.Time
}

// Markdown renders the report source.
func Markdown(g Graph) string {
	var b strings.Builder

	title := g.Title
	if title == "" {
		title = "Causal graph report"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if g.SessionID != "" || !g.GeneratedAt.IsZero() {
		var meta []string
		if g.SessionID != "" {
			meta = append(meta, "session `"+g.SessionID+"`")
		}
		if !g.GeneratedAt.IsZero() {
			meta = append(meta, "generated "+g.GeneratedAt.UTC().Format(time.RFC3339))
		}
		fmt.Fprintf(&b, "_%s_\n\n", strings.Join(meta, ", "))
	}

	writeSummary(&b, g)
	writeNodes(&b, g.Nodes)
	writeEdges(&b, g.Edges)
	writeEffects(&b, g.Nodes)
	writeLatents(&b, g.Nodes)
	return b.String()
}

// HTML renders the report as an HTML fragment.
func HTML(g Graph) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	r := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return markdown.ToHTML([]byte(Markdown(g)), p, r)
}

func writeSummary(b *strings.Builder, g Graph) {
	latent, weighted := 0, 0
	for _, n := range g.Nodes {
		if !n.Observed() {
			latent++
		}
	}
	for _, e := range g.Edges {
		if e.Weight != nil {
			weighted++
		}
	}
	ids := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		ids[i] = n.ID
	}

	b.WriteString("## Summary\n\n")
	fmt.Fprintf(b, "- Nodes: %d (%d latent)\n", len(g.Nodes), latent)
	fmt.Fprintf(b, "- Edges: %d (%d weighted)\n", len(g.Edges), weighted)
	groups := causal.CycleGroups(ids, g.Edges)
	if len(groups) == 0 {
		b.WriteString("- Cycles: none\n\n")
		return
	}
	parts := make([]string, len(groups))
	for i, grp := range groups {
		parts[i] = strings.Join(grp, ", ")
	}
	fmt.Fprintf(b, "- Cycles: %d (%s); estimation is disabled\n\n", len(groups), escape(strings.Join(parts, "; ")))
}

func writeNodes(b *strings.Builder, nodes []causal.Node) {
	if len(nodes) == 0 {
		return
	}
	b.WriteString("## Nodes\n\n")
	b.WriteString("| Node | Kind | Treatment | Model | Fit |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, n := range nodes {
		fit := "-"
		if n.FitScore != nil {
			fit = fmt.Sprintf("%.3f", *n.FitScore)
		}
		fmt.Fprintf(b, "| %s | %s | %s | %s | %s |\n",
			escape(n.ID), n.Kind, orDash(treatment(n)), orDash(escape(n.ModelSelection)), fit)
	}
	b.WriteString("\n")
}

func writeEdges(b *strings.Builder, edges []causal.Edge) {
	if len(edges) == 0 {
		return
	}
	b.WriteString("## Edges\n\n")
	b.WriteString("| Source | Target | Weight |\n")
	b.WriteString("|---|---|---|\n")
	for _, e := range edges {
		w := "-"
		if e.Weight != nil {
			w = fmt.Sprintf("%.3f", *e.Weight)
		}
		fmt.Fprintf(b, "| %s | %s | %s |\n", escape(e.Source), escape(e.Target), w)
	}
	b.WriteString("\n")
}

func writeEffects(b *strings.Builder, nodes []causal.Node) {
	type row struct {
		treatment, outcome string
		eff                causal.Effect
	}
	var rows []row
	for _, n := range nodes {
		for focus, eff := range n.ATE {
			rows = append(rows, row{treatment: focus, outcome: n.ID, eff: eff})
		}
	}
	if len(rows) == 0 {
		return
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].treatment != rows[j].treatment {
			return rows[i].treatment < rows[j].treatment
		}
		return rows[i].outcome < rows[j].outcome
	})

	b.WriteString("## Effects\n\n")
	b.WriteString("| Treatment | Outcome | ATE | Confidence interval |\n")
	b.WriteString("|---|---|---|---|\n")
	for _, r := range rows {
		fmt.Fprintf(b, "| %s | %s | %.3f | [%.3f, %.3f] |\n",
			escape(r.treatment), escape(r.outcome), r.eff.Value,
			r.eff.ConfidenceInterval[0], r.eff.ConfidenceInterval[1])
	}
	b.WriteString("\n")
}

func writeLatents(b *strings.Builder, nodes []causal.Node) {
	var latents []causal.Node
	for _, n := range nodes {
		if !n.Observed() {
			latents = append(latents, n)
		}
	}
	if len(latents) == 0 {
		return
	}
	b.WriteString("## Latent confounders\n\n")
	for _, n := range latents {
		candidates := make([]string, len(n.Payload))
		for i, c := range n.Payload {
			candidates[i] = fmt.Sprintf("%s (%.2f)", escape(c.Name), c.Score)
		}
		if len(candidates) == 0 {
			candidates = []string{"no candidates"}
		}
		fmt.Fprintf(b, "- %s: %s\n", escape(n.ID), strings.Join(candidates, ", "))
	}
	b.WriteString("\n")
}

func treatment(n causal.Node) string {
	switch n.Treatment {
	case causal.TreatmentAtomic:
		return fmt.Sprintf("atomic %s vs %s", escape(n.Alternative), escape(n.Reference))
	case causal.TreatmentShift:
		return "shift " + escape(n.Shift)
	}
	return ""
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// escape keeps names from breaking table cells.
func escape(s string) string {
	return strings.NewReplacer("|", `\|`, "\n", " ").Replace(s)
}
