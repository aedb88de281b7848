package telegram

import (
	"fmt"
	"sort"
	"strings"

	"ai-whiteboard/api/internal/store"
	"ai-whiteboard/api/internal/util"
	"ai-whiteboard/api/internal/whiteboard"
)

// ParseVars reads "x=3, y = 4" style captions. Tokens without '=' are ignored.
func ParseVars(caption string) map[string]string {
	fields := strings.FieldsFunc(caption, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n'
	})
	out := map[string]string{}
	for _, f := range fields {
		for _, tok := range splitAssignments(f) {
			k, v, ok := strings.Cut(tok, "=")
			k, v = strings.TrimSpace(k), strings.TrimSpace(v)
			if !ok || k == "" || v == "" || strings.ContainsAny(k, " \t") {
				continue
			}
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// splitAssignments separates "x=3 y=4" while keeping "x = 3" together.
func splitAssignments(s string) []string {
	words := strings.Fields(strings.ReplaceAll(s, "=", " = "))
	var out []string
	for i := 0; i+2 < len(words); i++ {
		if words[i+1] == "=" && words[i] != "=" && words[i+2] != "=" {
			out = append(out, words[i]+"="+words[i+2])
			i += 2
		}
	}
	return out
}

func FormatCalc(items []whiteboard.CalcItem) string {
	if len(items) == 0 {
		return "Nothing to solve on this image."
	}
	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, formatItem(it))
	}
	return strings.Join(lines, "\n")
}

func formatItem(it whiteboard.CalcItem) string {
	switch {
	case it.Concept != "":
		if it.Description != "" {
			return fmt.Sprintf("%s: %s", it.Concept, it.Description)
		}
		return it.Concept
	case it.Expression != "":
		return fmt.Sprintf("%s = %s", it.Expression, it.Result)
	case it.Problem != "":
		return fmt.Sprintf("%s\nAnswer: %s", it.Problem, it.Result)
	default:
		return it.Result
	}
}

func FormatStats(rows []store.OpStats) string {
	if len(rows) == 0 {
		return "No requests in the last 24h."
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Op < rows[j].Op })
	var b strings.Builder
	b.WriteString("Last 24h:")
	for _, s := range rows {
		fmt.Fprintf(&b, "\n%s: %d total, %d failed, %d fallbacks, avg %.0f ms",
			s.Op, s.Total, s.Failed, s.Fallbacks, s.AvgMS)
	}
	return b.String()
}

func FormatRecent(gens []store.Generation) string {
	if len(gens) == 0 {
		return "No requests recorded yet."
	}
	var b strings.Builder
	for i, g := range gens {
		if i > 0 {
			b.WriteByte('\n')
		}
		status := "via " + g.Provider
		if g.Provider == "" {
			status = "failed (" + g.ErrorKind + ")"
		}
		fmt.Fprintf(&b, "%s %s %s, %d ms: %s",
			g.CreatedAt.UTC().Format("01-02 15:04"), g.Op, status, g.LatencyMS, util.Truncate(g.Input, 60))
	}
	return b.String()
}
