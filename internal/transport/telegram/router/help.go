package router

import (
	"html"
	"sort"
	"strings"
)

// helpText renders a Telegram-friendly command list in HTML parse mode.
func (m *CommandManager) helpText() string {
	m.mu.RLock()
	table := m.cmds
	order := append([]string(nil), m.order...)
	m.mu.RUnlock()

	type row struct {
		name string
		desc string
		lock bool
	}
	rows := make([]row, 0, len(order))
	for _, name := range order {
		c, ok := table[name]
		if !ok {
			continue
		}
		rows = append(rows, row{name: name, desc: strings.TrimSpace(c.Description), lock: c.Access == AccessOwnerOnly})
	}
	// Owner-only commands at the bottom, alphabetical within groups.
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].lock != rows[j].lock {
			return !rows[i].lock && rows[j].lock
		}
		return rows[i].name < rows[j].name
	})

	lines := []string{
		"📚 <b>Commands</b>",
		"",
	}
	for _, r := range rows {
		suffix := ""
		if r.desc != "" {
			suffix = " — " + html.EscapeString(r.desc)
		}
		prefix := "• "
		if r.lock {
			prefix = "• 🔒 "
		}
		lines = append(lines, prefix+"<code>/"+html.EscapeString(r.name)+"</code>"+suffix)
	}
	out := make([]string, 0, len(lines))
	for _, s := range lines {
		if strings.TrimSpace(s) == "" && len(out) > 0 && out[len(out)-1] == "" {
			continue
		}
		out = append(out, s)
	}
	return strings.Join(out, "\n")
}
