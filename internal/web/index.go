package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/restfab/internal/core"
)

// ResourceInfo describes one mounted resource on the index.
type ResourceInfo struct {
	Name       string           `json:"name"`
	Label      string           `json:"label"`
	Path       string           `json:"path"`
	Table      string           `json:"table"`
	Operations []core.Operation `json:"operations"`
	Columns    []ColumnInfo     `json:"columns"`
	CSVHeader  []string         `json:"csv_header,omitempty"`
}

// ColumnInfo describes one column of a resource.
type ColumnInfo struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Nullable   bool   `json:"nullable"`
	HasDefault bool   `json:"has_default"`
	PrimaryKey bool   `json:"primary_key"`
	Unique     bool   `json:"unique"`
}

// Index is the body of GET {base}/_resources.
type Index struct {
	Resources []ResourceInfo            `json:"resources"`
	Imports   *core.ImportLimiterStatus `json:"imports,omitempty"`
}

func describe(basePath string, res *Resource) ResourceInfo {
	info := ResourceInfo{
		Name:  res.Def.Name,
		Label: res.Def.Label,
		Path:  strings.TrimSuffix(basePath, "/") + res.Def.Path(),
		Table: res.Def.Model.Table,
	}
	for _, op := range core.Operations {
		if res.Def.Allows(op) {
			info.Operations = append(info.Operations, op)
		}
	}
	for _, c := range res.Def.Model.Columns {
		info.Columns = append(info.Columns, ColumnInfo{
			Name:       c.Name,
			Type:       c.Kind.String(),
			Nullable:   c.Nullable,
			HasDefault: c.HasDefault,
			PrimaryKey: c.PrimaryKey,
			Unique:     c.Unique,
		})
	}
	if res.Def.Allows(core.OpCSV) {
		info.CSVHeader = csvTemplate(res.request)
	}
	return info
}

// handleIndex lists the mounted resources as JSON, or as HTML when the
// client asks for text/html.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	idx := Index{Resources: make([]ResourceInfo, 0, len(s.resources))}
	for _, res := range s.resources {
		idx.Resources = append(idx.Resources, describe(s.cfg.API.BasePath, res))
	}
	if s.limiter != nil {
		st := s.limiter.Status()
		idx.Imports = &st
	}

	if wantsHTML(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := indexPage(idx).Render(r.Context(), w); err != nil {
			respondError(w, r, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, idx)
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// indexPage renders the resource index.
func indexPage(idx Index) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString("<!DOCTYPE html><html><head><meta charset=\"utf-8\"><title>Resources</title></head><body><h1>Resources</h1>")
		if idx.Imports != nil {
			fmt.Fprintf(&b, "<p>Imports: %d active, %d available</p>", idx.Imports.Active, idx.Imports.Available)
		}
		for _, res := range idx.Resources {
			fmt.Fprintf(&b, "<section><h2>%s</h2><p><code>%s</code> (table <code>%s</code>)</p>",
				templ.EscapeString(res.Label), templ.EscapeString(res.Path), templ.EscapeString(res.Table))

			ops := make([]string, len(res.Operations))
			for i, op := range res.Operations {
				ops[i] = string(op)
			}
			fmt.Fprintf(&b, "<p>Operations: %s</p>", templ.EscapeString(strings.Join(ops, ", ")))

			b.WriteString("<table><thead><tr><th>Column</th><th>Type</th><th>Flags</th></tr></thead><tbody>")
			for _, c := range res.Columns {
				fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%s</td></tr>",
					templ.EscapeString(c.Name), templ.EscapeString(c.Type), templ.EscapeString(columnFlags(c)))
			}
			b.WriteString("</tbody></table></section>")
		}
		b.WriteString("</body></html>")
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func columnFlags(c ColumnInfo) string {
	var flags []string
	if c.PrimaryKey {
		flags = append(flags, "pk")
	}
	if c.Unique {
		flags = append(flags, "unique")
	}
	if c.Nullable {
		flags = append(flags, "null")
	}
	if c.HasDefault {
		flags = append(flags, "default")
	}
	return strings.Join(flags, " ")
}
