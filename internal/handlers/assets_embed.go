package handlers

import (
	"embed"
	"html/template"
	"io/fs"
	"strings"
	"time"

	"srcapp/internal/models"
)

// TemplatesFS embeds the page templates and the static assets served under /assets
//
//go:embed templates/*.html templates/assets/*
var TemplatesFS embed.FS

// AssetsFS returns the static asset tree rooted at templates/assets
func AssetsFS() (fs.FS, error) {
	return fs.Sub(TemplatesFS, "templates/assets")
}

// templateFuncs are available in every page
var templateFuncs = template.FuncMap{
	"statusLabel":   func(s models.FeedbackStatus) string { return s.Label() },
	"categoryLabel": func(c models.Category) string { return c.Label() },
	"roleLabel":     func(r models.Role) string { return r.Label() },
	"formatTime": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("02 Jan 2006 15:04")
	},
	"statusClass": func(s models.FeedbackStatus) string {
		return "status-" + strings.ReplaceAll(string(s), "_", "-")
	},
	"truncate": func(s string, n int) string {
		r := []rune(s)
		if len(r) <= n {
			return s
		}
		return string(r[:n]) + "…"
	},
}

// LoadTemplates parses every embedded page. Page names are the file names, e.g. "feedback_list.html".
func LoadTemplates() (*template.Template, error) {
	return template.New("pages").Funcs(templateFuncs).ParseFS(TemplatesFS, "templates/*.html")
}
