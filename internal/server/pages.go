package server

import (
	"html/template"
	"log"
	"net/http"

	"github.com/MarkAustinGrow/Marvin-xAccount-monitor/internal/types"
)

var pageTemplates = template.Must(template.New("pages").Parse(pageTemplate))

type reviewPageData struct {
	Title    string
	Page     string
	Pending  []types.ReviewEntry
	Fixed    []types.ReviewEntry
	Ignored  []types.ReviewEntry
	Accounts []types.Account
}

type accountsPageData struct {
	Title    string
	Page     string
	Accounts []types.Account
}

type tweetsPageData struct {
	Title    string
	Page     string
	Accounts []accountTweets
}

func (s *Server) handleReviewPage(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ReviewEntries(r.Context())
	if err != nil {
		log.Printf("[server] Error rendering review page: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	accounts, err := s.store.AccountsToMonitor(r.Context())
	if err != nil {
		log.Printf("[server] Error rendering review page: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	data := reviewPageData{
		Title:    "Marvin Account Monitor - Account Review",
		Page:     "review",
		Accounts: accounts,
	}
	for _, e := range entries {
		switch e.Status {
		case types.ReviewFixed:
			data.Fixed = append(data.Fixed, e)
		case types.ReviewIgnored:
			data.Ignored = append(data.Ignored, e)
		default:
			data.Pending = append(data.Pending, e)
		}
	}
	s.renderPage(w, "review", data)
}

func (s *Server) handleAccountsPage(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.store.AccountsToMonitor(r.Context())
	if err != nil {
		log.Printf("[server] Error rendering accounts page: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.renderPage(w, "accounts", accountsPageData{
		Title:    "Marvin Account Monitor - Manage Accounts",
		Page:     "accounts",
		Accounts: accounts,
	})
}

func (s *Server) handleTweetsPage(w http.ResponseWriter, r *http.Request) {
	groups, err := s.accountsWithTweets(r.Context())
	if err != nil {
		log.Printf("[server] Error rendering tweets page: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.renderPage(w, "tweets", tweetsPageData{
		Title:    "Marvin Account Monitor - Tweet Cache",
		Page:     "tweets",
		Accounts: groups,
	})
}

func (s *Server) renderPage(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplates.ExecuteTemplate(w, name, data); err != nil {
		log.Printf("[server] Error rendering %s page: %v", name, err)
	}
}

const pageTemplate = `
{{define "head"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 2em; color: #222; }
nav a { margin-right: 1em; }
nav a.active { font-weight: bold; }
table { border-collapse: collapse; margin-top: 1em; }
th, td { border: 1px solid #ccc; padding: 0.4em 0.8em; text-align: left; }
.code { font-family: monospace; color: #a33; }
.muted { color: #888; }
h2 { margin-top: 1.5em; }
</style>
</head>
<body>
<h1>Marvin Account Monitor</h1>
<nav>
<a href="/" {{if eq .Page "review"}}class="active"{{end}}>Review</a>
<a href="/accounts" {{if eq .Page "accounts"}}class="active"{{end}}>Accounts</a>
<a href="/tweets" {{if eq .Page "tweets"}}class="active"{{end}}>Tweets</a>
</nav>
{{end}}

{{define "review"}}{{template "head" .}}
<h2>Pending review ({{len .Pending}})</h2>
{{if .Pending}}
<table>
<tr><th>Handle</th><th>Code</th><th>Error</th><th>First seen</th><th>Notes</th></tr>
{{range .Pending}}
<tr><td>@{{.Handle}}</td><td class="code">{{.ErrorCode}}</td><td>{{.ErrorMessage}}</td><td>{{.CreatedAt.Format "2006-01-02 15:04"}}</td><td>{{.Notes}}</td></tr>
{{end}}
</table>
{{else}}<p class="muted">No accounts need review.</p>{{end}}

<h2>Fixed ({{len .Fixed}})</h2>
{{if .Fixed}}
<table>
<tr><th>Handle</th><th>Code</th><th>Notes</th></tr>
{{range .Fixed}}
<tr><td>@{{.Handle}}</td><td class="code">{{.ErrorCode}}</td><td>{{.Notes}}</td></tr>
{{end}}
</table>
{{else}}<p class="muted">Nothing marked fixed.</p>{{end}}

<h2>Ignored ({{len .Ignored}})</h2>
{{if .Ignored}}
<table>
<tr><th>Handle</th><th>Code</th><th>Notes</th></tr>
{{range .Ignored}}
<tr><td>@{{.Handle}}</td><td class="code">{{.ErrorCode}}</td><td>{{.Notes}}</td></tr>
{{end}}
</table>
{{else}}<p class="muted">Nothing ignored.</p>{{end}}
</body></html>{{end}}

{{define "accounts"}}{{template "head" .}}
<h2>Monitored accounts ({{len .Accounts}})</h2>
<table>
<tr><th>Handle</th><th>Priority</th><th>Last checked</th></tr>
{{range .Accounts}}
<tr><td>@{{.Handle}}</td><td>{{.Priority}}</td>
<td>{{if .LastChecked}}{{.LastChecked.Format "2006-01-02 15:04"}}{{else}}<span class="muted">never</span>{{end}}</td></tr>
{{end}}
</table>
</body></html>{{end}}

{{define "tweets"}}{{template "head" .}}
{{range .Accounts}}
<h2>@{{.Account.Handle}} ({{len .Tweets}} cached)</h2>
{{if .Tweets}}
<table>
<tr><th>Tweet</th><th>Posted</th><th>Score</th><th>Link</th></tr>
{{range .Tweets}}
<tr><td>{{.Summary}}</td><td>{{.CreatedAt.Format "2006-01-02 15:04"}}</td><td>{{printf "%.1f" .EngagementScore}}</td><td><a href="{{.URL}}">open</a></td></tr>
{{end}}
</table>
{{else}}<p class="muted">No tweets cached yet.</p>{{end}}
{{end}}
</body></html>{{end}}
`
