package report

import (
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"io"
	"net/url"
	"sort"
	"text/template"

	"github.com/FranksOps/trustcheck/internal/serp"
)

// Output formats accepted by Write.
const (
	FormatJSON = "json"
	FormatText = "text"
	FormatHTML = "html"
)

// Formats lists the formats Write understands.
func Formats() []string {
	return []string{FormatJSON, FormatText, FormatHTML}
}

// Summary aggregates a batch of responses.
type Summary struct {
	Queries      int
	TotalResults int
	EmptyQueries int
	// Hosts counts how often each result host appears across the batch.
	Hosts []HostCount
}

// HostCount is one row of Summary.Hosts.
type HostCount struct {
	Host  string
	Count int
}

// GenerateSummary processes a batch of responses. Hosts are sorted by
// count, then by name.
func GenerateSummary(responses []*serp.Response) Summary {
	s := Summary{}
	counts := make(map[string]int)

	for _, r := range responses {
		if r == nil {
			continue
		}
		s.Queries++
		s.TotalResults += len(r.Results)
		if len(r.Results) == 0 {
			s.EmptyQueries++
		}
		for _, res := range r.Results {
			if u, err := url.Parse(res.URL); err == nil && u.Host != "" {
				counts[u.Host]++
			}
		}
	}

	for host, n := range counts {
		s.Hosts = append(s.Hosts, HostCount{Host: host, Count: n})
	}
	sort.Slice(s.Hosts, func(i, j int) bool {
		if s.Hosts[i].Count != s.Hosts[j].Count {
			return s.Hosts[i].Count > s.Hosts[j].Count
		}
		return s.Hosts[i].Host < s.Hosts[j].Host
	})
	return s
}

// Write renders responses in the named format.
func Write(w io.Writer, format string, responses []*serp.Response) error {
	switch format {
	case FormatJSON, "":
		return WriteJSON(w, responses)
	case FormatText:
		return WriteText(w, responses)
	case FormatHTML:
		return WriteHTML(w, responses)
	default:
		return fmt.Errorf("report: unknown format %q", format)
	}
}

// WriteJSON writes one compact JSON object per response, one per line.
func WriteJSON(w io.Writer, responses []*serp.Response) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, r := range responses {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("report: encode %q: %w", r.Input, err)
		}
	}
	return nil
}

const textTmpl = `{{range .Responses -}}
{{.Input}} [{{.Language}}]
{{- range $i, $r := .Results}}
  {{inc $i}}. {{$r.Title}}
     {{$r.URL}}
{{- else}}
  no results
{{- end}}

{{end -}}
{{with .Summary}}{{if gt .Queries 1}}{{.Queries}} queries, {{.TotalResults}} results, {{.EmptyQueries}} empty
{{end}}{{end}}`

var funcs = template.FuncMap{"inc": func(i int) int { return i + 1 }}

// WriteText writes a human-readable listing of the responses.
func WriteText(w io.Writer, responses []*serp.Response) error {
	t, err := template.New("textReport").Funcs(funcs).Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("report: parse text template: %w", err)
	}
	data := struct {
		Responses []*serp.Response
		Summary   Summary
	}{responses, GenerateSummary(responses)}

	if err := t.Execute(w, data); err != nil {
		return fmt.Errorf("report: render text: %w", err)
	}
	return nil
}

const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<title>trustcheck report</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h2 { border-bottom: 2px solid #ccc; padding-bottom: 6px; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; }
  th { background: #eaeaea; }
</style>
</head>
<body>
  <h1>trustcheck report</h1>
  <p>{{.Summary.Queries}} queries, {{.Summary.TotalResults}} results, {{.Summary.EmptyQueries}} empty</p>
{{- range .Responses}}
  <h2>{{.Input}} <small>({{.Language}})</small></h2>
  <ol>
  {{- range .Results}}
    <li><a href="{{.URL}}">{{.Title}}</a></li>
  {{- else}}
    <li>No results</li>
  {{- end}}
  </ol>
{{- end}}

  <h3>Hosts</h3>
  <table>
    <tr><th>Host</th><th>Results</th></tr>
    {{- range .Summary.Hosts}}
    <tr><td>{{.Host}}</td><td>{{.Count}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>
</body>
</html>
`

// WriteHTML writes a standalone HTML page listing the responses. Titles
// and URLs come from third-party pages and are escaped.
func WriteHTML(w io.Writer, responses []*serp.Response) error {
	t, err := htmltemplate.New("htmlReport").Parse(htmlTmpl)
	if err != nil {
		return fmt.Errorf("report: parse html template: %w", err)
	}
	data := struct {
		Responses []*serp.Response
		Summary   Summary
	}{responses, GenerateSummary(responses)}

	if err := t.Execute(w, data); err != nil {
		return fmt.Errorf("report: render html: %w", err)
	}
	return nil
}
