package callback

import (
	"fmt"
	"html/template"
	"io"
)

var pageTemplate = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="{{.Seconds}};url={{.AppURL}}">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; display: flex; align-items: center; justify-content: center; min-height: 100vh; margin: 0; background: #f7f7f8; }
main { max-width: 28rem; padding: 2rem; background: #fff; border-radius: 12px; box-shadow: 0 1px 4px rgba(0,0,0,.08); text-align: center; }
h1 { font-size: 1.25rem; }
.success h1 { color: #137333; }
.error h1 { color: #c5221f; }
.detail { color: #5f6368; font-size: .9rem; }
</style>
</head>
<body>
<main class="{{.Class}}">
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
{{- if .Detail}}
<p class="detail">{{.Detail}}</p>
{{- end}}
<p class="detail">Redirecting in {{.Seconds}} seconds.</p>
{{- if .Retry}}
<p><a href="{{.AppURL}}">Try again</a></p>
{{- end}}
</main>
</body>
</html>
`))

type pageData struct {
	Title   string
	Class   string
	Message string
	Detail  string
	AppURL  string
	Seconds int
	Retry   bool
}

// RenderPage writes the status page for out, redirecting to appURL after
// out.RedirectAfter.
func RenderPage(w io.Writer, out *Outcome, appURL string) error {
	data := pageData{
		Message: out.Message,
		Detail:  out.Detail,
		AppURL:  appURL,
		Seconds: int(out.RedirectAfter.Seconds()),
	}
	if out.Succeeded() {
		data.Title = "Calendar connected"
		data.Class = "success"
	} else {
		data.Title = "Connection failed"
		data.Class = "error"
		data.Retry = true
	}

	if err := pageTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render callback page: %w", err)
	}
	return nil
}
