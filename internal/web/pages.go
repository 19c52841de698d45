package web

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
)

type pageData struct {
	Token string
}

const layoutHead = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{block "title" .}}Link Logger{{end}}</title>
<style>
body{font-family:-apple-system,Segoe UI,Roboto,sans-serif;background:#f4f5f7;color:#222;margin:0;padding:40px 16px}
main{max-width:520px;margin:0 auto;background:#fff;border-radius:12px;padding:28px;box-shadow:0 2px 10px rgba(0,0,0,.06)}
h1{font-size:22px;margin-top:0}
code{background:#f0f0f0;padding:2px 6px;border-radius:4px}
</style>
</head>
<body><main>`

const layoutFoot = `</main></body></html>`

var (
	indexPage = template.Must(template.New("index").Parse(layoutHead + `
<h1>Link Logger</h1>
<p>This service records visits to tracking links created through its Telegram bot.
Each visit stores the visitor's IP address and browser user agent and is reported to the link owner.</p>
` + layoutFoot))

	recordedPage = template.Must(template.New("recorded").Parse(layoutHead + `
<h1>Visit recorded</h1>
<p>This is a tracking link (<code>{{.Token}}</code>). Your IP address and browser user agent
have been recorded and shared with the person who created this link.</p>
` + layoutFoot))

	notFoundPage = template.Must(template.New("notfound").Parse(layoutHead + `
<h1>Link not found</h1>
<p>This link does not exist or has been disabled.</p>
` + layoutFoot))

	errorPage = template.Must(template.New("error").Parse(layoutHead + `
<h1>Something went wrong</h1>
<p>Please try again later.</p>
` + layoutFoot))
)

func (s *Server) render(c *gin.Context, status int, tpl *template.Template, data any) {
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		s.logger.WithField("event", "http_render_error").WithError(err).Error("failed to render page")
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}
