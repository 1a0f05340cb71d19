package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

type templateData struct {
	AppName string
	Name    string
	Code    string
	Link    string
}

const layoutStart = `<!DOCTYPE html><html><body style="font-family:Arial,sans-serif;color:#222">`
const layoutEnd = `<p style="color:#888;font-size:12px">{{.AppName}}</p></body></html>`

var (
	verificationTmpl = template.Must(template.New("verification").Parse(layoutStart + `
<h2>Hi{{if .Name}} {{.Name}}{{end}}!</h2>
<p>Your verification code is:</p>
<p style="font-size:28px;letter-spacing:6px"><b>{{.Code}}</b></p>
<p>The code expires in 10 minutes. If you did not sign up, ignore this email.</p>
` + layoutEnd))

	welcomeTmpl = template.Must(template.New("welcome").Parse(layoutStart + `
<h2>Welcome{{if .Name}}, {{.Name}}{{end}}!</h2>
<p>Your email is confirmed. You can now use all features of {{.AppName}}.</p>
<p><a href="{{.Link}}">Open {{.AppName}}</a></p>
` + layoutEnd))

	resetTmpl = template.Must(template.New("reset").Parse(layoutStart + `
<h2>Password reset</h2>
<p>Hi{{if .Name}} {{.Name}}{{end}}, we received a request to reset your password.</p>
<p><a href="{{.Link}}">Reset password</a></p>
<p>The link is valid for 1 hour and can be used once. If you did not request it, ignore this email.</p>
` + layoutEnd))
)

func render(tmpl *template.Template, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("mailer: render %s: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
