package email

import (
	"bytes"
	"fmt"
	htmltpl "html/template"
	texttpl "text/template"
)

// WelcomeVars feed the welcome templates.
type WelcomeVars struct {
	AppName  string
	Email    string
	Provider string
}

const welcomeSubject = "Welcome to {{.AppName}}"

const welcomeText = `Hi,

Your {{.AppName}} account for {{.Email}} was created by signing in with {{.Provider}}.
You can keep using {{.Provider}} to sign in, or add a password or passkey from your account settings.
`

const welcomeHTML = `<!doctype html>
<html><body style="font-family:sans-serif">
<p>Hi,</p>
<p>Your <strong>{{.AppName}}</strong> account for {{.Email}} was created by signing in with {{.Provider}}.</p>
<p>You can keep using {{.Provider}} to sign in, or add a password or passkey from your account settings.</p>
</body></html>`

var (
	welcomeSubjectTpl = texttpl.Must(texttpl.New("welcome_subject").Parse(welcomeSubject))
	welcomeTextTpl    = texttpl.Must(texttpl.New("welcome_text").Parse(welcomeText))
	welcomeHTMLTpl    = htmltpl.Must(htmltpl.New("welcome_html").Parse(welcomeHTML))
)

// RenderWelcome returns subject, html and text bodies.
func RenderWelcome(v WelcomeVars) (subject, html, text string, err error) {
	var sb, hb, tb bytes.Buffer
	if err := welcomeSubjectTpl.Execute(&sb, v); err != nil {
		return "", "", "", fmt.Errorf("render welcome subject: %w", err)
	}
	if err := welcomeHTMLTpl.Execute(&hb, v); err != nil {
		return "", "", "", fmt.Errorf("render welcome html: %w", err)
	}
	if err := welcomeTextTpl.Execute(&tb, v); err != nil {
		return "", "", "", fmt.Errorf("render welcome text: %w", err)
	}
	return sb.String(), hb.String(), tb.String(), nil
}
