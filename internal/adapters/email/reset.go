package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
)

var resetTmpl = template.Must(template.New("reset").Parse(`<p>Hello{{if .Name}} {{.Name}}{{end}},</p>
<p>Someone asked to reset the password for your App Store account.</p>
<p><a href="{{.Link}}">Choose a new password</a></p>
<p>The link expires in {{.TTL}}. If you did not ask for this, ignore this email.</p>`))

// ResetLink appends token to redirectURL as the "token" query parameter.
func ResetLink(redirectURL, token string) (string, error) {
	u, err := url.Parse(redirectURL)
	if err != nil {
		return "", fmt.Errorf("parse reset redirect: %w", err)
	}
	if u.Fragment != "" {
		// Hash routes carry their own query inside the fragment.
		u.Fragment += "?token=" + url.QueryEscape(token)
		return u.String(), nil
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// PasswordReset builds the reset email sent to one recipient.
func PasswordReset(to, name, link, ttl string) (Message, error) {
	var buf bytes.Buffer
	err := resetTmpl.Execute(&buf, struct{ Name, Link, TTL string }{name, link, ttl})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      []string{to},
		Subject: "Reset your App Store password",
		HTML:    buf.String(),
	}, nil
}
