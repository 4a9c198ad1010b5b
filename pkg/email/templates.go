package email

import (
	"bytes"
	"fmt"
	"html/template"
)

var welcomeTemplate = template.Must(template.New("welcome").Parse(`
<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #1f2933;">
  <h2>Welcome to {{.AppName}}</h2>
  <p>Hi {{.Name}},</p>
  <p>An administrator created an account for you.</p>
  <p>Username: <strong>{{.Username}}</strong></p>
  <p><a href="{{.LoginURL}}">Sign in</a> and set your password to get started.</p>
  <p style="color: #7b8794; font-size: 12px;">If you were not expecting this email, you can ignore it.</p>
</body>
</html>
`))

// WelcomeEmailData fills the welcome template.
type WelcomeEmailData struct {
	AppName  string
	Name     string
	Username string
	LoginURL string
}

// RenderWelcome renders the welcome email body.
func RenderWelcome(data WelcomeEmailData) (string, error) {
	var buf bytes.Buffer
	if err := welcomeTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render welcome email: %w", err)
	}
	return buf.String(), nil
}
