package mailer

import (
	"fmt"
)

// Render produces the subject and plain-text body for a known template.
func Render(template string, data map[string]any) (subject, text string, err error) {
	name := fmt.Sprintf("%v", data["Name"])
	switch template {
	case TemplateWelcome:
		return "Thanks for joining in!",
			fmt.Sprintf("Welcome to the app, %s. Let me know how you get along with the app.", name),
			nil
	case TemplateCancellation:
		return "We're gonna miss you!",
			fmt.Sprintf("Could we change something to get you back %s?", name),
			nil
	default:
		return "", "", fmt.Errorf("unknown email template %q", template)
	}
}
