package mailer

// Templates understood by the email worker.
const (
	TemplateWelcome      = "welcome"
	TemplateCancellation = "cancellation"
)

// EmailJob is the JSON payload put on the notification queue. The worker
// renders Template with Data and sends the result; delivery is best-effort
// and the publishing side never waits on it.
type EmailJob struct {
	To       string         `json:"to"`
	Template string         `json:"template"`
	Data     map[string]any `json:"data,omitempty"`
}
