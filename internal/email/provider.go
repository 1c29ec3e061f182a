package email

// Email is one outgoing message.
type Email struct {
	To       []string
	Subject  string
	Body     string
	HTMLBody string
}

// Provider sends mail. The SMTP implementation is used in production; a
// noop stands in when email is disabled or in tests.
type Provider interface {
	Send(email *Email) error
}

// NoopProvider drops every message. Used when email delivery is turned
// off in config.
type NoopProvider struct{}

func (NoopProvider) Send(*Email) error { return nil }
