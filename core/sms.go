package core

// SMSMessage is a plain text message sent to a single phone number (E.164 format).
type SMSMessage struct {
	To   string
	Body string
}

func (m *SMSMessage) HasRecipient() bool { return m.To != "" }

// SMSService is any service that can send text messages.
type SMSService interface {
	// SendMessages sends messages concurrently; delivery failures are logged, never returned.
	SendMessages(messages ...*SMSMessage)
}
