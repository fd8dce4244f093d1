package domain

// EmailMessage is a single outbound HTML email.
type EmailMessage struct {
	To      string
	Subject string
	Body    string
}
