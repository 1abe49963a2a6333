package mail

import (
	"fmt"
	"log"
	"net/smtp"

	"github.com/nimbushost/nimbushost/internal/pkg/env"
)

// SendMail sends an HTML email via the configured SMTP relay.
func SendMail(to string, subject string, body string) error {
	host := env.GetEnv("SMTP_HOST", "")
	port := env.GetEnv("SMTP_PORT", "")
	username := env.GetEnv("SMTP_USERNAME", "")
	password := env.GetEnv("SMTP_PASSWORD", "")
	sender := env.GetEnv("SMTP_SENDER", "")

	if sender == "" {
		sender = fmt.Sprintf("no-reply@%s", "localhost")
		log.Printf("SMTP_SENDER not set, using default sender: %s", sender)
	}

	var auth smtp.Auth
	if username != "" && password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)

	err := smtp.SendMail(addr, auth, sender, []string{to}, msg)
	if err != nil {
		log.Printf("SMTP send error: %v", err)
		return err
	}
	return nil
}

// SendWelcomeMail greets a freshly registered account. Failures are logged by
// SendMail; registration never blocks on the relay.
func SendWelcomeMail(to, name string) error {
	body := fmt.Sprintf(
		"<h1>Welcome to NimbusHost, %s!</h1>"+
			"<p>Your account is ready. Pick a hosting plan and we will have your site online in minutes.</p>",
		name,
	)
	return SendMail(to, "Welcome to NimbusHost", body)
}
