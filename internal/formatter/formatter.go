package formatter

import (
	"fmt"
	"strings"
)

// Formatter renders platform-ready text per (audience, message type). All
// methods are pure; the relay decides where each rendering is sent or stored.
type Formatter interface {
	StaffReplyDM(moderator, text string, anonymous bool) string
	StaffReplyChannel(moderator, text string, number int64, anonymous bool) string
	StaffReplyLog(moderator, text string, anonymous bool, attachmentURLs []string) string

	UserReplyChannel(user, text string, attachmentLines []string) string
	UserReplyLog(user, text string, attachmentLines []string) string

	StaffReplyEditNotificationChannel(moderator string, number int64, newText string) string
	StaffReplyEditNotificationLog(moderator string, number int64, oldBody, newText string) string
	StaffReplyDeletionNotificationChannel(moderator string, number int64) string
	StaffReplyDeletionNotificationLog(moderator string, number int64, body string) string

	Attachment(name string, size int64, url string) string
	Mention(userID string) string
}

// Default is the stock plain-markdown formatter.
type Default struct{}

func NewDefault() Default {
	return Default{}
}

func (Default) StaffReplyDM(moderator, text string, anonymous bool) string {
	if anonymous {
		return text
	}
	return fmt.Sprintf("**%s**: %s", moderator, text)
}

func (Default) StaffReplyChannel(moderator, text string, number int64, anonymous bool) string {
	if anonymous {
		return fmt.Sprintf("**[%d] (Anonymous) %s**: %s", number, moderator, text)
	}
	return fmt.Sprintf("**[%d] %s**: %s", number, moderator, text)
}

func (Default) StaffReplyLog(moderator, text string, anonymous bool, attachmentURLs []string) string {
	var b strings.Builder
	if anonymous {
		fmt.Fprintf(&b, "[ANONYMOUS REPLY] %s: %s", moderator, text)
	} else {
		fmt.Fprintf(&b, "[REPLY] %s: %s", moderator, text)
	}
	for _, url := range attachmentURLs {
		b.WriteString("\n\n")
		b.WriteString(url)
	}
	return b.String()
}

func (Default) UserReplyChannel(user, text string, attachmentLines []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**: %s", user, text)
	for _, line := range attachmentLines {
		b.WriteString("\n\n")
		b.WriteString(line)
	}
	return b.String()
}

func (Default) UserReplyLog(user, text string, attachmentLines []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[FROM USER] %s: %s", user, text)
	for _, line := range attachmentLines {
		b.WriteString("\n\n")
		b.WriteString(line)
	}
	return b.String()
}

func (Default) StaffReplyEditNotificationChannel(moderator string, number int64, newText string) string {
	return fmt.Sprintf("**%s** edited reply [%d]:\n%s", moderator, number, newText)
}

func (Default) StaffReplyEditNotificationLog(moderator string, number int64, oldBody, newText string) string {
	return fmt.Sprintf("%s edited reply [%d]:\nBefore: %s\nAfter: %s", moderator, number, oldBody, newText)
}

func (Default) StaffReplyDeletionNotificationChannel(moderator string, number int64) string {
	return fmt.Sprintf("**%s** deleted reply [%d]", moderator, number)
}

func (Default) StaffReplyDeletionNotificationLog(moderator string, number int64, body string) string {
	return fmt.Sprintf("%s deleted reply [%d]:\n%s", moderator, number, body)
}

func (Default) Attachment(name string, size int64, url string) string {
	kb := size / 1024
	return fmt.Sprintf("**Attachment:** %s (%dKB)\n%s", name, kb, url)
}

func (Default) Mention(userID string) string {
	return fmt.Sprintf("<@!%s>", userID)
}
