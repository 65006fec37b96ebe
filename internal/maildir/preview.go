package maildir

import (
	"fmt"
	"os"
	"strings"

	"github.com/emersion/go-message/mail"
)

const maxSubjectLen = 80

// previewMessage summarises the header of the message at path as
// `"Subject" from Sender`. Unreadable or malformed messages yield "".
func previewMessage(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	reader, err := mail.CreateReader(f)
	if err != nil {
		return ""
	}
	defer reader.Close()

	return formatPreview(reader.Header)
}

func formatPreview(header mail.Header) string {
	subject, err := header.Subject()
	if err != nil {
		subject = header.Get("Subject")
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = "(no subject)"
	}
	if runes := []rune(subject); len(runes) > maxSubjectLen {
		subject = string(runes[:maxSubjectLen-3]) + "..."
	}

	from := strings.TrimSpace(header.Get("From"))
	if addrs, err := header.AddressList("From"); err == nil && len(addrs) > 0 {
		from = addrs[0].Address
		if addrs[0].Name != "" {
			from = addrs[0].Name
		}
	}
	if from == "" {
		return fmt.Sprintf("%q", subject)
	}
	return fmt.Sprintf("%q from %s", subject, from)
}
