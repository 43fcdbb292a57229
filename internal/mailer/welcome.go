package mailer

import (
	"fmt"
	"os"

	"github.com/soundpack/backend/internal/catalog"
)

// WelcomeMail builds the post-purchase email. A download link is preferred;
// the zip is attached directly only when no link could be produced and the
// bundled local pack exists. supportEmail is the mailbox unsubscribe requests
// should land in.
func WelcomeMail(to, downloadURL, localPackPath, supportEmail string) Message {
	msg := Message{
		To:      to,
		Subject: "Your Lock Sound Pack",
	}
	if supportEmail != "" {
		msg.Headers = map[string]string{
			"List-Unsubscribe": fmt.Sprintf("<mailto:%s?subject=unsubscribe>", supportEmail),
		}
	}

	switch {
	case downloadURL != "":
		msg.HTML = fmt.Sprintf(
			`<p>Thanks for your purchase!</p><p><a href="%s">Download your sound pack</a> (link expires in 24 hours).</p>`,
			downloadURL,
		)
		msg.Text = fmt.Sprintf("Thanks for your purchase!\n\nDownload your sound pack: %s\n(The link expires in 24 hours.)", downloadURL)
	default:
		msg.HTML = "<p>Thanks for your purchase! Your sound pack is attached.</p>"
		msg.Text = "Thanks for your purchase! Your sound pack is attached."
		if content, err := os.ReadFile(localPackPath); err == nil {
			msg.Attachments = append(msg.Attachments, Attachment{
				Filename:    catalog.PackFilename,
				ContentType: "application/zip",
				Content:     content,
			})
		}
	}

	return msg
}
