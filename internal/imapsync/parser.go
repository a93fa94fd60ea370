package imapsync

import (
	"bytes"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jhillyerd/enmime"

	"github.com/welldanyogia/webrana-dripmail-backend/internal/models"
)

// snippetLimit bounds the stored preview text.
const snippetLimit = 255

// ParseInbound converts a raw RFC 5322 message into an InboundMessage
// for the given account and folder. The message id from the envelope
// takes priority; when the header is missing a deterministic surrogate
// is derived from the account and UID so dedupe still works.
func ParseInbound(account *models.MailAccount, folder string, raw *RawMessage) (*models.InboundMessage, error) {
	if len(raw.Body) == 0 {
		return nil, fmt.Errorf("message uid %d has no body section", raw.UID)
	}

	env, err := enmime.ReadEnvelope(bytes.NewReader(raw.Body))
	if err != nil {
		return nil, fmt.Errorf("parsing message uid %d: %w", raw.UID, err)
	}

	messageID := strings.TrimSpace(raw.MessageID)
	if messageID == "" {
		messageID = strings.TrimSpace(env.GetHeader("Message-Id"))
	}
	if messageID == "" {
		messageID = fmt.Sprintf("<missing-%d-%d@%s>", account.ID, raw.UID, account.IMAPHost)
	}

	senderName, senderEmail := splitAddressHeader(env.GetHeader("From"))

	receivedAt := raw.InternalDate
	if receivedAt.IsZero() {
		if date, dateErr := mail.ParseDate(env.GetHeader("Date")); dateErr == nil {
			receivedAt = date
		} else {
			receivedAt = time.Now().UTC()
		}
	}

	message := &models.InboundMessage{
		TenantID:    account.TenantID,
		AccountID:   account.ID,
		MessageID:   messageID,
		Folder:      folder,
		UID:         raw.UID,
		Subject:     env.GetHeader("Subject"),
		SenderEmail: senderEmail,
		SenderName:  senderName,
		Recipients:  env.GetHeader("To"),
		BodyText:    env.Text,
		BodyHTML:    env.HTML,
		RawHeaders:  headerBlock(env),
		ReceivedAt:  receivedAt,
	}
	message.Snippet = makeSnippet(env.Text, env.HTML)

	return message, nil
}

var fromPattern = regexp.MustCompile(`^(?:"?([^"<]*)"?\s*)?<?([^<>]+@[^<>]+)>?$`)

// splitAddressHeader extracts display name and address from a From or
// To header value. Malformed input falls back to the raw string as the
// address.
func splitAddressHeader(value string) (name, email string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", ""
	}

	matches := fromPattern.FindStringSubmatch(value)
	if len(matches) >= 3 {
		name = strings.Trim(strings.TrimSpace(matches[1]), `"`)
		email = strings.TrimSpace(matches[2])
		return name, email
	}
	return "", value
}

// makeSnippet builds a short plain text preview, preferring the text
// part and falling back to stripped HTML.
func makeSnippet(bodyText, bodyHTML string) string {
	text := bodyText
	if text == "" && bodyHTML != "" {
		text = stripHTMLTags(bodyHTML)
	}

	text = strings.Join(strings.Fields(text), " ")
	if len(text) > snippetLimit {
		cut := snippetLimit - 3
		// Back off to a rune boundary so the cut never splits a
		// multi-byte character.
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "..."
	}
	return text
}

var (
	scriptStylePattern = regexp.MustCompile(`(?i)<script[^>]*>[\s\S]*?</script>|<style[^>]*>[\s\S]*?</style>`)
	tagPattern         = regexp.MustCompile(`<[^>]*>`)
)

func stripHTMLTags(html string) string {
	html = scriptStylePattern.ReplaceAllString(html, "")
	html = tagPattern.ReplaceAllString(html, " ")

	replacer := strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
	)
	return replacer.Replace(html)
}

// headerBlock serializes the headers we care to keep for debugging and
// reply threading. Full raw header retention is deliberately avoided
// to keep row sizes predictable.
func headerBlock(env *enmime.Envelope) string {
	var b strings.Builder
	for _, key := range []string{"Message-Id", "In-Reply-To", "References", "From", "To", "Cc", "Date", "Subject"} {
		if value := env.GetHeader(key); value != "" {
			fmt.Fprintf(&b, "%s: %s\n", key, value)
		}
	}
	return b.String()
}
