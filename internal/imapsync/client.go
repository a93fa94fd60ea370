package imapsync

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sort"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	apperrors "github.com/welldanyogia/webrana-dripmail-backend/internal/errors"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/models"
)

// RawMessage is one fetched message before MIME parsing.
type RawMessage struct {
	UID          uint32
	MessageID    string
	InternalDate time.Time
	Body         []byte
}

// Fetcher retrieves messages with UIDs above a watermark from one
// account's mailbox, ordered by ascending UID.
type Fetcher interface {
	Fetch(ctx context.Context, account *models.MailAccount, secret, folder string, afterUID uint32) ([]RawMessage, error)
}

// imapFetcher implements Fetcher over go-imap v2. Each call opens a
// fresh connection; sync ticks are minutes apart so connection reuse
// buys nothing worth the session state tracking.
type imapFetcher struct {
	batchLimit int
	timeout    time.Duration
}

// NewIMAPFetcher creates a Fetcher. batchLimit caps messages per tick;
// the remainder is picked up next tick because the watermark only
// advances past what was persisted. timeout bounds the dial and, when
// the caller's context carries no deadline, the whole session.
func NewIMAPFetcher(batchLimit int, timeout time.Duration) Fetcher {
	if batchLimit <= 0 {
		batchLimit = 200
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &imapFetcher{batchLimit: batchLimit, timeout: timeout}
}

func (f *imapFetcher) Fetch(ctx context.Context, account *models.MailAccount, secret, folder string, afterUID uint32) ([]RawMessage, error) {
	client, err := f.connect(ctx, account, secret)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewSyncError(err, account.ID, "select")
	}
	if _, err := client.Select(folder, nil).Wait(); err != nil {
		return nil, apperrors.NewSyncError(fmt.Errorf("selecting %s: %w", folder, err), account.ID, "select")
	}

	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewSyncError(err, account.ID, "list")
	}
	uids, err := searchAbove(client, afterUID)
	if err != nil {
		return nil, apperrors.NewSyncError(err, account.ID, "list")
	}
	if len(uids) == 0 {
		return nil, nil
	}

	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	if len(uids) > f.batchLimit {
		uids = uids[:f.batchLimit]
	}

	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewSyncError(err, account.ID, "fetch")
	}
	messages, err := fetchBodies(client, uids)
	if err != nil {
		return nil, apperrors.NewSyncError(err, account.ID, "fetch")
	}
	return messages, nil
}

// connect dials, bounds the connection and logs in. The deadline set
// here covers every subsequent command on the session, so a provider
// that accepts TCP and then stalls fails the account's tick instead of
// wedging the worker.
func (f *imapFetcher) connect(ctx context.Context, account *models.MailAccount, secret string) (*imapclient.Client, error) {
	addr := account.IMAPAddr()

	dialer := &net.Dialer{Timeout: f.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, apperrors.NewSyncError(fmt.Errorf("connecting to %s: %w", addr, err), account.ID, "connect")
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(f.timeout)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return nil, apperrors.NewSyncError(fmt.Errorf("bounding connection to %s: %w", addr, err), account.ID, "connect")
	}

	options := &imapclient.Options{
		TLSConfig: &tls.Config{ServerName: account.IMAPHost},
	}
	var client *imapclient.Client
	if account.IMAPTLS {
		client = imapclient.New(tls.Client(conn, options.TLSConfig), options)
	} else {
		client, err = imapclient.NewStartTLS(conn, options)
		if err != nil {
			conn.Close()
			return nil, apperrors.NewSyncError(fmt.Errorf("starttls with %s: %w", addr, err), account.ID, "connect")
		}
	}

	if err := client.Login(account.Username, secret).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, apperrors.NewSyncError(fmt.Errorf("login for %s: %w", account.Username, err), account.ID, "connect")
	}
	return client, nil
}

// searchAbove runs UID SEARCH for UIDs strictly greater than afterUID.
// An open-ended range (stop zero) means "through the highest UID".
func searchAbove(client *imapclient.Client, afterUID uint32) ([]imap.UID, error) {
	criteria := &imap.SearchCriteria{
		UID: []imap.UIDSet{{imap.UIDRange{Start: imap.UID(afterUID + 1), Stop: 0}}},
	}

	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("uid search: %w", err)
	}
	return searchData.AllUIDs(), nil
}

func fetchBodies(client *imapclient.Client, uids []imap.UID) ([]RawMessage, error) {
	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		Envelope:     true,
		UID:          true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), fetchOpts)
	defer fetchCmd.Close()

	var messages []RawMessage
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			return nil, fmt.Errorf("collecting message: %w", err)
		}

		raw := RawMessage{
			UID:          uint32(buf.UID),
			InternalDate: buf.InternalDate,
			Body:         buf.FindBodySection(bodySection),
		}
		if buf.Envelope != nil {
			raw.MessageID = buf.Envelope.MessageID
		}
		messages = append(messages, raw)
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("fetching bodies: %w", err)
	}

	sort.Slice(messages, func(i, j int) bool { return messages[i].UID < messages[j].UID })
	return messages, nil
}
