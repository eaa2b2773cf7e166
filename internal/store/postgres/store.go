// Package postgres implements the Store interface on a pgx connection pool.
// Message idempotency relies on the UNIQUE (account_id, message_id)
// constraint: a conflicting insert is reported as store.ErrDuplicateMessage
// instead of writing a second row.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ty2499/filiova-learning-platform-sub010/internal/models"
	"github.com/ty2499/filiova-learning-platform-sub010/internal/store"
)

// Store is a Postgres-backed store.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store on top of an existing connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// SaveAccount inserts or updates a mail account.
func (s *Store) SaveAccount(ctx context.Context, account *models.MailAccount) error {
	var id string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO mail_accounts (
			id, display_name, from_address,
			imap_host, imap_port, imap_username, imap_password, imap_tls,
			smtp_host, smtp_port, smtp_username, smtp_password, smtp_tls,
			signature, sync_status
		) VALUES (
			COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3,
			$4, $5, $6, $7, $8,
			$9, $10, $11, $12, $13,
			$14, COALESCE(NULLIF($15, ''), 'idle')
		)
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			from_address = EXCLUDED.from_address,
			imap_host = EXCLUDED.imap_host,
			imap_port = EXCLUDED.imap_port,
			imap_username = EXCLUDED.imap_username,
			imap_password = EXCLUDED.imap_password,
			imap_tls = EXCLUDED.imap_tls,
			smtp_host = EXCLUDED.smtp_host,
			smtp_port = EXCLUDED.smtp_port,
			smtp_username = EXCLUDED.smtp_username,
			smtp_password = EXCLUDED.smtp_password,
			smtp_tls = EXCLUDED.smtp_tls,
			signature = EXCLUDED.signature,
			updated_at = now()
		RETURNING id
	`,
		account.ID,
		account.DisplayName,
		account.FromAddress,
		account.IMAPHost,
		account.IMAPPort,
		account.IMAPUsername,
		account.IMAPPassword,
		account.IMAPTLS,
		account.SMTPHost,
		account.SMTPPort,
		account.SMTPUsername,
		account.SMTPPassword,
		account.SMTPTLS,
		account.Signature,
		string(account.SyncStatus),
	).Scan(&id)

	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}

	account.ID = id
	return nil
}

const accountColumns = `
	id, display_name, from_address,
	imap_host, imap_port, imap_username, imap_password, imap_tls,
	smtp_host, smtp_port, smtp_username, smtp_password, smtp_tls,
	signature, sync_status, last_sync_error, created_at, updated_at
`

func scanAccount(row pgx.Row) (*models.MailAccount, error) {
	var account models.MailAccount
	var status string
	err := row.Scan(
		&account.ID,
		&account.DisplayName,
		&account.FromAddress,
		&account.IMAPHost,
		&account.IMAPPort,
		&account.IMAPUsername,
		&account.IMAPPassword,
		&account.IMAPTLS,
		&account.SMTPHost,
		&account.SMTPPort,
		&account.SMTPUsername,
		&account.SMTPPassword,
		&account.SMTPTLS,
		&account.Signature,
		&status,
		&account.LastSyncError,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	account.SyncStatus = models.SyncStatus(status)
	return &account, nil
}

// GetAccount returns the account with the given ID.
func (s *Store) GetAccount(ctx context.Context, id string) (*models.MailAccount, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM mail_accounts WHERE id = $1`, id)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// ListAccounts returns all accounts, oldest first.
func (s *Store) ListAccounts(ctx context.Context) ([]*models.MailAccount, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+accountColumns+` FROM mail_accounts ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.MailAccount
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}
	return accounts, nil
}

// SetAccountSyncStatus updates the sync state of one account.
func (s *Store) SetAccountSyncStatus(ctx context.Context, id string, status models.SyncStatus, syncError string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE mail_accounts
		SET sync_status = $2, last_sync_error = $3, updated_at = now()
		WHERE id = $1
	`, id, string(status), syncError)

	if err != nil {
		return fmt.Errorf("failed to set sync status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrAccountNotFound
	}
	return nil
}

// InsertMessage inserts a new message. A conflict on (account_id, message_id)
// yields store.ErrDuplicateMessage and leaves the existing row untouched.
func (s *Store) InsertMessage(ctx context.Context, message *models.Message) error {
	attachments, err := json.Marshal(messageAttachments(message))
	if err != nil {
		return fmt.Errorf("failed to marshal attachments: %w", err)
	}

	var id string
	err = s.pool.QueryRow(ctx, `
		INSERT INTO messages (
			account_id, message_id, from_address,
			to_addresses, cc_addresses, bcc_addresses,
			subject, body_text, unsafe_body_html,
			is_read, is_replied, is_starred, is_spam, is_archived, is_trashed, is_outbound,
			in_reply_to, references_header, attachments, received_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (account_id, message_id) DO NOTHING
		RETURNING id
	`,
		message.AccountID,
		message.MessageID,
		message.FromAddress,
		stringArray(message.ToAddresses),
		stringArray(message.CCAddresses),
		stringArray(message.BCCAddresses),
		message.Subject,
		message.BodyText,
		message.UnsafeBodyHTML,
		message.IsRead,
		message.IsReplied,
		message.IsStarred,
		message.IsSpam,
		message.IsArchived,
		message.IsTrashed,
		message.IsOutbound,
		message.InReplyTo,
		stringArray(message.References),
		string(attachments),
		message.ReceivedAt,
	).Scan(&id)

	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrDuplicateMessage
	}
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	message.ID = id
	return nil
}

const messageColumns = `
	id, account_id, message_id, from_address,
	to_addresses, cc_addresses, bcc_addresses,
	subject, body_text, unsafe_body_html,
	is_read, is_replied, is_starred, is_spam, is_archived, is_trashed, is_outbound,
	in_reply_to, references_header, attachments, received_at
`

func scanMessage(row pgx.Row) (*models.Message, error) {
	var message models.Message
	var attachments []byte
	err := row.Scan(
		&message.ID,
		&message.AccountID,
		&message.MessageID,
		&message.FromAddress,
		&message.ToAddresses,
		&message.CCAddresses,
		&message.BCCAddresses,
		&message.Subject,
		&message.BodyText,
		&message.UnsafeBodyHTML,
		&message.IsRead,
		&message.IsReplied,
		&message.IsStarred,
		&message.IsSpam,
		&message.IsArchived,
		&message.IsTrashed,
		&message.IsOutbound,
		&message.InReplyTo,
		&message.References,
		&attachments,
		&message.ReceivedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &message.Attachments); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attachments: %w", err)
		}
	}
	return &message, nil
}

// GetMessage returns the message with the given ID.
func (s *Store) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id)

	message, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return message, nil
}

// GetMessageByMessageID looks a message up by its idempotency key.
func (s *Store) GetMessageByMessageID(ctx context.Context, accountID, messageID string) (*models.Message, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE account_id = $1 AND message_id = $2`,
		accountID, messageID)

	message, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return message, nil
}

// ListMessages returns messages newest first, filtered by the options.
func (s *Store) ListMessages(ctx context.Context, opts store.ListMessagesOptions) ([]*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE TRUE`
	args := []any{}

	if opts.AccountID != "" {
		args = append(args, opts.AccountID)
		query += fmt.Sprintf(" AND account_id = $%d", len(args))
	}
	if !opts.IncludeTrashed {
		query += " AND NOT is_trashed"
	}
	if opts.UnreadOnly {
		query += " AND NOT is_read"
	}
	query += " ORDER BY received_at DESC, id"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return messages, nil
}

// flagColumns maps toggleable flags to their columns. Only names from this
// map are ever interpolated into SQL.
var flagColumns = map[models.Flag]string{
	models.FlagRead:     "is_read",
	models.FlagReplied:  "is_replied",
	models.FlagStarred:  "is_starred",
	models.FlagSpam:     "is_spam",
	models.FlagArchived: "is_archived",
	models.FlagTrashed:  "is_trashed",
}

// SetMessageFlag toggles one flag on a message.
func (s *Store) SetMessageFlag(ctx context.Context, id string, flag models.Flag, value bool) error {
	column, ok := flagColumns[flag]
	if !ok {
		return fmt.Errorf("unknown message flag %q", flag)
	}

	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE messages SET %s = $2 WHERE id = $1`, column),
		id, value)

	if err != nil {
		return fmt.Errorf("failed to set message flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrMessageNotFound
	}
	return nil
}

// MarkMessagesRead sets is_read on every listed message in one statement.
func (s *Store) MarkMessagesRead(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := s.pool.Exec(ctx, `UPDATE messages SET is_read = TRUE WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("failed to mark messages read: %w", err)
	}
	return nil
}

// TrashMissing soft-deletes every non-trashed inbound message of the account
// whose message_id is absent from seen. Outbound shadows never appear in a
// mailbox fetch and are left alone.
func (s *Store) TrashMissing(ctx context.Context, accountID string, seen []string) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE messages
		SET is_trashed = TRUE
		WHERE account_id = $1 AND NOT is_trashed AND NOT is_outbound
		  AND NOT (message_id = ANY($2))
	`, accountID, stringArray(seen))

	if err != nil {
		return 0, fmt.Errorf("failed to trash missing messages: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// UnreadCount counts unread, non-trashed messages. An empty accountID counts
// across all accounts.
func (s *Store) UnreadCount(ctx context.Context, accountID string) (int, error) {
	query := `SELECT COUNT(*) FROM messages WHERE NOT is_read AND NOT is_trashed`
	args := []any{}
	if accountID != "" {
		args = append(args, accountID)
		query += " AND account_id = $1"
	}

	var count int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return count, nil
}

// InsertReply stores a reply row under its parent message.
func (s *Store) InsertReply(ctx context.Context, reply *models.Reply) error {
	attachments, err := json.Marshal(replyAttachments(reply))
	if err != nil {
		return fmt.Errorf("failed to marshal attachments: %w", err)
	}

	var id string
	err = s.pool.QueryRow(ctx, `
		INSERT INTO replies (
			message_id, account_id, to_addresses, cc_addresses,
			subject, body_text, body_html, attachments,
			sent_by, sent_at, send_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`,
		reply.MessageID,
		reply.AccountID,
		stringArray(reply.ToAddresses),
		stringArray(reply.CCAddresses),
		reply.Subject,
		reply.BodyText,
		reply.BodyHTML,
		string(attachments),
		reply.SentBy,
		reply.SentAt,
		reply.SendStatus,
	).Scan(&id)

	if err != nil {
		return fmt.Errorf("failed to insert reply: %w", err)
	}

	reply.ID = id
	return nil
}

// ListRepliesForMessages returns replies for all listed messages in a single
// query, keyed by parent message ID.
func (s *Store) ListRepliesForMessages(ctx context.Context, messageIDs []string) (map[string][]*models.Reply, error) {
	result := make(map[string][]*models.Reply)
	if len(messageIDs) == 0 {
		return result, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, message_id, account_id, to_addresses, cc_addresses,
		       subject, body_text, body_html, attachments,
		       sent_by, sent_at, send_status
		FROM replies
		WHERE message_id = ANY($1)
		ORDER BY sent_at
	`, messageIDs)

	if err != nil {
		return nil, fmt.Errorf("failed to list replies: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var reply models.Reply
		var attachments []byte
		if err := rows.Scan(
			&reply.ID,
			&reply.MessageID,
			&reply.AccountID,
			&reply.ToAddresses,
			&reply.CCAddresses,
			&reply.Subject,
			&reply.BodyText,
			&reply.BodyHTML,
			&attachments,
			&reply.SentBy,
			&reply.SentAt,
			&reply.SendStatus,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reply: %w", err)
		}
		if len(attachments) > 0 {
			if err := json.Unmarshal(attachments, &reply.Attachments); err != nil {
				return nil, fmt.Errorf("failed to unmarshal attachments: %w", err)
			}
		}
		result[reply.MessageID] = append(result[reply.MessageID], &reply)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating replies: %w", err)
	}
	return result, nil
}

// DeleteRepliesForMessage removes all replies of a message.
func (s *Store) DeleteRepliesForMessage(ctx context.Context, messageID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM replies WHERE message_id = $1`, messageID)
	if err != nil {
		return fmt.Errorf("failed to delete replies: %w", err)
	}
	return nil
}

// stringArray normalizes nil slices to empty ones so they land as '{}'
// instead of NULL.
func stringArray(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func messageAttachments(message *models.Message) []models.Attachment {
	if message.Attachments == nil {
		return []models.Attachment{}
	}
	return message.Attachments
}

func replyAttachments(reply *models.Reply) []models.ReplyAttachment {
	if reply.Attachments == nil {
		return []models.ReplyAttachment{}
	}
	return reply.Attachments
}
