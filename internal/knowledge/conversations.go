package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hivetechs-collective/hive-consensus/internal/domain"
)

// ErrNotFound is returned by GetConversation and GetSetting when no row
// matches the given key.
var ErrNotFound = errors.New("knowledge: not found")

// SaveConversation upserts a Conversation's full transcript (spec.md
// §6.6's conversations table), matching IndexOutput's "same content
// writes the same row" idempotency for repeated saves of one
// conversation ID.
func (idx *Indexer) SaveConversation(ctx context.Context, c domain.Conversation) error {
	messagesJSON, err := json.Marshal(c.Messages)
	if err != nil {
		return fmt.Errorf("knowledge: marshal messages: %w", err)
	}
	metadataJSON, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("knowledge: marshal metadata: %w", err)
	}
	updatedAt := c.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err = idx.db.ExecContext(ctx, `
		INSERT INTO conversations (id, title, messages, metadata, summary, theme_cluster, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			messages = excluded.messages,
			metadata = excluded.metadata,
			summary = excluded.summary,
			theme_cluster = excluded.theme_cluster,
			updated_at = excluded.updated_at
	`, c.ID, c.Title, string(messagesJSON), string(metadataJSON), c.Summary, c.ThemeCluster, updatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("knowledge: save conversation: %w", err)
	}
	return nil
}

// GetConversation loads a conversation by ID, returning ErrNotFound if
// no row exists.
func (idx *Indexer) GetConversation(ctx context.Context, id string) (domain.Conversation, error) {
	row := idx.db.QueryRowContext(ctx, `
		SELECT id, title, messages, metadata, summary, theme_cluster, updated_at
		FROM conversations WHERE id = ?
	`, id)

	var (
		c                          domain.Conversation
		messagesJSON, metadataJSON string
		summary, themeCluster      sql.NullString
		updatedAt                  string
	)
	if err := row.Scan(&c.ID, &c.Title, &messagesJSON, &metadataJSON, &summary, &themeCluster, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Conversation{}, ErrNotFound
		}
		return domain.Conversation{}, fmt.Errorf("knowledge: get conversation: %w", err)
	}

	if err := json.Unmarshal([]byte(messagesJSON), &c.Messages); err != nil {
		return domain.Conversation{}, fmt.Errorf("knowledge: unmarshal messages: %w", err)
	}
	if err := json.Unmarshal([]byte(metadataJSON), &c.Metadata); err != nil {
		return domain.Conversation{}, fmt.Errorf("knowledge: unmarshal metadata: %w", err)
	}
	c.Summary = summary.String
	c.ThemeCluster = themeCluster.String
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		c.UpdatedAt = t
	}
	return c, nil
}

// ListConversations returns every conversation, most recently updated
// first.
func (idx *Indexer) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	rows, err := idx.db.QueryContext(ctx, `
		SELECT id, title, messages, metadata, summary, theme_cluster, updated_at
		FROM conversations ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("knowledge: list conversations: %w", err)
	}
	defer rows.Close()

	var out []domain.Conversation
	for rows.Next() {
		var (
			c                          domain.Conversation
			messagesJSON, metadataJSON string
			summary, themeCluster      sql.NullString
			updatedAt                  string
		)
		if err := rows.Scan(&c.ID, &c.Title, &messagesJSON, &metadataJSON, &summary, &themeCluster, &updatedAt); err != nil {
			return nil, fmt.Errorf("knowledge: scan conversation: %w", err)
		}
		if err := json.Unmarshal([]byte(messagesJSON), &c.Messages); err != nil {
			return nil, fmt.Errorf("knowledge: unmarshal messages: %w", err)
		}
		if err := json.Unmarshal([]byte(metadataJSON), &c.Metadata); err != nil {
			return nil, fmt.Errorf("knowledge: unmarshal metadata: %w", err)
		}
		c.Summary = summary.String
		c.ThemeCluster = themeCluster.String
		if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
			c.UpdatedAt = t
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetSetting upserts a key/value pair in the settings table (spec.md
// §6.6), used at minimum for active_profile.
func (idx *Indexer) SetSetting(ctx context.Context, key, value string) error {
	_, err := idx.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("knowledge: set setting %q: %w", key, err)
	}
	return nil
}

// GetSetting reads a previously set key, returning ErrNotFound if it
// was never set.
func (idx *Indexer) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := idx.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("knowledge: get setting %q: %w", key, err)
	}
	return value, nil
}
