package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/sparklive/rustmailer/internal/apperr"
	"github.com/sparklive/rustmailer/internal/model"
)

// MetaStore is the metadata logical store (accounts, hooks, OAuth2 configs,
// tokens, proxies, mailboxes, envelopes). Grounded on the same
// single-writer SQLite pattern as TaskStore.
type MetaStore struct {
	s *Store
}

func NewMetaStore(s *Store) *MetaStore { return &MetaStore{s: s} }

// --- Accounts ---

func (m *MetaStore) PutAccount(a *model.Account) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	_, err = m.s.DB().Exec(
		`INSERT INTO accounts (id, email, kind, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET email = excluded.email, kind = excluded.kind, data = excluded.data, updated_at = excluded.updated_at`,
		a.ID, a.Email, a.Kind, string(data), a.CreatedAt.Unix(), a.UpdatedAt.Unix(),
	)
	return err
}

func (m *MetaStore) GetAccount(id uint64) (*model.Account, error) {
	var data string
	err := m.s.DB().QueryRow("SELECT data FROM accounts WHERE id = ?", id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.ResourceNotFound, "account not found")
	}
	if err != nil {
		return nil, err
	}
	var a model.Account
	if err := json.Unmarshal([]byte(data), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (m *MetaStore) UpdateDSNCapable(id uint64, capable bool) error {
	a, err := m.GetAccount(id)
	if err != nil {
		return err
	}
	if capable {
		a.DSNCapable = model.DSNYes
	} else {
		a.DSNCapable = model.DSNNo
	}
	a.UpdatedAt = time.Now()
	return m.PutAccount(a)
}

func (m *MetaStore) ListAccounts() ([]*model.Account, error) {
	rows, err := m.s.DB().Query("SELECT data FROM accounts ORDER BY id ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Account
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var a model.Account
		if err := json.Unmarshal([]byte(data), &a); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// --- OAuth2 ---

func (m *MetaStore) PutOAuth2Token(t *model.OAuth2Token) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, err = m.s.DB().Exec(
		`INSERT INTO oauth2_tokens (account_id, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(account_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		t.AccountID, string(data), t.UpdatedAt.Unix(),
	)
	return err
}

func (m *MetaStore) GetOAuth2Token(accountID uint64) (*model.OAuth2Token, error) {
	var data string
	err := m.s.DB().QueryRow("SELECT data FROM oauth2_tokens WHERE account_id = ?", accountID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.MissingRefreshToken, "no oauth2 token stored for account")
	}
	if err != nil {
		return nil, err
	}
	var t model.OAuth2Token
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// --- OAuth2 client configs ---

func (m *MetaStore) PutOAuth2Config(c *model.OAuth2Config) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = m.s.DB().Exec(
		`INSERT INTO oauth2_configs (id, data, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data`,
		c.ID, string(data), c.CreatedAt.Unix(),
	)
	return err
}

func (m *MetaStore) GetOAuth2Config(id uint64) (*model.OAuth2Config, error) {
	var data string
	err := m.s.DB().QueryRow("SELECT data FROM oauth2_configs WHERE id = ?", id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.MissingConfiguration, "oauth2 client config not found")
	}
	if err != nil {
		return nil, err
	}
	var c model.OAuth2Config
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// --- Proxies ---

func (m *MetaStore) GetProxy(id uint64) (*model.Proxy, error) {
	var url string
	err := m.s.DB().QueryRow("SELECT url FROM proxies WHERE id = ?", id).Scan(&url)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.ResourceNotFound, "proxy not found")
	}
	if err != nil {
		return nil, err
	}
	return &model.Proxy{ID: id, URL: url}, nil
}

// --- Event hooks ---

func (m *MetaStore) PutHook(h *model.EventHook) error {
	data, err := json.Marshal(h)
	if err != nil {
		return err
	}
	_, err = m.s.DB().Exec(
		`INSERT INTO event_hooks (id, account_id, enabled, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET account_id = excluded.account_id, enabled = excluded.enabled,
			data = excluded.data, updated_at = excluded.updated_at`,
		h.ID, h.AccountID, h.Enabled, string(data), h.CreatedAt.Unix(), h.UpdatedAt.Unix(),
	)
	return err
}

func (m *MetaStore) GetHook(id uint64) (*model.EventHook, error) {
	var data string
	err := m.s.DB().QueryRow("SELECT data FROM event_hooks WHERE id = ?", id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.ResourceNotFound, "event hook not found")
	}
	if err != nil {
		return nil, err
	}
	var h model.EventHook
	if err := json.Unmarshal([]byte(data), &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// HookForAccount returns the one per-account hook, if any.
func (m *MetaStore) HookForAccount(accountID uint64) (*model.EventHook, error) {
	var data string
	err := m.s.DB().QueryRow("SELECT data FROM event_hooks WHERE account_id = ?", accountID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var h model.EventHook
	if err := json.Unmarshal([]byte(data), &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// GlobalHooks returns every hook with account_id IS NULL.
func (m *MetaStore) GlobalHooks() ([]*model.EventHook, error) {
	rows, err := m.s.DB().Query("SELECT data FROM event_hooks WHERE account_id IS NULL")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.EventHook
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var h model.EventHook
		if err := json.Unmarshal([]byte(data), &h); err != nil {
			return nil, err
		}
		out = append(out, &h)
	}
	return out, rows.Err()
}

func (m *MetaStore) IncrementHookCounter(id uint64, field string) error {
	h, err := m.GetHook(id)
	if err != nil {
		return err
	}
	switch field {
	case "call":
		h.CallCount++
	case "success":
		h.SuccessCount++
	case "failure":
		h.FailureCount++
	}
	h.UpdatedAt = time.Now()
	return m.PutHook(h)
}

func (m *MetaStore) SetHookLastError(id uint64, msg string) error {
	h, err := m.GetHook(id)
	if err != nil {
		return err
	}
	h.LastError = &msg
	h.UpdatedAt = time.Now()
	return m.PutHook(h)
}

// --- Access tokens ---

func (m *MetaStore) PutToken(t *model.AccessToken) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, err = m.s.DB().Exec(
		`INSERT INTO access_tokens (token, owner, data, created_at, last_used_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(token) DO UPDATE SET data = excluded.data, last_used_at = excluded.last_used_at`,
		t.Token, t.Owner, string(data), t.CreatedAt.Unix(), nullTime(t.LastUsedAt),
	)
	return err
}

func (m *MetaStore) GetToken(token string) (*model.AccessToken, error) {
	var data string
	err := m.s.DB().QueryRow("SELECT data FROM access_tokens WHERE token = ?", token).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.PermissionDenied, "unknown access token")
	}
	if err != nil {
		return nil, err
	}
	var t model.AccessToken
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (m *MetaStore) TouchToken(token string, at time.Time) error {
	_, err := m.s.DB().Exec("UPDATE access_tokens SET last_used_at = ? WHERE token = ?", at.Unix(), token)
	return err
}

// --- Mailboxes & envelopes ---

func (m *MetaStore) PutMailbox(mb *model.Mailbox) error {
	data, err := json.Marshal(mb)
	if err != nil {
		return err
	}
	_, err = m.s.DB().Exec(
		`INSERT INTO mailboxes (id, account_id, name, data) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data`,
		mb.ID, mb.AccountID, mb.Name, string(data),
	)
	return err
}

func (m *MetaStore) GetMailbox(id uint64) (*model.Mailbox, error) {
	var data string
	err := m.s.DB().QueryRow("SELECT data FROM mailboxes WHERE id = ?", id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.MailBoxNotCached, "mailbox not cached")
	}
	if err != nil {
		return nil, err
	}
	var mb model.Mailbox
	if err := json.Unmarshal([]byte(data), &mb); err != nil {
		return nil, err
	}
	return &mb, nil
}

func (m *MetaStore) PutEnvelope(e *model.Envelope) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = m.s.DB().Exec(
		`INSERT INTO envelopes (account_id, mailbox_id, uid, data) VALUES (?, ?, ?, ?)
		 ON CONFLICT(account_id, mailbox_id, uid) DO UPDATE SET data = excluded.data`,
		e.AccountID, e.MailboxID, e.UID, string(data),
	)
	return err
}

func (m *MetaStore) GetEnvelope(accountID, mailboxID uint64, uid string) (*model.Envelope, error) {
	var data string
	err := m.s.DB().QueryRow("SELECT data FROM envelopes WHERE account_id = ? AND mailbox_id = ? AND uid = ?",
		accountID, mailboxID, uid).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.ResourceNotFound, "envelope not found")
	}
	if err != nil {
		return nil, err
	}
	var e model.Envelope
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (m *MetaStore) DeleteEnvelope(accountID, mailboxID uint64, uid string) error {
	_, err := m.s.DB().Exec("DELETE FROM envelopes WHERE account_id = ? AND mailbox_id = ? AND uid = ?", accountID, mailboxID, uid)
	return err
}

// --- Templates ---

func (m *MetaStore) PutTemplate(t *model.Template) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, err = m.s.DB().Exec(
		`INSERT INTO templates (id, data, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		t.ID, string(data), t.CreatedAt.Unix(), t.UpdatedAt.Unix(),
	)
	return err
}

func (m *MetaStore) GetTemplate(id uint64) (*model.Template, error) {
	var data string
	err := m.s.DB().QueryRow("SELECT data FROM templates WHERE id = ?", id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.ResourceNotFound, "template not found")
	}
	if err != nil {
		return nil, err
	}
	var t model.Template
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (m *MetaStore) ListTemplates() ([]*model.Template, error) {
	rows, err := m.s.DB().Query("SELECT data FROM templates ORDER BY id ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Template
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var t model.Template
		if err := json.Unmarshal([]byte(data), &t); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
