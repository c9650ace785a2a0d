package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/bridgeworks/espbridge/internal/core/domain"
	"github.com/bridgeworks/espbridge/internal/core/ports/driven"
	"github.com/bridgeworks/espbridge/internal/crypto"
)

// Ensure ConnectionStore implements the interfaces.
var (
	_ driven.ConnectionStore   = (*ConnectionStore)(nil)
	_ driven.CredentialRotator = (*ConnectionStore)(nil)
)

// ConnectionStore implements driven.ConnectionStore using PostgreSQL.
// Secret columns hold AES-GCM blobs; keys are ordered newest first, the
// first key encrypts, all keys decrypt.
type ConnectionStore struct {
	db   *sql.DB
	keys [][]byte
}

// NewConnectionStore creates a new PostgreSQL-backed connection store.
func NewConnectionStore(db *sql.DB, keys [][]byte) (*ConnectionStore, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: connection store needs at least one key", domain.ErrConfiguration)
	}
	return &ConnectionStore{db: db, keys: keys}, nil
}

func (s *ConnectionStore) encrypt(value string) ([]byte, error) {
	return crypto.EncryptString(value, s.keys[0])
}

func (s *ConnectionStore) decrypt(blob []byte) (string, error) {
	value, err := crypto.DecryptString(blob, s.keys)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrDecryptionFailed, err)
	}
	return value, nil
}

// UpsertOAuth inserts or replaces the (accountKey, provider) OAuth row.
// installed_at is written on first insert only; token refreshes keep the
// original install time.
func (s *ConnectionStore) UpsertOAuth(ctx context.Context, conn *domain.OAuthConnection) error {
	accessBlob, err := s.encrypt(conn.AccessToken)
	if err != nil {
		return fmt.Errorf("encrypt access token: %w", err)
	}
	refreshBlob, err := s.encrypt(conn.RefreshToken)
	if err != nil {
		return fmt.Errorf("encrypt refresh token: %w", err)
	}

	installedAt := conn.InstalledAt
	if installedAt.IsZero() {
		installedAt = time.Now()
	}

	query := `
		INSERT INTO oauth_connections (
			account_key, provider, access_token_enc, refresh_token_enc,
			token_expires_at, scopes, location_id, location_name,
			installed_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (account_key, provider) DO UPDATE SET
			access_token_enc = EXCLUDED.access_token_enc,
			refresh_token_enc = EXCLUDED.refresh_token_enc,
			token_expires_at = EXCLUDED.token_expires_at,
			scopes = EXCLUDED.scopes,
			location_id = EXCLUDED.location_id,
			location_name = EXCLUDED.location_name,
			updated_at = NOW()
	`

	_, err = s.db.ExecContext(ctx, query,
		conn.AccountKey,
		conn.Provider,
		accessBlob,
		refreshBlob,
		nullTimePtr(conn.TokenExpiresAt),
		pq.Array(conn.Scopes),
		nullString(conn.LocationID),
		nullString(conn.LocationName),
		installedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert oauth connection: %w", err)
	}
	return nil
}

// GetOAuth returns the row with decrypted tokens, or nil, nil when absent.
// A row whose ciphertext no longer decrypts comes back with empty token
// fields rather than an error, same as ListOAuth; callers treat a blank
// access token as a connection needing reauthorization.
func (s *ConnectionStore) GetOAuth(ctx context.Context, accountKey string, provider domain.Provider) (*domain.OAuthConnection, error) {
	query := `
		SELECT account_key, provider, access_token_enc, refresh_token_enc,
		       token_expires_at, scopes, location_id, location_name,
		       installed_at, updated_at
		FROM oauth_connections
		WHERE account_key = $1 AND provider = $2
	`

	scanned, err := scanOAuth(s.db.QueryRowContext(ctx, query, accountKey, provider))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get oauth connection: %w", err)
	}
	return s.finishOAuth(scanned), nil
}

// ListOAuth returns matching rows, newest install first. Rows whose
// ciphertext no longer decrypts are returned with empty token fields: the
// listing callers (status resolution, install-order scans) only need
// metadata, and the re-encryption job reports such rows separately.
func (s *ConnectionStore) ListOAuth(ctx context.Context, filter driven.ConnectionFilter) ([]*domain.OAuthConnection, error) {
	query := `
		SELECT account_key, provider, access_token_enc, refresh_token_enc,
		       token_expires_at, scopes, location_id, location_name,
		       installed_at, updated_at
		FROM oauth_connections
		WHERE ($1 = '' OR provider = $1)
		  AND (cardinality($2::text[]) = 0 OR account_key = ANY($2))
		ORDER BY installed_at DESC NULLS LAST
	`

	rows, err := s.db.QueryContext(ctx, query, string(filter.Provider), pq.Array(filter.AccountKeys))
	if err != nil {
		return nil, fmt.Errorf("list oauth connections: %w", err)
	}
	defer rows.Close()

	var out []*domain.OAuthConnection
	for rows.Next() {
		scanned, err := scanOAuth(rows)
		if err != nil {
			return nil, fmt.Errorf("scan oauth connection: %w", err)
		}
		out = append(out, s.finishOAuth(scanned))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list oauth connections: %w", err)
	}
	return out, nil
}

// RemoveOAuth deletes the row, reporting whether it existed.
func (s *ConnectionStore) RemoveOAuth(ctx context.Context, accountKey string, provider domain.Provider) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM oauth_connections WHERE account_key = $1 AND provider = $2`,
		accountKey, provider,
	)
	if err != nil {
		return false, fmt.Errorf("remove oauth connection: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// UpsertAPIKey inserts or replaces the (accountKey, provider) API-key row.
func (s *ConnectionStore) UpsertAPIKey(ctx context.Context, conn *domain.APIKeyConnection) error {
	keyBlob, err := s.encrypt(conn.APIKey)
	if err != nil {
		return fmt.Errorf("encrypt api key: %w", err)
	}

	installedAt := conn.InstalledAt
	if installedAt.IsZero() {
		installedAt = time.Now()
	}

	query := `
		INSERT INTO api_key_connections (
			account_key, provider, api_key_enc,
			external_account_id, external_account_name,
			installed_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (account_key, provider) DO UPDATE SET
			api_key_enc = EXCLUDED.api_key_enc,
			external_account_id = EXCLUDED.external_account_id,
			external_account_name = EXCLUDED.external_account_name,
			updated_at = NOW()
	`

	_, err = s.db.ExecContext(ctx, query,
		conn.AccountKey,
		conn.Provider,
		keyBlob,
		nullString(conn.ExternalAccountID),
		nullString(conn.ExternalAccountName),
		installedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert api key connection: %w", err)
	}
	return nil
}

// GetAPIKey returns the row with the decrypted key, or nil, nil when absent.
// An undecryptable row keeps an empty key field, as in GetOAuth.
func (s *ConnectionStore) GetAPIKey(ctx context.Context, accountKey string, provider domain.Provider) (*domain.APIKeyConnection, error) {
	query := `
		SELECT account_key, provider, api_key_enc,
		       external_account_id, external_account_name,
		       installed_at, updated_at
		FROM api_key_connections
		WHERE account_key = $1 AND provider = $2
	`

	scanned, err := scanAPIKey(s.db.QueryRowContext(ctx, query, accountKey, provider))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get api key connection: %w", err)
	}
	return s.finishAPIKey(scanned), nil
}

// ListAPIKeys returns matching rows, newest install first. Undecryptable
// rows keep an empty key field, as in ListOAuth.
func (s *ConnectionStore) ListAPIKeys(ctx context.Context, filter driven.ConnectionFilter) ([]*domain.APIKeyConnection, error) {
	query := `
		SELECT account_key, provider, api_key_enc,
		       external_account_id, external_account_name,
		       installed_at, updated_at
		FROM api_key_connections
		WHERE ($1 = '' OR provider = $1)
		  AND (cardinality($2::text[]) = 0 OR account_key = ANY($2))
		ORDER BY installed_at DESC NULLS LAST
	`

	rows, err := s.db.QueryContext(ctx, query, string(filter.Provider), pq.Array(filter.AccountKeys))
	if err != nil {
		return nil, fmt.Errorf("list api key connections: %w", err)
	}
	defer rows.Close()

	var out []*domain.APIKeyConnection
	for rows.Next() {
		scanned, err := scanAPIKey(rows)
		if err != nil {
			return nil, fmt.Errorf("scan api key connection: %w", err)
		}
		out = append(out, s.finishAPIKey(scanned))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list api key connections: %w", err)
	}
	return out, nil
}

// RemoveAPIKey deletes the row, reporting whether it existed.
func (s *ConnectionStore) RemoveAPIKey(ctx context.Context, accountKey string, provider domain.Provider) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM api_key_connections WHERE account_key = $1 AND provider = $2`,
		accountKey, provider,
	)
	if err != nil {
		return false, fmt.Errorf("remove api key connection: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// UpsertAgency inserts or replaces the provider's org-level grant.
func (s *ConnectionStore) UpsertAgency(ctx context.Context, conn *domain.AgencyOAuthConnection) error {
	accessBlob, err := s.encrypt(conn.AccessToken)
	if err != nil {
		return fmt.Errorf("encrypt access token: %w", err)
	}
	refreshBlob, err := s.encrypt(conn.RefreshToken)
	if err != nil {
		return fmt.Errorf("encrypt refresh token: %w", err)
	}

	installedAt := conn.InstalledAt
	if installedAt.IsZero() {
		installedAt = time.Now()
	}

	query := `
		INSERT INTO agency_oauth_connections (
			provider, access_token_enc, refresh_token_enc,
			token_expires_at, scopes, company_id, installed_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (provider) DO UPDATE SET
			access_token_enc = EXCLUDED.access_token_enc,
			refresh_token_enc = EXCLUDED.refresh_token_enc,
			token_expires_at = EXCLUDED.token_expires_at,
			scopes = EXCLUDED.scopes,
			company_id = EXCLUDED.company_id,
			updated_at = NOW()
	`

	_, err = s.db.ExecContext(ctx, query,
		conn.Provider,
		accessBlob,
		refreshBlob,
		nullTimePtr(conn.TokenExpiresAt),
		pq.Array(conn.Scopes),
		nullString(conn.CompanyID),
		installedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert agency connection: %w", err)
	}
	return nil
}

// GetAgency returns the org-level grant, or nil, nil when absent.
func (s *ConnectionStore) GetAgency(ctx context.Context, provider domain.Provider) (*domain.AgencyOAuthConnection, error) {
	query := `
		SELECT provider, access_token_enc, refresh_token_enc,
		       token_expires_at, scopes, company_id, installed_at, updated_at
		FROM agency_oauth_connections
		WHERE provider = $1
	`

	var (
		conn        domain.AgencyOAuthConnection
		accessBlob  []byte
		refreshBlob []byte
		expiresAt   sql.NullTime
		installedAt sql.NullTime
		scopes      []string
		companyID   sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, provider).Scan(
		&conn.Provider,
		&accessBlob,
		&refreshBlob,
		&expiresAt,
		pq.Array(&scopes),
		&companyID,
		&installedAt,
		&conn.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get agency connection: %w", err)
	}

	conn.Scopes = scopes
	conn.CompanyID = companyID.String
	if expiresAt.Valid {
		t := expiresAt.Time
		conn.TokenExpiresAt = &t
	}
	if installedAt.Valid {
		conn.InstalledAt = installedAt.Time
	}

	if conn.AccessToken, err = s.decrypt(accessBlob); err != nil {
		return nil, err
	}
	if conn.RefreshToken, err = s.decrypt(refreshBlob); err != nil {
		return nil, err
	}
	return &conn, nil
}

// RemoveAgency deletes the org-level grant, reporting whether it existed.
func (s *ConnectionStore) RemoveAgency(ctx context.Context, provider domain.Provider) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM agency_oauth_connections WHERE provider = $1`,
		provider,
	)
	if err != nil {
		return false, fmt.Errorf("remove agency connection: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// scanner abstracts sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

type scannedOAuth struct {
	conn        *domain.OAuthConnection
	accessBlob  []byte
	refreshBlob []byte
}

func scanOAuth(row scanner) (*scannedOAuth, error) {
	var (
		conn         domain.OAuthConnection
		expiresAt    sql.NullTime
		installedAt  sql.NullTime
		scopes       []string
		locationID   sql.NullString
		locationName sql.NullString
		accessBlob   []byte
		refreshBlob  []byte
	)
	err := row.Scan(
		&conn.AccountKey,
		&conn.Provider,
		&accessBlob,
		&refreshBlob,
		&expiresAt,
		pq.Array(&scopes),
		&locationID,
		&locationName,
		&installedAt,
		&conn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	conn.Scopes = scopes
	conn.LocationID = locationID.String
	conn.LocationName = locationName.String
	if expiresAt.Valid {
		t := expiresAt.Time
		conn.TokenExpiresAt = &t
	}
	if installedAt.Valid {
		conn.InstalledAt = installedAt.Time
	}
	return &scannedOAuth{conn: &conn, accessBlob: accessBlob, refreshBlob: refreshBlob}, nil
}

// finishOAuth decrypts the token blobs best effort. A blob no key opens
// leaves its field empty; the metadata still describes the connection and
// the re-encryption job reports such rows separately.
func (s *ConnectionStore) finishOAuth(scanned *scannedOAuth) *domain.OAuthConnection {
	if access, err := s.decrypt(scanned.accessBlob); err == nil {
		scanned.conn.AccessToken = access
	}
	if refresh, err := s.decrypt(scanned.refreshBlob); err == nil {
		scanned.conn.RefreshToken = refresh
	}
	return scanned.conn
}

type scannedAPIKey struct {
	conn    *domain.APIKeyConnection
	keyBlob []byte
}

func scanAPIKey(row scanner) (*scannedAPIKey, error) {
	var (
		conn        domain.APIKeyConnection
		keyBlob     []byte
		installedAt sql.NullTime
		extID       sql.NullString
		extName     sql.NullString
	)
	err := row.Scan(
		&conn.AccountKey,
		&conn.Provider,
		&keyBlob,
		&extID,
		&extName,
		&installedAt,
		&conn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	conn.ExternalAccountID = extID.String
	conn.ExternalAccountName = extName.String
	if installedAt.Valid {
		conn.InstalledAt = installedAt.Time
	}
	return &scannedAPIKey{conn: &conn, keyBlob: keyBlob}, nil
}

// finishAPIKey decrypts the key blob best effort, as finishOAuth does.
func (s *ConnectionStore) finishAPIKey(scanned *scannedAPIKey) *domain.APIKeyConnection {
	if apiKey, err := s.decrypt(scanned.keyBlob); err == nil {
		scanned.conn.APIKey = apiKey
	}
	return scanned.conn
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
