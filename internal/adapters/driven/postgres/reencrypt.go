package postgres

import (
	"context"
	"fmt"

	"github.com/bridgeworks/espbridge/internal/core/ports/driven"
	"github.com/bridgeworks/espbridge/internal/crypto"
)

// blobColumn identifies one encrypted column of one credential table.
type blobColumn struct {
	table  string
	column string
	// keyColumns are the primary key columns, in order.
	keyColumns []string
}

var oauthBlobColumns = []blobColumn{
	{"oauth_connections", "access_token_enc", []string{"account_key", "provider"}},
	{"oauth_connections", "refresh_token_enc", []string{"account_key", "provider"}},
}

var apiKeyBlobColumns = []blobColumn{
	{"api_key_connections", "api_key_enc", []string{"account_key", "provider"}},
}

var agencyBlobColumns = []blobColumn{
	{"agency_oauth_connections", "access_token_enc", []string{"provider"}},
	{"agency_oauth_connections", "refresh_token_enc", []string{"provider"}},
}

// ReencryptOAuth re-encrypts every OAuth connection row under the newest key.
func (s *ConnectionStore) ReencryptOAuth(ctx context.Context, dryRun bool) (driven.RotationResult, error) {
	return s.reencryptColumns(ctx, oauthBlobColumns, dryRun)
}

// ReencryptAPIKeys re-encrypts every API-key connection row under the newest key.
func (s *ConnectionStore) ReencryptAPIKeys(ctx context.Context, dryRun bool) (driven.RotationResult, error) {
	return s.reencryptColumns(ctx, apiKeyBlobColumns, dryRun)
}

// ReencryptAgency re-encrypts every agency grant row under the newest key.
func (s *ConnectionStore) ReencryptAgency(ctx context.Context, dryRun bool) (driven.RotationResult, error) {
	return s.reencryptColumns(ctx, agencyBlobColumns, dryRun)
}

// reencryptColumns walks each encrypted column row by row. A row counts as
// updated only when every one of its columns round-trips; one bad column
// fails the row, never the batch. Concurrent normal traffic may rewrite a
// row mid-job; last writer wins, both writers hold a valid key.
func (s *ConnectionStore) reencryptColumns(ctx context.Context, columns []blobColumn, dryRun bool) (driven.RotationResult, error) {
	var result driven.RotationResult

	// Rows are keyed by primary key so per-column outcomes can be merged.
	failed := make(map[string]bool)
	visited := make(map[string]bool)

	for _, col := range columns {
		if err := s.reencryptColumn(ctx, col, dryRun, visited, failed); err != nil {
			return result, err
		}
	}

	for key := range visited {
		if failed[key] {
			result.Failed++
		} else {
			result.Updated++
		}
	}
	return result, nil
}

func (s *ConnectionStore) reencryptColumn(ctx context.Context, col blobColumn, dryRun bool, visited, failed map[string]bool) error {
	selectSQL := fmt.Sprintf("SELECT %s, %s FROM %s",
		joinColumns(col.keyColumns), col.column, col.table)

	rows, err := s.db.QueryContext(ctx, selectSQL)
	if err != nil {
		return fmt.Errorf("scan %s.%s: %w", col.table, col.column, err)
	}
	defer rows.Close()

	var work []pendingRow

	for rows.Next() {
		strs := make([]string, len(col.keyColumns))
		dest := make([]any, 0, len(col.keyColumns)+1)
		for i := range strs {
			dest = append(dest, &strs[i])
		}
		var blob []byte
		dest = append(dest, &blob)

		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("scan %s.%s: %w", col.table, col.column, err)
		}

		kv := make([]any, len(strs))
		for i, v := range strs {
			kv[i] = v
		}
		work = append(work, pendingRow{keyValues: kv, blob: blob})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("scan %s.%s: %w", col.table, col.column, err)
	}

	updateSQL := fmt.Sprintf("UPDATE %s SET %s = $1, updated_at = NOW() WHERE %s",
		col.table, col.column, whereClause(col.keyColumns, 2))

	rotateRows(col.table, work, s.keys, dryRun, visited, failed,
		func(keyValues []any, fresh []byte) error {
			args := append([]any{fresh}, keyValues...)
			_, err := s.db.ExecContext(ctx, updateSQL, args...)
			return err
		})
	return nil
}

// pendingRow is one encrypted column value awaiting rotation.
type pendingRow struct {
	keyValues []any
	blob      []byte
}

// rotateRows round-trips each pending blob through the key set, merging
// per-row outcomes into visited and failed. write persists one refreshed
// blob; it is never called in dry-run mode.
func rotateRows(table string, work []pendingRow, keys [][]byte, dryRun bool, visited, failed map[string]bool, write func(keyValues []any, blob []byte) error) {
	for _, p := range work {
		rowKey := rowKeyFor(table, p.keyValues)
		visited[rowKey] = true

		plaintext, err := crypto.Decrypt(p.blob, keys)
		if err != nil {
			failed[rowKey] = true
			continue
		}
		fresh, err := crypto.Encrypt(plaintext, keys[0])
		if err != nil {
			failed[rowKey] = true
			continue
		}
		if dryRun {
			continue
		}
		if err := write(p.keyValues, fresh); err != nil {
			failed[rowKey] = true
		}
	}
}

// rowKeyFor identifies a row across the columns of one table. Key parts are
// quoted individually so composite keys cannot collide on concatenation.
func rowKeyFor(table string, keyValues []any) string {
	key := table
	for _, v := range keyValues {
		key += fmt.Sprintf("|%q", fmt.Sprint(v))
	}
	return key
}

func joinColumns(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}

// whereClause builds "a = $2 AND b = $3" starting at the given placeholder.
func whereClause(cols []string, start int) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += " AND "
		}
		out += fmt.Sprintf("%s = $%d", c, start+i)
	}
	return out
}
