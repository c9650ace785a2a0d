package postgres

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/bridgeworks/espbridge/internal/crypto"
)

// testKeys returns a two-key set, newest first.
func testKeys(t *testing.T) [][]byte {
	t.Helper()
	newest := bytes.Repeat([]byte{0x02}, 32)
	old := bytes.Repeat([]byte{0x01}, 32)
	return [][]byte{newest, old}
}

func encryptUnder(t *testing.T, key []byte, plaintext string) []byte {
	t.Helper()
	blob, err := crypto.Encrypt([]byte(plaintext), key)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	return blob
}

func TestRotateRowsDryRunCountsWithoutWriting(t *testing.T) {
	keys := testKeys(t)

	var work []pendingRow
	for i := 0; i < 8; i++ {
		work = append(work, pendingRow{
			keyValues: []any{fmt.Sprintf("acct-%d", i), "ghl"},
			blob:      encryptUnder(t, keys[1], "token"),
		})
	}
	// Two rows no configured key opens: one malformed blob, one encrypted
	// under a key that was retired from the set.
	retired := bytes.Repeat([]byte{0x07}, 32)
	work = append(work,
		pendingRow{keyValues: []any{"acct-8", "ghl"}, blob: []byte("not a blob")},
		pendingRow{keyValues: []any{"acct-9", "ghl"}, blob: encryptUnder(t, retired, "token")},
	)

	visited := map[string]bool{}
	failed := map[string]bool{}
	writes := 0
	rotateRows("oauth_connections", work, keys, true, visited, failed,
		func([]any, []byte) error {
			writes++
			return nil
		})

	if len(visited) != 10 {
		t.Errorf("visited %d rows, want 10", len(visited))
	}
	if len(failed) != 2 {
		t.Errorf("failed %d rows, want 2", len(failed))
	}
	if writes != 0 {
		t.Errorf("dry run issued %d writes, want 0", writes)
	}
}

func TestRotateRowsRewritesUnderNewestKey(t *testing.T) {
	keys := testKeys(t)
	work := []pendingRow{{
		keyValues: []any{"acct-1", "ghl"},
		blob:      encryptUnder(t, keys[1], "tok-1"),
	}}

	var written [][]byte
	visited := map[string]bool{}
	failed := map[string]bool{}
	rotateRows("oauth_connections", work, keys, false, visited, failed,
		func(_ []any, blob []byte) error {
			written = append(written, blob)
			return nil
		})

	if len(failed) != 0 {
		t.Fatalf("failed %d rows, want 0", len(failed))
	}
	if len(written) != 1 {
		t.Fatalf("wrote %d blobs, want 1", len(written))
	}

	plaintext, err := crypto.Decrypt(written[0], [][]byte{keys[0]})
	if err != nil {
		t.Fatalf("fresh blob does not open under the newest key: %v", err)
	}
	if string(plaintext) != "tok-1" {
		t.Errorf("plaintext = %q, want tok-1", plaintext)
	}
	if _, err := crypto.Decrypt(written[0], [][]byte{keys[1]}); err == nil {
		t.Error("fresh blob still opens under the old key")
	}
}

func TestRotateRowsWriteFailureCountsRow(t *testing.T) {
	keys := testKeys(t)
	work := []pendingRow{{
		keyValues: []any{"acct-1", "ghl"},
		blob:      encryptUnder(t, keys[0], "tok-1"),
	}}

	visited := map[string]bool{}
	failed := map[string]bool{}
	rotateRows("oauth_connections", work, keys, false, visited, failed,
		func([]any, []byte) error {
			return fmt.Errorf("connection reset")
		})

	if len(failed) != 1 {
		t.Errorf("failed %d rows, want 1", len(failed))
	}
}

func TestRowKeyForCompositeKeys(t *testing.T) {
	a := rowKeyFor("oauth_connections", []any{"ab", "c"})
	b := rowKeyFor("oauth_connections", []any{"a", "bc"})
	if a == b {
		t.Errorf("distinct composite keys collide: %q", a)
	}
}
