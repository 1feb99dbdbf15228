// Package notarytest holds a conformance suite every notary.Backend
// implementation that can run in-process is expected to pass.
package notarytest

import (
	"context"
	"strings"
	"testing"
	"time"

	"xdao.co/docnotary/digest"
	"xdao.co/docnotary/model"
	"xdao.co/docnotary/notary"
)

// NewBackend constructs a fresh, empty backend for a test.
// The returned backend MUST be isolated from other tests.
type NewBackend func(t *testing.T) notary.Backend

// RunBackendConformance exercises the contract semantics the front-end
// relies on.
func RunBackendConformance(t *testing.T, newBackend NewBackend) {
	t.Helper()

	t.Run("AccountsAvailable", func(t *testing.T) {
		b := newBackend(t)
		accts, err := b.Accounts(context.Background())
		if err != nil {
			t.Fatalf("Accounts: %v", err)
		}
		if len(accts) == 0 {
			t.Fatalf("Accounts returned none")
		}
	})

	t.Run("UnknownHashVerifiesFalse", func(t *testing.T) {
		c := notary.NewClient(newBackend(t))
		rec, err := c.Verify(context.Background(), digest.Sum([]byte("never submitted")))
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if rec != (model.Record{}) {
			t.Fatalf("Verify unknown: got %+v want zero record", rec)
		}
	})

	t.Run("NotarizeThenVerify", func(t *testing.T) {
		b := newBackend(t)
		caller := firstAccount(t, b)
		c := notary.NewClient(b)
		hash := digest.Sum([]byte("hello"))

		before := time.Now().Add(-5 * time.Second).Unix()
		res, err := c.Notarize(context.Background(), hash, caller)
		if err != nil {
			t.Fatalf("Notarize: %v", err)
		}
		if !res.Submitted {
			t.Fatalf("Notarize on fresh hash was not submitted: %+v", res)
		}
		after := time.Now().Add(5 * time.Second).Unix()

		rec, err := c.Verify(context.Background(), hash)
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if !rec.Notarized {
			t.Fatalf("Verify after Notarize: not notarized")
		}
		if !sameAccount(rec.Owner, caller) {
			t.Fatalf("owner = %s, want %s", rec.Owner, caller)
		}
		if rec.Timestamp < before || rec.Timestamp > after {
			t.Fatalf("timestamp %d outside [%d, %d]", rec.Timestamp, before, after)
		}
	})

	t.Run("SecondNotarizePreservesOriginal", func(t *testing.T) {
		b := newBackend(t)
		accts, err := b.Accounts(context.Background())
		if err != nil {
			t.Fatalf("Accounts: %v", err)
		}
		if len(accts) < 2 {
			t.Skip("backend exposes a single account")
		}
		c := notary.NewClient(b)
		hash := digest.Sum([]byte("first writer wins"))

		if _, err := c.Notarize(context.Background(), hash, accts[0]); err != nil {
			t.Fatalf("Notarize(A): %v", err)
		}
		orig, err := c.Verify(context.Background(), hash)
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}

		res, err := c.Notarize(context.Background(), hash, accts[1])
		if err != nil {
			t.Fatalf("Notarize(B): %v", err)
		}
		if res.Submitted {
			t.Fatalf("second Notarize was submitted")
		}
		if res.Existing != orig {
			t.Fatalf("Existing = %+v, want %+v", res.Existing, orig)
		}

		again, err := c.Verify(context.Background(), hash)
		if err != nil {
			t.Fatalf("Verify again: %v", err)
		}
		if again != orig {
			t.Fatalf("record changed: %+v -> %+v", orig, again)
		}
	})

	t.Run("DetailsUnknownIsLookupError", func(t *testing.T) {
		c := notary.NewClient(newBackend(t))
		for _, h := range []string{string(digest.Sum([]byte("unknown"))), "not-a-hash", ""} {
			_, err := c.GetDetails(context.Background(), h)
			if !model.IsKind(err, model.KindLookup) {
				t.Fatalf("GetDetails(%q): got %v want KindLookup", h, err)
			}
		}
	})

	t.Run("DetailsAfterNotarize", func(t *testing.T) {
		b := newBackend(t)
		caller := firstAccount(t, b)
		c := notary.NewClient(b)
		hash := digest.Sum([]byte("details"))
		if _, err := c.Notarize(context.Background(), hash, caller); err != nil {
			t.Fatalf("Notarize: %v", err)
		}
		rec, err := c.GetDetails(context.Background(), string(hash))
		if err != nil {
			t.Fatalf("GetDetails: %v", err)
		}
		if !rec.Notarized || !sameAccount(rec.Owner, caller) || rec.Timestamp == 0 {
			t.Fatalf("GetDetails: unexpected record %+v", rec)
		}
	})

	t.Run("InsufficientGasIsNotarizationError", func(t *testing.T) {
		b := newBackend(t)
		caller := firstAccount(t, b)
		c := notary.NewClient(b, notary.WithGasLimit(1))
		hash := digest.Sum([]byte("starved"))
		_, err := c.Notarize(context.Background(), hash, caller)
		if !model.IsKind(err, model.KindNotarization) {
			t.Fatalf("Notarize with gas=1: got %v want KindNotarization", err)
		}
		if err.Error() == "" {
			t.Fatalf("expected remote message")
		}
		rec, err := c.Verify(context.Background(), hash)
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if rec.Notarized {
			t.Fatalf("rejected notarization left a record")
		}
	})
}

func firstAccount(t *testing.T, b notary.Provider) model.Account {
	t.Helper()
	accts, err := b.Accounts(context.Background())
	if err != nil {
		t.Fatalf("Accounts: %v", err)
	}
	if len(accts) == 0 {
		t.Fatalf("no accounts")
	}
	return accts[0]
}

func sameAccount(a, b model.Account) bool {
	return strings.EqualFold(string(a), string(b))
}
