package controller

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"xdao.co/docnotary/internal/observability"
	"xdao.co/docnotary/model"
	"xdao.co/docnotary/notary"
	"xdao.co/docnotary/notary/memledger"
)

const helloHash = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

var fixedNow = time.Unix(1_700_000_000, 0)

type recorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recorder) Notify(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recorder) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) == 0 {
		return ""
	}
	return r.msgs[len(r.msgs)-1]
}

// flakyBackend fails selected calls.
type flakyBackend struct {
	*memledger.Ledger
	accountsErr error
	verifyErr   error
}

func (b *flakyBackend) Accounts(ctx context.Context) ([]model.Account, error) {
	if b.accountsErr != nil {
		return nil, b.accountsErr
	}
	return b.Ledger.Accounts(ctx)
}

func (b *flakyBackend) VerifyDocument(ctx context.Context, hash string) (model.Record, error) {
	if b.verifyErr != nil {
		return model.Record{}, b.verifyErr
	}
	return b.Ledger.VerifyDocument(ctx, hash)
}

func newLedger() *memledger.Ledger {
	return memledger.New(memledger.Options{Now: func() time.Time { return fixedNow }})
}

func newController(t *testing.T, backend notary.Backend, opts ...Option) (*Controller, *recorder) {
	t.Helper()
	rec := &recorder{}
	opts = append([]Option{WithNotifier(rec), WithLocation(time.UTC)}, opts...)
	c, err := New(context.Background(), backend, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, rec
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestNew_AccountSelection(t *testing.T) {
	t.Run("DefaultIsFirst", func(t *testing.T) {
		c, _ := newController(t, newLedger())
		if c.Account() != memledger.DefaultAccounts[0] {
			t.Fatalf("account = %s", c.Account())
		}
	})
	t.Run("ByIndex", func(t *testing.T) {
		c, _ := newController(t, newLedger(), WithAccountIndex(2))
		if c.Account() != memledger.DefaultAccounts[2] {
			t.Fatalf("account = %s", c.Account())
		}
	})
	t.Run("ByAddressIgnoresCase", func(t *testing.T) {
		want := memledger.DefaultAccounts[1]
		c, _ := newController(t, newLedger(), WithAccount(model.Account(strings.ToUpper(string(want)))), WithAccountIndex(2))
		if c.Account() != want {
			t.Fatalf("account = %s, want %s", c.Account(), want)
		}
	})
	t.Run("IndexOutOfRange", func(t *testing.T) {
		if _, err := New(context.Background(), newLedger(), WithAccountIndex(3)); err == nil {
			t.Fatal("expected error")
		}
	})
	t.Run("UnknownAddress", func(t *testing.T) {
		if _, err := New(context.Background(), newLedger(), WithAccount("0x1111111111111111111111111111111111111111")); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestNew_ProviderUnreachableIsTransport(t *testing.T) {
	b := &flakyBackend{Ledger: newLedger(), accountsErr: errors.New("connection refused")}
	_, err := New(context.Background(), b)
	if !model.IsKind(err, model.KindTransport) {
		t.Fatalf("got %v want KindTransport", err)
	}
	if _, err := New(context.Background(), nil); !model.IsKind(err, model.KindTransport) {
		t.Fatalf("nil backend: got %v", err)
	}
}

func TestHelloScenario(t *testing.T) {
	ledger := newLedger()
	c, rec := newController(t, ledger)
	ctx := context.Background()

	if err := c.SelectFile(ctx, writeFile(t, "hello.txt", "hello")); err != nil {
		t.Fatalf("SelectFile: %v", err)
	}
	s := c.Snapshot()
	if s.FileHash != helloHash || s.FileName != "hello.txt" || s.FileSize != 5 || s.FileCID == "" {
		t.Fatalf("unexpected file state %+v", s)
	}
	if rec.last() != MsgFileHashed {
		t.Fatalf("notification = %q", rec.last())
	}

	res, err := c.Notarize(ctx)
	if err != nil || !res.Submitted {
		t.Fatalf("Notarize = %+v, %v", res, err)
	}
	if c.Snapshot().Message != MsgNotarized || rec.last() != MsgNotarized {
		t.Fatalf("message = %q", c.Snapshot().Message)
	}

	r, err := c.Verify(ctx)
	if err != nil || !r.Notarized {
		t.Fatalf("Verify = %+v, %v", r, err)
	}
	want := "Document is notarized by " + string(memledger.DefaultAccounts[0]) + " at 2023-11-14 22:13:20 UTC"
	if c.Snapshot().Message != want {
		t.Fatalf("message = %q, want %q", c.Snapshot().Message, want)
	}

	res, err = c.Notarize(ctx)
	if err != nil || res.Submitted {
		t.Fatalf("second Notarize = %+v, %v", res, err)
	}
	want = "Document has already been notarized by " + string(memledger.DefaultAccounts[0]) + " at 2023-11-14 22:13:20 UTC"
	if rec.last() != want {
		t.Fatalf("notification = %q, want %q", rec.last(), want)
	}
	if ledger.Len() != 1 {
		t.Fatalf("ledger has %d records", ledger.Len())
	}
}

func TestVerifyUnknownDocument(t *testing.T) {
	c, _ := newController(t, newLedger())
	if err := c.SelectFile(context.Background(), writeFile(t, "a", "never notarized")); err != nil {
		t.Fatalf("SelectFile: %v", err)
	}
	r, err := c.Verify(context.Background())
	if err != nil || r.Notarized {
		t.Fatalf("Verify = %+v, %v", r, err)
	}
	if c.Snapshot().Message != MsgNotNotarized {
		t.Fatalf("message = %q", c.Snapshot().Message)
	}
}

func TestActionsRequireAFile(t *testing.T) {
	ledger := newLedger()
	c, rec := newController(t, ledger)

	if _, err := c.Notarize(context.Background()); !errors.Is(err, ErrNotAvailable) {
		t.Fatalf("Notarize: %v", err)
	}
	if rec.last() != MsgNotAvailable {
		t.Fatalf("notification = %q", rec.last())
	}
	if _, err := c.Verify(context.Background()); !errors.Is(err, ErrNotAvailable) {
		t.Fatalf("Verify: %v", err)
	}
	if ledger.Len() != 0 {
		t.Fatalf("a transaction was sent")
	}
}

func TestSelectFile_Failures(t *testing.T) {
	c, rec := newController(t, newLedger())
	ctx := context.Background()

	if err := c.SelectFile(ctx, "  "); !errors.Is(err, ErrNoFile) {
		t.Fatalf("empty path: %v", err)
	}
	if rec.last() != MsgNoFile {
		t.Fatalf("notification = %q", rec.last())
	}

	if err := c.SelectFile(ctx, writeFile(t, "hello", "hello")); err != nil {
		t.Fatalf("SelectFile: %v", err)
	}
	err := c.SelectFile(ctx, filepath.Join(t.TempDir(), "missing"))
	if !model.IsKind(err, model.KindIO) {
		t.Fatalf("missing file: got %v want KindIO", err)
	}
	s := c.Snapshot()
	if !strings.HasPrefix(s.Message, "Error reading file: ") {
		t.Fatalf("message = %q", s.Message)
	}
	if s.FileHash != helloHash {
		t.Fatalf("failed read replaced the hash: %s", s.FileHash)
	}
}

func TestSelectFileClearsDetails(t *testing.T) {
	c, _ := newController(t, newLedger())
	ctx := context.Background()
	if err := c.SelectFile(ctx, writeFile(t, "a", "hello")); err != nil {
		t.Fatalf("SelectFile: %v", err)
	}
	if _, err := c.Notarize(ctx); err != nil {
		t.Fatalf("Notarize: %v", err)
	}
	c.SetLookupHash(helloHash)
	if _, err := c.Lookup(ctx); err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !c.Snapshot().Notarized {
		t.Fatalf("details not stored")
	}
	if err := c.SelectFile(ctx, writeFile(t, "b", "other")); err != nil {
		t.Fatalf("SelectFile: %v", err)
	}
	s := c.Snapshot()
	if s.Notarized || s.Owner != "" || s.Timestamp != 0 {
		t.Fatalf("details survived a new selection: %+v", s)
	}
	if s.LookupHash != helloHash {
		t.Fatalf("lookup text changed: %q", s.LookupHash)
	}
}

func TestLookup(t *testing.T) {
	ledger := newLedger()
	c, rec := newController(t, ledger)
	ctx := context.Background()

	t.Run("Empty", func(t *testing.T) {
		c.SetLookupHash("")
		if _, err := c.Lookup(ctx); !errors.Is(err, ErrNoLookupHash) {
			t.Fatalf("Lookup: %v", err)
		}
		if rec.last() != MsgEnterHash {
			t.Fatalf("notification = %q", rec.last())
		}
	})

	t.Run("NotAHash", func(t *testing.T) {
		c.SetLookupHash("not-a-hash")
		_, err := c.Lookup(ctx)
		if !model.IsKind(err, model.KindLookup) {
			t.Fatalf("got %v want KindLookup", err)
		}
		s := c.Snapshot()
		if s.Notarized || s.Owner != "" || s.Timestamp != 0 {
			t.Fatalf("unexpected details %+v", s)
		}
		if s.Message != MsgLookupFailed {
			t.Fatalf("message = %q", s.Message)
		}
		if got := c.DetailsText(s); got != MsgNoDetails {
			t.Fatalf("DetailsText = %q", got)
		}
	})

	t.Run("Known", func(t *testing.T) {
		owner := memledger.DefaultAccounts[1]
		if err := ledger.NotarizeDocument(ctx, helloHash, notary.TxOptions{From: owner, GasLimit: notary.DefaultGasLimit}); err != nil {
			t.Fatalf("NotarizeDocument: %v", err)
		}
		c.SetLookupHash(helloHash)
		r, err := c.Lookup(ctx)
		if err != nil {
			t.Fatalf("Lookup: %v", err)
		}
		if !r.Notarized || r.Owner != owner {
			t.Fatalf("record = %+v", r)
		}
		want := "Document details fetched successfully: Owner - " + string(owner) + ", Timestamp - 2023-11-14 22:13:20 UTC"
		if rec.last() != want {
			t.Fatalf("notification = %q, want %q", rec.last(), want)
		}
		s := c.Snapshot()
		if !s.Notarized || s.Owner != owner || s.Timestamp != fixedNow.Unix() {
			t.Fatalf("state = %+v", s)
		}
		if got := c.DetailsText(s); !strings.Contains(got, string(owner)) || !strings.Contains(got, "2023-11-14 22:13:20 UTC") {
			t.Fatalf("DetailsText = %q", got)
		}
	})
}

func TestRemoteFailuresBecomeMessages(t *testing.T) {
	ctx := context.Background()

	t.Run("NotarizeRejected", func(t *testing.T) {
		c, rec := newController(t, newLedger(), WithClientOptions(notary.WithGasLimit(1)))
		if err := c.SelectFile(ctx, writeFile(t, "a", "x")); err != nil {
			t.Fatalf("SelectFile: %v", err)
		}
		_, err := c.Notarize(ctx)
		if !model.IsKind(err, model.KindNotarization) {
			t.Fatalf("got %v", err)
		}
		if !strings.HasPrefix(rec.last(), "Error notarizing document: ") || !strings.Contains(rec.last(), "out of gas") {
			t.Fatalf("notification = %q", rec.last())
		}
	})

	t.Run("VerifyUnreachable", func(t *testing.T) {
		b := &flakyBackend{Ledger: newLedger(), verifyErr: errors.New("connection reset")}
		c, rec := newController(t, b)
		if err := c.SelectFile(ctx, writeFile(t, "a", "x")); err != nil {
			t.Fatalf("SelectFile: %v", err)
		}
		if _, err := c.Verify(ctx); !model.IsKind(err, model.KindTransport) {
			t.Fatalf("got %v", err)
		}
		if rec.last() != "Error verifying document: connection reset" {
			t.Fatalf("notification = %q", rec.last())
		}
		if _, err := c.Notarize(ctx); err == nil || !strings.HasPrefix(rec.last(), "Error notarizing document: ") {
			t.Fatalf("Notarize after failed check: %v, %q", err, rec.last())
		}
	})
}

func TestConcurrentActions(t *testing.T) {
	c, _ := newController(t, newLedger())
	ctx := context.Background()
	if err := c.SelectFile(ctx, writeFile(t, "a", "hello")); err != nil {
		t.Fatalf("SelectFile: %v", err)
	}
	c.SetLookupHash(helloHash)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(3)
		go func() { defer wg.Done(); _, _ = c.Notarize(ctx) }()
		go func() { defer wg.Done(); _, _ = c.Verify(ctx) }()
		go func() { defer wg.Done(); _, _ = c.Lookup(ctx) }()
	}
	wg.Wait()

	s := c.Snapshot()
	if s.Pending != 0 {
		t.Fatalf("pending = %d after all actions finished", s.Pending)
	}
	r, err := c.Verify(ctx)
	if err != nil || !r.Notarized {
		t.Fatalf("Verify = %+v, %v", r, err)
	}
}

func TestActionMetrics(t *testing.T) {
	m := observability.NewMetrics()
	c, _ := newController(t, newLedger(), WithMetrics(m))
	ctx := context.Background()

	_, _ = c.Verify(ctx)
	if err := c.SelectFile(ctx, writeFile(t, "a", "hello")); err != nil {
		t.Fatalf("SelectFile: %v", err)
	}
	_, _ = c.Verify(ctx)

	if got := testutil.ToFloat64(m.ActionsTotal.WithLabelValues("verify", "rejected")); got != 1 {
		t.Fatalf("verify/rejected = %v", got)
	}
	if got := testutil.ToFloat64(m.ActionsTotal.WithLabelValues("verify", "not_notarized")); got != 1 {
		t.Fatalf("verify/not_notarized = %v", got)
	}
	if got := testutil.ToFloat64(m.BytesHashedTotal); got != 5 {
		t.Fatalf("bytes hashed = %v", got)
	}
}
