package notary

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"xdao.co/docnotary/internal/observability"
	"xdao.co/docnotary/model"
)

// scriptedContract returns canned results and records submissions.
type scriptedContract struct {
	verify    model.Record
	verifyErr error
	details   model.Record
	detailErr error
	notarErr  error

	submitted []TxOptions
	block     bool
}

func (s *scriptedContract) VerifyDocument(ctx context.Context, hash string) (model.Record, error) {
	if s.block {
		<-ctx.Done()
		return model.Record{}, ctx.Err()
	}
	return s.verify, s.verifyErr
}

func (s *scriptedContract) GetDocumentDetails(ctx context.Context, hash string) (model.Record, error) {
	return s.details, s.detailErr
}

func (s *scriptedContract) NotarizeDocument(ctx context.Context, hash string, opts TxOptions) error {
	s.submitted = append(s.submitted, opts)
	return s.notarErr
}

const testHash = model.ContentHash("2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824")

func TestVerify_AbsentIsZeroRecord(t *testing.T) {
	c := NewClient(&scriptedContract{verify: model.Record{Owner: model.ZeroAccount}})
	rec, err := c.Verify(context.Background(), testHash)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if rec != (model.Record{}) {
		t.Fatalf("got %+v want zero record", rec)
	}
}

func TestVerify_FailureIsTransport(t *testing.T) {
	boom := errors.New("connection refused")
	c := NewClient(&scriptedContract{verifyErr: boom})
	_, err := c.Verify(context.Background(), testHash)
	if !model.IsKind(err, model.KindTransport) {
		t.Fatalf("got %v want KindTransport", err)
	}
	if model.IsKind(err, model.KindLookup) {
		t.Fatalf("verify failure must not be a lookup error")
	}
	if !errors.Is(err, boom) {
		t.Fatalf("cause lost: %v", err)
	}
}

func TestNotarize_SubmitsWithGasCeiling(t *testing.T) {
	sc := &scriptedContract{}
	c := NewClient(sc, WithGasLimit(123_456))
	res, err := c.Notarize(context.Background(), testHash, "0xabc")
	if err != nil {
		t.Fatalf("Notarize: %v", err)
	}
	if !res.Submitted {
		t.Fatalf("expected submission")
	}
	if len(sc.submitted) != 1 {
		t.Fatalf("submissions = %d", len(sc.submitted))
	}
	if got := sc.submitted[0]; got.From != "0xabc" || got.GasLimit != 123_456 {
		t.Fatalf("unexpected tx options %+v", got)
	}
}

func TestNotarize_DefaultGasCeiling(t *testing.T) {
	if got := NewClient(&scriptedContract{}).GasLimit(); got != 3_000_000 {
		t.Fatalf("GasLimit = %d", got)
	}
}

func TestNotarize_ExistingRecordShortCircuits(t *testing.T) {
	existing := model.Record{Notarized: true, Owner: "0xaaa", Timestamp: 1700000000}
	sc := &scriptedContract{verify: existing}
	res, err := NewClient(sc).Notarize(context.Background(), testHash, "0xbbb")
	if err != nil {
		t.Fatalf("Notarize: %v", err)
	}
	if res.Submitted || res.Existing != existing {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(sc.submitted) != 0 {
		t.Fatalf("transaction sent despite existing record")
	}
}

func TestNotarize_RevertIsNotarizationError(t *testing.T) {
	sc := &scriptedContract{notarErr: errors.New("VM Exception while processing transaction: out of gas")}
	_, err := NewClient(sc).Notarize(context.Background(), testHash, "0xabc")
	if !model.IsKind(err, model.KindNotarization) {
		t.Fatalf("got %v want KindNotarization", err)
	}
	if err.Error() != "VM Exception while processing transaction: out of gas" {
		t.Fatalf("remote message not carried: %q", err.Error())
	}
}

func TestNotarize_CheckFailureSendsNothing(t *testing.T) {
	sc := &scriptedContract{verifyErr: errors.New("dial tcp: refused")}
	_, err := NewClient(sc).Notarize(context.Background(), testHash, "0xabc")
	if !model.IsKind(err, model.KindTransport) {
		t.Fatalf("got %v want KindTransport", err)
	}
	if len(sc.submitted) != 0 {
		t.Fatalf("transaction sent after failed check")
	}
}

func TestSubmit_KeepsTransportKind(t *testing.T) {
	sc := &scriptedContract{notarErr: model.NewError(model.KindTransport, "send", "provider unreachable")}
	err := NewClient(sc).Submit(context.Background(), testHash, "0xabc")
	if !model.IsKind(err, model.KindTransport) {
		t.Fatalf("got %v want KindTransport", err)
	}
}

func TestGetDetails_FailureIsLookup(t *testing.T) {
	sc := &scriptedContract{detailErr: errors.New("execution reverted: Document not notarized")}
	_, err := NewClient(sc).GetDetails(context.Background(), "not-a-hash")
	if !model.IsKind(err, model.KindLookup) {
		t.Fatalf("got %v want KindLookup", err)
	}
}

func TestGetDetails_SuccessMarksNotarized(t *testing.T) {
	sc := &scriptedContract{details: model.Record{Owner: "0xaaa", Timestamp: 42}}
	rec, err := NewClient(sc).GetDetails(context.Background(), string(testHash))
	if err != nil {
		t.Fatalf("GetDetails: %v", err)
	}
	want := model.Record{Notarized: true, Owner: "0xaaa", Timestamp: 42}
	if rec != want {
		t.Fatalf("got %+v want %+v", rec, want)
	}
}

func TestCallTimeout_BoundsHangingCall(t *testing.T) {
	c := NewClient(&scriptedContract{block: true}, WithCallTimeout(20*time.Millisecond))
	start := time.Now()
	_, err := c.Verify(context.Background(), testHash)
	if !model.IsKind(err, model.KindTransport) {
		t.Fatalf("got %v want KindTransport", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("timeout not applied")
	}
}

func TestNilClient(t *testing.T) {
	var c *Client
	if _, err := c.Verify(context.Background(), testHash); !model.IsKind(err, model.KindTransport) {
		t.Fatalf("Verify on nil client: %v", err)
	}
	if _, err := c.GetDetails(context.Background(), "x"); !model.IsKind(err, model.KindLookup) {
		t.Fatalf("GetDetails on nil client: %v", err)
	}
}

func TestMetricsRecorded(t *testing.T) {
	m := observability.NewMetrics()
	c := NewClient(&scriptedContract{verify: model.Record{Notarized: true, Owner: "0xaaa", Timestamp: 1}}, WithMetrics(m))
	if _, err := c.Notarize(context.Background(), testHash, "0xbbb"); err != nil {
		t.Fatalf("Notarize: %v", err)
	}
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	seen := map[string]bool{}
	for _, f := range families {
		seen[f.GetName()] = true
	}
	for _, name := range []string{"docnotary_contract_calls_total", "docnotary_notarize_skipped_total"} {
		if !seen[name] {
			t.Fatalf("metric %s not gathered", name)
		}
	}
}

func TestCallsAreTraced(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	c := NewClient(&scriptedContract{detailErr: errors.New("execution reverted")}, WithTracerProvider(tp))
	if _, err := c.Notarize(context.Background(), testHash, "0xbbb"); err != nil {
		t.Fatalf("Notarize: %v", err)
	}
	if _, err := c.GetDetails(context.Background(), string(testHash)); err == nil {
		t.Fatalf("expected GetDetails to fail")
	}

	spans := sr.Ended()
	if len(spans) != 3 {
		t.Fatalf("got %d spans, want 3", len(spans))
	}
	want := []string{MethodVerify, MethodNotarize, MethodDetails}
	for i, span := range spans {
		if span.Name() != want[i] {
			t.Fatalf("span %d = %q, want %q", i, span.Name(), want[i])
		}
	}
	if spans[1].Status().Code != codes.Unset {
		t.Fatalf("notarize span status = %v", spans[1].Status())
	}
	if spans[2].Status().Code != codes.Error {
		t.Fatalf("details span status = %v, want Error", spans[2].Status())
	}
}
