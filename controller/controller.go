// Package controller owns the notary front-end's view state and runs the
// user's actions against the digest and notary layers.
//
// Every action ends in a status message that is stored in State and pushed to
// the Notifier. Actions never return control to the caller in a broken state:
// remote failures become messages. Actions may run concurrently; the mutex is
// held only while State is read or written, never across a remote call, so
// the last action to finish wins.
package controller

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"xdao.co/docnotary/digest"
	"xdao.co/docnotary/internal/observability"
	"xdao.co/docnotary/model"
	"xdao.co/docnotary/notary"
)

// TimeLayout renders record timestamps.
const TimeLayout = "2006-01-02 15:04:05 MST"

// Status messages.
const (
	MsgFileHashed      = "File loaded and hashed successfully!"
	MsgNoFile          = "No file selected."
	MsgNotAvailable    = "Contract or file hash is not available."
	MsgNotarized       = "Document notarized successfully!"
	MsgNotNotarized    = "Document is not notarized."
	MsgEnterHash       = "Please enter a document hash."
	MsgLookupFailed    = "Document has not been notarized or an error occurred."
	MsgNoDetails       = "Document not notarized or no details available."
	prefixReadError    = "Error reading file: "
	prefixNotarizeErr  = "Error notarizing document: "
	prefixVerifyErr    = "Error verifying document: "
	prefixAlreadyDone  = "Document has already been notarized by "
	prefixIsNotarized  = "Document is notarized by "
	prefixDetailsFound = "Document details fetched successfully: Owner - "
)

var (
	// ErrNoFile is returned by SelectFile for an empty path.
	ErrNoFile = errors.New(MsgNoFile)
	// ErrNotAvailable is returned by Notarize and Verify before a file is hashed.
	ErrNotAvailable = errors.New(MsgNotAvailable)
	// ErrNoLookupHash is returned by Lookup when no hash was entered.
	ErrNoLookupHash = errors.New(MsgEnterHash)
)

// State is the view state. Snapshot returns copies of it.
type State struct {
	Account model.Account

	FileName string
	FileHash model.ContentHash
	FileCID  string
	FileSize int64

	LookupHash string

	// Message is the most recent status line.
	Message string

	// Owner, Timestamp and Notarized hold the last fetched details.
	Owner     model.Account
	Timestamp int64
	Notarized bool

	// Pending counts actions still waiting on a remote call.
	Pending int
}

// Notifier receives every status message as soon as it is produced.
type Notifier interface {
	Notify(msg string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(msg string)

func (f NotifierFunc) Notify(msg string) { f(msg) }

// Controller runs actions and owns State.
type Controller struct {
	mu    sync.Mutex
	state State

	client   *notary.Client
	notifier Notifier
	loc      *time.Location
	log      *observability.Logger
	metrics  *observability.Metrics
	hashFile func(path string) (digest.Result, error)
}

type settings struct {
	accountIndex int
	account      model.Account
	clientOpts   []notary.Option
}

// Option configures a Controller.
type Option func(*Controller, *settings)

// WithNotifier sets where status messages are pushed.
func WithNotifier(n Notifier) Option {
	return func(c *Controller, _ *settings) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithLocation sets the zone timestamps are rendered in. Default: time.Local.
func WithLocation(loc *time.Location) Option {
	return func(c *Controller, _ *settings) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// WithLogger sets the logger used by the controller and its notary client.
func WithLogger(l *observability.Logger) Option {
	return func(c *Controller, s *settings) {
		if l != nil {
			c.log = l
			s.clientOpts = append(s.clientOpts, notary.WithLogger(l))
		}
	}
}

// WithMetrics records action outcomes and contract calls.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Controller, s *settings) {
		c.metrics = m
		s.clientOpts = append(s.clientOpts, notary.WithMetrics(m))
	}
}

// WithHashMode selects how selected files are hashed. Default:
// digest.ModeSHA256.
func WithHashMode(m digest.Mode) Option {
	return func(c *Controller, _ *settings) {
		c.hashFile = m.File
	}
}

// WithAccountIndex picks the session account by position among the
// provider's accounts. Default: 0.
func WithAccountIndex(i int) Option {
	return func(_ *Controller, s *settings) { s.accountIndex = i }
}

// WithAccount picks the session account by address. It wins over
// WithAccountIndex.
func WithAccount(a model.Account) Option {
	return func(_ *Controller, s *settings) { s.account = a }
}

// WithClientOptions passes options to the notary client, such as the gas
// ceiling and call timeout.
func WithClientOptions(opts ...notary.Option) Option {
	return func(_ *Controller, s *settings) { s.clientOpts = append(s.clientOpts, opts...) }
}

// New connects the controller to backend and fixes the session account.
//
// A provider that cannot list accounts yields a KindTransport error; callers
// treat any error from New as fatal.
func New(ctx context.Context, backend notary.Backend, opts ...Option) (*Controller, error) {
	c := &Controller{
		notifier: NotifierFunc(func(string) {}),
		loc:      time.Local,
		log:      observability.Nop(),
		hashFile: digest.File,
	}
	var s settings
	for _, opt := range opts {
		opt(c, &s)
	}
	if backend == nil {
		return nil, model.NewError(model.KindTransport, "connect", "no notary backend configured")
	}

	accts, err := backend.Accounts(ctx)
	if err != nil {
		return nil, model.WrapError(model.KindTransport, "connect", fmt.Sprintf("get accounts: %v", err), err)
	}
	account, err := pickAccount(accts, s.account, s.accountIndex)
	if err != nil {
		return nil, err
	}

	c.state.Account = account
	c.log = c.log.WithAccount(string(account))
	c.client = notary.NewClient(backend, append(s.clientOpts, notary.WithLogger(c.log))...)
	c.log.Info("connected")
	return c, nil
}

func pickAccount(accts []model.Account, want model.Account, index int) (model.Account, error) {
	if len(accts) == 0 {
		return "", model.NewError(model.KindTransport, "connect", "provider exposes no accounts")
	}
	if want != "" {
		for _, a := range accts {
			if strings.EqualFold(string(a), string(want)) {
				return a, nil
			}
		}
		return "", fmt.Errorf("account %s is not managed by the provider", want)
	}
	if index < 0 || index >= len(accts) {
		return "", fmt.Errorf("account index %d out of range (provider has %d)", index, len(accts))
	}
	return accts[index], nil
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Account returns the session account.
func (c *Controller) Account() model.Account {
	return c.Snapshot().Account
}

// FormatTime renders unix seconds in the controller's location.
func (c *Controller) FormatTime(ts int64) string {
	return time.Unix(ts, 0).In(c.loc).Format(TimeLayout)
}

// SelectFile hashes the file at path and makes it the current document.
// Fetched details are discarded on success. A failed read leaves the
// previous document in place.
func (c *Controller) SelectFile(ctx context.Context, path string) error {
	done := c.begin("select_file")
	path = strings.TrimSpace(path)
	if path == "" {
		done.finish("rejected", MsgNoFile, nil)
		return ErrNoFile
	}
	if err := ctx.Err(); err != nil {
		msg := prefixReadError + err.Error()
		done.finish("error", msg, err)
		return model.WrapError(model.KindIO, "select_file", msg, err)
	}

	res, err := c.hashFile(path)
	if err != nil {
		done.finish("error", prefixReadError+err.Error(), err)
		return err
	}
	c.log.FileHashed(path, res.Size, string(res.Hash))
	c.metrics.ObserveHash(res.Size)

	c.mu.Lock()
	c.state.FileName = filepath.Base(path)
	c.state.FileHash = res.Hash
	c.state.FileCID = res.CID
	c.state.FileSize = res.Size
	c.state.Owner = ""
	c.state.Timestamp = 0
	c.state.Notarized = false
	c.mu.Unlock()

	done.finish("ok", MsgFileHashed, nil)
	return nil
}

// Notarize records the current document for the session account unless the
// contract already holds a record for it.
func (c *Controller) Notarize(ctx context.Context) (model.NotarizeResult, error) {
	done := c.begin("notarize")
	hash, account, ok := c.current()
	if !ok {
		done.finish("rejected", MsgNotAvailable, nil)
		return model.NotarizeResult{}, ErrNotAvailable
	}

	res, err := c.client.Notarize(ctx, hash, account)
	switch {
	case err != nil:
		done.finish("error", prefixNotarizeErr+err.Error(), err)
		return res, err
	case !res.Submitted:
		done.finish("skipped", prefixAlreadyDone+c.ownedBy(res.Existing), nil)
	default:
		done.finish("ok", MsgNotarized, nil)
	}
	return res, nil
}

// Verify reads the notarization state of the current document.
func (c *Controller) Verify(ctx context.Context) (model.Record, error) {
	done := c.begin("verify")
	hash, _, ok := c.current()
	if !ok {
		done.finish("rejected", MsgNotAvailable, nil)
		return model.Record{}, ErrNotAvailable
	}

	rec, err := c.client.Verify(ctx, hash)
	switch {
	case err != nil:
		done.finish("error", prefixVerifyErr+err.Error(), err)
		return rec, err
	case rec.Notarized:
		done.finish("notarized", prefixIsNotarized+c.ownedBy(rec), nil)
	default:
		done.finish("not_notarized", MsgNotNotarized, nil)
	}
	return rec, nil
}

// SetLookupHash stores free text to look up. It is not validated.
func (c *Controller) SetLookupHash(s string) {
	c.mu.Lock()
	c.state.LookupHash = s
	c.mu.Unlock()
}

// Lookup fetches details for the lookup hash. Any failure, an unknown hash
// included, clears the details and reports the document as not notarized.
func (c *Controller) Lookup(ctx context.Context) (model.Record, error) {
	done := c.begin("lookup")
	c.mu.Lock()
	hash := c.state.LookupHash
	c.mu.Unlock()
	if hash == "" {
		done.finish("rejected", MsgEnterHash, nil)
		return model.Record{}, ErrNoLookupHash
	}

	rec, err := c.client.GetDetails(ctx, hash)

	c.mu.Lock()
	if err != nil {
		c.state.Owner = ""
		c.state.Timestamp = 0
		c.state.Notarized = false
	} else {
		c.state.Owner = rec.Owner
		c.state.Timestamp = rec.Timestamp
		c.state.Notarized = true
	}
	c.mu.Unlock()

	if err != nil {
		done.finish("not_found", MsgLookupFailed, err)
		return model.Record{}, err
	}
	done.finish("ok", fmt.Sprintf("%s%s, Timestamp - %s", prefixDetailsFound, rec.Owner, c.FormatTime(rec.Timestamp)), nil)
	return rec, nil
}

// DetailsText renders the details panel body for s.
func (c *Controller) DetailsText(s State) string {
	if !s.Notarized {
		return MsgNoDetails
	}
	return fmt.Sprintf("Owner: %s\nTimestamp: %s", s.Owner, c.FormatTime(s.Timestamp))
}

func (c *Controller) ownedBy(rec model.Record) string {
	return fmt.Sprintf("%s at %s", rec.Owner, c.FormatTime(rec.Timestamp))
}

// current returns the inputs Notarize and Verify need.
func (c *Controller) current() (model.ContentHash, model.Account, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ok := c.client != nil && c.state.FileHash != ""
	return c.state.FileHash, c.state.Account, ok
}

type action struct {
	c    *Controller
	name string
	log  *observability.Logger
}

func (c *Controller) begin(name string) *action {
	c.mu.Lock()
	c.state.Pending++
	c.mu.Unlock()
	log := c.log.WithAction(uuid.NewString(), name)
	log.Debug("action started")
	return &action{c: c, name: name, log: log}
}

// finish stores msg as the status line and pushes it to the notifier.
func (a *action) finish(outcome, msg string, err error) {
	c := a.c
	c.mu.Lock()
	c.state.Pending--
	c.state.Message = msg
	c.mu.Unlock()

	if err != nil {
		a.log.Error(err, msg)
	} else {
		a.log.Info(msg)
	}
	c.metrics.ObserveAction(a.name, outcome)
	c.notifier.Notify(msg)
}
