package dispatch

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"zonecore/internal/audit"
	"zonecore/internal/contact"
	"zonecore/internal/domain"
	"zonecore/internal/host"
	"zonecore/internal/lifecycle"
	"zonecore/internal/platform/metrics"
	"zonecore/internal/session"
	"zonecore/internal/store"
	"zonecore/internal/transfer"
	dErrors "zonecore/pkg/domain-errors"
)

// Dispatcher routes decoded commands to the engines. Every state-changing
// command runs inside one store transaction together with its audit append,
// so the log and the object stores can never disagree. A repeated
// (registrar, clTRID) pair short-circuits to the recorded response bytes.
type Dispatcher struct {
	st        store.Store
	sessions  *session.Manager
	domains   *lifecycle.Engine
	transfers *transfer.Engine
	contacts  *contact.Service
	hosts     *host.Service
	enc       Encoder

	audit   *audit.Publisher
	clock   func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Dispatcher)

func WithClock(clock func() time.Time) Option {
	return func(d *Dispatcher) {
		if clock != nil {
			d.clock = clock
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

func WithAudit(p *audit.Publisher) Option {
	return func(d *Dispatcher) { d.audit = p }
}

func New(st store.Store, sessions *session.Manager, domains *lifecycle.Engine, transfers *transfer.Engine, contacts *contact.Service, hosts *host.Service, enc Encoder, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		st:        st,
		sessions:  sessions,
		domains:   domains,
		transfers: transfers,
		contacts:  contacts,
		hosts:     hosts,
		enc:       enc,
		clock:     time.Now,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:    otel.Tracer("zonecore/dispatch"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch executes one command for a connection's session and returns the
// response bytes to frame. It always returns a well-formed response; wire
// errors are the caller's concern.
func (d *Dispatcher) Dispatch(ctx context.Context, sessionID uuid.UUID, raw []byte, cmd Command) []byte {
	start := d.clock()
	ctx, span := d.tracer.Start(ctx, "dispatch."+string(cmd.Verb),
		trace.WithAttributes(
			attribute.String("command.verb", string(cmd.Verb)),
			attribute.String("command.object", cmd.Object),
		))
	defer span.End()

	sess, ok := d.sessions.Get(sessionID)
	if !ok {
		return d.encode(Response{Code: CodeAuthError, Message: Text(CodeAuthError), Reason: "unknown session", ClTRID: cmd.ClTRID})
	}
	d.sessions.Touch(sessionID)

	switch cmd.Verb {
	case VerbLogin:
		return d.login(ctx, sess, raw, cmd, start)
	case VerbLogout:
		return d.logout(ctx, sess, raw, cmd, start)
	}

	if !sess.Authenticated {
		return d.encode(Response{Code: CodeAuthError, Message: Text(CodeAuthError), Reason: "command requires an authenticated session", ClTRID: cmd.ClTRID})
	}

	if b, ok := d.replay(ctx, sess.RegistrarID, cmd.ClTRID); ok {
		return b
	}

	var out []byte
	var rec domain.Transaction
	err := d.st.RunInTx(ctx, func(ctx context.Context, s store.Stores) error {
		payload, code, err := d.execute(ctx, s, sess, cmd)
		if err != nil {
			return err
		}
		out, rec, err = d.commit(ctx, s, sess, raw, cmd, Response{
			Code:    code,
			Message: Text(code),
			ClTRID:  cmd.ClTRID,
			Payload: payload,
		}, start)
		return err
	})
	if err != nil {
		// A conflicting append means another connection committed the same
		// clTRID first; answer with its recorded response.
		if dErrors.Is(err, dErrors.CodeAlreadyExists) {
			if b, ok := d.replay(ctx, sess.RegistrarID, cmd.ClTRID); ok {
				return b
			}
		}
		return d.fail(ctx, sess, sess.RegistrarID, raw, cmd, err, start)
	}
	d.finish(ctx, rec, start)
	return out
}

// login authenticates the session. Attempts are audited under the claimed
// client id, success or not.
func (d *Dispatcher) login(ctx context.Context, sess domain.Session, raw []byte, cmd Command, start time.Time) []byte {
	if cmd.Login == nil || cmd.Login.ClientID == "" || cmd.Login.Password == "" {
		return d.encode(Response{Code: CodeMissingParam, Message: Text(CodeMissingParam), Reason: "client id and password are required", ClTRID: cmd.ClTRID})
	}
	rid := domain.RegistrarID(cmd.Login.ClientID)

	if b, ok := d.replay(ctx, rid, cmd.ClTRID); ok {
		return b
	}

	if err := d.sessions.Login(ctx, sess.ID, rid, cmd.Login.Password); err != nil {
		return d.fail(ctx, sess, rid, raw, cmd, err, start)
	}
	sess, _ = d.sessions.Get(sess.ID)

	var out []byte
	var rec domain.Transaction
	err := d.st.RunInTx(ctx, func(ctx context.Context, s store.Stores) error {
		var err error
		out, rec, err = d.commit(ctx, s, sess, raw, cmd, Response{
			Code:    CodeOK,
			Message: Text(CodeOK),
			ClTRID:  cmd.ClTRID,
		}, start)
		return err
	})
	if err != nil {
		d.logger.Error("login audit append failed", "error", err, "client_id", rid)
		return d.encode(Response{Code: CodeOK, Message: Text(CodeOK), ClTRID: cmd.ClTRID})
	}
	d.finish(ctx, rec, start)
	return out
}

func (d *Dispatcher) logout(ctx context.Context, sess domain.Session, raw []byte, cmd Command, start time.Time) []byte {
	if !sess.Authenticated {
		return d.encode(Response{Code: CodeUseError, Message: Text(CodeUseError), Reason: "session is not authenticated", ClTRID: cmd.ClTRID})
	}
	if b, ok := d.replay(ctx, sess.RegistrarID, cmd.ClTRID); ok {
		return b
	}

	var out []byte
	var rec domain.Transaction
	err := d.st.RunInTx(ctx, func(ctx context.Context, s store.Stores) error {
		var err error
		out, rec, err = d.commit(ctx, s, sess, raw, cmd, Response{
			Code:    CodeOKEnding,
			Message: Text(CodeOKEnding),
			ClTRID:  cmd.ClTRID,
		}, start)
		return err
	})
	if err != nil {
		d.logger.Error("logout audit append failed", "error", err, "client_id", sess.RegistrarID)
	}
	d.sessions.Logout(sess.ID)
	d.finish(ctx, rec, start)
	if out == nil {
		out = d.encode(Response{Code: CodeOKEnding, Message: Text(CodeOKEnding), ClTRID: cmd.ClTRID})
	}
	return out
}

// execute runs the object command against the tx-scoped stores and returns
// the result payload and success code.
func (d *Dispatcher) execute(ctx context.Context, s store.Stores, sess domain.Session, cmd Command) (any, int, error) {
	rid := sess.RegistrarID
	switch cmd.Verb {
	case VerbCheck:
		switch cmd.Object {
		case ObjectDomain:
			res, err := d.domains.Check(ctx, s, cmd.Targets)
			return res, CodeOK, err
		case ObjectContact:
			res, err := d.contacts.Check(ctx, s, cmd.Targets)
			return res, CodeOK, err
		case ObjectHost:
			res, err := d.hosts.Check(ctx, s, cmd.Targets)
			return res, CodeOK, err
		}
	case VerbInfo:
		switch cmd.Object {
		case ObjectDomain:
			obj, err := d.domains.Info(ctx, s, cmd.Target)
			if err != nil {
				return nil, 0, err
			}
			if obj.RegistrarID != rid {
				// Auth code is disclosed to the sponsor only.
				obj.AuthCode = ""
			}
			return obj, CodeOK, nil
		case ObjectContact:
			obj, err := d.contacts.Info(ctx, s, cmd.Target)
			return obj, CodeOK, err
		case ObjectHost:
			obj, err := d.hosts.Info(ctx, s, cmd.Target)
			return obj, CodeOK, err
		}
	case VerbCreate:
		switch cmd.Object {
		case ObjectDomain:
			if cmd.DomainCreate == nil {
				return nil, 0, dErrors.New(dErrors.CodeMissingParameter, "create payload is required")
			}
			obj, err := d.domains.Create(ctx, s, rid, *cmd.DomainCreate)
			return obj, CodeOK, err
		case ObjectContact:
			if cmd.ContactCreate == nil {
				return nil, 0, dErrors.New(dErrors.CodeMissingParameter, "create payload is required")
			}
			obj, err := d.contacts.Create(ctx, s, rid, *cmd.ContactCreate)
			return obj, CodeOK, err
		case ObjectHost:
			if cmd.HostCreate == nil {
				return nil, 0, dErrors.New(dErrors.CodeMissingParameter, "create payload is required")
			}
			obj, err := d.hosts.Create(ctx, s, rid, *cmd.HostCreate)
			return obj, CodeOK, err
		}
	case VerbUpdate:
		switch cmd.Object {
		case ObjectDomain:
			if cmd.DomainUpdate == nil {
				return nil, 0, dErrors.New(dErrors.CodeMissingParameter, "update payload is required")
			}
			obj, err := d.domains.Update(ctx, s, rid, *cmd.DomainUpdate)
			return obj, CodeOK, err
		case ObjectContact:
			if cmd.ContactUpdate == nil {
				return nil, 0, dErrors.New(dErrors.CodeMissingParameter, "update payload is required")
			}
			obj, err := d.contacts.Update(ctx, s, rid, *cmd.ContactUpdate)
			return obj, CodeOK, err
		case ObjectHost:
			if cmd.HostUpdate == nil {
				return nil, 0, dErrors.New(dErrors.CodeMissingParameter, "update payload is required")
			}
			obj, err := d.hosts.Update(ctx, s, rid, *cmd.HostUpdate)
			return obj, CodeOK, err
		}
	case VerbDelete:
		switch cmd.Object {
		case ObjectDomain:
			obj, err := d.domains.Delete(ctx, s, rid, cmd.Target)
			return obj, CodeOKPending, err
		case ObjectContact:
			return nil, CodeOK, d.contacts.Delete(ctx, s, rid, cmd.Target)
		case ObjectHost:
			return nil, CodeOK, d.hosts.Delete(ctx, s, rid, cmd.Target)
		}
	case VerbRenew:
		if cmd.DomainRenew == nil {
			return nil, 0, dErrors.New(dErrors.CodeMissingParameter, "renew payload is required")
		}
		obj, err := d.domains.Renew(ctx, s, rid, cmd.DomainRenew.Name, cmd.DomainRenew.CurExpiry, cmd.DomainRenew.Years)
		return obj, CodeOK, err
	case VerbRestore:
		obj, err := d.domains.Restore(ctx, s, rid, cmd.Target)
		return obj, CodeOK, err
	case VerbTransfer:
		if cmd.Transfer == nil {
			return nil, 0, dErrors.New(dErrors.CodeMissingParameter, "transfer payload is required")
		}
		switch cmd.Transfer.Op {
		case TransferRequest:
			t, err := d.transfers.Request(ctx, s, rid, cmd.Transfer.Name, cmd.Transfer.AuthCode)
			return t, CodeOKPending, err
		case TransferApprove:
			t, err := d.transfers.Approve(ctx, s, rid, cmd.Transfer.Name)
			return t, CodeOK, err
		case TransferReject:
			t, err := d.transfers.Reject(ctx, s, rid, cmd.Transfer.Name)
			return t, CodeOK, err
		case TransferCancel:
			t, err := d.transfers.Cancel(ctx, s, rid, cmd.Transfer.Name)
			return t, CodeOK, err
		case TransferQuery:
			t, err := d.transfers.Query(ctx, s, rid, cmd.Transfer.Name)
			return t, CodeOK, err
		default:
			return nil, 0, dErrors.Newf(dErrors.CodeInvalidInput, "unknown transfer op %q", cmd.Transfer.Op)
		}
	}
	return nil, 0, dErrors.Newf(dErrors.CodeUnimplemented, "unimplemented command %s %s", cmd.Verb, cmd.Object)
}

// commit allocates the server transaction id, encodes the response, and
// appends the audit record, all in the caller's transaction.
func (d *Dispatcher) commit(ctx context.Context, s store.Stores, sess domain.Session, raw []byte, cmd Command, res Response, start time.Time) ([]byte, domain.Transaction, error) {
	seq, svTRID, err := s.Transactions().NextTRID(ctx)
	if err != nil {
		return nil, domain.Transaction{}, store.Translate(err, "transaction")
	}
	res.SvTRID = svTRID
	b, err := d.enc.Response(res)
	if err != nil {
		return nil, domain.Transaction{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not encode response")
	}
	now := d.clock()
	rec := domain.Transaction{
		Seq:         seq,
		ServerTRID:  svTRID,
		ClientTRID:  cmd.ClTRID,
		RegistrarID: sess.RegistrarID,
		SessionID:   sess.ID,
		Command:     string(cmd.Verb),
		Object:      cmd.Object,
		TargetID:    cmd.TargetID(),
		Request:     raw,
		Response:    b,
		ResultCode:  res.Code,
		Success:     Success(res.Code),
		Timestamp:   start,
		Latency:     now.Sub(start),
	}
	if _, err := s.Transactions().Append(ctx, rec); err != nil {
		return nil, domain.Transaction{}, store.Translate(err, "transaction")
	}
	return b, rec, nil
}

// fail maps the error, records the failed command in its own transaction
// (the command's writes already rolled back), and returns the error frame.
func (d *Dispatcher) fail(ctx context.Context, sess domain.Session, rid domain.RegistrarID, raw []byte, cmd Command, cmdErr error, start time.Time) []byte {
	code := ResultCode(cmdErr)
	res := Response{
		Code:    code,
		Message: Text(code),
		Reason:  dErrors.MessageOf(cmdErr),
		ClTRID:  cmd.ClTRID,
	}

	var out []byte
	var rec domain.Transaction
	err := d.st.RunInTx(ctx, func(ctx context.Context, s store.Stores) error {
		failSess := sess
		failSess.RegistrarID = rid
		var err error
		out, rec, err = d.commit(ctx, s, failSess, raw, cmd, res, start)
		return err
	})
	if err != nil {
		if dErrors.Is(err, dErrors.CodeAlreadyExists) {
			if b, ok := d.replay(ctx, rid, cmd.ClTRID); ok {
				return b
			}
		}
		d.logger.Error("failure audit append failed", "error", err, "command", cmd.Verb)
		return d.encode(res)
	}
	d.finish(ctx, rec, start)
	return out
}

// replay answers a repeated clTRID from the transaction log.
func (d *Dispatcher) replay(ctx context.Context, rid domain.RegistrarID, clTRID string) ([]byte, bool) {
	if clTRID == "" {
		return nil, false
	}
	rec, err := d.st.Transactions().FindByClientTRID(ctx, rid, clTRID)
	if err != nil {
		return nil, false
	}
	if d.metrics != nil {
		d.metrics.ReplayHits.Inc()
	}
	d.logger.Info("replayed response from transaction log", "client_id", rid, "cltrid", clTRID, "svtrid", rec.ServerTRID)
	return rec.Response, true
}

func (d *Dispatcher) finish(ctx context.Context, rec domain.Transaction, start time.Time) {
	if rec.ServerTRID == "" {
		return
	}
	if d.audit != nil {
		d.audit.Emit(ctx, rec)
	}
	if d.metrics != nil {
		d.metrics.ObserveCommand(rec.Command, strconv.Itoa(rec.ResultCode), d.clock().Sub(start))
	}
}

// encode renders a response outside any transaction, for paths that do not
// reach the audit log.
func (d *Dispatcher) encode(res Response) []byte {
	b, err := d.enc.Response(res)
	if err != nil {
		d.logger.Error("response encode failed", "error", err)
		return nil
	}
	return b
}
