package debate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/zulandar/rostrum/internal/judge"
	"github.com/zulandar/rostrum/internal/models"
	"github.com/zulandar/rostrum/internal/store"
	"github.com/zulandar/rostrum/internal/token"
	"gorm.io/gorm"
)

// Broadcaster receives change notifications for sessions. The realtime
// hub implements it; a nil broadcaster disables push.
type Broadcaster interface {
	SessionChanged(sessionID string)
}

// Announcer is told when a session finishes with a verdict.
type Announcer interface {
	SessionFinished(session *models.DebateSession)
}

// Orchestrator is the single writer of session and turn state. Both the
// HTTP boundary and the realtime hub call into it; it never trusts
// in-memory state across calls — every transition is a conditional write.
type Orchestrator struct {
	db          *gorm.DB
	tokens      *token.Service
	gateway     judge.Gateway
	broadcaster Broadcaster
	announcer   Announcer
	judging     *inflightGuard
}

// Opts holds parameters for creating an Orchestrator.
type Opts struct {
	DB          *gorm.DB
	Tokens      *token.Service
	Gateway     judge.Gateway
	Broadcaster Broadcaster // optional
	Announcer   Announcer   // optional
}

// New creates an Orchestrator.
func New(opts Opts) (*Orchestrator, error) {
	if opts.DB == nil {
		return nil, errors.New("debate: db is required")
	}
	if opts.Tokens == nil {
		return nil, errors.New("debate: token service is required")
	}
	if opts.Gateway == nil {
		return nil, errors.New("debate: judging gateway is required")
	}
	return &Orchestrator{
		db:          opts.DB,
		tokens:      opts.Tokens,
		gateway:     opts.Gateway,
		broadcaster: opts.Broadcaster,
		announcer:   opts.Announcer,
		judging:     newInflightGuard(),
	}, nil
}

// SetBroadcaster wires the realtime hub in after construction, since the
// hub itself needs the orchestrator to load snapshots.
func (o *Orchestrator) SetBroadcaster(b Broadcaster) {
	o.broadcaster = b
}

// CreateParams holds session creation input.
type CreateParams struct {
	Topic     string
	Rounds    int
	DebaterA  string
	DebaterB  string
	AutoJudge bool
}

// CreateSession validates input and persists a new session. If both
// debaters are known up front, the session starts immediately.
func (o *Orchestrator) CreateSession(ctx context.Context, params CreateParams) (*SessionState, error) {
	if err := ValidateTopic(params.Topic); err != nil {
		return nil, err
	}
	if err := ValidateRounds(params.Rounds); err != nil {
		return nil, err
	}
	if params.DebaterB != "" && params.DebaterB == params.DebaterA {
		return nil, &ValidationError{Field: "debaterBId", Reason: "must differ from debaterAId"}
	}
	if params.DebaterB != "" && params.DebaterA == "" {
		// Nothing ever fills the A seat after creation, so this session
		// could never start.
		return nil, &ValidationError{Field: "debaterAId", Reason: "is required when debaterBId is set"}
	}

	session := &models.DebateSession{
		Topic:      params.Topic,
		Rounds:     params.Rounds,
		DebaterAID: params.DebaterA,
		DebaterBID: params.DebaterB,
		AutoJudge:  params.AutoJudge,
	}
	if err := store.CreateSession(o.db.WithContext(ctx), session); err != nil {
		return nil, err
	}

	if session.DebaterAID != "" && session.DebaterBID != "" {
		if _, err := store.TransitionStatus(o.db.WithContext(ctx), session.ID,
			models.StatusCreated, models.StatusRunning, nil); err != nil {
			return nil, err
		}
	}
	return o.loadAndNotify(ctx, session.ID)
}

// LoadSession returns the full session snapshot, or ErrNotFound.
func (o *Orchestrator) LoadSession(ctx context.Context, id string) (*SessionState, error) {
	session, err := store.GetSession(o.db.WithContext(ctx), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return Snapshot(session), nil
}

// IssueInvitation mints a fresh invitation token for an existing session.
func (o *Orchestrator) IssueInvitation(ctx context.Context, id string) (*token.Invitation, error) {
	if _, err := store.GetSession(o.db.WithContext(ctx), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return o.tokens.IssueInvitation(id)
}

// RedeemInvitation consumes an invitation token, assigns the redeemer as
// debater B, and starts the session once both seats are filled. The
// invitation consume and the seat assignment are each atomic, so two
// concurrent redeemers cannot both win.
func (o *Orchestrator) RedeemInvitation(ctx context.Context, id, rawToken, userID string) (*SessionState, error) {
	db := o.db.WithContext(ctx)

	session, err := store.GetSession(db, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if userID == "" {
		return nil, &ValidationError{Field: "userId", Reason: "is required"}
	}
	if userID == session.DebaterAID {
		return nil, &TokenError{Reason: TokenReasonSelfInvite}
	}

	if err := o.tokens.RedeemInvitation(rawToken, id, userID); err != nil {
		return nil, tokenErrorFrom(err)
	}

	applied, err := store.SetDebaterB(db, id, userID)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Someone else took the seat between our check and our write.
		current, loadErr := store.GetSession(db, id)
		if loadErr != nil {
			return nil, loadErr
		}
		if current.DebaterBID != userID {
			return nil, &StateConflictError{Action: "join", Current: current.Status}
		}
	}

	// Lost start races are benign: another caller already started it.
	if _, err := store.TransitionStatus(db, id, models.StatusCreated, models.StatusRunning, nil); err != nil {
		return nil, err
	}
	return o.loadAndNotify(ctx, id)
}

// SubmitArgument appends a turn for the debater whose turn it is. The
// turn is persisted before any broadcast. Reaching the turn limit moves
// the session to judging exactly once; with autoJudge the gateway is
// invoked asynchronously, its result re-entering through the same
// completion path as manual judgment.
func (o *Orchestrator) SubmitArgument(ctx context.Context, id, userID, text string) (*SessionState, error) {
	db := o.db.WithContext(ctx)

	session, err := store.GetSession(db, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	speaker := speakerFor(session, userID)
	if speaker == "" {
		return nil, &TurnError{Reason: TurnReasonNotParticipant}
	}
	if err := ValidateArgument(text); err != nil {
		return nil, err
	}

	_, total, err := store.AppendTurn(db, id, speaker, text)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrNotFound
		case errors.Is(err, store.ErrWrongTurn):
			return nil, &TurnError{Reason: TurnReasonNotYourTurn}
		case errors.Is(err, store.ErrSessionNotRunning):
			current, loadErr := store.GetSession(db, id)
			if loadErr != nil {
				return nil, loadErr
			}
			return nil, &StateConflictError{Action: "submit_argument", Current: current.Status}
		default:
			return nil, err
		}
	}

	if total >= session.TotalTurns() {
		applied, err := store.EnterJudging(db, id, models.StatusRunning)
		if err != nil {
			return nil, err
		}
		if applied && session.AutoJudge {
			started, loadErr := store.GetSession(db, id)
			if loadErr != nil {
				return nil, loadErr
			}
			o.startJudging(started.ID, started.JudgeAttempt)
		}
	}
	return o.loadAndNotify(ctx, id)
}

// UserJudge applies a manual verdict to a session awaiting judgment.
func (o *Orchestrator) UserJudge(ctx context.Context, id, winner string) (*SessionState, error) {
	if err := ValidateWinner(winner); err != nil {
		return nil, err
	}
	db := o.db.WithContext(ctx)

	session, err := store.GetSession(db, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if session.Status != models.StatusJudging {
		return nil, &StateConflictError{Action: "judge", Current: session.Status}
	}

	summary, _ := json.Marshal(map[string]interface{}{"winner": winner, "manual": true})
	applied, err := store.CompleteJudging(db, id, session.JudgeAttempt, winner, string(summary))
	if err != nil {
		return nil, err
	}
	if !applied {
		current, loadErr := store.GetSession(db, id)
		if loadErr != nil {
			return nil, loadErr
		}
		return nil, &StateConflictError{Action: "judge", Current: current.Status}
	}

	o.announceFinished(ctx, id)
	return o.loadAndNotify(ctx, id)
}

// RetryJudging re-enters judging from failed and re-invokes the gateway.
// Concurrent retries collapse: the in-flight guard absorbs duplicates in
// this process, and the conditional failed->judging write rejects any
// that slip through from elsewhere, so at most one gateway call is
// issued per retry window.
func (o *Orchestrator) RetryJudging(ctx context.Context, id string) (*SessionState, error) {
	db := o.db.WithContext(ctx)

	session, err := store.GetSession(db, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if session.Status != models.StatusFailed {
		return nil, &StateConflictError{Action: "retry_judging", Current: session.Status}
	}

	if !o.judging.tryAcquire(id) {
		// A retry is already in flight; report current state instead.
		return o.LoadSession(ctx, id)
	}

	applied, err := store.EnterJudging(db, id, models.StatusFailed)
	if err != nil {
		o.judging.release(id)
		return nil, err
	}
	if !applied {
		o.judging.release(id)
		current, loadErr := store.GetSession(db, id)
		if loadErr != nil {
			return nil, loadErr
		}
		return nil, &StateConflictError{Action: "retry_judging", Current: current.Status}
	}

	started, err := store.GetSession(db, id)
	if err != nil {
		o.judging.release(id)
		return nil, err
	}

	// Unlike the auto-judge path, the explicit retry runs the gateway
	// synchronously: the caller asked for this specific attempt and
	// should learn directly when the gateway is unreachable.
	o.notify(id)
	if err := o.runJudging(started.ID, started.JudgeAttempt); err != nil {
		return nil, err
	}
	return o.LoadSession(ctx, id)
}

// AttachTurnAudio records a late-arriving synthesized audio artifact on
// an existing turn. It never touches response, speaker, or ordering.
func (o *Orchestrator) AttachTurnAudio(ctx context.Context, id string, orderIndex int, ref string) error {
	if ref == "" {
		return &ValidationError{Field: "audioRef", Reason: "is required"}
	}
	err := store.AttachAudio(o.db.WithContext(ctx), id, orderIndex, ref)
	if err != nil {
		if errors.Is(err, store.ErrTurnNotFound) {
			return ErrNotFound
		}
		return err
	}
	o.notify(id)
	return nil
}

// startJudging launches an asynchronous gateway invocation unless one is
// already in flight for this session.
func (o *Orchestrator) startJudging(id string, attempt int) {
	if !o.judging.tryAcquire(id) {
		return
	}
	go func() {
		if err := o.runJudging(id, attempt); err != nil {
			log.Printf("judging %s attempt %d: %v", id, attempt, err)
		}
	}()
}

// runJudging drives one gateway attempt to a terminal state. The caller
// must hold the in-flight guard; it is released here as soon as the
// terminal write lands, before any broadcast, so a retry arriving once
// the session reads as failed is never turned away by a guard that only
// has cleanup left to do. Completion writes are pinned to the attempt,
// so if a retry superseded this attempt meanwhile, the result is
// discarded as a benign lost race.
func (o *Orchestrator) runJudging(id string, attempt int) error {
	released := false
	release := func() {
		if !released {
			released = true
			o.judging.release(id)
		}
	}
	defer release()

	ctx := context.Background()
	session, err := store.GetSession(o.db, id)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	transcript := judge.Transcript{Topic: session.Topic, Rounds: session.Rounds}
	for _, turn := range session.Turns {
		transcript.Turns = append(transcript.Turns, judge.TranscriptTurn{
			OrderIndex: turn.OrderIndex,
			Speaker:    turn.Speaker,
			Response:   turn.Response,
		})
	}

	verdict, err := o.gateway.Judge(ctx, transcript)
	if err != nil {
		marker, _ := json.Marshal(map[string]string{"error": err.Error()})
		if _, failErr := store.FailJudging(o.db, id, attempt, string(marker)); failErr != nil {
			log.Printf("judging %s: record failure: %v", id, failErr)
		}
		release()
		o.notify(id)
		return &UpstreamError{Err: err}
	}

	summary, err := json.Marshal(verdict)
	if err != nil {
		return fmt.Errorf("marshal verdict: %w", err)
	}
	applied, err := store.CompleteJudging(o.db, id, attempt, verdict.Winner, string(summary))
	if err != nil {
		return fmt.Errorf("complete judging: %w", err)
	}
	release()
	if applied {
		o.announceFinished(ctx, id)
	}
	o.notify(id)
	return nil
}

// loadAndNotify returns a fresh snapshot and pushes it to the room.
// Broadcasts always reflect persisted truth, never optimistic state.
func (o *Orchestrator) loadAndNotify(ctx context.Context, id string) (*SessionState, error) {
	state, err := o.LoadSession(ctx, id)
	if err != nil {
		return nil, err
	}
	o.notify(id)
	return state, nil
}

func (o *Orchestrator) notify(id string) {
	if o.broadcaster != nil {
		o.broadcaster.SessionChanged(id)
	}
}

func (o *Orchestrator) announceFinished(ctx context.Context, id string) {
	if o.announcer == nil {
		return
	}
	session, err := store.GetSession(o.db.WithContext(ctx), id)
	if err != nil {
		log.Printf("announce %s: %v", id, err)
		return
	}
	go o.announcer.SessionFinished(session)
}
