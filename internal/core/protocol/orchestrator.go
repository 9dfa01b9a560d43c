package protocol

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nayudayo/terminal-sub000/internal/core/domain"
	"github.com/nayudayo/terminal-sub000/internal/core/engine"
	"github.com/nayudayo/terminal-sub000/internal/core/ports"
	"github.com/nayudayo/terminal-sub000/internal/core/referral"
)

// LoadMessage is the reserved chat message that requests the current
// stage's prompt without advancing anything.
const LoadMessage = "__LOAD__"

// Reply is the outward response for one inbound message.
type Reply struct {
	Message          string        `json:"message"`
	NewStage         *domain.Stage `json:"newStage,omitempty"`
	ShouldAutoScroll bool          `json:"shouldAutoScroll,omitempty"`
	DispatchEvent    string        `json:"dispatchEvent,omitempty"`
}

// Deps bundles the orchestrator's collaborators. Address validators
// are injected as functions so the core never imports an adapter.
type Deps struct {
	Store         ports.SessionStore
	Identity      ports.IdentityVerifier
	Transfers     ports.TransferConfirmer
	Channel       ports.ChannelVerifier
	Completion    ports.CompletionRepository
	Referrals     *referral.Issuer
	TextGen       ports.TextGenerator
	Bus           ports.EventBus
	ValidateAddrA func(string) error
	ValidateAddrB func(string) error
	EngageDelay   time.Duration
	InviteLink    string
}

// Orchestrator owns the per-message sequencing: load session,
// normalize input, run the verifications the stage needs, let the
// engine decide, persist, respond. It also owns reset-on-corruption
// and idempotent re-entry.
type Orchestrator struct {
	deps Deps
	log  zerolog.Logger
	now  func() time.Time
}

// New creates the session orchestrator.
func New(deps Deps, baseLogger *zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		deps: deps,
		log:  baseLogger.With().Str("component", "orchestrator").Logger(),
		now:  time.Now,
	}
}

// CreateSession issues a fresh anonymous user identifier with a
// session at the initial stage.
func (o *Orchestrator) CreateSession(ctx context.Context) (*domain.Session, error) {
	s := domain.NewSession(uuid.NewString(), o.now())
	if err := o.deps.Store.Put(ctx, s.UserID, s); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	o.log.Info().Str("user_id", s.UserID).Msg("Session created")
	return s, nil
}

// HandleMessage processes one inbound chat message for userID.
// Infrastructure failures come back as errors; everything else is a
// Reply, including verification failures and corrupted sessions.
func (o *Orchestrator) HandleMessage(ctx context.Context, userID, message string) (*Reply, error) {
	log := o.log.With().Str("user_id", userID).Logger()

	s, err := o.deps.Store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	if s == nil {
		// Lazy create on first contact. Persisted immediately so every
		// path out of here, including status and the levers, leaves a
		// durable session behind.
		s = domain.NewSession(userID, o.now())
		if err := o.deps.Store.Put(ctx, userID, s); err != nil {
			return nil, fmt.Errorf("persist session: %w", err)
		}
		log.Info().Msg("Session created lazily on first message")
	}

	if !s.Stage.Valid() {
		log.Warn().Int("stored_stage", int(s.Stage)).Msg("Corrupted stage value, resetting to intro")
		return o.reset(ctx, userID)
	}

	if message == LoadMessage {
		stage := s.Stage
		return &Reply{Message: engine.Prompt(stage), NewStage: &stage}, nil
	}

	cmd := engine.Parse(message)

	// Control commands bypass normal gating.
	switch cmd.Kind {
	case engine.CmdStatus:
		return &Reply{Message: fmt.Sprintf("STAGE %d/%d [%s] — %s",
			int(s.Stage), int(domain.TerminalStage()), s.Stage, engine.Prompt(s.Stage))}, nil
	case engine.CmdEngage, engine.CmdDisengage:
		if s.Stage <= domain.StagePostTrigger {
			return o.handleLever(ctx, cmd.Kind)
		}
	}

	v, err := o.verify(ctx, s, cmd)
	if err != nil {
		return nil, err
	}

	d := engine.Decide(s.Stage, cmd, v)

	for _, eff := range d.Effects {
		if err := o.applyEffect(ctx, s, eff); err != nil {
			return nil, err
		}
	}

	if d.Next != nil && *d.Next != s.Stage {
		prev := s.Stage
		s.Stage = *d.Next
		s.Timestamp = o.now()
		// The decision is worthless if the store write is not
		// confirmed; surface the failure instead of reporting success.
		// Effects applied above must be replayable, since a failed
		// write here means the same command comes in again.
		if err := o.deps.Store.Put(ctx, userID, s); err != nil {
			return nil, fmt.Errorf("persist transition %s->%s: %w", prev, s.Stage, err)
		}
		o.publishTransition(ctx, userID, prev, s.Stage, cmd.Kind.String())
	}

	msg := d.Response
	if d.Event == "open_channel" && o.deps.InviteLink != "" {
		msg = fmt.Sprintf("%s\n%s", msg, o.deps.InviteLink)
	}

	return &Reply{
		Message:          msg,
		NewStage:         d.Next,
		ShouldAutoScroll: d.AutoScroll,
		DispatchEvent:    d.Event,
	}, nil
}

// verify runs only the external checks the current stage and command
// actually need and packs the results for the engine. Verification
// failures become data; infrastructure failures propagate as errors.
func (o *Orchestrator) verify(ctx context.Context, s *domain.Session, cmd engine.Command) (engine.Verification, error) {
	var v engine.Verification

	switch s.Stage {
	case domain.StagePostTrigger:
		if cmd.Kind == engine.CmdConnect {
			v.AlreadyAuthenticated = s.Authenticated()
		}

	case domain.StageChannelCode:
		if cmd.Kind == engine.CmdVerifyCode && len(cmd.Args) == 1 {
			err := o.deps.Channel.VerifyCode(ctx, s.UserID, cmd.Args[0])
			if err != nil && !isVerdict(err) {
				return v, fmt.Errorf("channel verification: %w", err)
			}
			v.CodeChecked = true
			v.CodeErr = err
		}

	case domain.StageWalletSubmit:
		if cmd.Kind == engine.CmdWallet && len(cmd.Args) == 2 {
			v.AddrAErr = o.deps.ValidateAddrA(cmd.Args[0])
			if v.AddrAErr == nil {
				v.AddrBErr = o.deps.ValidateAddrB(cmd.Args[1])
			}
			if v.AddrAErr == nil && v.AddrBErr == nil {
				err := o.deps.Transfers.ConfirmTransfer(ctx, cmd.Args[0], cmd.Args[1])
				if errors.Is(err, domain.ErrVerifierUnavailable) {
					return v, fmt.Errorf("transfer confirmation: %w", err)
				}
				v.TransferChecked = true
				v.TransferErr = err
			}
		}

	case domain.StageReferenceCode:
		switch cmd.Kind {
		case engine.CmdGenerateCode:
			code, err := o.deps.Referrals.Generate(ctx, s.UserID, o.displayName(s))
			switch {
			case errors.Is(err, domain.ErrRateLimited):
				v.ReferralErr = err
			case err != nil:
				return v, fmt.Errorf("referral generation: %w", err)
			default:
				v.ReferralCode = code
			}
		case engine.CmdSubmitCode:
			if len(cmd.Args) == 1 {
				err := o.deps.Referrals.Validate(ctx, cmd.Args[0], s.UserID)
				if err != nil && !isVerdict(err) {
					return v, fmt.Errorf("referral validation: %w", err)
				}
				v.RedeemErr = err
			}
		}

	case domain.StageComplete:
		reply, err := o.deps.TextGen.Reply(ctx, s.UserID, cmd.Raw)
		if err != nil {
			return v, fmt.Errorf("text generation: %w", err)
		}
		v.GeneratedReply = reply
	}

	return v, nil
}

// isVerdict reports whether err is a definite verification verdict
// rather than an infrastructure failure.
func isVerdict(err error) bool {
	return errors.Is(err, domain.ErrCodeNotFound) ||
		errors.Is(err, domain.ErrCodeClaimed) ||
		errors.Is(err, domain.ErrSelfRedemption) ||
		errors.Is(err, domain.ErrAlreadyRedeemed)
}

func (o *Orchestrator) applyEffect(ctx context.Context, s *domain.Session, eff engine.Effect) error {
	switch eff.Kind {
	case engine.EffectRedeemCode:
		if err := o.deps.Referrals.Redeem(ctx, eff.Arg, s.UserID); err != nil && !isVerdict(err) {
			return fmt.Errorf("redeem referral: %w", err)
		}
	case engine.EffectMarkMandates:
		// Cached UI view only; a failed write never blocks the
		// transition.
		status := &domain.CompletionStatus{
			UserID:      s.UserID,
			Followed:    true,
			Liked:       true,
			Reposted:    true,
			CurrentStep: int(s.Stage),
		}
		if err := o.deps.Completion.Set(ctx, status); err != nil {
			o.log.Error().Err(err).Str("user_id", s.UserID).Msg("Failed to store completion status")
		}
	}
	return nil
}

// handleLever answers the engage/disengage pair with the deliberate
// pacing delay. Neither lever moves the stage.
func (o *Orchestrator) handleLever(ctx context.Context, kind engine.CommandKind) (*Reply, error) {
	select {
	case <-time.After(o.deps.EngageDelay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if kind == engine.CmdEngage {
		return &Reply{Message: "Lever engaged. The machinery shudders awake."}, nil
	}
	return &Reply{Message: "Lever disengaged. The machinery settles."}, nil
}

// reset silently returns a corrupted session to the initial stage.
// The user sees the intro prompt, never an error.
func (o *Orchestrator) reset(ctx context.Context, userID string) (*Reply, error) {
	s := domain.NewSession(userID, o.now())
	if err := o.deps.Store.Put(ctx, userID, s); err != nil {
		return nil, fmt.Errorf("reset session: %w", err)
	}
	stage := s.Stage
	return &Reply{Message: engine.Prompt(stage), NewStage: &stage}, nil
}

func (o *Orchestrator) displayName(s *domain.Session) string {
	if s.IdentityHandle != nil && *s.IdentityHandle != "" {
		return *s.IdentityHandle
	}
	return s.UserID
}

// BeginIdentity moves a session into the handshake-in-flight stage
// when the client opens the provider popup. Idempotent: a session at
// or past ConnectingIdentity is left alone.
func (o *Orchestrator) BeginIdentity(ctx context.Context, userID string) error {
	s, err := o.deps.Store.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if s == nil {
		return domain.ErrUnauthorized
	}
	if s.Stage != domain.StagePostTrigger {
		return nil
	}
	prev := s.Stage
	s.Stage = domain.StageConnectingIdentity
	s.Timestamp = o.now()
	if err := o.deps.Store.Put(ctx, userID, s); err != nil {
		return fmt.Errorf("persist transition %s->%s: %w", prev, s.Stage, err)
	}
	o.publishTransition(ctx, userID, prev, s.Stage, "identity_begin")
	return nil
}

// ConfirmIdentity applies the out-of-band "identity confirmed" effect
// from the provider callback. The opaque session handle is checked
// against the provider first; an absent provider session rejects the
// confirmation as unauthorized. Confirming an already-authenticated
// session is a no-op, not an error; the callback may race a poll or
// fire twice.
func (o *Orchestrator) ConfirmIdentity(ctx context.Context, userID, sessionHandle string) error {
	log := o.log.With().Str("user_id", userID).Logger()

	ident, err := o.deps.Identity.Verify(ctx, sessionHandle)
	if err != nil {
		return fmt.Errorf("identity check: %w", err)
	}
	if ident == nil {
		log.Warn().Msg("Identity callback without a provider session")
		return domain.ErrUnauthorized
	}

	s, err := o.deps.Store.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if s == nil {
		// The session expired while the popup was open; rebuilding it
		// authenticated beats bouncing a verified identity.
		s = domain.NewSession(userID, o.now())
		log.Warn().Msg("Session missing at identity callback, rebuilding")
	}

	if s.Stage.AtLeast(domain.StageAuthenticated) && s.Authenticated() {
		log.Info().Msg("Identity already confirmed, ignoring duplicate callback")
		return nil
	}

	prev := s.Stage
	s.IdentityID = &ident.ID
	s.IdentityHandle = &ident.Handle
	s.IdentityToken = &ident.Token
	if !s.Stage.AtLeast(domain.StageAuthenticated) {
		s.Stage = domain.StageAuthenticated
	}
	s.Timestamp = o.now()

	if err := o.deps.Store.Put(ctx, userID, s); err != nil {
		return fmt.Errorf("persist identity confirmation: %w", err)
	}
	if err := o.deps.Store.Alias(ctx, ident.ID, userID); err != nil {
		log.Error().Err(err).Msg("Failed to alias session under identity id")
	}
	if prev != s.Stage {
		o.publishTransition(ctx, userID, prev, s.Stage, "identity_callback")
	}
	log.Info().Str("identity_id", ident.ID).Msg("Identity confirmed")
	return nil
}

// AuthorizedSession returns the session only when the bearer token
// matches the linked identity's credential. Identity-bound endpoints
// call this before acting on a caller-supplied user id.
func (o *Orchestrator) AuthorizedSession(ctx context.Context, userID, token string) (*domain.Session, error) {
	s, err := o.deps.Store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if s == nil || !s.Authenticated() {
		return nil, domain.ErrUnauthorized
	}
	if token == "" || *s.IdentityToken != token {
		return nil, domain.ErrUnauthorized
	}
	return s, nil
}

func (o *Orchestrator) publishTransition(ctx context.Context, userID string, from, to domain.Stage, trigger string) {
	if o.deps.Bus == nil {
		return
	}
	event := domain.TransitionEvent{
		UserID:  userID,
		From:    from,
		To:      to,
		Trigger: trigger,
		At:      o.now(),
	}
	if err := o.deps.Bus.Publish(ctx, domain.TopicTransition, event); err != nil {
		o.log.Error().Err(err).Msg("Failed to publish transition event")
	}
}
