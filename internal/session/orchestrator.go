// Package session runs one account's session from startup through
// finalization, driving the pattern executor and queue processor through
// the phase machine.
package session

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/swipekit/swipekit/internal/audit"
	"github.com/swipekit/swipekit/internal/config"
	"github.com/swipekit/swipekit/internal/database"
	"github.com/swipekit/swipekit/internal/detect"
	"github.com/swipekit/swipekit/internal/metrics"
	"github.com/swipekit/swipekit/internal/model"
	"github.com/swipekit/swipekit/internal/pattern"
	"github.com/swipekit/swipekit/internal/profile"
	"github.com/swipekit/swipekit/internal/queue"
	"github.com/swipekit/swipekit/internal/repository"
	"github.com/swipekit/swipekit/internal/timing"
	"github.com/swipekit/swipekit/internal/wire"
)

// ErrSessionActive is returned when another worker holds the account's
// session lock.
var ErrSessionActive = fmt.Errorf("session already active for account")

// ErrStartRateLimited is returned when the per-account session start cap
// has been hit within its window.
var ErrStartRateLimited = fmt.Errorf("session start rate limit reached")

// Repos bundles the persistence collaborators the orchestrator writes to.
type Repos struct {
	Accounts       repository.AccountRepository
	Status         repository.AccountStatusRepository
	Sessions       repository.SessionRepository
	Activity       repository.ActivityRepository
	BanIndicators  repository.BanIndicatorRepository
	RequestTimings repository.RequestTimingRepository

	// Tx runs detection writes atomically. Optional; when nil the writes
	// happen outside a transaction.
	Tx TxRunner
}

// TxRunner runs a function inside one database transaction. *database.DB
// satisfies it.
type TxRunner interface {
	WithTx(ctx context.Context, fn database.TxFunc) error
}

// Locker is the Redis surface used for session locks and daily like
// counters. *redis.Client satisfies it.
type Locker interface {
	AcquireSessionLock(ctx context.Context, accountID int64, owner string, ttl time.Duration) (bool, error)
	ReleaseSessionLock(ctx context.Context, accountID int64, owner string) error
	AllowSessionStart(ctx context.Context, accountID int64, limit int, window time.Duration) (bool, time.Time, error)
	IncrDailyLikes(ctx context.Context, accountID int64, localDate string, n int64, ttl time.Duration) (int64, error)
	DailyLikes(ctx context.Context, accountID int64, localDate string) (int64, error)
}

// Delayer is the timing engine surface the orchestrator needs.
type Delayer interface {
	Delay(ctx context.Context, class timing.Class, factor float64) (time.Duration, error)
	Sleep(ctx context.Context, d time.Duration) error
	DelayBetween(ctx context.Context, min, max time.Duration) (time.Duration, error)
}

// ClientFactory builds a wire client bound to one account's credentials
// and proxy.
type ClientFactory func(account *model.Account) (wire.Client, error)

// Transition delays keyed by (from, to). Anything not listed takes the
// default.
var transitionDelays = map[[2]model.SessionPhase]timing.Class{
	{model.PhaseStartup, model.PhaseProfileUpdate}:  timing.ClassMedium,
	{model.PhaseProfileUpdate, model.PhaseBrowsing}: timing.ClassLong,
	{model.PhaseBrowsing, model.PhaseLiking}:        timing.ClassMedium,
	{model.PhaseLiking, model.PhaseMaintenance}:     timing.ClassShort,
	{model.PhaseMaintenance, model.PhaseLiking}:     timing.ClassMedium,
	{model.PhaseLiking, model.PhaseCooldown}:        timing.ClassLong,
}

const defaultTransitionDelay = timing.ClassShort

// startupErrorBudget aborts the session when the startup pattern fails
// more often than this.
const startupErrorBudget = 2

type Orchestrator struct {
	cfg        *config.Config
	repos      Repos
	store      Locker
	timing     Delayer
	classifier *detect.Classifier
	collector  *metrics.Collector
	newClient  ClientFactory
	log        zerolog.Logger
	rng        *rand.Rand
}

func NewOrchestrator(cfg *config.Config, repos Repos, store Locker, delayer Delayer, classifier *detect.Classifier, collector *metrics.Collector, newClient ClientFactory, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		repos:      repos,
		store:      store,
		timing:     delayer,
		classifier: classifier,
		collector:  collector,
		newClient:  newClient,
		log:        logger,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// run carries the mutable state of one session. It is owned by exactly one
// Run invocation and never shared.
type run struct {
	account  *model.Account
	client   wire.Client
	session  *model.Session
	status   *model.AccountStatus
	stats    model.SessionStats
	progress pattern.Progress
	phase    model.SessionPhase
	endTime  time.Time
	log      zerolog.Logger

	// banScore and indicators accumulate every detection signal seen during
	// the session, sub-threshold ones included, and are persisted at
	// finalization.
	banScore   float64
	indicators []detect.Indicator

	// terminal records a classifier verdict that ends the account, applied
	// during finalization.
	terminal *detect.Assessment
	// banReason annotates a policy ban (as opposed to a detected one).
	banReason string
}

// Run executes one full session for the account. It always finalizes: a
// session row with an end time is written even when a phase fails or
// panics. The returned error reports infrastructure failures only; account
// state transitions are handled internally.
func (o *Orchestrator) Run(ctx context.Context, account *model.Account) (err error) {
	owner := uuid.NewString()
	acquired, err := o.store.AcquireSessionLock(ctx, account.ID, owner, config.SessionLockTTL)
	if err != nil {
		return fmt.Errorf("acquire session lock: %w", err)
	}
	if !acquired {
		return ErrSessionActive
	}
	defer func() {
		if releaseErr := o.store.ReleaseSessionLock(context.WithoutCancel(ctx), account.ID, owner); releaseErr != nil {
			o.log.Warn().Err(releaseErr).Int64("account_id", account.ID).Msg("failed to release session lock")
		}
	}()

	allowed, resetAt, err := o.store.AllowSessionStart(ctx, account.ID, config.SessionStartLimit, config.SessionStartWindow)
	if err != nil {
		return fmt.Errorf("check session start limit: %w", err)
	}
	if !allowed {
		o.log.Warn().
			Int64("account_id", account.ID).
			Time("reset_at", resetAt).
			Msg("session start limit reached")
		return ErrStartRateLimited
	}

	client, err := o.newClient(account)
	if err != nil {
		return fmt.Errorf("build wire client: %w", err)
	}

	duration := o.cfg.SessionDurationMin() +
		time.Duration(o.rng.Int63n(int64(o.cfg.SessionDurationMax()-o.cfg.SessionDurationMin())+1))
	now := time.Now()

	session, err := o.repos.Sessions.Create(ctx, account.ID, owner, now)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	status, err := o.repos.Status.Ensure(ctx, account.ID)
	if err != nil {
		return fmt.Errorf("ensure account status: %w", err)
	}
	if err := o.repos.Status.MarkSessionStart(ctx, account.ID, now); err != nil {
		return fmt.Errorf("mark session start: %w", err)
	}

	r := &run{
		account: account,
		client:  client,
		session: session,
		status:  status,
		phase:   model.PhaseStartup,
		endTime: now.Add(duration),
		log: o.log.With().
			Int64("account_id", account.ID).
			Int64("session_id", session.ID).
			Logger(),
	}
	audit.Log(ctx, audit.Event{
		Type:      audit.EventSessionStart,
		AccountID: account.ID,
		SessionID: session.ID,
		Details: map[string]interface{}{
			"planned_duration_secs": int(duration.Seconds()),
		},
	})
	r.log.Info().Dur("planned_duration", duration).Msg("session started")

	// Finalization must happen exactly once, whatever the phases do.
	defer func() {
		if p := recover(); p != nil {
			r.log.Error().Interface("panic", p).Msg("session phase panicked")
			err = fmt.Errorf("session panicked: %v", p)
		}
		o.finalize(context.WithoutCancel(ctx), r)
	}()

	o.runPhases(ctx, r)
	return err
}

func (o *Orchestrator) runPhases(ctx context.Context, r *run) {
	// Phase 1: startup warm-up traffic.
	o.setPhase(ctx, r, model.PhaseStartup)
	startup, err := o.executor(r).RunNamed(ctx, pattern.Startup, &r.progress)
	o.absorbPattern(ctx, r, startup)
	if err != nil || r.terminal != nil {
		return
	}
	if startup.Errors > startupErrorBudget {
		r.log.Warn().Int("errors", startup.Errors).Msg("startup pattern failed, aborting session")
		return
	}

	// Phase 2: profile fetch and the premium business rule.
	prof, purchases, ok := o.fetchProfile(ctx, r)
	if !ok || r.terminal != nil {
		return
	}
	if prof.UserID != "" && (r.account.RemoteUserID == nil || *r.account.RemoteUserID != prof.UserID) {
		if err := o.repos.Accounts.SetRemoteUserID(ctx, r.account.ID, prof.UserID); err != nil {
			r.log.Warn().Err(err).Msg("failed to store remote user id")
		}
	}
	premiumUntil := premiumExpiry(purchases, time.Now())
	if err := o.repos.Status.SetPremium(ctx, r.account.ID, premiumUntil != nil, premiumUntil); err != nil {
		r.log.Warn().Err(err).Msg("failed to store premium state")
	}
	if premiumUntil == nil {
		// Non-premium accounts are out of scope for this workflow: a
		// policy decision, not a detection signal.
		r.banReason = "no active premium subscription"
		r.terminal = &detect.Assessment{Action: detect.ActionMarkBanned}
		return
	}

	// Phase 3: profile update when the bio or prompt drifted from target.
	o.maybeUpdateProfile(ctx, r, prof)
	if r.terminal != nil {
		return
	}

	// Phase 4: browsing traffic before any liking.
	o.setPhase(ctx, r, model.PhaseBrowsing)
	browse, err := o.executor(r).RunNamed(ctx, pattern.ProfileCheck, &r.progress)
	o.absorbPattern(ctx, r, browse)
	if err != nil || r.terminal != nil {
		return
	}

	// Phase 5: drain the liked-me queue within budgets.
	o.runLiking(ctx, r)
	if r.terminal != nil || ctx.Err() != nil {
		return
	}

	// Phase 6: maintenance traffic to close the session naturally.
	o.setPhase(ctx, r, model.PhaseMaintenance)
	maint, _ := o.executor(r).RunNamed(ctx, pattern.Maintenance, &r.progress)
	o.absorbPattern(ctx, r, maint)
	if r.terminal != nil {
		return
	}

	o.setPhase(ctx, r, model.PhaseCooldown)
}

func (o *Orchestrator) executor(r *run) *pattern.Executor {
	return pattern.NewExecutor(r.client, o.timing, o.classifier, r.log)
}

// absorbPattern merges a pattern result into the session stats and records
// request timings.
func (o *Orchestrator) absorbPattern(ctx context.Context, r *run, result *pattern.Result) {
	if result == nil {
		return
	}
	r.stats.Requests += result.Requests
	r.stats.Errors += result.Errors
	r.banScore += result.BanScore
	r.indicators = append(r.indicators, result.Indicators...)
	if result.Terminal != nil {
		r.terminal = result.Terminal
	}
	if o.collector != nil {
		for _, s := range result.Samples {
			o.collector.ObserveRequest(string(s.Status))
		}
	}
	if o.cfg.LogRequestTimings && len(result.Samples) > 0 {
		batch := make([]model.CreateRequestTimingParams, 0, len(result.Samples))
		for _, s := range result.Samples {
			batch = append(batch, model.CreateRequestTimingParams{
				AccountID:     r.account.ID,
				SessionID:     &r.session.ID,
				Operation:     s.Op.String(),
				LatencyMS:     s.Latency.Milliseconds(),
				Burst:         s.Burst,
				BurstPosition: s.BurstPosition,
			})
		}
		if err := o.repos.RequestTimings.CreateBatch(ctx, batch); err != nil {
			r.log.Warn().Err(err).Msg("failed to record request timings")
		}
	}
}

func (o *Orchestrator) fetchProfile(ctx context.Context, r *run) (*wire.Profile, []wire.Purchase, bool) {
	prof, result, err := r.client.Profile(ctx)
	r.stats.Requests++
	o.observe(result, err)
	if err != nil || prof == nil || !result.Success() {
		o.note(r, o.classifier.Classify(ctx, result, r.client, r.progress.ConsecutiveErrors))
		r.stats.Errors++
		r.log.Warn().Err(err).Msg("profile fetch failed")
		return nil, nil, false
	}

	// A failed purchases call must not read as "no premium". The session
	// ends instead and the account state stays as it was.
	purchases, presult, err := r.client.Purchases(ctx)
	r.stats.Requests++
	o.observe(presult, err)
	if err != nil || !presult.Success() {
		o.note(r, o.classifier.Classify(ctx, presult, r.client, r.progress.ConsecutiveErrors))
		r.stats.Errors++
		r.log.Warn().Err(err).Msg("purchases fetch failed")
		return nil, nil, false
	}
	return prof, purchases, true
}

// note folds one assessment into the run's detection accumulators.
func (o *Orchestrator) note(r *run, assessment detect.Assessment) {
	r.banScore += assessment.BanScoreDelta
	r.indicators = append(r.indicators, assessment.Indicators...)
	if isTerminal(assessment.Action) {
		r.terminal = &assessment
	}
}

// observe reports one wire call outcome to the metrics collector.
func (o *Orchestrator) observe(result *wire.Result, err error) {
	if o.collector == nil {
		return
	}
	status := wire.StatusTransportFailure
	if err == nil && result != nil {
		status = result.Status
	}
	o.collector.ObserveRequest(string(status))
}

// premiumExpiry returns the latest active premium expiry, or nil when no
// purchase grants a premium tier.
func premiumExpiry(purchases []wire.Purchase, now time.Time) *time.Time {
	var latest *time.Time
	for i := range purchases {
		p := purchases[i]
		if !p.Active(now) {
			continue
		}
		if latest == nil || p.ExpireDate.After(*latest) {
			expiry := p.ExpireDate
			latest = &expiry
		}
	}
	return latest
}

func (o *Orchestrator) maybeUpdateProfile(ctx context.Context, r *run, prof *wire.Profile) {
	assignedName := ""
	if r.account.AssignedName != nil {
		assignedName = *r.account.AssignedName
	}

	updateBio := false
	if o.cfg.UpdateBio && o.cfg.BioText != "" && assignedName != "" {
		target := profile.ResolvePlaceholders(o.cfg.BioText, assignedName)
		updateBio = profile.NeedsBioUpdate(prof.Bio, target)
	}
	updatePrompt := false
	if o.cfg.AddPrompt && o.cfg.PromptID != "" && assignedName != "" {
		target := profile.ResolvePlaceholders(o.cfg.PromptText, assignedName)
		updatePrompt = profile.NeedsPromptUpdate(prof.Prompts, o.cfg.PromptID, target)
	}
	if !updateBio && !updatePrompt {
		return
	}

	o.setPhase(ctx, r, model.PhaseProfileUpdate)

	if updateBio {
		target := profile.ResolvePlaceholders(o.cfg.BioText, assignedName)
		result, err := r.client.UpdateBio(ctx, target)
		r.stats.Requests++
		success := err == nil && result.Success()
		o.recordActivity(ctx, r, model.ActivityBioUpdate, nil, success)
		if success {
			if err := o.repos.Status.SetBioUpdated(ctx, r.account.ID, true); err != nil {
				r.log.Warn().Err(err).Msg("failed to store bio-updated flag")
			}
		} else {
			r.stats.Errors++
		}
	}
	if updatePrompt {
		target := profile.ResolvePlaceholders(o.cfg.PromptText, assignedName)
		result, err := r.client.UpdatePrompt(ctx, o.cfg.PromptID, target)
		r.stats.Requests++
		success := err == nil && result.Success()
		o.recordActivity(ctx, r, model.ActivityPromptUpdate, nil, success)
		if success {
			if err := o.repos.Status.SetPromptsUpdated(ctx, r.account.ID, true); err != nil {
				r.log.Warn().Err(err).Msg("failed to store prompts-updated flag")
			}
		} else {
			r.stats.Errors++
		}
	}

	if _, err := o.timing.Delay(ctx, timing.ClassLong, 1.5); err != nil {
		return
	}
}

func (o *Orchestrator) runLiking(ctx context.Context, r *run) {
	// Burst traffic around the liked-me surface first, the way the real
	// client leads into the likes screen.
	likedMe, err := o.executor(r).RunNamed(ctx, pattern.LikedMeProcessing, &r.progress)
	o.absorbPattern(ctx, r, likedMe)
	if err != nil || r.terminal != nil {
		return
	}

	queued := 0
	if r.status != nil {
		queued = r.status.QueueCount
	}
	if queued <= 0 {
		// The cached count is empty or stale. One count call refreshes it
		// before committing to the liking phase.
		count, result, err := r.client.LikedMeCount(ctx)
		r.stats.Requests++
		r.progress.Actions++
		o.observe(result, err)
		if err != nil || !result.Success() {
			r.stats.Errors++
			o.note(r, o.classifier.Classify(ctx, result, r.client, r.progress.ConsecutiveErrors))
			r.log.Warn().Err(err).Msg("queue count refresh failed")
			return
		}
		queued = count
		if err := o.repos.Status.SetQueueCount(ctx, r.account.ID, count, time.Now()); err != nil {
			r.log.Warn().Err(err).Msg("failed to store queue count")
		}
	}
	if queued <= 0 {
		r.log.Info().Msg("inbound queue empty, skipping liking phase")
		return
	}

	budget := o.likeBudget(ctx, r)
	if budget <= 0 {
		r.log.Info().Msg("no like budget remaining, skipping liking phase")
		return
	}

	o.setPhase(ctx, r, model.PhaseLiking)

	processor := queue.NewProcessor(r.client, o.timing, o.classifier, queue.Config{
		PageSize:            o.cfg.QueuePageSize,
		ProcessAll:          o.cfg.QueueProcessAll,
		LikePercent:         o.cfg.LikePercentage,
		DelayAfterPageFetch: o.cfg.DelayAfterPageFetch(),
		LikeDelayMin:        time.Duration(o.cfg.DelayBetweenLikesMinMS) * time.Millisecond,
		LikeDelayMax:        time.Duration(o.cfg.DelayBetweenLikesMaxMS) * time.Millisecond,
		Record: func(kind model.ActivityType, targetID *string, success bool) {
			o.recordActivity(ctx, r, kind, targetID, success)
		},
	}, r.log)

	stats, runErr := processor.Run(ctx, budget, r.endTime, &r.progress)
	r.stats.Merge(model.SessionStats{
		Requests:       stats.Requests,
		Errors:         stats.Errors,
		Likes:          stats.LikesSent,
		Passes:         stats.PassesSent,
		Matches:        stats.MatchesGained,
		UsersProcessed: stats.UsersProcessed,
	})
	r.banScore += stats.BanScore
	r.indicators = append(r.indicators, stats.Indicators...)
	if stats.Terminal != nil {
		r.terminal = stats.Terminal
	}

	if stats.LikesSent > 0 {
		if _, err := o.store.IncrDailyLikes(ctx, r.account.ID, o.localDate(r.account), int64(stats.LikesSent), config.DailyCounterTTL); err != nil {
			r.log.Warn().Err(err).Msg("failed to bump daily like counter")
		}
	}
	// Heuristic write-back: start count minus processed, never a re-fetch.
	if err := o.repos.Status.SetQueueCount(ctx, r.account.ID, stats.RemainingEstimate, time.Now()); err != nil {
		r.log.Warn().Err(err).Msg("failed to write back queue count")
	}
	if runErr != nil {
		r.log.Info().Err(runErr).Msg("liking phase interrupted")
	}
}

// likeBudget computes the remaining likes for this session from the
// session cap and the account-local daily cap.
func (o *Orchestrator) likeBudget(ctx context.Context, r *run) int {
	budget := o.cfg.MaxLikesPerSession
	used, err := o.store.DailyLikes(ctx, r.account.ID, o.localDate(r.account))
	if err != nil {
		r.log.Warn().Err(err).Msg("failed to read daily like counter")
		return budget
	}
	dailyRemaining := o.cfg.MaxLikesPerDay - int(used)
	if dailyRemaining < budget {
		budget = dailyRemaining
	}
	return budget
}

func (o *Orchestrator) localDate(account *model.Account) string {
	loc, err := time.LoadLocation(account.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return time.Now().In(loc).Format("2006-01-02")
}

func (o *Orchestrator) setPhase(ctx context.Context, r *run, phase model.SessionPhase) {
	if r.phase == phase && phase != model.PhaseStartup {
		return
	}
	from := r.phase
	r.phase = phase
	r.stats.PhasesRun = append(r.stats.PhasesRun, phase)

	if err := o.repos.Status.SetPhase(ctx, r.account.ID, phase); err != nil {
		r.log.Warn().Err(err).Msg("failed to persist session phase")
	}
	if from == phase {
		return
	}

	class, ok := transitionDelays[[2]model.SessionPhase{from, phase}]
	if !ok {
		class = defaultTransitionDelay
	}
	if _, err := o.timing.Delay(ctx, class, timing.SeverityFactor(r.progress.ConsecutiveErrors, r.progress.Actions)); err != nil {
		return
	}
}

func (o *Orchestrator) recordActivity(ctx context.Context, r *run, kind model.ActivityType, targetID *string, success bool) {
	phase := string(r.phase)
	if _, err := o.repos.Activity.Create(ctx, model.CreateActivityParams{
		AccountID: r.account.ID,
		SessionID: &r.session.ID,
		Type:      kind,
		TargetID:  targetID,
		Success:   success,
		Phase:     &phase,
	}); err != nil {
		r.log.Warn().Err(err).Msg("failed to record activity")
	}
}

func isTerminal(action detect.Action) bool {
	switch action {
	case detect.ActionMarkBanned, detect.ActionMarkDead, detect.ActionAbortSession:
		return true
	}
	return false
}

// finalize writes the session end record, applies any terminal account
// transition, and publishes metrics. Runs exactly once per session.
func (o *Orchestrator) finalize(ctx context.Context, r *run) {
	endedAt := time.Now()
	duration := endedAt.Sub(r.session.StartedAt)
	quality := QualityScore(r.stats, duration, o.cfg.MaxLikesPerSession)

	if _, err := o.repos.Sessions.Finalize(ctx, r.session.ID, endedAt, repository.FinalizeSessionParams{
		Requests:     r.stats.Requests,
		Likes:        r.stats.Likes,
		Passes:       r.stats.Passes,
		Matches:      r.stats.Matches,
		Errors:       r.stats.Errors,
		QualityScore: quality,
		FinalPhase:   r.phase,
	}); err != nil {
		r.log.Error().Err(err).Msg("failed to finalize session record")
	}
	if err := o.repos.Status.MarkSessionEnd(ctx, r.account.ID, endedAt); err != nil {
		r.log.Warn().Err(err).Msg("failed to mark session end")
	}
	if err := o.repos.Accounts.AddSessionTotals(ctx, r.account.ID, int64(r.stats.Requests), int64(r.stats.Likes)); err != nil {
		r.log.Warn().Err(err).Msg("failed to add session totals")
	}
	if r.stats.Errors > 0 {
		if err := o.repos.Accounts.RecordError(ctx, r.account.ID, fmt.Sprintf("%d errors in session %d", r.stats.Errors, r.session.ID)); err != nil {
			r.log.Warn().Err(err).Msg("failed to record session errors")
		}
	}

	o.persistDetection(ctx, r)
	o.applyTerminal(ctx, r)

	audit.Log(ctx, audit.Event{
		Type:      audit.EventSessionFinalize,
		AccountID: r.account.ID,
		SessionID: r.session.ID,
		Details: map[string]interface{}{
			"requests":    r.stats.Requests,
			"likes":       r.stats.Likes,
			"matches":     r.stats.Matches,
			"errors":      r.stats.Errors,
			"quality":     quality,
			"final_phase": string(r.phase),
		},
	})

	if o.collector != nil {
		o.collector.ObserveSession(string(r.phase), duration, quality)
		o.collector.AddLikes(r.stats.Likes)
		o.collector.AddMatches(r.stats.Matches)
	}

	r.log.Info().
		Int("requests", r.stats.Requests).
		Int("likes", r.stats.Likes).
		Int("matches", r.stats.Matches).
		Int("errors", r.stats.Errors).
		Float64("quality", quality).
		Dur("duration", duration).
		Msg("session finalized")
}

// applyTerminal performs the account transition a terminal classifier
// verdict (or policy ban) demanded, with a human-readable summary.
func (o *Orchestrator) applyTerminal(ctx context.Context, r *run) {
	if r.terminal == nil {
		return
	}

	switch r.terminal.Action {
	case detect.ActionMarkBanned:
		reason := r.banReason
		if reason == "" {
			reason = "ban indicators detected"
		}
		if _, err := o.repos.Accounts.UpdateStatus(ctx, r.account.ID, model.LifecycleBanned); err != nil {
			r.log.Error().Err(err).Msg("failed to mark account banned")
		}
		if o.collector != nil {
			o.collector.IncBans()
		}
		audit.Log(ctx, audit.Event{
			Type:      audit.EventAccountBanned,
			AccountID: r.account.ID,
			SessionID: r.session.ID,
			Reason:    reason,
			Details:   map[string]interface{}{"session_matches": r.stats.Matches},
		})
		r.log.Warn().
			Str("reason", reason).
			Int("session_matches", r.stats.Matches).
			Msg("account banned")

	case detect.ActionMarkDead:
		if _, err := o.repos.Accounts.UpdateStatus(ctx, r.account.ID, model.LifecycleDead); err != nil {
			r.log.Error().Err(err).Msg("failed to mark account dead")
		}
		audit.Log(ctx, audit.Event{
			Type:      audit.EventAccountDead,
			AccountID: r.account.ID,
			SessionID: r.session.ID,
			Reason:    "authentication expired and refresh failed",
			Details:   map[string]interface{}{"session_matches": r.stats.Matches},
		})
		r.log.Warn().
			Str("reason", "authentication expired and refresh failed").
			Int("session_matches", r.stats.Matches).
			Msg("account dead")

	case detect.ActionAbortSession:
		audit.Log(ctx, audit.Event{
			Type:      audit.EventSessionAbort,
			AccountID: r.account.ID,
			SessionID: r.session.ID,
			Reason:    "repeated transport failures",
		})
		r.log.Warn().Int("session_matches", r.stats.Matches).Msg("session aborted after repeated transport failures")
	}
}

// persistDetection writes the ban score delta and indicator rows gathered
// over the session, in one transaction when a runner is available.
func (o *Orchestrator) persistDetection(ctx context.Context, r *run) {
	if r.banScore <= 0 && len(r.indicators) == 0 {
		return
	}

	write := func(accounts repository.AccountRepository, bans repository.BanIndicatorRepository) error {
		if r.banScore > 0 {
			if err := accounts.UpdateBanScore(ctx, r.account.ID, r.account.BanScore+r.banScore); err != nil {
				return err
			}
		}
		for _, ind := range r.indicators {
			if _, err := bans.Create(ctx, model.CreateBanIndicatorParams{
				AccountID: r.account.ID,
				Indicator: ind.Name,
				Severity:  ind.Severity,
			}); err != nil {
				return err
			}
		}
		return nil
	}

	var err error
	if o.repos.Tx != nil {
		err = o.repos.Tx.WithTx(ctx, func(tx *sqlx.Tx) error {
			return write(o.repos.Accounts.WithTx(tx), o.repos.BanIndicators.WithTx(tx))
		})
	} else {
		err = write(o.repos.Accounts, o.repos.BanIndicators)
	}
	if err != nil {
		r.log.Warn().Err(err).Msg("failed to persist detection signals")
		return
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventBanIndicator,
		AccountID: r.account.ID,
		SessionID: r.session.ID,
		Details: map[string]interface{}{
			"score_delta": r.banScore,
			"indicators":  len(r.indicators),
		},
	})
}

// QualityScore grades a finished session on error rate, like volume,
// matches, and duration plausibility. Clamped to [0, 1].
func QualityScore(stats model.SessionStats, duration time.Duration, maxLikesPerSession int) float64 {
	score := 1.0

	if stats.Errors > 0 {
		requests := stats.Requests
		if requests < 1 {
			requests = 1
		}
		score -= float64(stats.Errors) / float64(requests) * 0.5
	}

	if stats.Likes == 0 {
		score -= 0.3
	} else if stats.Likes > maxLikesPerSession {
		score -= 0.2
	}

	if stats.Matches > 0 {
		bonus := float64(stats.Matches) * 0.1
		if bonus > 0.3 {
			bonus = 0.3
		}
		score += bonus
	}

	if duration < 5*time.Minute {
		score -= 0.2
	} else if duration > time.Hour {
		score -= 0.1
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
