package service

import (
	"context"
	"crypto/rand"
	"math/big"
	"sort"
	"strings"

	"github.com/dom/calcutta-auction/internal/config"
	"github.com/dom/calcutta-auction/internal/domain"
	"github.com/dom/calcutta-auction/internal/events"
	"github.com/dom/calcutta-auction/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
)

const (
	joinCodeLength   = 6
	joinCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	joinCodeAttempts = 5
)

// CacheInvalidator drops derived data when a session's inputs change.
type CacheInvalidator interface {
	Invalidate(sessionID uuid.UUID)
}

type SessionService struct {
	repos       *repository.Repositories
	publisher   events.Publisher
	invalidator CacheInvalidator
	cfg         *config.Config
}

func NewSessionService(repos *repository.Repositories, publisher events.Publisher, invalidator CacheInvalidator, cfg *config.Config) *SessionService {
	return &SessionService{
		repos:       repos,
		publisher:   publisher,
		invalidator: invalidator,
		cfg:         cfg,
	}
}

type CreateSessionInput struct {
	Name             string
	TournamentID     string
	CommissionerID   uuid.UUID
	DisplayName      string
	Settings         *domain.SessionSettings
	PayoutRules      domain.PayoutRules
	EstimatedPotSize decimal.Decimal
}

// Create opens a lobby with every tournament team in region-then-seed order.
func (s *SessionService) Create(ctx context.Context, input CreateSessionInput) (*domain.AuctionSession, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, ErrInvalidInput
	}
	if input.EstimatedPotSize.IsNegative() {
		return nil, ErrInvalidInput
	}

	tournament, err := s.repos.Tournament.GetByID(ctx, input.TournamentID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.ErrTournamentNotFound
		}
		return nil, &domain.PersistenceError{Op: "load tournament", Err: err}
	}

	teams, err := s.repos.Team.ListByTournament(ctx, tournament.ID)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load teams", Err: err}
	}
	if len(teams) == 0 {
		return nil, domain.ErrInvalidTeamOrder
	}

	rules := input.PayoutRules
	if len(rules) == 0 {
		rules = domain.PayoutRules(tournament.PayoutRules)
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}

	settings := s.defaultSettings()
	if input.Settings != nil {
		settings = *input.Settings
	}
	if err := validateSettings(settings); err != nil {
		return nil, err
	}

	displayName := input.DisplayName
	if displayName == "" {
		user, err := s.repos.User.GetByID(ctx, input.CommissionerID)
		if err != nil {
			return nil, &domain.PersistenceError{Op: "load user", Err: err}
		}
		displayName = user.DisplayName
	}

	session := &domain.AuctionSession{
		Name:             strings.TrimSpace(input.Name),
		CommissionerID:   input.CommissionerID,
		TournamentID:     tournament.ID,
		Status:           domain.SessionStatusLobby,
		TeamOrder:        datatypes.JSONSlice[string](orderTeams(teams, tournament.Regions)),
		BiddingStatus:    domain.BiddingStatusWaiting,
		Settings:         datatypes.NewJSONType(settings),
		PayoutRules:      datatypes.JSONSlice[domain.PayoutRule](rules),
		EstimatedPotSize: input.EstimatedPotSize,
	}

	for attempt := 0; ; attempt++ {
		session.ID = uuid.New()
		session.JoinCode = generateJoinCode()
		err = s.repos.Session.Create(ctx, session)
		if err == nil {
			break
		}
		if !repository.IsUniqueViolation(err) || attempt+1 >= joinCodeAttempts {
			return nil, &domain.PersistenceError{Op: "create session", Err: err}
		}
	}

	if err := s.repos.Participant.Create(ctx, &domain.Participant{
		ID:             uuid.New(),
		SessionID:      session.ID,
		UserID:         input.CommissionerID,
		DisplayName:    displayName,
		IsCommissioner: true,
	}); err != nil {
		return nil, &domain.PersistenceError{Op: "add commissioner", Err: err}
	}

	ownerships := make([]*domain.TeamOwnership, len(session.TeamOrder))
	for i, teamID := range session.TeamOrder {
		ownerships[i] = &domain.TeamOwnership{
			ID:            uuid.New(),
			SessionID:     session.ID,
			TeamID:        teamID,
			PurchasePrice: decimal.Zero,
		}
	}
	if err := s.repos.Ownership.CreateMany(ctx, ownerships); err != nil {
		return nil, &domain.PersistenceError{Op: "create ownerships", Err: err}
	}

	return s.get(ctx, session.ID)
}

// Join adds the user to a session found by id or join code. Joining twice
// returns the existing participant.
func (s *SessionService) Join(ctx context.Context, idOrCode string, userID uuid.UUID, displayName string) (*domain.Participant, error) {
	session, err := s.resolve(ctx, idOrCode)
	if err != nil {
		return nil, err
	}

	existing, err := s.repos.Participant.Get(ctx, session.ID, userID)
	if err == nil {
		return existing, nil
	}
	if !repository.IsNotFound(err) {
		return nil, &domain.PersistenceError{Op: "load participant", Err: err}
	}

	if session.Status == domain.SessionStatusCompleted {
		return nil, domain.StateViolation("auction is completed")
	}

	if displayName == "" {
		user, err := s.repos.User.GetByID(ctx, userID)
		if err != nil {
			return nil, &domain.PersistenceError{Op: "load user", Err: err}
		}
		displayName = user.DisplayName
	}

	participant := &domain.Participant{
		ID:          uuid.New(),
		SessionID:   session.ID,
		UserID:      userID,
		DisplayName: displayName,
	}
	if err := s.repos.Participant.Create(ctx, participant); err != nil {
		if repository.IsUniqueViolation(err) {
			return s.repos.Participant.Get(ctx, session.ID, userID)
		}
		return nil, &domain.PersistenceError{Op: "join session", Err: err}
	}
	return participant, nil
}

// Snapshot is the full resync view of a session.
type Snapshot struct {
	Session      *domain.AuctionSession  `json:"session"`
	Participants []*domain.Participant   `json:"participants"`
	CurrentBids  []*domain.Bid           `json:"currentBids"`
	Ownerships   []*domain.TeamOwnership `json:"ownerships"`
	CurrentTeam  *domain.BaseTeam        `json:"currentTeam,omitempty"`
}

// Snapshot reads everything a reconnecting client needs. It is a plain read
// and safe to call at any time.
func (s *SessionService) Snapshot(ctx context.Context, sessionID, userID uuid.UUID) (*Snapshot, error) {
	session, err := s.get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Session: session}
	teamID := session.CurrentTeamID()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		participants, err := s.repos.Participant.ListBySession(gctx, sessionID)
		snap.Participants = participants
		return err
	})
	g.Go(func() error {
		bids, err := s.repos.Bid.ListForTeam(gctx, sessionID, teamID)
		snap.CurrentBids = bids
		return err
	})
	g.Go(func() error {
		ownerships, err := s.repos.Ownership.ListBySession(gctx, sessionID)
		snap.Ownerships = ownerships
		return err
	})
	g.Go(func() error {
		team, err := s.repos.Team.GetByID(gctx, teamID)
		if repository.IsNotFound(err) {
			return nil
		}
		snap.CurrentTeam = team
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, &domain.PersistenceError{Op: "load snapshot", Err: err}
	}

	for _, p := range snap.Participants {
		if p.UserID == userID {
			return snap, nil
		}
	}
	return nil, domain.ErrNotParticipant
}

// Get returns the session when the caller participates in it.
func (s *SessionService) Get(ctx context.Context, idOrCode string, userID uuid.UUID) (*domain.AuctionSession, error) {
	session, err := s.resolve(ctx, idOrCode)
	if err != nil {
		return nil, err
	}
	for _, p := range session.Participants {
		if p.UserID == userID {
			return session, nil
		}
	}
	return nil, domain.ErrNotParticipant
}

// Delete removes a session that is not active, with everything under it.
func (s *SessionService) Delete(ctx context.Context, sessionID, actorID uuid.UUID) error {
	session, err := s.getAsCommissioner(ctx, sessionID, actorID)
	if err != nil {
		return err
	}
	if session.Status == domain.SessionStatusActive {
		return domain.ErrSessionLive
	}
	if err := s.repos.Session.Delete(ctx, sessionID); err != nil {
		if repository.IsNotFound(err) {
			return domain.ErrSessionNotFound
		}
		return &domain.PersistenceError{Op: "delete session", Err: err}
	}
	s.invalidator.Invalidate(sessionID)
	return nil
}

// UpdateTeamOrder replaces the auction order while the session is in the lobby.
func (s *SessionService) UpdateTeamOrder(ctx context.Context, sessionID, actorID uuid.UUID, order []string) (*domain.AuctionSession, error) {
	session, err := s.getAsCommissioner(ctx, sessionID, actorID)
	if err != nil {
		return nil, err
	}
	if session.Status != domain.SessionStatusLobby {
		return nil, domain.StateViolation("team order can only change before the auction starts")
	}
	if !isPermutation(session.TeamOrder, order) {
		return nil, domain.ErrInvalidTeamOrder
	}

	ok, err := s.repos.Session.UpdateIf(ctx, sessionID, repository.SessionCondition{
		Status: []domain.SessionStatus{domain.SessionStatusLobby},
	}, map[string]interface{}{
		"team_order":         datatypes.JSONSlice[string](order),
		"current_item_index": 0,
	})
	if err != nil {
		return nil, &domain.PersistenceError{Op: "update team order", Err: err}
	}
	if !ok {
		return nil, domain.StateViolation("team order can only change before the auction starts")
	}

	s.emit(ctx, sessionID, events.TeamOrderUpdated, events.TeamOrderPayload{Order: order})
	return s.get(ctx, sessionID)
}

// ToggleAutoMode turns automatic reopening after timer expiry on or off.
func (s *SessionService) ToggleAutoMode(ctx context.Context, sessionID, actorID uuid.UUID, enabled bool) (*domain.AuctionSession, error) {
	session, err := s.getAsCommissioner(ctx, sessionID, actorID)
	if err != nil {
		return nil, err
	}
	settings := session.Settings.Data()
	settings.AutoMode = enabled

	if err := s.writeLive(ctx, session, "settings", datatypes.NewJSONType(settings)); err != nil {
		return nil, err
	}

	s.emit(ctx, sessionID, events.AutoModeToggled, events.AutoModePayload{Enabled: enabled})
	return s.get(ctx, sessionID)
}

func (s *SessionService) UpdateSettings(ctx context.Context, sessionID, actorID uuid.UUID, settings domain.SessionSettings) (*domain.AuctionSession, error) {
	session, err := s.getAsCommissioner(ctx, sessionID, actorID)
	if err != nil {
		return nil, err
	}
	if err := validateSettings(settings); err != nil {
		return nil, err
	}
	if err := s.writeLive(ctx, session, "settings", datatypes.NewJSONType(settings)); err != nil {
		return nil, err
	}
	s.invalidator.Invalidate(sessionID)
	return s.get(ctx, sessionID)
}

func (s *SessionService) UpdatePayoutRules(ctx context.Context, sessionID, actorID uuid.UUID, rules domain.PayoutRules) (*domain.AuctionSession, error) {
	session, err := s.getAsCommissioner(ctx, sessionID, actorID)
	if err != nil {
		return nil, err
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	if err := s.writeLive(ctx, session, "payout_rules", datatypes.JSONSlice[domain.PayoutRule](rules)); err != nil {
		return nil, err
	}
	s.invalidator.Invalidate(sessionID)
	return s.get(ctx, sessionID)
}

func (s *SessionService) UpdateEstimatedPot(ctx context.Context, sessionID, actorID uuid.UUID, pot decimal.Decimal) (*domain.AuctionSession, error) {
	session, err := s.getAsCommissioner(ctx, sessionID, actorID)
	if err != nil {
		return nil, err
	}
	if pot.IsNegative() {
		return nil, ErrInvalidInput
	}
	if err := s.writeLive(ctx, session, "estimated_pot_size", pot.Round(2)); err != nil {
		return nil, err
	}
	s.invalidator.Invalidate(sessionID)
	return s.get(ctx, sessionID)
}

// ListMine returns the sessions the user participates in, newest first.
func (s *SessionService) ListMine(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.AuctionSession, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	sessions, err := s.repos.Session.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list sessions", Err: err}
	}
	return sessions, nil
}

// writeLive updates one column while the session has not completed.
func (s *SessionService) writeLive(ctx context.Context, session *domain.AuctionSession, column string, value interface{}) error {
	if session.Status == domain.SessionStatusCompleted {
		return domain.StateViolation("auction is completed")
	}
	ok, err := s.repos.Session.UpdateIf(ctx, session.ID, repository.SessionCondition{
		Status: []domain.SessionStatus{
			domain.SessionStatusLobby,
			domain.SessionStatusActive,
			domain.SessionStatusPaused,
		},
	}, map[string]interface{}{column: value})
	if err != nil {
		return &domain.PersistenceError{Op: "update " + column, Err: err}
	}
	if !ok {
		return domain.StateViolation("auction is completed")
	}
	return nil
}

func (s *SessionService) resolve(ctx context.Context, idOrCode string) (*domain.AuctionSession, error) {
	if id, err := uuid.Parse(idOrCode); err == nil {
		return s.get(ctx, id)
	}
	session, err := s.repos.Session.GetByJoinCode(ctx, strings.ToUpper(strings.TrimSpace(idOrCode)))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, &domain.PersistenceError{Op: "load session", Err: err}
	}
	return session, nil
}

func (s *SessionService) get(ctx context.Context, sessionID uuid.UUID) (*domain.AuctionSession, error) {
	session, err := s.repos.Session.GetByID(ctx, sessionID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, &domain.PersistenceError{Op: "load session", Err: err}
	}
	return session, nil
}

func (s *SessionService) getAsCommissioner(ctx context.Context, sessionID, actorID uuid.UUID) (*domain.AuctionSession, error) {
	session, err := s.get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.CommissionerID != actorID {
		return nil, domain.ErrNotCommissioner
	}
	return session, nil
}

func (s *SessionService) emit(ctx context.Context, sessionID uuid.UUID, t events.Type, payload interface{}) {
	event, err := events.New(sessionID, t, payload)
	if err == nil {
		err = s.publisher.Publish(ctx, event)
	}
	if err != nil {
		logPublishError("service.SessionService", t, sessionID, err)
	}
}

func (s *SessionService) defaultSettings() domain.SessionSettings {
	settings := domain.DefaultSessionSettings()
	if s.cfg != nil {
		if secs := int(s.cfg.DefaultTimerDuration.Seconds()); secs > 0 {
			settings.TimerDurationSeconds = secs
		}
		if secs := int(s.cfg.DefaultTimerReset.Seconds()); secs > 0 {
			settings.TimerResetSeconds = secs
		}
	}
	return settings
}

func validateSettings(settings domain.SessionSettings) error {
	if settings.TimerDurationSeconds < 0 || settings.TimerResetSeconds < 0 {
		return ErrInvalidInput
	}
	if settings.TimerEnabled && settings.TimerDurationSeconds == 0 {
		return ErrInvalidInput
	}
	for _, inc := range settings.BidIncrements {
		if inc <= 0 {
			return ErrInvalidInput
		}
	}
	return nil
}

// orderTeams sorts by the tournament's region order, then seed.
func orderTeams(teams []*domain.BaseTeam, regions []string) []string {
	rank := make(map[string]int, len(regions))
	for i, r := range regions {
		rank[r] = i
	}
	regionRank := func(region string) int {
		if i, ok := rank[region]; ok {
			return i
		}
		return len(regions)
	}

	sorted := make([]*domain.BaseTeam, len(teams))
	copy(sorted, teams)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := regionRank(sorted[i].Region), regionRank(sorted[j].Region)
		if ri != rj {
			return ri < rj
		}
		if sorted[i].Region != sorted[j].Region {
			return sorted[i].Region < sorted[j].Region
		}
		return sorted[i].Seed < sorted[j].Seed
	})

	order := make([]string, len(sorted))
	for i, t := range sorted {
		order[i] = t.ID
	}
	return order
}

func isPermutation(current []string, proposed []string) bool {
	if len(current) != len(proposed) {
		return false
	}
	counts := make(map[string]int, len(current))
	for _, id := range current {
		counts[id]++
	}
	for _, id := range proposed {
		counts[id]--
		if counts[id] < 0 {
			return false
		}
	}
	return true
}

func generateJoinCode() string {
	var b strings.Builder
	max := big.NewInt(int64(len(joinCodeAlphabet)))
	for i := 0; i < joinCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			panic(err)
		}
		b.WriteByte(joinCodeAlphabet[n.Int64()])
	}
	return b.String()
}
