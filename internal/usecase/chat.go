package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"scooby-agent/internal/dialogue"
	"scooby-agent/internal/domain"
	"scooby-agent/internal/integrations/opensea"
	"scooby-agent/internal/integrations/pools"
	"scooby-agent/internal/repository"
)

const (
	defaultHistoryLimit     = 20
	defaultMaxMessageLength = 2000
	defaultCallTimeout      = 20 * time.Second

	ruleExplicit = "explicit"
)

// LLM is the text generation facade. Every caller has a local fallback.
type LLM interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

type ConversationStore interface {
	AppendTurn(ctx context.Context, turn domain.ConversationTurn) (domain.ConversationTurn, error)
	GetHistory(ctx context.Context, conversationID, userID string, limit int) ([]domain.ConversationTurn, error)
	ListConversations(ctx context.Context, userID string) ([]domain.ConversationSummary, error)
	ResolveWallet(ctx context.Context, walletAddress string) (domain.Identity, error)
}

type OpenSea interface {
	GetCollection(ctx context.Context, slug string) (opensea.Collection, error)
	ListCollections(ctx context.Context, q opensea.ListQuery) (opensea.CollectionList, error)
	GetCollectionStats(ctx context.Context, slug string) (opensea.CollectionStats, error)
}

type Pools interface {
	Create(ctx context.Context, in pools.CreateRequest) (pools.Pool, error)
	Invest(ctx context.Context, in pools.InvestRequest) (pools.InvestResult, error)
	ListByCollection(ctx context.Context, address string) (pools.CollectionPools, error)
}

// Deps are the collaborators of ChatService. LLM and Pools may be nil.
type Deps struct {
	Store   ConversationStore
	LLM     LLM
	OpenSea OpenSea
	Pools   Pools
}

type Options struct {
	HistoryLimit     int
	MaxMessageLength int
	CallTimeout      time.Duration
	SuggestionTTL    time.Duration
}

type ChatService struct {
	store   ConversationStore
	llm     LLM
	opensea OpenSea
	pools   Pools
	tracker *dialogue.Tracker

	historyLimit  int
	maxMessageLen int
	callTimeout   time.Duration
	suggestions   *suggestionCache
}

// Params are the optional structured hints of a chat request.
type Params struct {
	Limit          int      `json:"limit,omitempty"`
	OrderBy        string   `json:"order_by,omitempty"`
	OrderDirection string   `json:"order_direction,omitempty"`
	Chain          string   `json:"chain,omitempty"`
	Days           int      `json:"days,omitempty"`
	Slug           string   `json:"slug,omitempty"`
	Address        string   `json:"address,omitempty"`
	MinVolumeETH   *float64 `json:"min_volume_eth,omitempty"`
}

type SendInput struct {
	Message        string
	ConversationID string
	UserID         string
	WalletAddress  string
	Intent         string
	Params         Params
}

type SendOutput struct {
	Reply          string
	Data           any
	ConversationID string
	Intent         domain.Intent
}

func NewChatService(d Deps, opts Options) (*ChatService, error) {
	if d.Store == nil {
		return nil, errors.New("usecase: conversation store must not be nil")
	}
	if d.OpenSea == nil {
		return nil, errors.New("usecase: opensea client must not be nil")
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = defaultHistoryLimit
	}
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = defaultMaxMessageLength
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	var gen dialogue.Generator
	if d.LLM != nil {
		gen = boundedLLM{llm: d.LLM, timeout: opts.CallTimeout}
	}
	tracker, err := dialogue.NewTracker(dialogue.NewClassifier(gen))
	if err != nil {
		return nil, err
	}
	return &ChatService{
		store:         d.Store,
		llm:           d.LLM,
		opensea:       d.OpenSea,
		pools:         d.Pools,
		tracker:       tracker,
		historyLimit:  opts.HistoryLimit,
		maxMessageLen: opts.MaxMessageLength,
		callTimeout:   opts.CallTimeout,
		suggestions:   newSuggestionCache(opts.SuggestionTTL),
	}, nil
}

// turn carries what the controllers need about the current request.
type turn struct {
	message        string
	rewritten      string
	conversationID string
	userID         string
	wallet         string
	params         Params
	transcript     domain.Transcript
	history        []string
}

func (t turn) suggestionKey() string {
	if t.userID != "" {
		return "user:" + t.userID
	}
	return "conv:" + t.conversationID
}

// Send runs one chat turn. Only input validation fails the call; every
// dependency failure degrades to a reply.
func (s *ChatService) Send(ctx context.Context, in SendInput) (SendOutput, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return SendOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if utf8.RuneCountInString(message) > s.maxMessageLen {
		return SendOutput{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}
	explicit := domain.IntentNone
	if raw := strings.TrimSpace(in.Intent); raw != "" {
		parsed, ok := domain.ParseIntent(raw)
		if !ok {
			return SendOutput{}, newError(ErrorInvalidInput, "unknown_intent", nil)
		}
		explicit = parsed
	}

	t := turn{
		message:        message,
		conversationID: strings.TrimSpace(in.ConversationID),
		userID:         strings.TrimSpace(in.UserID),
		wallet:         domain.NormalizeWallet(in.WalletAddress),
		params:         in.Params,
	}
	if t.conversationID == "" {
		t.conversationID = newUUID()
	}
	if t.wallet != "" {
		if id, err := s.resolveIdentity(ctx, t.wallet); err != nil {
			slog.WarnContext(ctx, "wallet resolution failed, continuing anonymously", "err", err)
		} else if t.userID == "" {
			t.userID = id.UserID
		}
	}

	turns := s.loadHistory(ctx, t.conversationID, t.userID)
	t.transcript = domain.TranscriptFromTurns(turns)
	t.history = historyPairs(turns)
	t.rewritten = s.rewrite(ctx, t)

	state := dialogue.DeriveFlowState(turns)
	var res dialogue.Resolution
	if explicit != domain.IntentNone && !(state.Active() && dialogue.IsCancel(message)) {
		res = dialogue.Resolution{Intent: explicit, Rule: ruleExplicit}
	} else {
		res = s.tracker.Resolve(ctx, dialogue.TrackInput{
			Transcript: t.transcript,
			Message:    message,
			Rewritten:  t.rewritten,
			LastIntent: lastIntent(turns),
		})
	}

	var reply string
	var data any
	step := "reply"
	switch {
	case res.Cancelled:
		flow, _ := dialogue.FlowFor(res.Intent)
		st := flow.Cancelled()
		reply, step = st.Message, st.Kind.String()
	case res.Intent.IsFlow():
		var st dialogue.StepKind
		reply, data, st = s.runFlow(ctx, res.Intent, t)
		step = st.String()
	default:
		reply, data = s.runLookup(ctx, res.Intent, t)
	}

	slog.InfoContext(ctx, "chat turn",
		"conversation_id", t.conversationID,
		"intent", string(res.Intent),
		"rule", res.Rule,
		"step", step,
	)

	s.persist(ctx, domain.ConversationTurn{
		UserID:            t.userID,
		ConversationID:    t.conversationID,
		UserQuestion:      message,
		RewrittenQuestion: t.rewritten,
		Intent:            res.Intent,
		AIAnswer:          reply,
	})

	return SendOutput{
		Reply:          reply,
		Data:           data,
		ConversationID: t.conversationID,
		Intent:         res.Intent,
	}, nil
}

// History returns the last turns of a conversation, oldest first.
func (s *ChatService) History(ctx context.Context, conversationID, userID string) ([]domain.ConversationTurn, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, newError(ErrorInvalidInput, "missing_conversation_id", nil)
	}
	turns, err := s.store.GetHistory(ctx, conversationID, strings.TrimSpace(userID), s.historyLimit)
	if err != nil {
		return nil, classify("history_read_error", err, ErrorInternal)
	}
	if turns == nil {
		turns = []domain.ConversationTurn{}
	}
	return turns, nil
}

func (s *ChatService) Conversations(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	out, err := s.store.ListConversations(ctx, strings.TrimSpace(userID))
	if err != nil {
		return nil, classify("conversations_read_error", err, ErrorInternal)
	}
	if out == nil {
		out = []domain.ConversationSummary{}
	}
	return out, nil
}

// ResolveWallet returns the identity of a wallet, creating it on first use.
func (s *ChatService) ResolveWallet(ctx context.Context, walletAddress string) (domain.Identity, error) {
	if domain.NormalizeWallet(walletAddress) == "" {
		return domain.Identity{}, newError(ErrorInvalidInput, "missing_wallet_address", nil)
	}
	id, err := s.resolveIdentity(ctx, walletAddress)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidWallet) {
			return domain.Identity{}, newError(ErrorInvalidInput, "missing_wallet_address", err)
		}
		return domain.Identity{}, classify("identity_write_error", err, ErrorInternal)
	}
	return id, nil
}

func (s *ChatService) resolveIdentity(ctx context.Context, wallet string) (domain.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	return s.store.ResolveWallet(ctx, wallet)
}

func (s *ChatService) loadHistory(ctx context.Context, conversationID, userID string) []domain.ConversationTurn {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	turns, err := s.store.GetHistory(ctx, conversationID, userID, s.historyLimit)
	if err != nil {
		slog.WarnContext(ctx, "history load failed, continuing without history",
			"conversation_id", conversationID, "err", err)
		return nil
	}
	return turns
}

func (s *ChatService) persist(ctx context.Context, t domain.ConversationTurn) {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	if _, err := s.store.AppendTurn(ctx, t); err != nil {
		slog.WarnContext(ctx, "persist turn failed",
			"conversation_id", t.ConversationID, "intent", string(t.Intent), "err", err)
	}
}

// rewrite asks the LLM for a context-complete version of the message and
// passes the message through on any failure.
func (s *ChatService) rewrite(ctx context.Context, t turn) string {
	if s.llm == nil {
		return t.message
	}
	out, err := s.generate(ctx, rewriteSystemPrompt(), rewriteUserPrompt(t.message, t.history))
	if err != nil {
		slog.WarnContext(ctx, "query rewrite failed", "err", err)
		return t.message
	}
	return out
}

// generate calls the LLM under the per-call timeout. An empty answer counts
// as a failure.
func (s *ChatService) generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if s.llm == nil {
		return "", errors.New("usecase: llm not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	out, err := s.llm.Generate(ctx, systemPrompt, userPrompt)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", errors.New("usecase: empty llm response")
	}
	return out, nil
}

func lastIntent(turns []domain.ConversationTurn) domain.Intent {
	if len(turns) == 0 {
		return domain.IntentNone
	}
	return turns[len(turns)-1].Intent
}

func (s *ChatService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.callTimeout)
}

// boundedLLM applies the per-call timeout to calls made outside the service,
// such as intent classification.
type boundedLLM struct {
	llm     LLM
	timeout time.Duration
}

func (b boundedLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.llm.Generate(ctx, systemPrompt, userPrompt)
}

var newUUID = func() string {
	return uuid.NewString()
}
