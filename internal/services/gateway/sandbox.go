package gateway

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"custody/internal/money"

	"github.com/google/uuid"
)

// Test instruments understood by the sandbox, named after the provider's
// own test payment methods.
const (
	SandboxCardVisa            = "pm_card_visa"
	SandboxCardMastercard      = "pm_card_mastercard"
	SandboxCardDeclined        = "pm_card_chargeDeclined"
	SandboxCardRequiresAction  = "pm_card_authenticationRequired"
	sandboxInstrumentIDPrefix  = "pm_sandbox_"
	sandboxAuthorizationPrefix = "pi_sandbox_"
	sandboxPayerPrefix         = "cus_sandbox_"
)

var sandboxPresets = map[string]Instrument{
	SandboxCardVisa:           {ID: SandboxCardVisa, Type: "card", Brand: "visa", LastFour: "4242", ExpMonth: 12, ExpYear: 2034},
	SandboxCardMastercard:     {ID: SandboxCardMastercard, Type: "card", Brand: "mastercard", LastFour: "4444", ExpMonth: 12, ExpYear: 2034},
	SandboxCardDeclined:       {ID: SandboxCardDeclined, Type: "card", Brand: "visa", LastFour: "0002", ExpMonth: 12, ExpYear: 2034},
	SandboxCardRequiresAction: {ID: SandboxCardRequiresAction, Type: "card", Brand: "visa", LastFour: "3184", ExpMonth: 12, ExpYear: 2034},
}

// Sandbox is an in-memory provider used for local runs and tests. Preset
// instruments may be attached to any number of payers; created instruments
// follow the provider's single-owner rule.
type Sandbox struct {
	mu             sync.Mutex
	payers         map[string]string
	authorizations map[string]*Authorization
	instruments    map[string]*Instrument
	latency        time.Duration
	calls          map[string]int
}

func NewSandbox() *Sandbox {
	return &Sandbox{
		payers:         make(map[string]string),
		authorizations: make(map[string]*Authorization),
		instruments:    make(map[string]*Instrument),
		calls:          make(map[string]int),
	}
}

// SetLatency delays every call by d, honoring context cancellation.
func (s *Sandbox) SetLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
}

// Calls returns how many times op has been invoked.
func (s *Sandbox) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *Sandbox) enter(ctx context.Context, op string) error {
	s.mu.Lock()
	s.calls[op]++
	latency := s.latency
	s.mu.Unlock()

	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ctx.Err()
}

func (s *Sandbox) RegisterPayer(ctx context.Context, email string) (string, error) {
	if err := s.enter(ctx, "RegisterPayer"); err != nil {
		return "", err
	}
	if !strings.Contains(email, "@") {
		return "", fmt.Errorf("%w: invalid email %q", ErrInvalidRequest, email)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ref := sandboxPayerPrefix + uuid.NewString()
	s.payers[ref] = email
	return ref, nil
}

func (s *Sandbox) CreateAuthorization(ctx context.Context, req AuthorizationRequest) (*Authorization, error) {
	if err := s.enter(ctx, "CreateAuthorization"); err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payers[req.PayerRef]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrPayerUnknown, req.PayerRef)
	}
	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = money.DefaultCurrency
	}
	id := sandboxAuthorizationPrefix + uuid.NewString()
	auth := &Authorization{
		ID:            id,
		ClientSecret:  id + "_secret_" + uuid.NewString()[:8],
		Status:        StatusRequiresPaymentMethod,
		Amount:        req.Amount,
		Currency:      currency,
		PayerRef:      req.PayerRef,
		InstrumentRef: req.InstrumentRef,
	}
	if req.InstrumentRef != "" {
		auth.Status = StatusRequiresConfirmation
	}
	s.authorizations[id] = auth
	out := *auth
	return &out, nil
}

func (s *Sandbox) RetrieveAuthorization(ctx context.Context, authRef string) (*Authorization, error) {
	if err := s.enter(ctx, "RetrieveAuthorization"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	auth, ok := s.authorizations[authRef]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAuthorizationUnknown, authRef)
	}
	out := *auth
	return &out, nil
}

func (s *Sandbox) ConfirmAuthorization(ctx context.Context, authRef, instrumentRef string) (*Authorization, error) {
	if err := s.enter(ctx, "ConfirmAuthorization"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	auth, ok := s.authorizations[authRef]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAuthorizationUnknown, authRef)
	}
	if auth.Status == StatusSucceeded || auth.Status.IsTerminalFailure() {
		return nil, fmt.Errorf("%w: authorization %s is already %s", ErrInvalidRequest, authRef, auth.Status)
	}
	if _, ok := s.lookupInstrument(instrumentRef); !ok {
		return nil, fmt.Errorf("%w: %s", ErrInstrumentUnknown, instrumentRef)
	}

	auth.InstrumentRef = instrumentRef
	switch instrumentRef {
	case SandboxCardDeclined:
		auth.Status = StatusFailed
	case SandboxCardRequiresAction:
		auth.Status = StatusRequiresAction
	default:
		auth.Status = StatusSucceeded
	}
	out := *auth
	return &out, nil
}

// SetAuthorizationStatus forces the provider-side status, simulating an
// out-of-band change such as a webhook-driven success.
func (s *Sandbox) SetAuthorizationStatus(authRef string, status AuthorizationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	auth, ok := s.authorizations[authRef]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAuthorizationUnknown, authRef)
	}
	auth.Status = status
	return nil
}

func (s *Sandbox) CreateInstrument(ctx context.Context, kind string, details InstrumentDetails) (string, error) {
	if err := s.enter(ctx, "CreateInstrument"); err != nil {
		return "", err
	}
	if kind == "" {
		kind = "card"
	}
	if details.Token == "" && len(details.Number) < 4 {
		return "", fmt.Errorf("%w: card number or token required", ErrInvalidRequest)
	}

	inst := &Instrument{ID: sandboxInstrumentIDPrefix + uuid.NewString(), Type: kind, Brand: "visa", LastFour: "4242"}
	if details.Number != "" {
		inst.LastFour = details.Number[len(details.Number)-4:]
		inst.Brand = cardBrand(details.Number)
	}
	inst.ExpMonth, _ = strconv.Atoi(details.ExpMonth)
	inst.ExpYear, _ = strconv.Atoi(details.ExpYear)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.instruments[inst.ID] = inst
	return inst.ID, nil
}

func (s *Sandbox) RetrieveInstrument(ctx context.Context, instrumentRef string) (*Instrument, error) {
	if err := s.enter(ctx, "RetrieveInstrument"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.lookupInstrument(instrumentRef)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInstrumentUnknown, instrumentRef)
	}
	return &inst, nil
}

func (s *Sandbox) AttachToPayer(ctx context.Context, instrumentRef, payerRef string) error {
	if err := s.enter(ctx, "AttachToPayer"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payers[payerRef]; !ok {
		return fmt.Errorf("%w: %s", ErrPayerUnknown, payerRef)
	}
	if _, preset := sandboxPresets[instrumentRef]; preset {
		return nil
	}
	inst, ok := s.instruments[instrumentRef]
	if !ok {
		return fmt.Errorf("%w: %s", ErrInstrumentUnknown, instrumentRef)
	}
	if inst.PayerRef != "" && inst.PayerRef != payerRef {
		return fmt.Errorf("%w: instrument %s is attached to another payer", ErrInvalidRequest, instrumentRef)
	}
	inst.PayerRef = payerRef
	return nil
}

func (s *Sandbox) Detach(ctx context.Context, instrumentRef string) error {
	if err := s.enter(ctx, "Detach"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, preset := sandboxPresets[instrumentRef]; preset {
		return nil
	}
	inst, ok := s.instruments[instrumentRef]
	if !ok {
		return fmt.Errorf("%w: %s", ErrInstrumentUnknown, instrumentRef)
	}
	inst.PayerRef = ""
	return nil
}

// lookupInstrument must be called with s.mu held.
func (s *Sandbox) lookupInstrument(ref string) (Instrument, bool) {
	if preset, ok := sandboxPresets[ref]; ok {
		return preset, true
	}
	inst, ok := s.instruments[ref]
	if !ok {
		return Instrument{}, false
	}
	return *inst, true
}

func cardBrand(number string) string {
	switch {
	case strings.HasPrefix(number, "4"):
		return "visa"
	case strings.HasPrefix(number, "5"):
		return "mastercard"
	case strings.HasPrefix(number, "34"), strings.HasPrefix(number, "37"):
		return "amex"
	}
	return "unknown"
}
