package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/kybernus/license-api/internal/domain/account"
	"github.com/kybernus/license-api/internal/domain/billing"
	"github.com/kybernus/license-api/internal/domain/notification"
)

// FakeIdentityProvider maps authorization codes to identities
type FakeIdentityProvider struct {
	mu         sync.Mutex
	Identities map[string]*account.Identity
	Calls      int
}

func NewFakeIdentityProvider() *FakeIdentityProvider {
	return &FakeIdentityProvider{Identities: make(map[string]*account.Identity)}
}

// Add registers the identity returned for code
func (f *FakeIdentityProvider) Add(code, subject, email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Identities[code] = &account.Identity{
		Provider: account.IdentityGoogle,
		Subject:  subject,
		Email:    email,
	}
}

func (f *FakeIdentityProvider) Name() string { return "Google" }

func (f *FakeIdentityProvider) AuthCodeURL(state string) string {
	return "https://accounts.example.test/auth?state=" + state
}

func (f *FakeIdentityProvider) Exchange(ctx context.Context, code string) (*account.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	id, ok := f.Identities[code]
	if !ok {
		return nil, fmt.Errorf("invalid_grant")
	}
	cp := *id
	return &cp, nil
}

// RecordingNotifier captures sent emails
type RecordingNotifier struct {
	mu   sync.Mutex
	Sent []Sent
}

// Sent is one captured notification
type Sent struct {
	Kind    notification.Kind
	Details notification.LicenseDetails
}

func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{}
}

func (n *RecordingNotifier) record(kind notification.Kind, d notification.LicenseDetails) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Sent = append(n.Sent, Sent{Kind: kind, Details: d})
}

func (n *RecordingNotifier) SendWelcome(_ context.Context, d notification.LicenseDetails) {
	n.record(notification.KindWelcome, d)
}

func (n *RecordingNotifier) SendLicenseKey(_ context.Context, d notification.LicenseDetails) {
	n.record(notification.KindLicense, d)
}

func (n *RecordingNotifier) SendUpgradeConfirmation(_ context.Context, d notification.LicenseDetails) {
	n.record(notification.KindUpgrade, d)
}

// Kinds returns the kinds sent so far, in order
func (n *RecordingNotifier) Kinds() []notification.Kind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notification.Kind, 0, len(n.Sent))
	for _, s := range n.Sent {
		out = append(out, s.Kind)
	}
	return out
}

// FakePaymentProvider returns prepared events and records checkout requests
type FakePaymentProvider struct {
	mu        sync.Mutex
	Events    map[string]*billing.Event // keyed by signature
	Checkouts []billing.CheckoutRequest
	Err       error
}

func NewFakePaymentProvider() *FakePaymentProvider {
	return &FakePaymentProvider{Events: make(map[string]*billing.Event)}
}

func (p *FakePaymentProvider) ParseWebhook(payload []byte, signature string) (*billing.Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ev, ok := p.Events[signature]
	if !ok {
		return nil, fmt.Errorf("no signatures found matching the expected signature for payload")
	}
	return ev, nil
}

func (p *FakePaymentProvider) CreateCheckoutSession(_ context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	p.Checkouts = append(p.Checkouts, req)
	id := fmt.Sprintf("cs_test_%d", len(p.Checkouts))
	return &billing.CheckoutSession{ID: id, URL: "https://checkout.example.test/" + id}, nil
}
