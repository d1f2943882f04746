package fraud

import "strings"

// ActionMatcher decides whether a request path names a guarded action.
// The substring implementation is deliberately approximate: it is an
// access-control list by keyword, not a route registry, and can be swapped
// for exact route-tag matching without touching call sites.
type ActionMatcher interface {
	Matches(path string) bool
}

// KeywordMatcher matches when the path contains any of its keywords
type KeywordMatcher struct {
	keywords []string
}

// NewKeywordMatcher creates a substring action matcher
func NewKeywordMatcher(keywords ...string) *KeywordMatcher {
	lowered := make([]string, len(keywords))
	for i, k := range keywords {
		lowered[i] = strings.ToLower(k)
	}
	return &KeywordMatcher{keywords: lowered}
}

// Matches reports whether the path contains any guarded keyword
func (m *KeywordMatcher) Matches(path string) bool {
	p := strings.ToLower(path)
	for _, k := range m.keywords {
		if strings.Contains(p, k) {
			return true
		}
	}
	return false
}

// Keywords returns the guarded keywords, for logging
func (m *KeywordMatcher) Keywords() []string {
	return m.keywords
}

// Prebuilt matchers for the platform's sensitive action families
var (
	RideRequestActions    = NewKeywordMatcher("rides/request", "rides/book", "trip/request")
	ParcelRequestActions  = NewKeywordMatcher("parcels/request", "parcels/book", "parcels/create")
	FoodOrderActions      = NewKeywordMatcher("orders/place", "orders/checkout", "food/order")
	CODPaymentActions     = NewKeywordMatcher("payments/cod", "cash-on-delivery")
	DeliveryAcceptActions = NewKeywordMatcher("deliveries/accept", "deliveries/claim")
	PartnerOpsActions     = NewKeywordMatcher("partner/go-online", "partner/payout", "partner/withdraw")
)
