// Package access defines the permission boundary consulted by the analyzer
// and the data integrator. The engine treats a denied feature as "omit this
// data", never as a hard failure.
package access

// Role is a caller's permission role.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleAnalyst Role = "analyst"
	RoleUser    Role = "user"
	RoleViewer  Role = "viewer"
)

// Tier is a caller's subscription tier.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Oracle answers permission questions for the engine. Implemented externally
// by the feature-flag/access-tier system; this package only consumes it.
type Oracle interface {
	HasFeatureAccess(userID, featureKey string) bool
	Role(userID string) Role
	Tier(userID string) Tier
}

// roleWeights reflect how much a caller's role amplifies contextual signals.
var roleWeights = map[Role]float64{
	RoleAdmin:   1.0,
	RoleAnalyst: 0.8,
	RoleUser:    0.6,
	RoleViewer:  0.4,
}

// RoleWeight returns the attention multiplier for a role. Unknown roles get
// the viewer weight.
func RoleWeight(r Role) float64 {
	if w, ok := roleWeights[r]; ok {
		return w
	}
	return roleWeights[RoleViewer]
}

// Privileged reports whether a role sees unfiltered source data.
func Privileged(r Role) bool {
	return r == RoleAdmin || r == RoleAnalyst
}

// Static is a fixed in-memory Oracle for tests and single-tenant deployments.
type Static struct {
	Roles    map[string]Role
	Tiers    map[string]Tier
	Features map[string]bool // key: userID + ":" + featureKey
	// DefaultAllow grants any feature not explicitly listed.
	DefaultAllow bool
	// DefaultTier applies to users without an explicit tier entry.
	DefaultTier Tier
}

// NewStatic returns an oracle that grants everything to everyone.
func NewStatic() *Static {
	return &Static{
		Roles:        make(map[string]Role),
		Tiers:        make(map[string]Tier),
		Features:     make(map[string]bool),
		DefaultAllow: true,
		DefaultTier:  TierEnterprise,
	}
}

// HasFeatureAccess implements Oracle.
func (s *Static) HasFeatureAccess(userID, featureKey string) bool {
	if v, ok := s.Features[userID+":"+featureKey]; ok {
		return v
	}
	return s.DefaultAllow
}

// Role implements Oracle.
func (s *Static) Role(userID string) Role {
	if r, ok := s.Roles[userID]; ok {
		return r
	}
	return RoleUser
}

// Tier implements Oracle.
func (s *Static) Tier(userID string) Tier {
	if t, ok := s.Tiers[userID]; ok {
		return t
	}
	if s.DefaultTier != "" {
		return s.DefaultTier
	}
	return TierFree
}
