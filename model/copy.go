// model/copy.go
package model

import "time"

type PartyKind string

const (
	PartyAdminStock PartyKind = "ADMIN_STOCK"
	PartyPeer       PartyKind = "PEER"
)

// Party identifies who lends a copy: a regular user, or the shared
// admin-managed stock. Replaces the old nullable lender id.
type Party struct {
	Kind   PartyKind `json:"kind"`
	UserID int64     `json:"user_id,omitempty"`
}

func PeerParty(userID int64) Party { return Party{Kind: PartyPeer, UserID: userID} }

func AdminStockParty() Party { return Party{Kind: PartyAdminStock} }

func (p Party) IsAdminStock() bool { return p.Kind == PartyAdminStock }

// CanAct reports whether the given actor may run lender actions
// (approve/reject/return) for this party's copies.
func (p Party) CanAct(actorID int64, role Role) bool {
	if p.IsAdminStock() {
		return role == RoleAdmin
	}
	return p.UserID == actorID
}

// Copy is one physical, lendable instance of a Book.
type Copy struct {
	ID          int64     `json:"id"`
	BookID      int64     `json:"book_id"`
	Owner       Party     `json:"owner"`
	Location    string    `json:"location"`
	Condition   *string   `json:"condition,omitempty"`
	Notes       *string   `json:"notes,omitempty"`
	IsAvailable bool      `json:"is_available"`
	CreatedAt   time.Time `json:"created_at"`
}

// CopySummary is the slim shape joined into borrow records.
type CopySummary struct {
	ID       int64  `json:"id"`
	Location string `json:"location"`
}
