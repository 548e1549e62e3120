package domain

// Roles understood by the admin middleware
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User Model. Rows normally come from the identity provider; cmd/token upserts them for local use.
type User struct {
	ID       uint   `gorm:"primaryKey" json:"id"`                                   // Primary key
	Email    string `gorm:"size:191;uniqueIndex;not null" json:"email"`             // Login email
	FullName string `gorm:"size:255" json:"full_name"`                              // Display name
	Role     string `gorm:"size:20;default:user" json:"role"`                       // Role: user or admin
	Wallet   Wallet `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"` // One-to-one relationship with Wallet
}
