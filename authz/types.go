package authz

// Role is a named grouping of permissions assignable to users.
type Role struct {
	ID int64

	// Name is the unique machine identifier, e.g. "admin".
	Name string

	// Label is the human-readable display name.
	Label string

	Deleted   bool
	CreatorID int64
}

// Permission is a named capability, grantable to users directly or
// through roles.
type Permission struct {
	ID int64

	// Name is the unique machine identifier, e.g. "posts.delete".
	Name string

	// Label is the human-readable display name.
	Label string

	Deleted   bool
	CreatorID int64
}
