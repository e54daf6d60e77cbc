package user

// User maps to the users table. Password holds the bcrypt hash and is never
// serialized.
type User struct {
	ID       int64  `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
	Password string `db:"password" json:"-"`
}

// InsertUser is the insert payload. Password is plaintext here and hashed by
// the service before it reaches the repository.
type InsertUser struct {
	Username string `json:"username" validate:"required,min=3,max=150"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}
