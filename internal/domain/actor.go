package domain

// Actor is the authenticated caller attached by the auth layer.
type Actor struct {
	UserID uint
	Email  string
	Role   string
}

func (a Actor) IsAdmin() bool  { return a.Role == RoleAdmin }
func (a Actor) IsWorker() bool { return a.Role == RoleWorker }
func (a Actor) IsClient() bool { return a.Role == RoleClient }
