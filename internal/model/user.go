package model

// User is the display projection of an account used to enrich reservation
// responses.  Authentication data lives with the auth collaborator and is
// never loaded by this service.
//
// Fields:
//
//	ID   – users.id, the JWT subject.
//	Name – users.name.
type User struct {
	ID   string
	Name string
}
