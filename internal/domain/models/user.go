package models

// Role separates customer requests from staff requests at the API boundary.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
)

// User represents a customer or a staff member. PassHash is set for staff
// accounts only; customers authenticate out of band.
type User struct {
	ID       int64
	Phone    string
	Name     string
	Role     Role
	PassHash []byte
}
