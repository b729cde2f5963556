package auth

// CanMutate decides whether user may edit or delete a resource owned by
// resourceOwnerID: admins may mutate anything, everyone else only their
// own resources. Pure function; the caller loads the resource and supplies
// its owner.
func CanMutate(user *User, resourceOwnerID string) bool {
	if user == nil {
		return false
	}
	return user.IsAdmin() || user.ID == resourceOwnerID
}
