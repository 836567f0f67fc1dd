// Package authz decides which identities may read or mutate a post.
//
// Visibility is an allow-list with two universal overrides (the author and
// admins) and one pass-through (a public post). The same rule backs both the
// single-post checks and the list filter, so a post hidden from a listing can
// never be fetched directly and vice versa.
package authz

import (
	"postbox/internal/auth"
	"postbox/internal/model"
)

// CanRead reports whether id may read post.
func CanRead(id auth.Identity, post *model.Post) bool {
	if id.IsAdmin || id.UserID == post.AuthorID || !post.Restricted {
		return true
	}
	return post.HasViewer(id.UserID)
}

// CanMutate reports whether id may update or delete post. Ownership is the
// only non-admin grant; membership in the visibility set is not enough.
func CanMutate(id auth.Identity, post *model.Post) bool {
	return id.IsAdmin || id.UserID == post.AuthorID
}

// Filter is the list predicate for one caller.
//
// When Unrestricted is false a post matches if it is public, authored by
// ViewerID, or has ViewerID in its visibility set.
type Filter struct {
	Unrestricted bool
	ViewerID     uint
}

// FilterFor returns the list predicate for id.
func FilterFor(id auth.Identity) Filter {
	if id.IsAdmin {
		return Filter{Unrestricted: true}
	}
	return Filter{ViewerID: id.UserID}
}

// Matches evaluates the filter against a loaded post.
func (f Filter) Matches(post *model.Post) bool {
	if f.Unrestricted {
		return true
	}
	return CanRead(auth.Identity{UserID: f.ViewerID}, post)
}
