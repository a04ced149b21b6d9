// Package users stores user profiles and the denormalized list of businesses
// each user belongs to.
//
// Profiles are created lazily: the first authenticated request provisions one
// from the token claims, and the membership service creates a bare profile
// when it adds a user who has never signed in. Every membership change is
// mirrored here on a best-effort basis, so the business document remains the
// source of truth for roles.
package users
