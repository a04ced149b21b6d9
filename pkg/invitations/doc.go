// Package invitations lets business managers invite people by email.
//
// An invitation carries the role the invitee will receive. Create checks
// that the inviter may grant the role and that the role has headroom;
// Accept checks the quota again through the membership service, since
// other members may have joined in between. Invitations expire after
// DefaultTTL and CleanupExpired removes them.
package invitations
