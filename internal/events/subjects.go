// Package events names the NATS subjects used by the optional
// cross-instance avatar relay (internal/notify). Keeping the subject
// strings in their own package lets a publisher on one API instance and
// a subscriber on another agree on them without importing internal/notify.
package events

// SubjectAvatarChanged carries a raw 16-byte UserIdentifier whenever that
// user's avatar blob is uploaded, deleted, or equipped.
const SubjectAvatarChanged = "streamspace.avatar.changed"
