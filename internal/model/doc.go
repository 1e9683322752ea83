// Package model defines the records held by the per-identity entity store.
//
// Records are flat: relations between entities are expressed as id references
// (Status.AccountID, Status.ReblogID, Status.PollID, Account.MovedID) and are
// assembled into views by the resolver at read time. A Status carries a group
// of local-only Overrides that never come from the server.
package model
