// Package authflow implements the credential-plus-one-time-code sign-in
// flow of a reservation front end: credential verification, a time-boxed
// resend cooldown that survives reloads, an explicit verification state
// machine, an advisory navigation guard, and the password-reset token
// exchange.
//
// The engine is assembled once through [Builder] and then treated as
// immutable. The identity backend and role directory are abstract
// collaborators ([IdentityService], [RoleDirectory]); persisted state lives
// behind [StateStore], with Redis as the production implementation.
//
// Two parallel flows exist, [PurposeLogin] and [PurposeAdmin]. They share
// one protocol shape but never a persisted key: every cooldown and
// pending-verification record is namespaced by purpose. The admin flow adds
// a role check between credential success and code dispatch; a denial signs
// the identity back out before it is reported.
//
// Nothing in this package is a server-side security control. The navigation
// guard and cooldown countdown are client policy; the identity service's
// session validity is the actual authority.
package authflow
