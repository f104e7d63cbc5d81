// Package iam is the backend credential gateway: password sign-in and
// sign-up, bearer session validation, sign-out and password recovery.
//
// Sign-up writes the account and a pending provisioning task in one
// transaction. The client is expected to create the profile and the default
// role itself; the provisioning reconciler closes the task, backfilling
// whatever the client did not finish.
package iam
