// Package connection contains the domain model for linking external commerce-platform
// accounts to application users.
//
// A Connection binds one user to one account on one platform and carries the OAuth
// credentials needed to call that platform. ConnectionItems are the provider-side
// sub-resources (shops) discovered under a Connection. AuditEntries record the outcome of
// every state-changing operation and are never mutated after creation.
//
// Platform-specific behavior lives behind the PlatformAdapter port; callers select an adapter
// once through an AdapterRegistry and never branch on platform identity afterwards.
package connection
