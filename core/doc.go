// Package core contains the relay's domain contracts, session entities,
// error envelopes and configuration. Adapters depend on this package; core
// must not depend on provider-specific or transport-specific adapters.
package core
