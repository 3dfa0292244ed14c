// Package state provides a lightweight session store for conversational flows.
// Sessions are keyed by the (chat, user) pair and expire after a period of inactivity.
// It is domain-agnostic: the stored value type is chosen by the flow that owns it.
package state
