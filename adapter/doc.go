// Package adapter defines the capability contract between compiled
// models and backing storage engines, and the dispatcher that routes
// logical operations across a model's connection list.
//
// An adapter exposes a capability set drawn from insert, update,
// delete, find, defineSchema, addIndex, and native json support, plus
// optional custom named methods. When a model declares multiple
// connections, capability and method-name resolution is left-to-right:
// the first connection in the declared list wins on collision, while
// methods exposed only by later connections remain reachable.
//
// The dispatcher is the only component that sees both naming domains.
// Callers use logical attribute names exclusively; adapters see storage
// column names exclusively.
package adapter
