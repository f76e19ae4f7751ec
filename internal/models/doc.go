// Package models defines the core domain models for group orders.
//
// # Models
//
//   - Order: a named, shared order collecting participants' selections
//   - ParticipantEntry: one participant's identity, display name and selection
//   - ProductRef: a product snapshot (ID, name, category) inside a selection
//   - Product: a catalog product, read-only to the order engine
//   - Identity: the authenticated participant on whose behalf a call is made
//
// # Canonical shape
//
// Orders are persisted in two historical layouts at the same time (see the
// record package). Everything in this package is the canonical, layout
// independent form; nothing downstream of the record package knows which
// layout a document was read from.
//
// # Design Principles
//
//  1. Identity is the stable participant key (an email address); display
//     names are denormalized and may change between writes.
//  2. Product references carry a snapshot of the product name and category
//     taken at selection time, so a summary renders even if the catalog
//     entry is later renamed.
//  3. Avoid circular references: use ID strings instead of pointers.
package models
