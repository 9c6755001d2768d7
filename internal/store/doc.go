// Package store provides persistent storage for the relay using SQLite.
//
// # Architecture
//
// A single Store interface covers the two entities the relay persists:
//
//   - Conversation: a titled thread bound to an agent session key
//   - Message: one user or assistant turn, immutable once written
//
// SQLiteStore is the production implementation. MockStore keeps everything
// in memory and is used by tests in other packages.
//
// # Ordering
//
// Message IDs are assigned by SQLite AUTOINCREMENT, so ID order is insertion
// order. Listing methods return messages oldest first; ListRecentMessages
// selects the newest N and then restores chronological order.
//
// Appending a message bumps the owning conversation's updated_at in the same
// transaction, which is what ListConversations sorts by.
//
// # SQLite Configuration
//
// Pragmas are set through the DSN so every pooled connection receives them:
//
//	PRAGMA foreign_keys=ON;
//	PRAGMA busy_timeout=5000;
//	PRAGMA journal_mode=WAL;   (file databases only)
//
// Deleting a conversation cascades to its messages.
//
// # Error Handling
//
//   - ErrNotFound: requested conversation does not exist
//   - ErrInvalidRole: message role is not user or assistant
//
// All methods accept context.Context for cancellation support.
//
// # Testing
//
// Use NewMockStore() for unit tests elsewhere in the module, and
// NewSQLiteStore(filepath.Join(t.TempDir(), "test.db")) for real SQLite.
package store
