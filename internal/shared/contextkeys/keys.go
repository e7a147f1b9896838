package contextkeys

// contextKey is an unexported type to prevent collisions with context keys defined in
// other packages.
type contextKey string

// String makes contextKey satisfy the Stringer interface to assist with debugging.
func (c contextKey) String() string {
	return "content-sync context key " + string(c)
}

// CollectionKey is the key for the collection name a request or fetch operates on.
const CollectionKey = contextKey("collection")

// OperationKey is the key for the operation name (select, insert, update, delete, ...).
const OperationKey = contextKey("operation")

// RequestIDKey is the key for the request ID assigned by the HTTP adapter.
const RequestIDKey = contextKey("requestID")

// StoreIDKey is the key for the ID of the collection store that issued a fetch.
const StoreIDKey = contextKey("storeID")

// ComponentKey is the key for the component name.
const ComponentKey = contextKey("component")

// SubjectKey is the key for the admin token subject set by the auth middleware.
const SubjectKey = contextKey("subject")
