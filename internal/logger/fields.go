package logger

import "log/slog"

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so that logs can be
// aggregated and queried by field.
const (
	// Request & operation
	KeyRequestID = "request_id" // Per-request correlation ID
	KeyProcedure = "procedure"  // Operation name: READ, WRITE, DELETE, etc.
	KeyShare     = "share"      // Share name: /export, media, etc.
	KeyStatus    = "status"     // HTTP status code

	// File operations
	KeyPath = "path" // File path relative to the share root
	KeySize = "size" // Payload size in bytes

	// Client identification
	KeyClientIP = "client_ip" // Client IP address
	KeyUsername = "username"  // Authenticated username
	KeyUID      = "uid"       // Unix user ID of the principal
	KeyGID      = "gid"       // Unix group ID of the principal

	// Identity switching
	KeyFsUID     = "fsuid"      // Requested filesystem user ID
	KeyFsGID     = "fsgid"      // Requested filesystem group ID
	KeyPrevUID   = "prev_uid"   // Filesystem user ID before the switch
	KeyPrevGID   = "prev_gid"   // Filesystem group ID before the switch
	KeySwitched  = "switched"   // Whether a switch actually occurred
	KeyComponent = "component"  // Subsystem emitting the log line

	// Storage backend
	KeyStoreName = "store_name" // Named store identifier from the registry
	KeyStoreType = "store_type" // Store type: memory, fs, s3
	KeyBucket    = "bucket"     // S3 bucket name

	// Operation metadata
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
)

// ----------------------------------------------------------------------------
// Field constructors for type safety
// ----------------------------------------------------------------------------

// RequestID returns a slog.Attr for the per-request correlation ID
func RequestID(id string) slog.Attr {
	return slog.String(KeyRequestID, id)
}

// Procedure returns a slog.Attr for the operation name
func Procedure(name string) slog.Attr {
	return slog.String(KeyProcedure, name)
}

// Share returns a slog.Attr for the share name
func Share(name string) slog.Attr {
	return slog.String(KeyShare, name)
}

// Path returns a slog.Attr for a file path
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// ClientIP returns a slog.Attr for the client IP address
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// Username returns a slog.Attr for the authenticated username
func Username(name string) slog.Attr {
	return slog.String(KeyUsername, name)
}

// UID returns a slog.Attr for a Unix user ID
func UID(uid uint32) slog.Attr {
	return slog.Any(KeyUID, uid)
}

// GID returns a slog.Attr for a Unix group ID
func GID(gid uint32) slog.Attr {
	return slog.Any(KeyGID, gid)
}

// FsUID returns a slog.Attr for a requested filesystem user ID
func FsUID(uid uint32) slog.Attr {
	return slog.Any(KeyFsUID, uid)
}

// FsGID returns a slog.Attr for a requested filesystem group ID
func FsGID(gid uint32) slog.Attr {
	return slog.Any(KeyFsGID, gid)
}

// PrevUID returns a slog.Attr for the filesystem user ID prior to a switch
func PrevUID(uid uint32) slog.Attr {
	return slog.Any(KeyPrevUID, uid)
}

// PrevGID returns a slog.Attr for the filesystem group ID prior to a switch
func PrevGID(gid uint32) slog.Attr {
	return slog.Any(KeyPrevGID, gid)
}

// StoreName returns a slog.Attr for a named store identifier
func StoreName(name string) slog.Attr {
	return slog.String(KeyStoreName, name)
}

// StoreType returns a slog.Attr for a store type
func StoreType(t string) slog.Attr {
	return slog.String(KeyStoreType, t)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
