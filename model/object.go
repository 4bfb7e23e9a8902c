package model

import "time"

// ObjectInfo is one candidate file descriptor from an object storage
// listing.
type ObjectInfo struct {
	Key          string
	LastModified time.Time
}
