package cache

import "errors"

var (
	// ErrSourceUnavailable: the source-of-truth query failed. Refresh aborted
	// before touching the store, so the previous ranking is still served.
	ErrSourceUnavailable = errors.New("popcache: source unavailable")

	// ErrStoreUnavailable: a key-value store call failed. Nothing is retried.
	ErrStoreUnavailable = errors.New("popcache: store unavailable")

	// ErrPartialRefresh: the refresh transaction was built but did not commit.
	// The ranking may be empty until the next successful Refresh.
	ErrPartialRefresh = errors.New("popcache: refresh commit failed")

	// ErrInvalidSubject is returned for an empty subject id.
	ErrInvalidSubject = errors.New("popcache: empty subject id")
)
