// Package ledger persists which papers have already been published per
// topic, so re-running a topic never republishes a paper.
package ledger

import "context"

// Store is the dedup ledger. Implementations must only mark a paper after
// its report has been published; a marked-but-unpublished paper would be
// silently dropped forever.
type Store interface {
	// HasSeen reports whether the (topic, arXiv ID) pair was already
	// processed.
	HasSeen(ctx context.Context, topic, arxivID string) (bool, error)

	// MarkSeen records the pair. Implementations flush immediately so a
	// mid-run crash never reprocesses already-published papers.
	MarkSeen(ctx context.Context, topic, arxivID string) error

	// Close releases underlying resources.
	Close() error
}
