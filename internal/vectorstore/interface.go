package vectorstore

import "context"

// Embedder generates vector embeddings from text.
//
// Implementations must be deterministic for identical input within one
// instance and must return vectors of a fixed dimension. The store does not
// normalize vectors on the embedder's behalf. Local fallbacks, TEI, OpenAI
// and FastEmbed implementations live in the embeddings package.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts.
	// Returns one embedding per input text, in order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	// Some models optimize differently for queries vs documents.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Persistence durably stores whole-store snapshots.
//
// SaveSnapshot must be atomic with respect to crashes: after a crash the
// durable state is either the previous snapshot or the new one, never a mix.
// Implementations must not retain snap after returning. LoadSnapshot returns
// an empty snapshot, not an error, when nothing has been saved yet.
type Persistence interface {
	SaveSnapshot(ctx context.Context, snap Snapshot) error
	LoadSnapshot(ctx context.Context) (Snapshot, error)
}

// OwnershipChecker confirms that userID owns projectID.
//
// Any non-nil error denies access. The store never exposes the checker's
// error to callers; it reports ErrAccessDenied instead.
type OwnershipChecker interface {
	CheckOwnership(ctx context.Context, projectID, userID string) error
}

// ProjectClaimer is an optional OwnershipChecker extension for guards that
// let the first user of an unknown project claim it. Claims are not part of
// the snapshot, so NewStore replays each loaded project's first ingesting
// user through ClaimProject; a restart never leaves stored data unclaimed.
type ProjectClaimer interface {
	ClaimProject(ctx context.Context, projectID, userID string) error
}
