// Package vectorstore provides per-project vector storage with ownership checks.
//
// Every stored chunk belongs to exactly one project. Search only ever scores
// entries of the requested project, and every operation consults an
// OwnershipChecker before touching the index. Ranking is exact: all entries of
// the project are scored with cosine similarity and sorted, ties keeping
// insertion order.
//
// # Security
//
// The package fails closed:
//   - Ownership is checked on every Ingest, Search and DeleteProjectVectors
//   - Authorization failures only ever report ErrAccessDenied, regardless of
//     whether the project exists
//   - Project and user IDs are validated (non-empty, bounded, no control characters)
//
// # Durability
//
// The whole store is written through the Persistence interface after every
// mutation, while the write lock is held. If the write fails the mutation is
// rolled back and a persistence error is returned, so memory never runs ahead
// of disk.
//
// # Usage
//
//	store, err := vectorstore.NewStore(ctx, vectorstore.Config{
//	    Dimension:    384,
//	    ChunkSize:    1000,
//	    ChunkOverlap: 200,
//	}, fileStore, embedder, guard, logger)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	res, err := store.Ingest(ctx, "proj-1", "user-1", content, "notes.md")
//	if err != nil {
//	    return err
//	}
//
//	results, err := store.Search(ctx, "proj-1", "user-1", "how do I deploy?", 5)
//
// # Errors
//
// Errors returned by Store are *Error values classified by Kind. Use
// errors.Is with ErrValidation, ErrAuthorization, ErrPersistence or
// ErrProvider to branch on the class, or KindOf to get it directly.
package vectorstore
