// Package chunker splits documents into overlapping text windows.
//
// Offsets are measured in runes so multi-byte characters are never cut in
// half. The splitter is deterministic: the same content, chunk size and
// overlap always produce the same chunks.
//
// # Usage
//
//	chunks, err := chunker.All(content, 1000, 200)
//	if err != nil {
//	    return err
//	}
//	for _, c := range chunks {
//	    fmt.Println(c.Start, c.End, c.Text)
//	}
//
// Split returns an iter.Seq for callers that want to stream chunks without
// materializing the whole slice.
package chunker
