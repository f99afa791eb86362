// Package readtree resolves repository URLs into versioned file trees
// without cloning.
//
// A read runs five stages in order, each failing fast:
//   - Parser: matches the URL against the configured hosts and splits it
//     into owner, repo, ref and subpath
//   - resolveRepo: fetches repository metadata through the host API
//   - resolveRef: pins the ref (or the default branch) to a commit
//   - fetchArchive: opens the tar.gz archive of the ref as a stream
//   - extract: unpacks the stream in one pass, keeping the files under
//     the subpath
//
// Reader ties the stages together and tags every failure with the input URL.
//
// Usage:
//
//	reader, err := readtree.NewReader(readtree.ReaderOptions{Hosts: hosts})
//	resp, err := reader.ReadTree(ctx, "https://github.com/owner/repo/tree/main/docs", domain.ReadTreeOptions{})
//	for _, f := range resp.Files() {
//	    content, err := f.Content()
//	}
package readtree
