package readtree

import (
	"archive/tar"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

type tarEntry struct {
	Name string
	Body string
	Type byte
}

// buildArchive returns a tar.gz holding entries, preceded by a pax global
// header when comment is set.
func buildArchive(t *testing.T, comment string, entries ...tarEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)

	if comment != "" {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Typeflag:   tar.TypeXGlobalHeader,
			Name:       "pax_global_header",
			PAXRecords: map[string]string{"comment": comment},
		}))
	}

	for _, e := range entries {
		hdr := &tar.Header{Name: e.Name, Typeflag: e.Type, Mode: 0644}
		switch e.Type {
		case tar.TypeDir:
			hdr.Mode = 0755
		case tar.TypeSymlink:
			hdr.Linkname = e.Body
		default:
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(e.Body))
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if hdr.Typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(e.Body))
			require.NoError(t, err)
		}
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())
	return buf.Bytes()
}

func newGzipWriter(w io.Writer) *gzip.Writer {
	return gzip.NewWriter(w)
}

// docsArchive is the two-file fixture used across tests
func docsArchive(t *testing.T, wrapper, sha string) []byte {
	return buildArchive(t, sha,
		tarEntry{Name: wrapper + "/", Type: tar.TypeDir},
		tarEntry{Name: wrapper + "/mkdocs.yml", Body: "site_name: test\n"},
		tarEntry{Name: wrapper + "/docs/", Type: tar.TypeDir},
		tarEntry{Name: wrapper + "/docs/index.md", Body: "# Hello\n"},
	)
}

// fakeGitHub serves the repository, branch, contents and archive endpoints
// for a single repository.
type fakeGitHub struct {
	server *httptest.Server

	apiPrefix     string
	archivePrefix string
	owner         string
	repo          string
	defaultBranch string

	mu                 sync.Mutex
	branches           map[string]string
	archives           map[string][]byte
	files              map[string]string
	repoStatus         int
	repoBody           string
	archiveStatus      int
	archiveContentType string
	archiveETag        string
	authHeaders        []string

	requests        atomic.Int32
	branchRequests  atomic.Int32
	archiveRequests atomic.Int32
}

func newFakeGitHub(t *testing.T, apiPrefix, archivePrefix string) *fakeGitHub {
	t.Helper()

	f := &fakeGitHub{
		apiPrefix:          apiPrefix,
		archivePrefix:      archivePrefix,
		owner:              "owner",
		repo:               "repo",
		defaultBranch:      "main",
		branches:           map[string]string{"main": "123abc"},
		archives:           map[string][]byte{},
		files:              map[string]string{},
		archiveContentType: "application/x-gzip",
	}
	f.server = httptest.NewServer(f)
	t.Cleanup(f.server.Close)
	return f
}

// update mutates the fake while no request is being served
func (f *fakeGitHub) update(fn func(f *fakeGitHub)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeGitHub) seenAuth() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.authHeaders...)
}

func (f *fakeGitHub) repoPath() string {
	return f.apiPrefix + "/repos/" + f.owner + "/" + f.repo
}

func (f *fakeGitHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.requests.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()

	f.authHeaders = append(f.authHeaders, r.Header.Get("Authorization"))
	p := r.URL.Path
	repoPath := f.repoPath()
	archivePath := f.archivePrefix + "/" + f.owner + "/" + f.repo + "/archive/"

	switch {
	case p == repoPath:
		if f.repoStatus != 0 {
			writeJSON(w, f.repoStatus, map[string]any{"message": http.StatusText(f.repoStatus)})
			return
		}
		if f.repoBody != "" {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(f.repoBody))
			return
		}
		w.Header().Set("ETag", `"meta-etag"`)
		writeJSON(w, http.StatusOK, map[string]any{
			"full_name":      f.owner + "/" + f.repo,
			"default_branch": f.defaultBranch,
			"branches_url":   f.server.URL + repoPath + "/branches{/branch}",
		})

	case strings.HasPrefix(p, repoPath+"/branches/"):
		f.branchRequests.Add(1)
		name := strings.TrimPrefix(p, repoPath+"/branches/")
		sha, ok := f.branches[name]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "Branch not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"name":   name,
			"commit": map[string]any{"sha": sha},
		})

	case strings.HasPrefix(p, repoPath+"/contents/"):
		name := strings.TrimPrefix(p, repoPath+"/contents/")
		content, ok := f.files[name+"@"+r.URL.Query().Get("ref")]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "Not Found"})
			return
		}
		w.Header().Set("ETag", `"contents-etag"`)
		writeJSON(w, http.StatusOK, map[string]any{
			"type":     "file",
			"encoding": "base64",
			"path":     name,
			"size":     len(content),
			"content":  base64.StdEncoding.EncodeToString([]byte(content)),
		})

	case strings.HasPrefix(p, archivePath) && strings.HasSuffix(p, ".tar.gz"):
		f.archiveRequests.Add(1)
		if f.archiveStatus != 0 {
			w.WriteHeader(f.archiveStatus)
			return
		}
		ref := strings.TrimSuffix(strings.TrimPrefix(p, archivePath), ".tar.gz")
		data, ok := f.archives[ref]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", f.archiveContentType)
		if f.archiveETag != "" {
			w.Header().Set("ETag", f.archiveETag)
		}
		_, _ = w.Write(data)

	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Not Found"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
