package ingest

import (
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/nodeql/internal/checksum"
	"github.com/starford/nodeql/internal/node"
	"github.com/starford/nodeql/internal/parser"
	"github.com/starford/nodeql/internal/storage"
)

var idSpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/starford/nodeql/ingest"))

// NodeID derives a stable node id from the node type and the file it came
// from, so re-ingesting unchanged content yields the same ids.
func NodeID(typ, relPath string) string {
	return uuid.NewSHA1(idSpace, []byte(typ+"\x00"+relPath)).String()
}

func fileNode(root, instance, owner string, f storage.FileInfo) *node.Node {
	base := path.Base(f.Path)
	ext := path.Ext(base)
	dir := path.Dir(f.Path)
	if dir == "." {
		dir = ""
	}

	n := node.New(NodeID(FileType, f.Path), FileType, owner)
	n.Internal.ContentDigest = f.Checksum
	n.Internal.MediaType = mediaType(ext)
	n.Fields["sourceInstanceName"] = instance
	n.Fields["relativePath"] = f.Path
	n.Fields["relativeDirectory"] = dir
	n.Fields["absolutePath"] = filepath.Join(root, filepath.FromSlash(f.Path))
	n.Fields["name"] = strings.TrimSuffix(base, ext)
	n.Fields["base"] = base
	n.Fields["extension"] = strings.TrimPrefix(ext, ".")
	n.Fields["size"] = int(f.Size)
	n.Fields["modifiedTime"] = f.ModTime.UTC().Format(time.RFC3339Nano)
	return n
}

func mediaType(ext string) string {
	switch strings.ToLower(ext) {
	case ".md", ".markdown":
		return "text/markdown"
	case "":
		return "application/octet-stream"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if i := strings.IndexByte(t, ';'); i >= 0 {
			t = t[:i]
		}
		return t
	}
	return "application/octet-stream"
}

func isMarkdown(p string) bool {
	return mediaType(path.Ext(p)) == "text/markdown"
}

func remarkNode(file *node.Node, owner string, doc *parser.Document) (*node.Node, error) {
	relPath, _ := file.Fields["relativePath"].(string)
	n := node.New(NodeID(MarkdownRemarkType, relPath), MarkdownRemarkType, owner)
	n.Parent = file.ID
	n.Internal.MediaType = "text/markdown"

	if doc.Frontmatter != nil {
		n.Fields["frontmatter"] = doc.Frontmatter
	}
	n.Fields["rawMarkdownBody"] = doc.Body
	n.Fields["excerpt"] = doc.Excerpt
	n.Fields["title"] = doc.Title
	n.Fields["fileAbsolutePath"] = file.Fields["absolutePath"]
	if len(doc.Headings) > 0 {
		hs := make([]any, len(doc.Headings))
		for i, h := range doc.Headings {
			hs[i] = map[string]any{"depth": h.Depth, "value": h.Value}
		}
		n.Fields["headings"] = hs
	}
	if len(doc.Tags) > 0 {
		n.Fields["tags"] = strings2any(doc.Tags)
	}
	if len(doc.Links) > 0 {
		n.Fields["links"] = strings2any(doc.Links)
	}

	digest, err := checksum.Digest(n.Fields)
	if err != nil {
		return nil, fmt.Errorf("ingest: %s: %w", relPath, err)
	}
	n.Internal.ContentDigest = digest
	return n, nil
}

func strings2any(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
