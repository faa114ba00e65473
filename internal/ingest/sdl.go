package ingest

// Node types created by Sync.
const (
	FileType           = "File"
	MarkdownRemarkType = "MarkdownRemark"
)

// DefaultSDL declares the node types of the filesystem source. User schemas
// are appended to it, so they may extend MarkdownRemarkFrontmatter with the
// frontmatter keys their content uses.
const DefaultSDL = `
type File implements Node {
	sourceInstanceName: String
	relativePath: String
	relativeDirectory: String
	absolutePath: String
	name: String
	base: String
	extension: String
	size: Int
	modifiedTime: Date
	childMarkdownRemark: MarkdownRemark @childOf
}

type MarkdownRemark implements Node {
	frontmatter: MarkdownRemarkFrontmatter
	rawMarkdownBody: String
	excerpt: String
	headings: [MarkdownHeading]
	tags: [String]
	links: [String]
	title: String
	fileAbsolutePath: String
}

type MarkdownHeading {
	depth: Int
	value: String
}

type MarkdownRemarkFrontmatter {
	title: String
	date: Date
	description: String
	tags: [String]
	draft: Boolean
}
`

// SDL returns DefaultSDL followed by the user schema as one document.
func SDL(user string) string {
	if user == "" {
		return DefaultSDL
	}
	return DefaultSDL + "\n" + user
}
