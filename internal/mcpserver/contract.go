package mcpserver

import (
	"strings"

	"github.com/starford/nodeql/internal/filter"
)

// QueryFormatContract describes the request body accepted by query_nodes
// and find_node.
var QueryFormatContract = `# nodeql Query Format

A query selects nodes of one type, filters them, sorts them, pages them and
optionally aggregates them. Every key is optional.

` + "```" + `json
{
  "filter": {"frontmatter": {"tags": {"in": ["go"]}, "draft": {"in": [false, null]}}},
  "sort": {"fields": ["frontmatter___date"], "order": ["DESC"]},
  "skip": 0,
  "limit": 10
}
` + "```" + `

## Filter

A filter mirrors the shape of the node. Leaves are operator objects; every
leaf must hold for a node to match.

| Operator | Operand | Matches when |
|----------|---------|--------------|
| eq, ne | scalar | value equals (or does not equal) the operand |
| in, nin | list | value is (or is not) one of the operands |
| gt, gte, lt, lte | number or date | value compares against the operand |
| regex | "/pattern/flags" | string value matches; flags i, m, s |
| glob | "dir/**/*.md" | string value matches the glob |

Leaf operators: ` + strings.Join(filter.Operators, ", ") + `.
A missing field matches only ` + "`" + `{"eq": null}` + "`" + ` and ` + "`" + `in` + "`" + ` lists holding null;
every other operator, ne and nin included, fails on it.

On a list field, eq and in match when any element matches.
Lists of objects are filtered with elemMatch:
` + "`" + `{"reviews": {"elemMatch": {"rating": {"eq": 5}}}}` + "`" + `.
Linked nodes (fields marked @link, parent, children) are filtered through
the node they point at.

## Sort

` + "`" + `fields` + "`" + ` and ` + "`" + `order` + "`" + ` have equal length. Order is ASC or DESC.
Nested fields use ___ (or .) between segments. Nodes missing a sort value
come last in ascending order. Ties keep insertion order.

## Pagination

` + "`" + `skip` + "`" + ` and ` + "`" + `limit` + "`" + ` are non-negative. The response carries
` + "`" + `pageInfo` + "`" + ` with currentPage, pageCount, hasNextPage,
hasPreviousPage, itemCount and perPage. The total match count is top-level
` + "`" + `totalCount` + "`" + `.

## Aggregates

- ` + "`" + `{"distinct": {"field": "frontmatter___tags"}}` + "`" + ` returns the sorted unique values.
- ` + "`" + `{"group": {"field": "frontmatter___author"}}` + "`" + ` returns one connection per value,
  in first-seen order. Nodes without the field group under "".
- ` + "`" + `max` + "`" + `, ` + "`" + `min` + "`" + ` and ` + "`" + `sum` + "`" + ` take a numeric field.

Group and distinct cannot be combined in one request.

## Discovery

Use list_types for the node types and list_fields for a type's field paths.
Markdown files appear as File nodes with a childMarkdownRemark node holding
frontmatter, excerpt, headings, tags and links.
`
