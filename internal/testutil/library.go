package testutil

import (
	"fmt"
	"testing"

	"github.com/starford/nodeql/internal/node"
	"github.com/starford/nodeql/internal/nodestore"
	"github.com/starford/nodeql/internal/schema"
)

// LibrarySDL declares the book/review graph used across package tests.
const LibrarySDL = `
type Author {
  name: String!
  born: Int
}

type Book implements Node {
  title: String!
  rating: Int
  price: Float
  published: Date
  inStock: Boolean
  tags: [String]
  author: Author
  reviews: [Review] @link
}

type Review implements Node {
  rating: Int!
  body: String
  book: Book
}
`

// BookRow is one fixture book. Reviews are ratings of reviews of this book.
type BookRow struct {
	ID        string
	Title     string
	Rating    int
	Price     any
	Published string
	InStock   bool
	Tags      []any
	Author    string
	Born      int
	Reviews   []int
}

// Books are inserted in this order. Ratings run 3,5,3,4,5.
var Books = []BookRow{
	{ID: "b1", Title: "Emma", Rating: 3, Price: 7.5, Published: "1815-12-23", InStock: true, Tags: []any{"romance", "classic"}, Author: "Austen", Born: 1775, Reviews: []int{4}},
	{ID: "b2", Title: "Dune", Rating: 5, Price: 9.99, Published: "1965-08-01", InStock: true, Tags: []any{"sf", "classic"}, Author: "Herbert", Born: 1920, Reviews: []int{5, 2}},
	{ID: "b3", Title: "Persuasion", Rating: 3, Price: 6.0, Published: "1817-12-20", Tags: []any{"romance"}, Author: "Austen", Born: 1775},
	{ID: "b4", Title: "Neuromancer", Rating: 4, Published: "1984-07-01", InStock: true, Tags: []any{"sf", "cyberpunk"}, Author: "Gibson", Born: 1948, Reviews: []int{3}},
	{ID: "b5", Title: "Foundation", Rating: 5, Price: 8.25, Published: "1951-05-01", Tags: []any{"sf"}, Author: "Asimov", Born: 1920, Reviews: []int{5}},
}

// LibraryRegistry seals a registry from LibrarySDL.
func LibraryRegistry(t testing.TB) *schema.Registry {
	t.Helper()
	b := schema.NewBuilder()
	if err := b.AddSDL(LibrarySDL); err != nil {
		t.Fatal(err)
	}
	reg, err := b.Seal()
	if err != nil {
		t.Fatal(err)
	}
	return reg
}

// LibraryStore fills a store with Books and their reviews. Reviews are
// children of their book and link back to it.
func LibraryStore(t testing.TB) *nodestore.Store {
	t.Helper()
	st := nodestore.New()
	review := 0
	for _, b := range Books {
		n := node.New(b.ID, "Book", "testutil")
		n.Fields["title"] = b.Title
		n.Fields["rating"] = b.Rating
		if b.Price != nil {
			n.Fields["price"] = b.Price
		}
		n.Fields["published"] = b.Published
		n.Fields["inStock"] = b.InStock
		n.Fields["tags"] = b.Tags
		n.Fields["author"] = map[string]any{"name": b.Author, "born": b.Born}
		var ids []any
		for range b.Reviews {
			review++
			ids = append(ids, fmt.Sprintf("r%d", review))
		}
		if ids != nil {
			n.Fields["reviews"] = ids
		}
		if err := st.Insert(n); err != nil {
			t.Fatal(err)
		}
	}

	review = 0
	for _, b := range Books {
		for _, rating := range b.Reviews {
			review++
			r := node.New(fmt.Sprintf("r%d", review), "Review", "testutil")
			r.Fields["rating"] = rating
			r.Fields["body"] = fmt.Sprintf("%d stars for %s", rating, b.Title)
			r.Fields["book"] = b.ID
			if err := st.Insert(r); err != nil {
				t.Fatal(err)
			}
			if err := st.AddChild(b.ID, r.ID); err != nil {
				t.Fatal(err)
			}
		}
	}
	return st
}

// Library returns the sealed library registry and a frozen snapshot of it.
func Library(t testing.TB) (*schema.Registry, *nodestore.Snapshot) {
	t.Helper()
	return LibraryRegistry(t), LibraryStore(t).Freeze()
}

// IDs returns the ids of nodes in order.
func IDs(nodes []*node.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}
