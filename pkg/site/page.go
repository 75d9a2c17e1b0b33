package site

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	// RootAddress is the address of the canonical entry page.
	RootAddress = "index.html"
	// HomeTitle is the title of the canonical entry page.
	HomeTitle = "Home Page"

	pageFile     = "index.html"
	untitledSlug = "untitled"
)

// Page is one generated document.
type Page struct {
	Address    string
	Title      string
	Paragraphs []string
}

// Link is one entry of the site-wide link index.
type Link struct {
	Title   string
	Address string
}

// Collision lists the indices of pages that share an address.
type Collision struct {
	Address string
	Pages   []int
}

// Slug lowercases title and joins its words with hyphens.
func Slug(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), "-")
}

// PageAddress returns the address of the page with the given title. An empty
// slug becomes "untitled" so that no page can take over the root document.
func PageAddress(title string) string {
	slug := Slug(title)
	if slug == "" {
		slug = untitledSlug
	}
	return slug + "/" + pageFile
}

// BuildPages generates count pages with the given number of paragraphs each,
// then returns them with the link index. Page 0 is always the home page at
// RootAddress.
func BuildPages(ctx context.Context, gen *TextGenerator, count, paragraphs int) ([]Page, []Link, error) {
	if count <= 0 {
		return nil, nil, configError("build pages", fmt.Errorf("page count must be positive, got %d", count))
	}
	if paragraphs < 0 {
		return nil, nil, configError("build pages", fmt.Errorf("paragraph count must not be negative, got %d", paragraphs))
	}

	pages := make([]Page, 0, count)
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		page, err := newPage(ctx, gen, paragraphs)
		if err != nil {
			return nil, nil, err
		}
		pages = append(pages, page)
	}

	pages[0].Title = HomeTitle
	pages[0].Address = RootAddress

	return pages, Links(pages), nil
}

func newPage(ctx context.Context, gen *TextGenerator, paragraphs int) (Page, error) {
	title, err := gen.Title(ctx)
	if err != nil {
		return Page{}, err
	}
	body, err := gen.Paragraphs(ctx, paragraphs)
	if err != nil {
		return Page{}, err
	}
	return Page{
		Address:    PageAddress(title),
		Title:      title,
		Paragraphs: body,
	}, nil
}

// Links returns one link per page, in page order.
func Links(pages []Page) []Link {
	links := make([]Link, len(pages))
	for i, p := range pages {
		links[i] = Link{Title: p.Title, Address: p.Address}
	}
	return links
}

// Collisions reports every address used by more than one page, in order of
// first use.
func Collisions(pages []Page) []Collision {
	byAddress := make(map[string][]int, len(pages))
	var order []string
	for i, p := range pages {
		if _, ok := byAddress[p.Address]; !ok {
			order = append(order, p.Address)
		}
		byAddress[p.Address] = append(byAddress[p.Address], i)
	}

	var out []Collision
	for _, addr := range order {
		if idx := byAddress[addr]; len(idx) > 1 {
			out = append(out, Collision{Address: addr, Pages: idx})
		}
	}
	return out
}

// overwrites counts the pages whose file replaces an earlier page's file.
func overwrites(collisions []Collision) int {
	n := 0
	for _, c := range collisions {
		n += len(c.Pages) - 1
	}
	return n
}

// Disambiguate gives every later page that reuses an address a numbered
// variant of its slug ("-2", "-3", ...) so that no page overwrites another.
// Pages are modified in place and the rebuilt link index is returned.
func Disambiguate(pages []Page) ([]Link, error) {
	taken := make(map[string]struct{}, len(pages))
	for i := range pages {
		addr := pages[i].Address
		if _, dup := taken[addr]; dup {
			base, ok := strings.CutSuffix(addr, "/"+pageFile)
			if !ok {
				return nil, configError("disambiguate", errors.New("duplicate root address "+addr))
			}
			for n := 2; ; n++ {
				candidate := fmt.Sprintf("%s-%d/%s", base, n, pageFile)
				if _, used := taken[candidate]; !used && !usedLater(pages[i+1:], candidate) {
					addr = candidate
					break
				}
			}
			pages[i].Address = addr
		}
		taken[addr] = struct{}{}
	}
	return Links(pages), nil
}

// usedLater keeps a renamed page from taking an address that a later page
// owns by its own title.
func usedLater(pages []Page, addr string) bool {
	for _, p := range pages {
		if p.Address == addr {
			return true
		}
	}
	return false
}
