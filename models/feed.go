package models

import (
	"errors"
	"fmt"
	"strings"
)

// FilterKind selects which posts a feed shows.
type FilterKind int

const (
	FilterNone FilterKind = iota
	FilterGroup
	FilterAuthor
)

// Filter restricts a feed to a group or an author. The zero value is the
// unrestricted index feed.
type Filter struct {
	Kind  FilterKind
	Value string // group slug or author username
}

var ErrInvalidFilter = errors.New("invalid feed filter")

func AllPosts() Filter { return Filter{Kind: FilterNone} }

func ByGroup(slug string) Filter { return Filter{Kind: FilterGroup, Value: slug} }

func ByAuthor(username string) Filter { return Filter{Kind: FilterAuthor, Value: username} }

// ParseFilter reads the string form produced by Filter.String:
// "all" (or empty), "group:<slug>" or "author:<username>".
func ParseFilter(s string) (Filter, error) {
	if s == "" || s == "all" {
		return AllPosts(), nil
	}
	kind, value, ok := strings.Cut(s, ":")
	if !ok || value == "" {
		return Filter{}, fmt.Errorf("%w: %q", ErrInvalidFilter, s)
	}
	switch kind {
	case "group":
		return ByGroup(value), nil
	case "author":
		return ByAuthor(value), nil
	}
	return Filter{}, fmt.Errorf("%w: %q", ErrInvalidFilter, s)
}

func (f Filter) String() string {
	switch f.Kind {
	case FilterGroup:
		return "group:" + f.Value
	case FilterAuthor:
		return "author:" + f.Value
	default:
		return "all"
	}
}

func (f Filter) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// FeedPage is one page of a feed. It is derived from the post store and
// never persisted.
type FeedPage struct {
	Filter     Filter     `json:"filter"`
	Posts      []PostView `json:"posts"`
	Page       int        `json:"page"`
	PageSize   int        `json:"pageSize"`
	TotalCount int64      `json:"totalCount"`

	// Set for group and author feeds respectively.
	Group  *Group     `json:"group,omitempty"`
	Author *AuthorRef `json:"author,omitempty"`
}

func (p *FeedPage) TotalPages() int {
	if p.PageSize <= 0 || p.TotalCount == 0 {
		return 0
	}
	return int((p.TotalCount + int64(p.PageSize) - 1) / int64(p.PageSize))
}

func (p *FeedPage) HasNext() bool {
	return p.Page < p.TotalPages()
}

func (p *FeedPage) HasPrevious() bool {
	return p.Page > 1
}

// Clone returns a deep copy of the page.
func (p *FeedPage) Clone() *FeedPage {
	if p == nil {
		return nil
	}
	c := *p
	c.Posts = make([]PostView, len(p.Posts))
	for i, v := range p.Posts {
		c.Posts[i] = PostView{
			Post:   *v.Post.Clone(),
			Author: v.Author,
			Group:  v.Group.Clone(),
		}
	}
	c.Group = p.Group.Clone()
	if p.Author != nil {
		a := *p.Author
		c.Author = &a
	}
	return &c
}
