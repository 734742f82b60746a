// Package feed assembles paginated post feeds for the index, group and
// profile pages, and caches the assembled pages until the next write.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"yatube/models"
	"yatube/store"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DefaultPageSize = 10
	DefaultTTL      = 20 * time.Second
)

var flog = logrus.WithField("component", "feed")

type Config struct {
	PageSize int
	TTL      time.Duration
}

// Assembler builds feed pages on top of the stores, consulting the cache
// first. It is the only writer to the cache; InvalidateAll must be called
// after every post write.
type Assembler struct {
	posts  store.PostStore
	groups store.GroupStore
	users  store.UserStore
	cache  Cache

	pageSize int
	ttl      time.Duration

	// generation is bumped on every invalidation. A page is only cached if no
	// invalidation happened while it was being assembled; mu makes the check
	// and the Put atomic with respect to InvalidateAll.
	mu         sync.RWMutex
	generation uint64
}

func NewAssembler(posts store.PostStore, groups store.GroupStore, users store.UserStore, cache Cache, cfg Config) *Assembler {
	if cache == nil {
		cache = NopCache{}
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.TTL < 0 {
		cfg.TTL = 0
	}
	return &Assembler{
		posts:    posts,
		groups:   groups,
		users:    users,
		cache:    cache,
		pageSize: cfg.PageSize,
		ttl:      cfg.TTL,
	}
}

func (a *Assembler) PageSize() int {
	return a.pageSize
}

func (a *Assembler) currentGeneration() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.generation
}

// Feed returns the given page of the filtered feed. Pages past the end are
// empty, not an error.
func (a *Assembler) Feed(ctx context.Context, filter models.Filter, page int) (*models.FeedPage, error) {
	if page < 1 {
		return nil, &ValidationError{Field: "page", Message: "must be a positive number"}
	}
	key := Key{Filter: filter.String(), Page: page, PageSize: a.pageSize}
	log := flog.WithField("key", key.String())

	cached, ok, err := a.cache.Get(ctx, key)
	if err != nil {
		log.WithError(err).Warn("Feed cache read failed, assembling fresh page")
	} else if ok {
		return cached, nil
	}

	gen := a.currentGeneration()
	fp, err := a.assemble(ctx, filter, page)
	if err != nil {
		return nil, err
	}

	a.mu.RLock()
	if a.generation == gen {
		if err := a.cache.Put(ctx, key, fp, a.ttl); err != nil {
			log.WithError(err).Warn("Feed cache write failed")
		}
	}
	a.mu.RUnlock()
	return fp, nil
}

func (a *Assembler) assemble(ctx context.Context, filter models.Filter, page int) (*models.FeedPage, error) {
	fp := &models.FeedPage{
		Filter:   filter,
		Page:     page,
		PageSize: a.pageSize,
	}
	var q store.PostQuery
	switch filter.Kind {
	case models.FilterGroup:
		group, err := a.groups.GetBySlug(ctx, filter.Value)
		if err != nil {
			return nil, a.translate(err, "group %q", filter.Value)
		}
		fp.Group = group
		q.GroupID = &group.ID
	case models.FilterAuthor:
		user, err := a.users.GetByUsername(ctx, filter.Value)
		if err != nil {
			return nil, a.translate(err, "author %q", filter.Value)
		}
		ref := user.Ref()
		fp.Author = &ref
		q.AuthorID = &user.ID
	}

	posts, total, err := a.posts.QueryPage(ctx, q, page, a.pageSize)
	if err != nil {
		return nil, a.translate(err, "feed %s", filter)
	}
	fp.TotalCount = total

	r := newResolver(a)
	if fp.Group != nil {
		r.groups[fp.Group.ID] = fp.Group
	}
	fp.Posts = make([]models.PostView, 0, len(posts))
	for _, p := range posts {
		view, err := r.view(ctx, p)
		if err != nil {
			return nil, err
		}
		fp.Posts = append(fp.Posts, view)
	}
	return fp, nil
}

// Post returns the detail view of a single post.
func (a *Assembler) Post(ctx context.Context, id primitive.ObjectID) (*models.PostDetail, error) {
	post, err := a.posts.GetByID(ctx, id)
	if err != nil {
		return nil, a.translate(err, "post %s", id.Hex())
	}
	view, err := newResolver(a).view(ctx, post)
	if err != nil {
		return nil, err
	}
	_, count, err := a.posts.QueryPage(ctx, store.PostQuery{AuthorID: &post.AuthorID}, 1, 1)
	if err != nil {
		return nil, a.translate(err, "author post count")
	}
	return &models.PostDetail{PostView: view, AuthorPostCount: count}, nil
}

// InvalidateAll drops every cached page. Writers call it before reporting
// success so the next read of any feed sees the write.
func (a *Assembler) InvalidateAll(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.generation++
	return a.cache.InvalidateAll(ctx)
}

// translate maps store errors onto the feed error kinds.
func (a *Assembler) translate(err error, format string, args ...any) error {
	what := fmt.Sprintf(format, args...)
	var verr *store.ValidationError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	case errors.As(err, &verr):
		return &ValidationError{Field: verr.Field, Message: verr.Message}
	}
	return fmt.Errorf("%s: %w", what, err)
}

// resolver looks up authors and groups once per page.
type resolver struct {
	a      *Assembler
	users  map[primitive.ObjectID]models.AuthorRef
	groups map[primitive.ObjectID]*models.Group
}

func newResolver(a *Assembler) *resolver {
	return &resolver{
		a:      a,
		users:  make(map[primitive.ObjectID]models.AuthorRef),
		groups: make(map[primitive.ObjectID]*models.Group),
	}
}

const unknownAuthor = "Unknown User"

func (r *resolver) view(ctx context.Context, p *models.Post) (models.PostView, error) {
	view := models.PostView{Post: *p}

	ref, ok := r.users[p.AuthorID]
	if !ok {
		user, err := r.a.users.GetByID(ctx, p.AuthorID)
		switch {
		case err == nil:
			ref = user.Ref()
		case errors.Is(err, store.ErrNotFound):
			flog.WithField("author_id", p.AuthorID.Hex()).Warn("Post author missing, using fallback")
			ref = models.AuthorRef{ID: p.AuthorID, Name: unknownAuthor}
		default:
			return view, fmt.Errorf("author %s: %w", p.AuthorID.Hex(), err)
		}
		r.users[p.AuthorID] = ref
	}
	view.Author = ref

	if p.GroupID != nil {
		group, ok := r.groups[*p.GroupID]
		if !ok {
			g, err := r.a.groups.GetByID(ctx, *p.GroupID)
			switch {
			case err == nil:
				group = g
			case errors.Is(err, store.ErrNotFound):
				flog.WithField("group_id", p.GroupID.Hex()).Warn("Post group missing")
			default:
				return view, fmt.Errorf("group %s: %w", p.GroupID.Hex(), err)
			}
			r.groups[*p.GroupID] = group
		}
		view.Group = group
	}
	return view, nil
}
