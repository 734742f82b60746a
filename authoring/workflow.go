// Package authoring implements post creation and editing: validating the
// form, checking ownership on edit, persisting through the post store and
// invalidating the feed cache.
package authoring

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"yatube/models"
	"yatube/store"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var alog = logrus.WithField("component", "authoring")

// Invalidator drops cached feed pages after a write.
type Invalidator interface {
	InvalidateAll(ctx context.Context) error
}

// Notifier is told about every successful write, after the cache has been
// invalidated.
type Notifier interface {
	PostSaved(ctx context.Context, ev models.PostEvent)
}

type Workflow struct {
	posts    store.PostStore
	groups   store.GroupStore
	cache    Invalidator
	notifier Notifier
	validate *validator.Validate
	maxText  int
}

type Option func(*Workflow)

func WithNotifier(n Notifier) Option {
	return func(w *Workflow) { w.notifier = n }
}

func NewWorkflow(posts store.PostStore, groups store.GroupStore, cache Invalidator, rules store.Rules, opts ...Option) *Workflow {
	maxText := rules.MaxTextLength
	if maxText <= 0 {
		maxText = store.DefaultMaxTextLength
	}
	w := &Workflow{
		posts:    posts,
		groups:   groups,
		cache:    cache,
		validate: validator.New(),
		maxText:  maxText,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Validate checks the form against the post rules and resolves the group.
func (w *Workflow) Validate(ctx context.Context, form Form) (Result, error) {
	errs := FieldErrors{}
	text := strings.TrimSpace(form.Text)

	if err := w.validate.Var(text, fmt.Sprintf("required,max=%d", w.maxText)); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, err
		}
		for _, fe := range verrs {
			switch fe.Tag() {
			case "required":
				errs.Add("text", "This field is required.")
			case "max":
				errs.Add("text", fmt.Sprintf("Ensure this value has at most %d characters.", w.maxText))
			default:
				errs.Add("text", "Enter a valid value.")
			}
		}
	}

	var group *models.Group
	if raw := strings.TrimSpace(form.GroupID); raw != "" {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			errs.Add("group", "Select a valid choice.")
		} else if g, err := w.groups.GetByID(ctx, id); err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("look up group: %w", err)
			}
			errs.Add("group", "Select a valid choice.")
		} else {
			group = g
		}
	}

	if len(errs) > 0 {
		return Invalid{Errors: errs}, nil
	}
	v := Valid{Text: text, Group: group}
	if group != nil {
		v.GroupID = &group.ID
	}
	return v, nil
}

// NewForm returns an empty create form.
func (w *Workflow) NewForm(ctx context.Context) (*FormView, error) {
	return w.formView(ctx, Form{}, nil, nil)
}

// SubmitCreate validates the form and, if it is valid, stores a new post by
// the principal and points the caller at the principal's profile.
func (w *Workflow) SubmitCreate(ctx context.Context, principal models.Principal, form Form) (*Outcome, error) {
	if principal.IsAnonymous() {
		return nil, ErrUnauthenticated
	}
	log := alog.WithField("user", principal.Username)

	res, err := w.Validate(ctx, form)
	if err != nil {
		return nil, err
	}
	switch r := res.(type) {
	case Invalid:
		log.WithField("fields", r.Errors.Fields()).Debug("Rejected new post")
		return w.rejected(ctx, form, r.Errors, nil)
	case Valid:
		post, err := w.posts.Create(ctx, r.Text, principal.UserID, r.GroupID)
		if errs, ok := storeFieldErrors(err); ok {
			return w.rejected(ctx, form, errs, nil)
		}
		if err != nil {
			return nil, fmt.Errorf("create post: %w", err)
		}
		w.afterWrite(ctx, log, models.PostCreated, post, principal, r.Group)
		log.WithField("post_id", post.ID.Hex()).Info("Post created")
		return &Outcome{Post: post, Redirect: ProfileURL(principal.Username)}, nil
	}
	return nil, fmt.Errorf("unexpected validation result %T", res)
}

// EditForm returns the form pre-filled with the post's current values.
func (w *Workflow) EditForm(ctx context.Context, principal models.Principal, postID primitive.ObjectID) (*FormView, error) {
	if principal.IsAnonymous() {
		return nil, ErrUnauthenticated
	}
	post, err := w.getPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	return w.formView(ctx, formFromPost(post), nil, post)
}

// SubmitEdit replaces the text and group of a post. Only the author may edit;
// anyone else gets a *ForbiddenError and the post is not modified.
func (w *Workflow) SubmitEdit(ctx context.Context, principal models.Principal, postID primitive.ObjectID, form Form) (*Outcome, error) {
	if principal.IsAnonymous() {
		return nil, ErrUnauthenticated
	}
	log := alog.WithFields(logrus.Fields{"user": principal.Username, "post_id": postID.Hex()})

	post, err := w.getPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != principal.UserID {
		log.Warn("Edit refused, not the author")
		return nil, &ForbiddenError{
			PostID:   postID.Hex(),
			EditorID: principal.UserID.Hex(),
			Redirect: PostURL(postID),
		}
	}

	res, err := w.Validate(ctx, form)
	if err != nil {
		return nil, err
	}
	switch r := res.(type) {
	case Invalid:
		log.WithField("fields", r.Errors.Fields()).Debug("Rejected post edit")
		return w.rejected(ctx, form, r.Errors, post)
	case Valid:
		updated, err := w.posts.Edit(ctx, postID, r.Text, r.GroupID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		if errs, ok := storeFieldErrors(err); ok {
			return w.rejected(ctx, form, errs, post)
		}
		if err != nil {
			return nil, fmt.Errorf("edit post: %w", err)
		}
		w.afterWrite(ctx, log, models.PostEdited, updated, principal, r.Group)
		log.Info("Post edited")
		return &Outcome{Post: updated, Redirect: PostURL(postID)}, nil
	}
	return nil, fmt.Errorf("unexpected validation result %T", res)
}

func (w *Workflow) getPost(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	post, err := w.posts.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return post, nil
}

// afterWrite never fails the write; a stale cache heals within the TTL.
func (w *Workflow) afterWrite(ctx context.Context, log *logrus.Entry, kind models.PostEventKind, post *models.Post, author models.Principal, group *models.Group) {
	if w.cache != nil {
		if err := w.cache.InvalidateAll(ctx); err != nil {
			log.WithError(err).Error("Failed to invalidate feed cache")
		}
	}
	if w.notifier != nil {
		ev := models.PostEvent{Kind: kind, PostID: post.ID, Author: author.Username, At: post.UpdatedAt}
		if group != nil {
			ev.GroupSlug = group.Slug
		}
		w.notifier.PostSaved(ctx, ev)
	}
}

func (w *Workflow) rejected(ctx context.Context, form Form, errs FieldErrors, post *models.Post) (*Outcome, error) {
	view, err := w.formView(ctx, form, errs, post)
	if err != nil {
		return nil, err
	}
	return &Outcome{Form: view}, nil
}

func (w *Workflow) formView(ctx context.Context, form Form, errs FieldErrors, post *models.Post) (*FormView, error) {
	groups, err := w.groups.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return &FormView{
		Form:   form,
		Errors: errs,
		IsEdit: post != nil,
		Post:   post,
		Groups: groups,
	}, nil
}

// storeFieldErrors turns a validation error raised by the store, such as a
// group deleted after Validate ran, into form errors.
func storeFieldErrors(err error) (FieldErrors, bool) {
	var verr *store.ValidationError
	switch {
	case errors.As(err, &verr):
		field := verr.Field
		if field != "group" {
			field = "text"
		}
		return FieldErrors{field: {verr.Message}}, true
	case errors.Is(err, store.ErrNotFound):
		return FieldErrors{"group": {"Select a valid choice."}}, true
	}
	return nil, false
}
