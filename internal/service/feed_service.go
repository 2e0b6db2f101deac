package service

import (
	"context"
	"time"

	"penfeed/internal/cache"
	"penfeed/internal/models"
	"penfeed/internal/observability"
	"penfeed/internal/pagination"
	"penfeed/internal/repository"
)

// PostPage is one page of a post feed.
type PostPage = pagination.Page[models.Post]

// GroupFeed is a group and one page of its posts.
type GroupFeed struct {
	Group *models.Group `json:"group"`
	Page  PostPage      `json:"page"`
}

// ProfileFeed is an author, their post count, whether the viewer follows them,
// and one page of their posts.
type ProfileFeed struct {
	Author    *models.User `json:"author"`
	PostCount int64        `json:"post_count"`
	Following bool         `json:"following"`
	Page      PostPage     `json:"page"`
}

// PostDetail is a post with its comments (newest first) and its author's post count.
type PostDetail struct {
	Post      *models.Post     `json:"post"`
	PostCount int64            `json:"post_count"`
	Comments  []models.Comment `json:"comments"`
}

// FeedOptions tunes paging and the index cache. A zero IndexTTL disables caching.
type FeedOptions struct {
	PageSize int
	IndexTTL time.Duration
}

// FeedService answers the read side: index, group, profile, following and post detail.
// Only the index feed is cached, and writes never invalidate it.
type FeedService struct {
	posts    repository.PostRepository
	users    repository.UserRepository
	groups   repository.GroupRepository
	comments repository.CommentRepository
	follows  repository.FollowRepository
	store    cache.Store
	pageSize int
	indexTTL time.Duration
}

func NewFeedService(
	posts repository.PostRepository,
	users repository.UserRepository,
	groups repository.GroupRepository,
	comments repository.CommentRepository,
	follows repository.FollowRepository,
	store cache.Store,
	opts FeedOptions,
) *FeedService {
	if opts.PageSize < 1 {
		opts.PageSize = pagination.DefaultSize
	}
	return &FeedService{
		posts:    posts,
		users:    users,
		groups:   groups,
		comments: comments,
		follows:  follows,
		store:    store,
		pageSize: opts.PageSize,
		indexTTL: opts.IndexTTL,
	}
}

func (s *FeedService) page(ctx context.Context, filter repository.PostFilter, rawPage string) (PostPage, error) {
	total, err := s.posts.Count(ctx, filter)
	if err != nil {
		return PostPage{}, err
	}

	w := pagination.Resolve(int(total), pagination.ParsePage(rawPage), s.pageSize)
	items, err := s.posts.List(ctx, filter, w.Limit, w.Offset)
	if err != nil {
		return PostPage{}, err
	}
	return pagination.NewPage(items, w, int(total)), nil
}

// maxCachedIndexPage bounds the index pages kept in the cache; deeper pages are read
// straight from the database.
const maxCachedIndexPage = 100

// Index returns a page of all posts, served from the response cache when possible.
func (s *FeedService) Index(ctx context.Context, rawPage string) (page *PostPage, err error) {
	requested := pagination.ParsePage(rawPage)
	ctx, span := observability.StartFeedSpan(ctx, "index", requested)
	defer func() { observability.EndSpan(span, err) }()

	if s.indexTTL <= 0 || requested > maxCachedIndexPage {
		p, err := s.page(ctx, repository.PostFilter{}, rawPage)
		if err != nil {
			return nil, err
		}
		observability.RecordCacheOutcome(span, "index", "bypass")
		return &p, nil
	}

	var result PostPage
	hit, err := cache.Aside(ctx, s.store, cache.IndexPageKey(requested), &result, s.indexTTL, func() error {
		p, err := s.page(ctx, repository.PostFilter{}, rawPage)
		if err != nil {
			return err
		}
		result = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	observability.RecordCacheOutcome(span, "index", outcome)
	return &result, nil
}

// Group returns a page of the posts tagged with the group identified by slug.
func (s *FeedService) Group(ctx context.Context, slug, rawPage string) (feed *GroupFeed, err error) {
	ctx, span := observability.StartFeedSpan(ctx, "group", pagination.ParsePage(rawPage), observability.AttrGroup.String(slug))
	defer func() { observability.EndSpan(span, err) }()

	group, err := s.groups.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	page, err := s.page(ctx, repository.PostFilter{GroupID: group.ID}, rawPage)
	if err != nil {
		return nil, err
	}
	return &GroupFeed{Group: group, Page: page}, nil
}

// Profile returns a page of posts written by username. viewerID may be 0.
func (s *FeedService) Profile(ctx context.Context, username, rawPage string, viewerID uint) (feed *ProfileFeed, err error) {
	ctx, span := observability.StartFeedSpan(ctx, "profile", pagination.ParsePage(rawPage),
		observability.AttrAuthor.String(username), observability.AttrViewerID.Int64(int64(viewerID)))
	defer func() { observability.EndSpan(span, err) }()

	author, err := lookupUsername(ctx, s.users, username)
	if err != nil {
		return nil, err
	}

	page, err := s.page(ctx, repository.PostFilter{AuthorID: author.ID}, rawPage)
	if err != nil {
		return nil, err
	}

	following := false
	if viewerID != 0 && viewerID != author.ID {
		following, err = s.follows.Exists(ctx, viewerID, author.ID)
		if err != nil {
			return nil, err
		}
	}

	return &ProfileFeed{
		Author:    author,
		PostCount: int64(page.TotalItems),
		Following: following,
		Page:      page,
	}, nil
}

// Following returns a page of posts by the authors viewerID follows.
func (s *FeedService) Following(ctx context.Context, viewerID uint, rawPage string) (page *PostPage, err error) {
	ctx, span := observability.StartFeedSpan(ctx, "following", pagination.ParsePage(rawPage), observability.AttrViewerID.Int64(int64(viewerID)))
	defer func() { observability.EndSpan(span, err) }()

	if err := requireUser(viewerID); err != nil {
		return nil, err
	}
	p, err := s.page(ctx, repository.PostFilter{FollowerID: viewerID}, rawPage)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// PostDetail returns a single post with its comments.
func (s *FeedService) PostDetail(ctx context.Context, postID uint) (detail *PostDetail, err error) {
	ctx, span := observability.StartSpan(ctx, "feed.post_detail", observability.AttrPostID.Int64(int64(postID)))
	defer func() { observability.EndSpan(span, err) }()

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	count, err := s.posts.Count(ctx, repository.PostFilter{AuthorID: post.AuthorID})
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	return &PostDetail{Post: post, PostCount: count, Comments: comments}, nil
}

// FlushCache empties the response cache. Staff only.
func (s *FeedService) FlushCache(ctx context.Context, actorID uint) error {
	if _, err := requireStaff(ctx, s.users, actorID); err != nil {
		return err
	}
	if err := s.store.Flush(ctx); err != nil {
		return models.NewInternalError(err)
	}
	observability.FeedCacheFlushes.Inc()
	return nil
}
