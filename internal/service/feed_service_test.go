package service

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"penfeed/internal/cache"
	"penfeed/internal/models"
	"penfeed/internal/repository"
	"penfeed/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func countingPosts(total int) (*postRepoStub, *int) {
	listCalls := 0
	posts := noopPostRepo()
	posts.countFn = func(_ context.Context, _ repository.PostFilter) (int64, error) {
		return int64(total), nil
	}
	posts.listFn = func(_ context.Context, _ repository.PostFilter, limit, offset int) ([]models.Post, error) {
		listCalls++
		var out []models.Post
		for i := offset; i < offset+limit && i < total; i++ {
			out = append(out, models.Post{ID: uint(total - i), Text: "post"})
		}
		return out, nil
	}
	return posts, &listCalls
}

func newStubFeed(posts *postRepoStub, store cache.Store, ttl time.Duration) *FeedService {
	return NewFeedService(posts, noopUserRepo(), noopGroupRepo(), noopCommentRepo(), noopFollowRepo(), store, FeedOptions{IndexTTL: ttl})
}

func TestFeedService_Index_Paging(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		raw        string
		wantNumber int
		wantItems  int
	}{
		{raw: "", wantNumber: 1, wantItems: 10},
		{raw: "abc", wantNumber: 1, wantItems: 10},
		{raw: "2", wantNumber: 2, wantItems: 5},
		{raw: "99", wantNumber: 2, wantItems: 5},
		{raw: "-3", wantNumber: 1, wantItems: 10},
	}

	for _, tc := range tests {
		tc := tc
		t.Run("page "+tc.raw, func(t *testing.T) {
			t.Parallel()
			posts, _ := countingPosts(15)
			svc := newStubFeed(posts, newMemStore(), 0)

			page, err := svc.Index(ctx, tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.wantNumber, page.Number)
			assert.Len(t, page.Items, tc.wantItems)
			assert.Equal(t, 2, page.TotalPages)
			assert.Equal(t, 15, page.TotalItems)
		})
	}
}

func TestFeedService_Index_UsesCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	posts, listCalls := countingPosts(3)
	store := newMemStore()
	svc := newStubFeed(posts, store, 300*time.Second)

	first, err := svc.Index(ctx, "1")
	require.NoError(t, err)
	second, err := svc.Index(ctx, "1")
	require.NoError(t, err)

	assert.Equal(t, 1, *listCalls)
	assert.Equal(t, first.Items, second.Items)
	assert.Contains(t, store.data, cache.IndexPageKey(1))
}

func TestFeedService_Index_DeepPagesBypassCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	posts, listCalls := countingPosts(3)
	store := newMemStore()
	svc := newStubFeed(posts, store, 300*time.Second)

	for i := 0; i < 2; i++ {
		page, err := svc.Index(ctx, "1000000")
		require.NoError(t, err)
		assert.Equal(t, 1, page.Number)
		assert.Len(t, page.Items, 3)
	}
	assert.Equal(t, 2, *listCalls)
	assert.Empty(t, store.data)

	_, err := svc.Index(ctx, strconv.Itoa(maxCachedIndexPage))
	require.NoError(t, err)
	assert.Contains(t, store.data, cache.IndexPageKey(maxCachedIndexPage))
	assert.Len(t, store.data, 1)
}

func TestFeedService_Index_CacheErrorFallsThrough(t *testing.T) {
	t.Parallel()

	posts, listCalls := countingPosts(3)
	store := newMemStore()
	store.getErr = errors.New("connection refused")
	svc := newStubFeed(posts, store, time.Minute)

	page, err := svc.Index(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, page.Items, 3)
	assert.Equal(t, 1, *listCalls)
}

func TestFeedService_FlushCache_StaffOnly(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := newMemStore()
	svc := NewFeedService(noopPostRepo(), staffUsers(1), noopGroupRepo(), noopCommentRepo(), noopFollowRepo(), store, FeedOptions{})

	assertCode(t, svc.FlushCache(ctx, 0), models.CodeUnauthenticated)
	assertCode(t, svc.FlushCache(ctx, 2), models.CodeForbidden)
	assert.Equal(t, 0, store.flushes)

	require.NoError(t, svc.FlushCache(ctx, 1))
	assert.Equal(t, 1, store.flushes)
}

func TestFeedService_Following_RequiresUser(t *testing.T) {
	t.Parallel()
	svc := newStubFeed(noopPostRepo(), newMemStore(), 0)
	_, err := svc.Following(context.Background(), 0, "1")
	assertCode(t, err, models.CodeUnauthenticated)
}

// feedFixture wires the services to an in-memory database and miniredis.
type feedFixture struct {
	db       *gorm.DB
	feed     *FeedService
	posts    *PostService
	comments *CommentService
	follows  *FollowService
}

func newFeedFixture(t *testing.T) *feedFixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	_, rdb := testutil.NewTestRedis(t)

	posts := repository.NewPostRepository(db)
	users := repository.NewUserRepository(db)
	groups := repository.NewGroupRepository(db)
	comments := repository.NewCommentRepository(db)
	follows := repository.NewFollowRepository(db)

	return &feedFixture{
		db:       db,
		feed:     NewFeedService(posts, users, groups, comments, follows, cache.NewStore(rdb), FeedOptions{IndexTTL: cache.IndexTTL}),
		posts:    NewPostService(posts, groups),
		comments: NewCommentService(comments, posts),
		follows:  NewFollowService(follows, users),
	}
}

func TestFeedScenario_DeletedPostStaysCachedUntilFlush(t *testing.T) {
	fx := newFeedFixture(t)
	ctx := context.Background()

	author := testutil.CreateUser(t, fx.db, "leo")
	staff := testutil.CreateUser(t, fx.db, "admin")
	require.NoError(t, fx.db.Model(staff).Update("is_staff", true).Error)

	post, err := fx.posts.CreatePost(ctx, CreatePostInput{AuthorID: author.ID, Text: "short lived"})
	require.NoError(t, err)

	page, err := fx.feed.Index(ctx, "1")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	require.NoError(t, fx.posts.DeletePost(ctx, DeletePostInput{PostID: post.ID, ActorID: author.ID}))

	page, err = fx.feed.Index(ctx, "1")
	require.NoError(t, err)
	require.Len(t, page.Items, 1, "cached page survives the delete")
	assert.Equal(t, "short lived", page.Items[0].Text)

	require.NoError(t, fx.feed.FlushCache(ctx, staff.ID))

	page, err = fx.feed.Index(ctx, "1")
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestFeedScenario_GroupAndProfileFeeds(t *testing.T) {
	fx := newFeedFixture(t)
	ctx := context.Background()

	leo := testutil.CreateUser(t, fx.db, "leo")
	anna := testutil.CreateUser(t, fx.db, "anna")
	cats := testutil.CreateGroup(t, fx.db, "cats")
	testutil.CreateGroup(t, fx.db, "dogs")
	testutil.CreatePosts(t, fx.db, leo, cats, 15)
	testutil.CreatePost(t, fx.db, anna, nil, "ungrouped", time.Now())

	groupFeed, err := fx.feed.Group(ctx, "cats", "2")
	require.NoError(t, err)
	assert.Equal(t, "cats", groupFeed.Group.Slug)
	assert.Len(t, groupFeed.Page.Items, 5)
	assert.False(t, groupFeed.Page.HasNext)
	assert.True(t, groupFeed.Page.HasPrev)

	dogs, err := fx.feed.Group(ctx, "dogs", "")
	require.NoError(t, err)
	assert.Empty(t, dogs.Page.Items)
	assert.Equal(t, 1, dogs.Page.TotalPages)

	_, err = fx.feed.Group(ctx, "birds", "")
	assertCode(t, err, models.CodeNotFound)

	profile, err := fx.feed.Profile(ctx, "leo", "1", anna.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(15), profile.PostCount)
	assert.False(t, profile.Following)
	require.Len(t, profile.Page.Items, 10)
	assert.Equal(t, "post number 15", profile.Page.Items[0].Text)

	_, err = fx.follows.Follow(ctx, FollowInput{UserID: anna.ID, AuthorUsername: "leo"})
	require.NoError(t, err)
	profile, err = fx.feed.Profile(ctx, "leo", "1", anna.ID)
	require.NoError(t, err)
	assert.True(t, profile.Following)
}

func TestFeedScenario_FollowingFeed(t *testing.T) {
	fx := newFeedFixture(t)
	ctx := context.Background()

	leo := testutil.CreateUser(t, fx.db, "leo")
	anna := testutil.CreateUser(t, fx.db, "anna")
	mia := testutil.CreateUser(t, fx.db, "mia")
	testutil.CreatePost(t, fx.db, leo, nil, "from leo", time.Now().Add(-time.Hour))
	testutil.CreatePost(t, fx.db, mia, nil, "from mia", time.Now())

	for i := 0; i < 2; i++ {
		_, err := fx.follows.Follow(ctx, FollowInput{UserID: anna.ID, AuthorUsername: "leo"})
		require.NoError(t, err)
	}
	var edges int64
	require.NoError(t, fx.db.Model(&models.Follow{}).Where("user_id = ?", anna.ID).Count(&edges).Error)
	assert.Equal(t, int64(1), edges)

	page, err := fx.feed.Following(ctx, anna.ID, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "from leo", page.Items[0].Text)

	_, err = fx.follows.Unfollow(ctx, FollowInput{UserID: anna.ID, AuthorUsername: "leo"})
	require.NoError(t, err)
	page, err = fx.feed.Following(ctx, anna.ID, "")
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestFeedScenario_EditAndComment(t *testing.T) {
	fx := newFeedFixture(t)
	ctx := context.Background()

	leo := testutil.CreateUser(t, fx.db, "leo")
	anna := testutil.CreateUser(t, fx.db, "anna")
	created := time.Now().Add(-24 * time.Hour).UTC().Truncate(time.Second)
	post := testutil.CreatePost(t, fx.db, leo, nil, "original", created)

	_, err := fx.posts.EditPost(ctx, EditPostInput{PostID: post.ID, EditorID: anna.ID, Text: "hijacked"})
	assertCode(t, err, models.CodeForbidden)

	edited, err := fx.posts.EditPost(ctx, EditPostInput{PostID: post.ID, EditorID: leo.ID, Text: "revised"})
	require.NoError(t, err)
	assert.Equal(t, post.ID, edited.ID)
	assert.Equal(t, "revised", edited.Text)
	assert.True(t, created.Equal(edited.CreatedAt.UTC()))

	_, err = fx.comments.AddComment(ctx, AddCommentInput{PostID: post.ID + 100, AuthorID: anna.ID, Text: "lost"})
	assertCode(t, err, models.CodeNotFound)

	_, err = fx.comments.AddComment(ctx, AddCommentInput{PostID: post.ID, AuthorID: anna.ID, Text: "first"})
	require.NoError(t, err)
	_, err = fx.comments.AddComment(ctx, AddCommentInput{PostID: post.ID, AuthorID: leo.ID, Text: "second"})
	require.NoError(t, err)

	detail, err := fx.feed.PostDetail(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), detail.PostCount)
	require.Len(t, detail.Comments, 2)
	assert.Equal(t, "leo", detail.Post.Author.Username)
}
