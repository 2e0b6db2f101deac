package seed

import (
	"testing"

	"penfeed/internal/models"
	"penfeed/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestDefaultGroups(t *testing.T) {
	t.Parallel()
	groups, err := DefaultGroups()
	require.NoError(t, err)
	require.NotEmpty(t, groups)
	assert.Equal(t, "cats", groups[0].Slug)
}

func TestParseGroups_Rejects(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"bad yaml":       "- title: [",
		"bad slug":       "- title: X\n  slug: Not Valid\n",
		"reserved slug":  "- title: X\n  slug: follow\n",
		"missing title":  "- slug: cats\n",
		"duplicate slug": "- title: A\n  slug: cats\n- title: B\n  slug: cats\n",
	}
	for name, doc := range tests {
		_, err := ParseGroups([]byte(doc))
		assert.Error(t, err, name)
	}
}

func TestGroups_Idempotent(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)

	require.NoError(t, DefaultGroupsSeed(db))
	require.NoError(t, Groups(db, []GroupSpec{{Title: "Cats and Kittens", Slug: "cats", Description: "renamed"}}))
	require.NoError(t, DefaultGroupsSeed(db))

	specs, err := DefaultGroups()
	require.NoError(t, err)
	var count int64
	require.NoError(t, db.Model(&models.Group{}).Count(&count).Error)
	assert.Equal(t, int64(len(specs)), count)

	var cats models.Group
	require.NoError(t, db.Where("slug = ?", "cats").First(&cats).Error)
	assert.Equal(t, "Cats", cats.Title)
}

func TestSeed_CreatesConsistentData(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)

	sum, err := Seed(db, Options{
		NumUsers: 5,
		NumPosts: 20,
		Factory:  FactoryOptions{Seed: 7, BcryptCost: bcrypt.MinCost},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, sum.Users)
	assert.Equal(t, 20, sum.Posts)

	var posts int64
	require.NoError(t, db.Model(&models.Post{}).Count(&posts).Error)
	assert.Equal(t, int64(20), posts)

	var selfFollows int64
	require.NoError(t, db.Model(&models.Follow{}).Where("user_id = author_id").Count(&selfFollows).Error)
	assert.Zero(t, selfFollows)

	var user models.User
	require.NoError(t, db.First(&user).Error)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(DemoPassword)))

	require.NoError(t, Clean(db))
	require.NoError(t, db.Model(&models.Post{}).Count(&posts).Error)
	assert.Zero(t, posts)
	var groups int64
	require.NoError(t, db.Model(&models.Group{}).Count(&groups).Error)
	assert.NotZero(t, groups)
}
